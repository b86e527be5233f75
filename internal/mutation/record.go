// Package mutation holds the normalized per-gene mutation records consumed by
// the permutation tests.
package mutation

import (
	"fmt"
	"sort"

	"github.com/inodb/vibe-perm/internal/calc"
	"github.com/inodb/vibe-perm/internal/gene"
)

// Variant classifications that mark a frameshift.
const (
	FrameShiftDel = "Frame_Shift_Del"
	FrameShiftIns = "Frame_Shift_Ins"
)

// Record is one somatic mutation. Mappable records are placed on the gene's
// coding sequence by CodingPos; unmappable records carry their context and
// amino acid change directly.
type Record struct {
	Gene           string
	Classification string
	TumorAllele    byte
	Mappable       bool
	CodingPos      int
	Context        string
	ReferenceAA    byte
	SomaticAA      byte
	CodonPos       int
}

// IsFrameshift reports whether the record is a frameshift indel.
func (r *Record) IsFrameshift() bool {
	return r.Classification == FrameShiftDel || r.Classification == FrameShiftIns
}

// ContextLookup resolves the context of a coding position.
type ContextLookup interface {
	ContextOf(pos int) (string, bool)
}

// Annotator describes the protein effect of a substitution at a coding position.
type Annotator interface {
	Annotate(pos int, base byte) gene.MutationInfo
}

// ContextCounts maps a context to the number of mutations observed in it.
type ContextCounts map[string]int

// Contexts returns the contexts with a positive count in sorted order. Every
// flattening of per-context data uses this order.
func (c ContextCounts) Contexts() []string {
	out := make([]string, 0, len(c))
	for ctx, n := range c {
		if n > 0 {
			out = append(out, ctx)
		}
	}
	sort.Strings(out)
	return out
}

// Total returns the number of mutations across all contexts.
func (c ContextCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// ContextSubstitutions maps a context to the somatic bases observed in it.
type ContextSubstitutions map[string][]byte

// Gene groups the records of one gene.
type Gene struct {
	Name        string
	SNVs        []Record
	Frameshifts int
}

// ByGene splits records into per-gene SNV sets and frameshift counts.
// Records that are neither are ignored.
func ByGene(records []Record) map[string]*Gene {
	genes := make(map[string]*Gene)
	for _, r := range records {
		g, ok := genes[r.Gene]
		if !ok {
			g = &Gene{Name: r.Gene}
			genes[r.Gene] = g
		}
		switch {
		case r.IsFrameshift():
			g.Frameshifts++
		case r.TumorAllele != 0:
			g.SNVs = append(g.SNVs, r)
		}
	}
	return genes
}

// Group counts SNVs per context and collects their somatic bases. Mappable
// records take their context from idx, unmappable ones from the record.
func Group(snvs []Record, idx ContextLookup) (ContextCounts, ContextSubstitutions, error) {
	counts := make(ContextCounts)
	subs := make(ContextSubstitutions)

	for i := range snvs {
		r := &snvs[i]
		ctx := r.Context
		if r.Mappable {
			var ok bool
			ctx, ok = idx.ContextOf(r.CodingPos)
			if !ok {
				return nil, nil, fmt.Errorf("%s: coding position %d is outside the coding sequence", r.Gene, r.CodingPos)
			}
		} else if ctx == "" {
			return nil, nil, fmt.Errorf("%s: unmappable mutation has no context", r.Gene)
		}
		counts[ctx]++
		subs[ctx] = append(subs[ctx], r.TumorAllele)
	}

	return counts, subs, nil
}

// Observed returns the amino acid changes of the real mutations: mappable
// records are annotated against the gene, unmappable ones are taken as given.
func Observed(snvs []Record, ann Annotator) *calc.AAChanges {
	c := calc.NewAAChanges(len(snvs))
	for i := range snvs {
		r := &snvs[i]
		if r.Mappable {
			c.AddInfo(ann.Annotate(r.CodingPos, r.TumorAllele))
			continue
		}
		c.Add(r.CodonPos, r.ReferenceAA, r.SomaticAA)
	}
	return c
}
