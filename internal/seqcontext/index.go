// Package seqcontext indexes the coding positions of a gene by their
// surrounding nucleotide context.
package seqcontext

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Mode selects how much sequence around a position defines its context.
type Mode int

const (
	// ModeNone puts every position in a single context.
	ModeNone Mode = 0
	// ModeSingle uses the reference base.
	ModeSingle Mode = 1
	// ModeDinucleotide uses the reference base and its 3' neighbor.
	ModeDinucleotide Mode = 2
	// ModeTrinucleotide uses the 5' neighbor, the reference base and the 3' neighbor.
	ModeTrinucleotide Mode = 3
)

// NoneContext is the single context label used by ModeNone.
const NoneContext = "None"

// ParseMode converts a numeric context setting into a Mode.
func ParseMode(n int) (Mode, error) {
	switch Mode(n) {
	case ModeNone, ModeSingle, ModeDinucleotide, ModeTrinucleotide:
		return Mode(n), nil
	default:
		return 0, fmt.Errorf("unsupported context mode %d (want 0, 1, 2 or 3)", n)
	}
}

// Index maps each context to the coding positions carrying it and back.
type Index struct {
	mode       Mode
	contexts   []string
	positions  map[string][]int
	posContext []string
}

// New builds the index for a coding sequence.
func New(cds string, mode Mode) *Index {
	idx := &Index{
		mode:       mode,
		positions:  make(map[string][]int),
		posContext: make([]string, len(cds)),
	}

	for i := range len(cds) {
		c := contextAt(cds, i, mode)
		idx.posContext[i] = c
		idx.positions[c] = append(idx.positions[c], i)
	}

	idx.contexts = make([]string, 0, len(idx.positions))
	for c := range idx.positions {
		idx.contexts = append(idx.contexts, c)
	}
	sort.Strings(idx.contexts)

	return idx
}

func contextAt(cds string, i int, mode Mode) string {
	base := func(j int) byte {
		if j < 0 || j >= len(cds) {
			return 'N'
		}
		return cds[j]
	}

	switch mode {
	case ModeSingle:
		return string(cds[i])
	case ModeDinucleotide:
		return string([]byte{cds[i], base(i + 1)})
	case ModeTrinucleotide:
		return string([]byte{base(i - 1), cds[i], base(i + 1)})
	default:
		return NoneContext
	}
}

// Mode returns the context mode the index was built with.
func (idx *Index) Mode() Mode {
	return idx.mode
}

// Contexts returns the contexts present in the gene, sorted.
func (idx *Index) Contexts() []string {
	return idx.contexts
}

// PositionsFor returns the coding positions sharing a context.
func (idx *Index) PositionsFor(context string) []int {
	return idx.positions[context]
}

// ContextOf returns the context of a coding position.
func (idx *Index) ContextOf(pos int) (string, bool) {
	if pos < 0 || pos >= len(idx.posContext) {
		return "", false
	}
	return idx.posContext[pos], true
}

// SamplePositions draws count positions uniformly, with replacement, from the
// positions sharing context.
func (idx *Index) SamplePositions(context string, count int, rng *rand.Rand) ([]int, error) {
	candidates := idx.positions[context]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no coding positions with context %q", context)
	}

	out := make([]int, count)
	for i := range out {
		out[i] = candidates[rng.IntN(len(candidates))]
	}
	return out, nil
}
