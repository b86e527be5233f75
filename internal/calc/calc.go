// Package calc computes per-gene mutation statistics from amino acid changes.
package calc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-perm/internal/gene"
)

// AAChanges holds parallel columns of residue position, reference amino
// acid and somatic amino acid, one row per mutation.
type AAChanges struct {
	CodonPos []int
	Ref      []byte
	Somatic  []byte
}

// NewAAChanges allocates columns with room for n rows.
func NewAAChanges(n int) *AAChanges {
	return &AAChanges{
		CodonPos: make([]int, 0, n),
		Ref:      make([]byte, 0, n),
		Somatic:  make([]byte, 0, n),
	}
}

// Add appends one row.
func (c *AAChanges) Add(codonPos int, ref, somatic byte) {
	c.CodonPos = append(c.CodonPos, codonPos)
	c.Ref = append(c.Ref, ref)
	c.Somatic = append(c.Somatic, somatic)
}

// AddInfo appends the row described by an annotated mutation.
func (c *AAChanges) AddInfo(info gene.MutationInfo) {
	c.Add(info.CodonPos, info.ReferenceAA, info.SomaticAA)
}

// Reset empties the columns, keeping their capacity.
func (c *AAChanges) Reset() {
	c.CodonPos = c.CodonPos[:0]
	c.Ref = c.Ref[:0]
	c.Somatic = c.Somatic[:0]
}

// Len returns the number of rows.
func (c *AAChanges) Len() int {
	return len(c.CodonPos)
}

// PositionStats are the position-based statistics of a gene.
type PositionStats struct {
	Recurrent    int
	Entropy      float64
	DeltaEntropy float64
}

// EffectStats are the effect-based statistics of a gene.
type EffectStats struct {
	Entropy      float64
	Recurrent    int
	Inactivating int
}

func known(aa byte) bool {
	return aa != 0 && aa != gene.UnknownAA
}

// IsInactivating reports whether a change is nonsense, stop-loss or start-loss.
func IsInactivating(codonPos int, ref, somatic byte) bool {
	if codonPos < 0 || !known(ref) || !known(somatic) {
		return false
	}
	switch {
	case somatic == '*' && ref != '*':
		return true
	case ref == '*' && somatic != '*':
		return true
	case codonPos == 0 && ref == 'M' && somatic != 'M':
		return true
	}
	return false
}

// IsMissense reports whether a change substitutes one amino acid for another.
func IsMissense(codonPos int, ref, somatic byte) bool {
	if codonPos < 0 || !known(ref) || !known(somatic) {
		return false
	}
	if ref == somatic || ref == '*' || somatic == '*' {
		return false
	}
	return !IsInactivating(codonPos, ref, somatic)
}

// DeleteriousCount counts inactivating changes.
func DeleteriousCount(c *AAChanges) int {
	n := 0
	for i := range c.CodonPos {
		if IsInactivating(c.CodonPos[i], c.Ref[i], c.Somatic[i]) {
			n++
		}
	}
	return n
}

// missenseCounts returns per-residue missense counts ordered by residue.
func missenseCounts(c *AAChanges) (counts []int, total int) {
	byPos := make(map[int]int)
	for i := range c.CodonPos {
		if IsMissense(c.CodonPos[i], c.Ref[i], c.Somatic[i]) {
			byPos[c.CodonPos[i]]++
			total++
		}
	}

	positions := make([]int, 0, len(byPos))
	for p := range byPos {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	counts = make([]int, len(positions))
	for i, p := range positions {
		counts[i] = byPos[p]
	}
	return counts, total
}

func isRecurrent(ct, total, minRecur int, minFrac float64) bool {
	return ct >= minRecur && float64(ct)/float64(total) >= minFrac
}

// PositionInfo computes missense recurrence and positional entropy.
// A residue is recurrent when it carries at least minRecur missense
// mutations making up at least minFrac of all missense mutations.
func PositionInfo(c *AAChanges, minFrac float64, minRecur int) PositionStats {
	counts, total := missenseCounts(c)

	var s PositionStats
	cts := make([]float64, len(counts))
	for i, ct := range counts {
		if isRecurrent(ct, total, minRecur, minFrac) {
			s.Recurrent += ct
		}
		cts[i] = float64(ct)
	}
	s.Entropy = NormalizedEntropy(cts)
	s.DeltaEntropy = DeltaEntropy(cts)
	return s
}

// EffectInfo computes the entropy of mutations binned by effect: one bin per
// recurrent residue, one shared bin for inactivating changes, and a singleton
// bin for every other missense mutation.
func EffectInfo(c *AAChanges, minFrac float64, minRecur int) EffectStats {
	counts, total := missenseCounts(c)

	var s EffectStats
	s.Inactivating = DeleteriousCount(c)

	var bins []float64
	for _, ct := range counts {
		if isRecurrent(ct, total, minRecur, minFrac) {
			s.Recurrent += ct
			bins = append(bins, float64(ct))
			continue
		}
		for range ct {
			bins = append(bins, 1)
		}
	}
	if s.Inactivating > 0 {
		bins = append(bins, float64(s.Inactivating))
	}

	s.Entropy = NormalizedEntropy(bins)
	return s
}

// NormalizedEntropy returns the Shannon entropy of counts divided by the
// maximum entropy reachable with the same number of mutations. Fewer than
// two mutations are reported as maximally dispersed.
func NormalizedEntropy(counts []float64) float64 {
	total := floats.Sum(counts)
	if total <= 1 {
		return 1.0
	}
	return entropy(counts, total) / math.Log(total)
}

// DeltaEntropy returns how many bits the entropy of counts falls below its
// maximum.
func DeltaEntropy(counts []float64) float64 {
	total := floats.Sum(counts)
	if total <= 1 {
		return 0
	}
	return (math.Log(total) - entropy(counts, total)) / math.Ln2
}

func entropy(counts []float64, total float64) float64 {
	p := make([]float64, len(counts))
	copy(p, counts)
	floats.Scale(1/total, p)
	return stat.Entropy(p)
}
