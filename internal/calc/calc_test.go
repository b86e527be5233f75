package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func changes(rows ...struct {
	pos          int
	ref, somatic byte
}) *AAChanges {
	c := NewAAChanges(len(rows))
	for _, r := range rows {
		c.Add(r.pos, r.ref, r.somatic)
	}
	return c
}

type row = struct {
	pos          int
	ref, somatic byte
}

func TestIsInactivating(t *testing.T) {
	tests := []struct {
		name string
		r    row
		want bool
	}{
		{"nonsense", row{10, 'W', '*'}, true},
		{"stop lost", row{10, '*', 'Q'}, true},
		{"start lost", row{0, 'M', 'L'}, true},
		{"methionine elsewhere", row{5, 'M', 'L'}, false},
		{"missense", row{10, 'G', 'D'}, false},
		{"synonymous stop", row{10, '*', '*'}, false},
		{"unknown", row{10, 'X', '*'}, false},
		{"unmapped residue", row{-1, 'W', '*'}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInactivating(tt.r.pos, tt.r.ref, tt.r.somatic))
		})
	}
}

func TestIsMissense(t *testing.T) {
	assert.True(t, IsMissense(3, 'G', 'D'))
	assert.False(t, IsMissense(3, 'G', 'G'))
	assert.False(t, IsMissense(3, 'W', '*'))
	assert.False(t, IsMissense(0, 'M', 'L'))
	assert.False(t, IsMissense(-1, 'G', 'D'))
}

func TestDeleteriousCount(t *testing.T) {
	c := changes(
		row{0, 'M', 'I'},
		row{4, 'W', '*'},
		row{7, 'G', 'D'},
		row{9, 'K', 'K'},
		row{12, '*', 'R'},
	)
	assert.Equal(t, 3, DeleteriousCount(c))
	assert.Equal(t, 0, DeleteriousCount(NewAAChanges(0)))
}

func TestPositionInfo_AllAtOneResidue(t *testing.T) {
	c := NewAAChanges(5)
	for range 5 {
		c.Add(10, 'A', 'T')
	}

	s := PositionInfo(c, 0.0, 2)
	assert.Equal(t, 5, s.Recurrent)
	assert.InDelta(t, 0.0, s.Entropy, 1e-12)
	assert.InDelta(t, math.Log2(5), s.DeltaEntropy, 1e-12)
}

func TestPositionInfo_Dispersed(t *testing.T) {
	c := NewAAChanges(4)
	for i := range 4 {
		c.Add(i+1, 'A', 'T')
	}

	s := PositionInfo(c, 0.0, 2)
	assert.Equal(t, 0, s.Recurrent)
	assert.InDelta(t, 1.0, s.Entropy, 1e-12)
	assert.InDelta(t, 0.0, s.DeltaEntropy, 1e-12)
}

func TestPositionInfo_Thresholds(t *testing.T) {
	// residue 1 x3, residue 2 x2, residue 3 x1, plus a nonsense and a silent change
	c := changes(
		row{1, 'A', 'T'}, row{1, 'A', 'T'}, row{1, 'A', 'V'},
		row{2, 'G', 'D'}, row{2, 'G', 'D'},
		row{3, 'R', 'C'},
		row{4, 'W', '*'},
		row{5, 'L', 'L'},
	)

	assert.Equal(t, 5, PositionInfo(c, 0.0, 2).Recurrent)
	assert.Equal(t, 3, PositionInfo(c, 0.0, 3).Recurrent)
	assert.Equal(t, 3, PositionInfo(c, 0.4, 2).Recurrent, "2/6 is below the 0.4 fraction")
	assert.Equal(t, 0, PositionInfo(c, 0.0, 4).Recurrent)

	s := PositionInfo(c, 0.0, 2)
	want := -(0.5*math.Log(0.5) + (1.0/3)*math.Log(1.0/3) + (1.0/6)*math.Log(1.0/6)) / math.Log(6)
	assert.InDelta(t, want, s.Entropy, 1e-12)
}

func TestPositionInfo_Empty(t *testing.T) {
	s := PositionInfo(NewAAChanges(0), 0.0, 2)
	assert.Equal(t, PositionStats{Recurrent: 0, Entropy: 1.0, DeltaEntropy: 0}, s)
}

func TestEffectInfo(t *testing.T) {
	// recurrent residue 1 x3, singletons at 2 and 3, two inactivating
	c := changes(
		row{1, 'A', 'T'}, row{1, 'A', 'T'}, row{1, 'A', 'T'},
		row{2, 'G', 'D'},
		row{3, 'R', 'C'},
		row{4, 'W', '*'},
		row{0, 'M', 'V'},
	)

	s := EffectInfo(c, 0.0, 2)
	assert.Equal(t, 3, s.Recurrent)
	assert.Equal(t, 2, s.Inactivating)

	// bins: 3, 1, 1, 2 over 7 mutations
	p := []float64{3.0 / 7, 1.0 / 7, 1.0 / 7, 2.0 / 7}
	var h float64
	for _, v := range p {
		h -= v * math.Log(v)
	}
	assert.InDelta(t, h/math.Log(7), s.Entropy, 1e-12)
}

func TestEffectInfo_NonRecurrentPositionSplitsIntoSingletons(t *testing.T) {
	c := changes(row{1, 'A', 'T'}, row{1, 'A', 'T'}, row{2, 'G', 'D'})

	// with min_recur=3 residue 1 is not recurrent: three singleton bins
	s := EffectInfo(c, 0.0, 3)
	assert.Equal(t, 0, s.Recurrent)
	assert.InDelta(t, 1.0, s.Entropy, 1e-12)
}

func TestNormalizedEntropy(t *testing.T) {
	assert.Equal(t, 1.0, NormalizedEntropy(nil))
	assert.Equal(t, 1.0, NormalizedEntropy([]float64{1}))
	assert.InDelta(t, 0.0, NormalizedEntropy([]float64{4}), 1e-12)
	assert.InDelta(t, 1.0, NormalizedEntropy([]float64{1, 1, 1}), 1e-12)
	assert.Equal(t, 0.0, DeltaEntropy([]float64{1}))
	assert.InDelta(t, 1.0, DeltaEntropy([]float64{2}), 1e-12)
}

func TestAAChanges_Reset(t *testing.T) {
	c := NewAAChanges(2)
	c.Add(1, 'A', 'T')
	assert.Equal(t, 1, c.Len())
	c.Reset()
	assert.Equal(t, 0, c.Len())
}
