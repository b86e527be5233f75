package pvalue

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func TestCummin(t *testing.T) {
	assert.Equal(t, []float64{3, 1, 1, 1, 1}, Cummin([]float64{3, 1, 4, 1, 5}))
	assert.Equal(t, []float64{}, Cummin([]float64{}))
	assert.Equal(t, []float64{2}, Cummin([]float64{2}))
}

func TestBHFDR_MatchesR(t *testing.T) {
	// p.adjust(c(0.01, 0.04, 0.03, 0.005, 0.5), method = "BH")
	p := []float64{0.01, 0.04, 0.03, 0.005, 0.5}
	want := []float64{0.025, 0.05, 0.05, 0.025, 0.5}

	got := BHFDR(p)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}
}

func TestBHFDR_AllEqual(t *testing.T) {
	p := []float64{0.2, 0.2, 0.2, 0.2}
	assert.Equal(t, p, BHFDR(p))
}

func TestBHFDR_SingleAndEmpty(t *testing.T) {
	assert.Equal(t, []float64{0.3}, BHFDR([]float64{0.3}))
	assert.Empty(t, BHFDR(nil))
}

func TestBHFDR_Properties(t *testing.T) {
	p := []float64{0.9, 0.001, 0.04, 0.04, 0.2, 0.7, 0.0005, 0.33, 1.0, 0.015}
	q := BHFDR(p)

	for i := range p {
		assert.GreaterOrEqual(t, q[i], p[i])
		assert.LessOrEqual(t, q[i], 1.0)
		assert.GreaterOrEqual(t, q[i], 0.0)
	}

	order := make([]int, len(p))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })
	for k := 1; k < len(order); k++ {
		assert.LessOrEqual(t, q[order[k-1]], q[order[k]])
	}

	assert.Equal(t, q[2], q[3], "tied p-values share a q-value")
	assert.Equal(t, 0.9, p[0], "input must not be modified")
}

func TestBHFDR_CapsAtOne(t *testing.T) {
	q := BHFDR([]float64{0.9, 0.95})
	assert.Equal(t, []float64{0.95, 0.95}, q)

	q = BHFDR([]float64{0.6, 0.6, 0.6, 0.9})
	for _, v := range q {
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestAdjustNullable(t *testing.T) {
	in := []null.Float{null.FloatFrom(0.01), {}, null.FloatFrom(0.04)}
	out := AdjustNullable(in)

	require.Len(t, out, 3)
	assert.True(t, out[0].Valid)
	assert.False(t, out[1].Valid)
	assert.InDelta(t, 0.02, out[0].Float64, 1e-12)
	assert.InDelta(t, 0.04, out[2].Float64, 1e-12)

	assert.Len(t, AdjustNullable(nil), 0)
}

func TestFishersMethod_SingleIsIdentity(t *testing.T) {
	for _, p := range []float64{0.5, 0.05, 0.001, 1.0} {
		got, err := FishersMethod([]float64{p})
		require.NoError(t, err)
		assert.InDelta(t, p, got, 1e-9)
	}
}

func TestFishersMethod_Table(t *testing.T) {
	// -2*(ln 0.05 + ln 0.05) = 11.983; chi-squared with 4 df upper tail
	got, err := FishersMethod([]float64{0.05, 0.05})
	require.NoError(t, err)

	x := -4 * math.Log(0.05)
	want := math.Exp(-x/2) * (1 + x/2)
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, 0.01748, got, 1e-4)
}

func TestFishersMethod_Preconditions(t *testing.T) {
	_, err := FishersMethod(nil)
	assert.ErrorIs(t, err, ErrNoPValues)

	_, err = FishersMethod([]float64{0.5, 0})
	assert.Error(t, err)

	_, err = FishersMethod([]float64{-0.1})
	assert.Error(t, err)

	_, err = FishersMethod([]float64{1.5})
	assert.Error(t, err)
}
