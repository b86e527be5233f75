package pvalue

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/guregu/null.v3"
)

// Cummin replaces each element with the minimum of itself and every element
// before it. x is modified in place and returned.
func Cummin(x []float64) []float64 {
	for i := 1; i < len(x); i++ {
		if x[i-1] < x[i] {
			x[i] = x[i-1]
		}
	}
	return x
}

// BHFDR returns Benjamini-Hochberg adjusted p-values in input order. It
// matches R's p.adjust(p, method = "BH").
func BHFDR(pvals []float64) []float64 {
	n := len(pvals)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pvals[order[a]] < pvals[order[b]]
	})

	// largest rank first, so the running minimum walks down the ranks
	adj := make([]float64, n)
	for k := range adj {
		rank := n - k
		adj[k] = float64(n) / float64(rank) * pvals[order[rank-1]]
	}
	Cummin(adj)

	for k, q := range adj {
		out[order[n-1-k]] = math.Min(1, q)
	}
	return out
}

// AdjustNullable applies BHFDR to the valid entries only; invalid entries
// stay invalid.
func AdjustNullable(pvals []null.Float) []null.Float {
	out := make([]null.Float, len(pvals))

	var idx []int
	var valid []float64
	for i, p := range pvals {
		if p.Valid {
			idx = append(idx, i)
			valid = append(valid, p.Float64)
		}
	}

	for k, q := range BHFDR(valid) {
		out[idx[k]] = null.FloatFrom(q)
	}
	return out
}

// ErrNoPValues is returned by FishersMethod for empty input.
var ErrNoPValues = errors.New("no p-values to combine")

// FishersMethod combines independent p-values: -2*sum(ln p) follows a
// chi-squared distribution with 2k degrees of freedom, and the combined
// p-value is its upper tail. Every p-value must lie in (0, 1].
func FishersMethod(pvals []float64) (float64, error) {
	if len(pvals) == 0 {
		return 0, ErrNoPValues
	}

	var chisq float64
	for i, p := range pvals {
		if !(p > 0 && p <= 1) {
			return 0, fmt.Errorf("p-value %d is %g, want a value in (0, 1]", i, p)
		}
		chisq -= 2 * math.Log(p)
	}

	chi2 := distuv.ChiSquared{K: float64(2 * len(pvals))}
	return chi2.Survival(chisq), nil
}
