package pvalue

import "github.com/montanaflynn/stats"

// NullSummary describes the null distribution of a test's primary statistic.
type NullSummary struct {
	Mean         float64
	StdDev       float64
	Percentile95 float64
}

// summarize returns the zero summary for an empty null; the stats functions
// only fail on empty input or an out-of-range percentile.
func summarize(values []float64) NullSummary {
	data := stats.Float64Data(values)
	mean, err := stats.Mean(data)
	if err != nil {
		return NullSummary{}
	}
	sd, err := stats.StandardDeviation(data)
	if err != nil {
		return NullSummary{}
	}
	p95, err := stats.Percentile(data, 95)
	if err != nil {
		return NullSummary{}
	}
	return NullSummary{Mean: mean, StdDev: sd, Percentile95: p95}
}
