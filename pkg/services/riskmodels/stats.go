package riskmodels

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// sampleSummary holds the unrounded descriptive statistics of a sample.
type sampleSummary struct {
	Mean float64
	Std  float64
	P50  float64
	P90  float64
	P95  float64
}

// summarize computes the population mean and standard deviation and the
// 50/90/95th percentiles of samples. Percentiles interpolate linearly on the
// empirical CDF (gonum's LinInterp). An empty sample summarizes to zeros.
func summarize(samples []float64) sampleSummary {
	if len(samples) == 0 {
		return sampleSummary{}
	}
	mean, std := stat.PopMeanStdDev(samples, nil)

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return sampleSummary{
		Mean: mean,
		Std:  std,
		P50:  stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P90:  stat.Quantile(0.90, stat.LinInterp, sorted, nil),
		P95:  stat.Quantile(0.95, stat.LinInterp, sorted, nil),
	}
}

// fractionAtLeast returns the share of samples >= threshold.
func fractionAtLeast(samples []float64, threshold float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var n int
	for _, s := range samples {
		if s >= threshold {
			n++
		}
	}
	return float64(n) / float64(len(samples))
}
