package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LogReturns computes r_t = ln(P_t / P_{t-1}).
// It returns a slice of length len(prices)-1, or nil if insufficient data.
// Non-positive prices contribute a zero return.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// PopulationMeanStd returns the mean and population standard deviation of xs.
func PopulationMeanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	mean, variance := stat.MeanVariance(xs, nil)
	if n < 2 {
		return mean, 0
	}
	popVar := variance * (n - 1) / n
	if popVar < 0 || math.IsNaN(popVar) {
		popVar = 0
	}
	return mean, math.Sqrt(popVar)
}

// Autocorrelation returns the sample autocorrelation of xs at lag.
// ok is false when the series is too short or has zero variance.
func Autocorrelation(xs []float64, lag int) (acf float64, ok bool) {
	n := len(xs)
	if lag < 1 || n <= lag+1 {
		return 0, false
	}
	mean := stat.Mean(xs, nil)
	var denom float64
	for _, x := range xs {
		d := x - mean
		denom += d * d
	}
	if denom == 0 {
		return 0, false
	}
	var num float64
	for t := 0; t+lag < n; t++ {
		num += (xs[t] - mean) * (xs[t+lag] - mean)
	}
	return num / denom, true
}

// Correlation returns the Pearson correlation of xs and ys.
// ok is false on length mismatch or zero variance in either series.
func Correlation(xs, ys []float64) (r float64, ok bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	r = stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Sum adds the values of xs.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
