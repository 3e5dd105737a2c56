// Package metrics holds the summary statistics used to compare runs.
package metrics

import "math"

// z95 is the two-sided 95% quantile of the standard normal distribution.
const z95 = 1.96

// Mean is the average of a test's clean times in seconds. No times means 0.
func Mean(times []float64) float64 {
	if len(times) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range times {
		total += t
	}
	return total / float64(len(times))
}

// sumSquares is the sum of squared deviations of times from their mean.
func sumSquares(times []float64) float64 {
	m := Mean(times)
	sq := 0.0
	for _, t := range times {
		d := t - m
		sq += d * d
	}
	return sq
}

// Variance is the population variance of times, treating the compared runs
// as the whole population. No times means 0.
func Variance(times []float64) float64 {
	if len(times) == 0 {
		return 0
	}
	return sumSquares(times) / float64(len(times))
}

// StdDev is the population standard deviation of times.
func StdDev(times []float64) float64 {
	return math.Sqrt(Variance(times))
}

// ConfidenceInterval95 bounds the mean time with the normal approximation
// over the sample standard deviation. A single time (or none) collapses the
// interval onto the mean.
func ConfidenceInterval95(times []float64) (low, high float64) {
	m := Mean(times)
	n := len(times)
	if n < 2 {
		return m, m
	}
	margin := z95 * math.Sqrt(sumSquares(times)/float64(n-1)) / math.Sqrt(float64(n))
	return m - margin, m + margin
}

// RelativeChange returns the change from one value to another in percent
// of the first. It reports false when from is zero.
func RelativeChange(from, to float64) (float64, bool) {
	if from == 0 {
		return 0, false
	}
	return (to - from) / from * 100, true
}
