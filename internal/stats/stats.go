// Package stats provides the rolling statistics every signal module is built
// on. All functions are pure; windows that are too short or denominators that
// are non-positive report ok=false instead of producing NaN/Inf.
package stats

import "math"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SMA is the simple mean of the last period values.
func SMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	var sum float64
	for _, v := range series[len(series)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMASeries computes the exponential moving average per index. Entries before
// the warmup (period-1) are zero; the first valid entry is the SMA seed.
func EMASeries(series []float64, period int) ([]float64, bool) {
	if period <= 0 || len(series) < period {
		return nil, false
	}
	out := make([]float64, len(series))
	var seed float64
	for _, v := range series[:period] {
		seed += v
	}
	out[period-1] = seed / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(series); i++ {
		out[i] = (series[i]-out[i-1])*k + out[i-1]
	}
	return out, true
}

// EMA returns the latest exponential moving average value.
func EMA(series []float64, period int) (float64, bool) {
	out, ok := EMASeries(series, period)
	if !ok {
		return 0, false
	}
	return out[len(out)-1], true
}

// MeanStd returns the mean and population standard deviation of window.
func MeanStd(window []float64) (mean, std float64, ok bool) {
	n := len(window)
	if n == 0 {
		return 0, 0, false
	}
	for _, v := range window {
		mean += v
	}
	mean /= float64(n)
	for _, v := range window {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(n))
	return mean, std, true
}

// PercentileRank reports where the last value of window sits among the window,
// as the share of strictly smaller values, 0-100.
func PercentileRank(window []float64) (float64, bool) {
	n := len(window)
	if n == 0 {
		return 0, false
	}
	current := window[n-1]
	below := 0
	for _, v := range window {
		if v < current {
			below++
		}
	}
	return float64(below) / float64(n) * 100.0, true
}

// Returns computes one-period simple returns; zero where the prior value is zero.
func Returns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] != 0 {
			out[i-1] = (series[i] - series[i-1]) / series[i-1]
		}
	}
	return out
}

// Pearson is the sample correlation of two equal-length series.
func Pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if n < 2 || n != len(b) {
		return 0, false
	}
	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA <= 0 || varB <= 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}
