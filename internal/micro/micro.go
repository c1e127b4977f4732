// Package micro computes microstructure signals: the volume-weighted fair-value
// anchor, true-range volatility and its percentile, standardized-return
// outliers, and the order-flow imbalance tracker.
package micro

import (
	"math"

	"greenlight-go/internal/signal"
	"greenlight-go/internal/stats"
)

// AnchorSeries returns the per-bar volume-weighted fair value using typical
// price (H+L+C)/3. lookback <= 0 means an expanding window from the first bar.
func AnchorSeries(bars []signal.Bar, lookback int) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		start := 0
		if lookback > 0 && i+1 > lookback {
			start = i + 1 - lookback
		}
		var pv, vol float64
		for _, b := range bars[start : i+1] {
			typical := (b.High + b.Low + b.Close) / 3
			pv += typical * b.Volume
			vol += b.Volume
		}
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// Anchor is the latest fair-value anchor; unavailable with no bars or no volume.
func Anchor(bars []signal.Bar, lookback int) signal.Float {
	if len(bars) == 0 {
		return signal.None()
	}
	series := AnchorSeries(bars, lookback)
	last := series[len(series)-1]
	if last <= 0 {
		return signal.None()
	}
	return signal.Some(last)
}

// AnchorDistancePct is (price - anchor)/anchor in percent.
func AnchorDistancePct(price, anchor float64) signal.Float {
	if anchor <= 0 {
		return signal.None()
	}
	return signal.Some((price - anchor) / anchor * 100)
}

// trueRanges computes TR = max(H-L, |H-prevC|, |L-prevC|); the first bar uses
// its own high-low range.
func trueRanges(bars []signal.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prevC := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prevC), math.Abs(b.Low-prevC)))
		}
		out[i] = tr
	}
	return out
}

// ATRSeries smooths the true ranges with an EMA seeded by the simple mean of
// the first period values. Entries before the warmup are zero.
func ATRSeries(bars []signal.Bar, period int) ([]float64, bool) {
	if period <= 0 || len(bars) < period {
		return nil, false
	}
	return stats.EMASeries(trueRanges(bars), period)
}

// ATR is the latest smoothed true range.
func ATR(bars []signal.Bar, period int) signal.Float {
	series, ok := ATRSeries(bars, period)
	if !ok {
		return signal.None()
	}
	last := series[len(series)-1]
	if last <= 0 {
		return signal.None()
	}
	return signal.Some(last)
}

// StopPct converts an ATR stop distance into percent of price. Zero when the
// inputs cannot produce a meaningful distance.
func StopPct(price, atr, multiple float64) float64 {
	if price <= 0 || atr <= 0 || multiple <= 0 {
		return 0
	}
	return atr * multiple / price * 100
}

// ATRPercentile ranks the current ATR within its trailing lookback window,
// 0-100.
func ATRPercentile(atrSeries []float64, lookback int) signal.Float {
	if lookback <= 0 || len(atrSeries) < lookback {
		return signal.None()
	}
	p, ok := stats.PercentileRank(atrSeries[len(atrSeries)-lookback:])
	if !ok {
		return signal.None()
	}
	return signal.Some(p)
}

// ReturnsZScore standardizes the latest one-period return against the mean and
// std of the trailing period returns, excluding the current one.
func ReturnsZScore(closes []float64, period int) signal.Float {
	rets := stats.Returns(closes)
	if period <= 0 || len(rets) < period+1 {
		return signal.None()
	}
	current := rets[len(rets)-1]
	window := rets[len(rets)-1-period : len(rets)-1]
	mean, std, ok := stats.MeanStd(window)
	if !ok || std <= 0 {
		return signal.None()
	}
	return signal.Some((current - mean) / std)
}
