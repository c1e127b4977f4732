// Package technical computes the chart-derived signal layer: a momentum
// oscillator, a trend oscillator, and chart-pattern detectors, combined into
// one bounded score in [-1, 1].
package technical

import (
	"greenlight-go/internal/signal"
	"greenlight-go/internal/stats"
)

// Config carries the tunable knobs for the technical layer.
type Config struct {
	MomentumPeriod  int
	UseTrend        bool
	TrendFast       int
	TrendSlow       int
	TrendSignal     int
	UsePatterns     bool
	PatternLookback int
	// BreakoutDivisor scales breakout distance into pattern magnitude:
	// score = break_pct / divisor, capped at 1. It sets where pattern
	// scores saturate, so it is a config value rather than a constant.
	BreakoutDivisor float64
	FlagDivisor     float64
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		MomentumPeriod:  14,
		UseTrend:        true,
		TrendFast:       12,
		TrendSlow:       26,
		TrendSignal:     9,
		UsePatterns:     true,
		PatternLookback: 40,
		BreakoutDivisor: 5,
		FlagDivisor:     3,
	}
}

// momentumValue is the classic 0-100 relative-strength reading over the last
// period+1 closes, using simple averages of gains and losses.
func momentumValue(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	use := closes[len(closes)-period-1:]
	var gains, losses float64
	for i := 1; i < len(use); i++ {
		d := use[i] - use[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100, true
		}
		return 50, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MomentumValue exposes the raw 0-100 oscillator for overbought checks.
func MomentumValue(closes []float64, period int) signal.Float {
	v, ok := momentumValue(closes, period)
	if !ok {
		return signal.None()
	}
	return signal.Some(v)
}

// MomentumScore maps the oscillator onto [-1, 1]: oversold (<=30) toward +1,
// overbought (>=70) toward -1, piecewise-linear and continuous at the bounds.
func MomentumScore(closes []float64, period int) signal.Float {
	v, ok := momentumValue(closes, period)
	if !ok {
		return signal.None()
	}
	var score float64
	switch {
	case v <= 30:
		score = 0.5 + (30-v)/60
	case v >= 70:
		score = -0.5 - (v-70)/60
	default:
		score = (50 - v) / 50
	}
	return signal.Some(stats.Clamp(score, -1, 1))
}

// trendHistogram is the fast/slow EMA difference minus its signal-line EMA.
func trendHistogram(closes []float64, fast, slow, signalP int) ([]float64, bool) {
	if len(closes) < slow+signalP {
		return nil, false
	}
	emaFast, okF := stats.EMASeries(closes, fast)
	emaSlow, okS := stats.EMASeries(closes, slow)
	if !okF || !okS {
		return nil, false
	}
	line := make([]float64, len(closes))
	for i := slow - 1; i < len(closes); i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}
	// Signal line: EMA of the trend line over its valid region.
	valid := line[slow-1:]
	sigSeries, ok := stats.EMASeries(valid, signalP)
	if !ok {
		return nil, false
	}
	hist := make([]float64, len(closes))
	for i := range valid {
		idx := slow - 1 + i
		if i >= signalP-1 {
			hist[idx] = valid[i] - sigSeries[i]
		}
	}
	return hist, true
}

// TrendScore maps the histogram to [-1, 1], normalized by 2% of the recent
// average price so the output is scale-free.
func TrendScore(closes []float64, fast, slow, signalP int) signal.Float {
	hist, ok := trendHistogram(closes, fast, slow, signalP)
	if !ok {
		return signal.None()
	}
	var last float64
	start := len(hist) - 5
	if start < 0 {
		start = 0
	}
	for _, h := range hist[start:] {
		if h != 0 {
			last = h
		}
	}
	if last == 0 {
		return signal.Some(0)
	}
	n := 30
	if len(closes) < n {
		n = len(closes)
	}
	avg, ok := stats.SMA(closes, n)
	if !ok || avg <= 0 {
		return signal.Some(0)
	}
	scale := avg * 0.02
	return signal.Some(stats.Clamp(last/scale, -1, 1))
}

// TrendCrossedUp reports whether the histogram is positive now after having
// been negative within the last five bars.
func TrendCrossedUp(closes []float64, fast, slow, signalP int) bool {
	hist, ok := trendHistogram(closes, fast, slow, signalP)
	if !ok || len(hist) < 3 {
		return false
	}
	if hist[len(hist)-1] <= 0 {
		return false
	}
	start := len(hist) - 6
	if start < 0 {
		start = 0
	}
	for _, h := range hist[start : len(hist)-1] {
		if h < 0 {
			return true
		}
	}
	return false
}

// Score combines the available sub-scores with equal weight and clamps to
// [-1, 1]. Momentum is required for availability; trend and patterns only
// contribute once warm / detected.
func Score(closes []float64, cfg Config) signal.Float {
	mom := MomentumScore(closes, cfg.MomentumPeriod)
	if !mom.Valid {
		return signal.None()
	}
	components := []float64{mom.Value}

	if cfg.UseTrend {
		if tr := TrendScore(closes, cfg.TrendFast, cfg.TrendSlow, cfg.TrendSignal); tr.Valid {
			components = append(components, tr.Value)
		}
	}
	if cfg.UsePatterns && len(closes) >= cfg.PatternLookback {
		if dt := DoubleTop(closes, cfg.PatternLookback, 2.0, cfg.BreakoutDivisor); dt != 0 {
			components = append(components, dt)
		}
		if ihs := InvertedHeadShoulders(closes, cfg.PatternLookback, 3.0, cfg.BreakoutDivisor); ihs != 0 {
			components = append(components, ihs)
		}
		flagLB := cfg.PatternLookback
		if flagLB > 30 {
			flagLB = 30
		}
		if fl := Flag(closes, flagLB, cfg.FlagDivisor); fl != 0 {
			components = append(components, fl)
		}
	}

	var total float64
	for _, c := range components {
		total += c
	}
	return signal.Some(stats.Clamp(total/float64(len(components)), -1, 1))
}

// MomentumConfirm reports momentum confirmation for the entry checklist:
// bullish divergence or a trend-histogram zero cross.
func MomentumConfirm(closes []float64, cfg Config) bool {
	return BullishDivergence(closes, cfg.MomentumPeriod, 30) ||
		TrendCrossedUp(closes, cfg.TrendFast, cfg.TrendSlow, cfg.TrendSignal)
}
