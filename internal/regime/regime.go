// Package regime classifies a symbol's recent price action as trending,
// mean-reverting, or neutral. The label only gates which entry style is
// permitted; it is never a trade trigger on its own.
package regime

import (
	"math"

	"greenlight-go/internal/micro"
	"greenlight-go/internal/stats"
)

// Kind is the market regime label.
type Kind string

const (
	Trend         Kind = "trend"
	MeanReversion Kind = "mean_reversion"
	Neutral       Kind = "neutral"
)

// Config holds the classifier thresholds.
type Config struct {
	Lookback     int     // SMA and percentile window
	VolBandMin   float64 // ATR percentile at or above which vol counts as elevated
	TrendMomPct  float64 // 5-bar momentum above this means trending
	FlatDistPct  float64 // within this distance of the SMA counts as flat
	FlatMomPct   float64 // momentum magnitude under this counts as flat
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{Lookback: 20, VolBandMin: 70, TrendMomPct: 0.5, FlatDistPct: 2, FlatMomPct: 1}
}

// momentumPct is the percent change over the last n bars.
func momentumPct(closes []float64, n int) (float64, bool) {
	if len(closes) < n+1 {
		return 0, false
	}
	prev := closes[len(closes)-1-n]
	if prev <= 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - prev) / prev * 100, true
}

// Classify labels the window. Neutral when there is not enough history to say
// anything, which permits both entry styles.
func Classify(closes, atrSeries []float64, cfg Config) Kind {
	sma, okSMA := stats.SMA(closes, cfg.Lookback)
	mom, okMom := momentumPct(closes, 5)
	if !okSMA || !okMom || sma <= 0 {
		return Neutral
	}
	last := closes[len(closes)-1]

	if last > sma && mom > cfg.TrendMomPct {
		return Trend
	}
	if p := micro.ATRPercentile(atrSeries, cfg.Lookback); p.Valid && p.Value >= cfg.VolBandMin {
		return MeanReversion
	}
	distPct := math.Abs(last-sma) / sma * 100
	if distPct < cfg.FlatDistPct && math.Abs(mom) < cfg.FlatMomPct {
		return MeanReversion
	}
	return Neutral
}

// Allows reports whether the regime permits the given entry style. Neutral
// permits everything; an unknown style is never blocked.
func Allows(k Kind, style string) bool {
	switch style {
	case "trend":
		return k == Trend || k == Neutral
	case "mean_reversion":
		return k == MeanReversion || k == Neutral
	default:
		return true
	}
}
