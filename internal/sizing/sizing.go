// Package sizing converts account equity and risk parameters into integer
// share quantities, with optional Kelly scaling, correlation de-risking, and a
// hard per-symbol exposure budget.
package sizing

import (
	"math"
	"sync"

	"greenlight-go/internal/signal"
	"greenlight-go/internal/stats"
)

// Config holds every sizing knob.
type Config struct {
	UseRiskBased bool
	RiskPct      float64 // percent of equity risked per trade
	StopMultiple float64 // ATR multiples to the stop
	PositionFrac float64 // fraction of equity per position for the fallback rule
	MaxQty       int

	UseKelly      bool
	KellyLookback int
	KellyCap      float64

	UseCorrelation bool
	CorrLookback   int // return-window length for the Pearson check
	CorrThreshold  float64
	CorrReduction  float64 // multiplier applied on a qualifying match

	TargetPct  float64 // target position size, percent of equity
	HardCapPct float64 // absolute per-symbol exposure ceiling, percent of equity
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		UseRiskBased:   true,
		RiskPct:        1.0,
		StopMultiple:   1.5,
		PositionFrac:   0.05,
		MaxQty:         100,
		UseKelly:       false,
		KellyLookback:  50,
		KellyCap:       0.25,
		UseCorrelation: false,
		CorrLookback:   20,
		CorrThreshold:  0.7,
		CorrReduction:  0.5,
		TargetPct:      10,
		HardCapPct:     15,
	}
}

func clampQty(q, maxQty int) int {
	if q < 1 {
		q = 1
	}
	if maxQty > 0 && q > maxQty {
		q = maxQty
	}
	return q
}

// Shares sizes a new entry. Risk-based when enabled and an ATR exists,
// otherwise the fixed-fraction fallback. Output is always in [1, MaxQty];
// callers must verify equity exists before calling.
func Shares(equity, price float64, atr signal.Float, riskPct float64, cfg Config) int {
	if cfg.UseRiskBased && atr.Valid && atr.Value > 0 && cfg.StopMultiple > 0 {
		riskAmount := equity * riskPct / 100
		q := int(math.Round(riskAmount / (atr.Value * cfg.StopMultiple)))
		return clampQty(q, cfg.MaxQty)
	}
	if cfg.PositionFrac <= 0 || price <= 0 {
		return 1
	}
	q := int(math.Round(equity * cfg.PositionFrac / price))
	return clampQty(q, cfg.MaxQty)
}

// KellyTracker keeps a bounded history of realized round-trip P&Ls and derives
// a capped Kelly fraction from the recent window. Safe for concurrent use.
type KellyTracker struct {
	mu      sync.Mutex
	history []float64
}

const (
	kellyHistoryCap = 200
	kellyMinTrades  = 10
)

// Record appends one realized round-trip P&L.
func (k *KellyTracker) Record(pnl float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.history = append(k.history, pnl)
	if len(k.history) > kellyHistoryCap {
		k.history = k.history[len(k.history)-kellyHistoryCap:]
	}
}

// Fraction returns the Kelly fraction f = (W*b - (1-W))/b over the last
// lookback trades, floored at 0 and capped. ok=false below the minimum trade
// count or when the window has no losses or no wins to form the ratio.
func (k *KellyTracker) Fraction(lookback int, cap float64) (float64, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	window := k.history
	if lookback > 0 && len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	if len(window) < kellyMinTrades {
		return 0, false
	}
	var wins, losses int
	var winSum, lossSum float64
	for _, p := range window {
		if p > 0 {
			wins++
			winSum += p
		} else if p < 0 {
			losses++
			lossSum -= p
		}
	}
	if wins == 0 || losses == 0 {
		return 0, false
	}
	w := float64(wins) / float64(len(window))
	b := (winSum / float64(wins)) / (lossSum / float64(losses))
	if b <= 0 {
		return 0, false
	}
	f := (w*b - (1 - w)) / b
	if f < 0 {
		f = 0
	}
	if cap > 0 && f > cap {
		f = cap
	}
	return f, true
}

// RiskPct returns the effective risk percent: the configured percent scaled by
// the Kelly fraction when enabled and available.
func RiskPct(cfg Config, kelly *KellyTracker) float64 {
	if !cfg.UseKelly || kelly == nil {
		return cfg.RiskPct
	}
	f, ok := kelly.Fraction(cfg.KellyLookback, cfg.KellyCap)
	if !ok {
		return cfg.RiskPct
	}
	return cfg.RiskPct * f
}

// CorrelationAdjust reduces qty once when the candidate's trailing returns
// correlate above the threshold with any currently held symbol's returns over
// the same window. Reductions never stack.
func CorrelationAdjust(qty int, candidateCloses []float64, heldCloses [][]float64, cfg Config) int {
	if !cfg.UseCorrelation || qty <= 0 || cfg.CorrLookback < 2 {
		return qty
	}
	need := cfg.CorrLookback + 1
	if len(candidateCloses) < need {
		return qty
	}
	candRets := stats.Returns(candidateCloses[len(candidateCloses)-need:])
	for _, held := range heldCloses {
		if len(held) < need {
			continue
		}
		heldRets := stats.Returns(held[len(held)-need:])
		c, ok := stats.Pearson(candRets, heldRets)
		if ok && c >= cfg.CorrThreshold {
			q := int(math.Round(float64(qty) * cfg.CorrReduction))
			if q < 1 {
				q = 1
			}
			return q
		}
	}
	return qty
}

// BudgetShares enforces the per-symbol exposure ceiling for additive buys:
// remaining budget is the lesser of the target and the hard cap minus what is
// already deployed. Zero means refuse the buy.
func BudgetShares(equity, price, existingValue float64, cfg Config) int {
	if equity <= 0 || price <= 0 {
		return 0
	}
	budget := math.Min(cfg.TargetPct, cfg.HardCapPct) / 100 * equity
	remaining := budget - existingValue
	if remaining <= 0 {
		return 0
	}
	return int(math.Floor(remaining / price))
}
