package technical

import "greenlight-go/internal/stats"

// StructureResult is the higher-timeframe read used by the entry checklist.
type StructureResult struct {
	Bullish    bool // price above the long EMA
	PauseLongs bool // bearish reversal pattern detected
}

// OK reports whether new longs are structurally allowed.
func (s StructureResult) OK() bool { return s.Bullish && !s.PauseLongs }

const structureEMAPeriod = 50

// Structure evaluates higher-timeframe bias: above-EMA(50) is bullish, and a
// confirmed double top or head-and-shoulders pauses new longs. ok=false when
// the window is too short; callers treat that as no filter.
func Structure(htfCloses []float64, cfg Config) (StructureResult, bool) {
	if len(htfCloses) < structureEMAPeriod {
		return StructureResult{}, false
	}
	ema, ok := stats.EMA(htfCloses, structureEMAPeriod)
	if !ok {
		return StructureResult{}, false
	}
	res := StructureResult{Bullish: htfCloses[len(htfCloses)-1] > ema}
	if len(htfCloses) >= cfg.PatternLookback {
		if DoubleTop(htfCloses, cfg.PatternLookback, 2.0, cfg.BreakoutDivisor) < 0 ||
			HeadShoulders(htfCloses, cfg.PatternLookback, 3.0, cfg.BreakoutDivisor) < 0 {
			res.PauseLongs = true
		}
	}
	return res, true
}
