package engine

import (
	"testing"
	"time"

	"greenlight-go/internal/risk"
	"greenlight-go/internal/signal"
)

func testCfg() Config {
	cfg := DefaultConfig()
	cfg.Sizing.MaxQty = 100
	return cfg
}

func et(hour, min int) SessionContext {
	loc, _ := time.LoadLocation("America/New_York")
	return SessionContext{
		Now: time.Date(2025, 3, 3, hour, min, 0, 0, loc),
		Loc: loc,
	}
}

func okAccount() risk.View {
	return risk.View{Equity: 50000, EquityOK: true}
}

func reasonInClosedSet(t *testing.T, d signal.Decision) {
	t.Helper()
	for _, r := range signal.Reasons() {
		if d.Reason == r {
			return
		}
	}
	t.Fatalf("reason %q is not in the closed set", d.Reason)
}

// Scenario: flat, no signals at all, neutral probability 0.5 over the default
// threshold. The liberal-default policy means the gates all pass.
func TestEntryWithNoSignals(t *testing.T) {
	d := Decide("SPY", Signals{Price: 20}, nil, okAccount(), et(10, 0), nil, testCfg())
	if d.Action != signal.Buy || d.Reason != signal.ReasonEntrySignal {
		t.Fatalf("expected buy/entry_signal, got %s/%s", d.Action, d.Reason)
	}
	// Fallback sizing: 50000 * 0.05 / 20 = 125, clamped to MaxQty 100.
	if d.Qty != 100 {
		t.Fatalf("expected qty 100, got %d", d.Qty)
	}
	reasonInClosedSet(t, d)
}

// Property: sweeping each optional signal to unavailable must never be the
// cause of a hold when every other input passes.
func TestLiberalDefaultsSweep(t *testing.T) {
	cfg := testCfg()
	cfg.UseTrendFilter = true
	cfg.UseMicroEntry = true
	cfg.UseRegimeFilter = true
	cfg.RequireMomentumConfirm = true
	d := Decide("SPY", Signals{Price: 20}, nil, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Buy {
		t.Fatalf("all-unavailable signals must still pass every gate, got %s/%s", d.Action, d.Reason)
	}
}

// Property: with every other input held at a passing value, flipping any one
// signal to unavailable must never be the cause of a hold.
func TestLiberalDefaultsPerSignalSweep(t *testing.T) {
	cfg := testCfg()
	cfg.UseTrendFilter = true
	cfg.UseMicroEntry = true
	cfg.UseRegimeFilter = true
	cfg.RequireMomentumConfirm = true

	passing := func() Signals {
		return Signals{
			Price:           100,
			Session:         "regular",
			Score:           signal.Some(0.5),
			MomentumRaw:     signal.Some(50),
			MomentumConfirm: true,
			MomentumKnown:   true,
			StructureOK:     true,
			StructureKnown:  true,
			Regime:          "mean_reversion",
			Anchor:          signal.Some(102),
			AnchorDistPct:   signal.Some(-1.96),
			ATR:             signal.Some(1),
			ATRPercentile:   signal.Some(50),
			ZScore:          signal.Some(-2),
			Flow:            signal.Some(0.5),
			TrendSMA:        signal.Some(95),
			AnnualizedVol:   signal.Some(0.3),
			Return1m:        signal.Some(0.2),
			Return5m:        signal.Some(0.1),
		}
	}

	if d := Decide("SPY", passing(), nil, okAccount(), et(10, 0), nil, cfg); d.Action != signal.Buy {
		t.Fatalf("baseline must pass every gate, got %s/%s", d.Action, d.Reason)
	}

	cases := []struct {
		name   string
		mutate func(*Signals)
	}{
		{"score", func(s *Signals) { s.Score = signal.None() }},
		{"momentum", func(s *Signals) {
			s.MomentumRaw = signal.None()
			s.MomentumKnown = false
			s.MomentumConfirm = false
		}},
		{"structure", func(s *Signals) {
			s.StructureKnown = false
			s.StructureOK = false
		}},
		{"regime", func(s *Signals) { s.Regime = "" }},
		{"anchor", func(s *Signals) {
			s.Anchor = signal.None()
			s.AnchorDistPct = signal.None()
		}},
		{"atr", func(s *Signals) { s.ATR = signal.None() }},
		{"atr percentile", func(s *Signals) { s.ATRPercentile = signal.None() }},
		{"zscore", func(s *Signals) { s.ZScore = signal.None() }},
		{"flow with live anchor and atr", func(s *Signals) { s.Flow = signal.None() }},
		{"trend sma", func(s *Signals) { s.TrendSMA = signal.None() }},
		{"annualized vol", func(s *Signals) { s.AnnualizedVol = signal.None() }},
		{"short return", func(s *Signals) { s.Return1m = signal.None() }},
		{"medium return", func(s *Signals) { s.Return5m = signal.None() }},
		{"both confluence inputs", func(s *Signals) {
			// Score stays valid; with neither z-score nor anchor distance
			// available the confluence sub-check must not block.
			s.ZScore = signal.None()
			s.Anchor = signal.None()
			s.AnchorDistPct = signal.None()
		}},
	}
	for _, tc := range cases {
		sig := passing()
		tc.mutate(&sig)
		d := Decide("SPY", sig, nil, okAccount(), et(10, 0), nil, cfg)
		if d.Action != signal.Buy || d.Reason != signal.ReasonEntrySignal {
			t.Fatalf("%s unavailable must not hold, got %s/%s", tc.name, d.Action, d.Reason)
		}
	}
}

// Property: stop-loss precedes and short-circuits everything below it, no
// matter how favorable the entry-side signals look.
func TestStopLossDominance(t *testing.T) {
	cfg := testCfg()
	for _, price := range []float64{97.5, 95, 90} {
		pos := NewPositionState(10, 100, time.Time{})
		sig := Signals{
			Price:    price,
			Score:    signal.Some(1),
			Flow:     signal.Some(1),
			Return1m: signal.Some(0.5),
		}
		d := Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
		if d.Action != signal.Sell || d.Reason != signal.ReasonStopLoss || d.Qty != 10 {
			t.Fatalf("price %.1f: expected sell 10 stop_loss, got %s %d %s", price, d.Action, d.Qty, d.Reason)
		}
	}
}

func TestScaleOutHalfAtAnchorThenFull(t *testing.T) {
	cfg := testCfg()
	cfg.ScaleOutLevelsPct = nil // isolate the anchor rule
	pos := NewPositionState(10, 100, time.Time{})
	sig := Signals{Price: 102, Anchor: signal.Some(102)}

	d := Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Sell || d.Qty != 5 || d.Reason != signal.ReasonScaleOutHalfAtAnchor {
		t.Fatalf("expected sell 5 scale_out_half_at_fair_value, got %s %d %s", d.Action, d.Qty, d.Reason)
	}
	pos.Qty = 5
	d = Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Sell || d.Qty != 5 || d.Reason != signal.ReasonTakeProfitAtAnchor {
		t.Fatalf("expected full exit at anchor after the half, got %s %d %s", d.Action, d.Qty, d.Reason)
	}
}

func TestKillSwitchBlocksEntry(t *testing.T) {
	acct := okAccount()
	acct.KillSwitchActive = true
	sig := Signals{Price: 20, Score: signal.Some(1), Flow: signal.Some(1)}
	d := Decide("SPY", sig, nil, acct, et(10, 0), nil, testCfg())
	if d.Action != signal.Hold || d.Reason != signal.ReasonKillSwitchActive {
		t.Fatalf("expected hold/kill_switch_active, got %s/%s", d.Action, d.Reason)
	}
}

func TestEquityUnavailableRefusesBuy(t *testing.T) {
	d := Decide("SPY", Signals{Price: 20}, nil, risk.View{}, et(10, 0), nil, testCfg())
	if d.Action != signal.Hold || d.Reason != signal.ReasonEquityUnavailable {
		t.Fatalf("expected hold/equity_unavailable, got %s/%s", d.Action, d.Reason)
	}
}

func TestEquityNeverBlocksExit(t *testing.T) {
	pos := NewPositionState(10, 100, time.Time{})
	d := Decide("SPY", Signals{Price: 95}, pos, risk.View{}, et(10, 0), nil, testCfg())
	if d.Action != signal.Sell || d.Reason != signal.ReasonStopLoss {
		t.Fatalf("exits must not depend on equity, got %s/%s", d.Action, d.Reason)
	}
}

func TestCorrelationReducesSize(t *testing.T) {
	cfg := testCfg()
	cfg.Sizing.MaxQty = 500
	cfg.Sizing.UseCorrelation = true
	cand := make([]float64, 21)
	held := make([]float64, 21)
	for i := range cand {
		v := float64(i) + float64(i%3)
		cand[i] = 100 + v
		held[i] = 200 + 2*v
	}
	base := Signals{Price: 20, CandidateCloses: cand}
	d := Decide("NEWB", base, nil, okAccount(), et(10, 0), nil, cfg)
	if d.Qty != 125 {
		t.Fatalf("uncorrelated baseline should size 125, got %d", d.Qty)
	}
	base.HeldCloses = [][]float64{held}
	d = Decide("NEWB", base, nil, okAccount(), et(10, 0), nil, cfg)
	if d.Qty != 63 {
		t.Fatalf("correlated candidate should size half, got %d", d.Qty)
	}
}

func TestScaleOutLevelsIdempotent(t *testing.T) {
	cfg := testCfg()
	pos := NewPositionState(100, 100, time.Time{})
	sig := Signals{Price: 101.2}

	d := Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonScaleOutLevel || d.Qty != 33 {
		t.Fatalf("expected first level to sell 33, got %s %d", d.Reason, d.Qty)
	}
	pos.Qty = 67
	d = Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason == signal.ReasonScaleOutLevel {
		t.Fatalf("consumed level must not re-trigger")
	}
	sig.Price = 102.1
	d = Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonScaleOutLevel || d.Qty != 22 {
		t.Fatalf("second level should sell a third of the remainder, got %s %d", d.Reason, d.Qty)
	}
}

func TestSessionGateAppliesToEverything(t *testing.T) {
	cfg := testCfg()
	pos := NewPositionState(10, 100, time.Time{})
	d := Decide("SPY", Signals{Price: 95, Session: "pre"}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonSessionFiltered {
		t.Fatalf("unrecognized session must gate first, got %s", d.Reason)
	}
	d = Decide("SPY", Signals{Price: 95, Session: "regular"}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonStopLoss {
		t.Fatalf("regular session must pass through, got %s", d.Reason)
	}
}

func TestTimeOfDayGates(t *testing.T) {
	cfg := testCfg()
	d := Decide("SPY", Signals{Price: 20}, nil, okAccount(), et(15, 45), nil, cfg)
	if d.Reason != signal.ReasonAfterNoNewBuys {
		t.Fatalf("expected after_no_new_buys at 15:45, got %s", d.Reason)
	}
	pos := NewPositionState(10, 100, time.Time{})
	d = Decide("SPY", Signals{Price: 99.5}, pos, okAccount(), et(15, 50), nil, cfg)
	if d.Reason != signal.ReasonHealthCheckCloseLoser || d.Qty != 10 {
		t.Fatalf("expected losing position closed in the health window, got %s %d", d.Reason, d.Qty)
	}
	// Winners are left alone by the health check.
	pos = NewPositionState(10, 100, time.Time{})
	d = Decide("SPY", Signals{Price: 100.5}, pos, okAccount(), et(15, 50), nil, cfg)
	if d.Reason == signal.ReasonHealthCheckCloseLoser {
		t.Fatalf("winner must not be pruned by the health check")
	}
}

func TestAccountCapsBlockEntries(t *testing.T) {
	acct := okAccount()
	acct.DailyCapReached = true
	d := Decide("SPY", Signals{Price: 20}, nil, acct, et(10, 0), nil, testCfg())
	if d.Reason != signal.ReasonDailyCapReached {
		t.Fatalf("expected daily_cap_reached, got %s", d.Reason)
	}
	acct = okAccount()
	acct.DrawdownHalt = true
	d = Decide("SPY", Signals{Price: 20}, nil, acct, et(10, 0), nil, testCfg())
	if d.Reason != signal.ReasonDrawdownHalt {
		t.Fatalf("expected drawdown_halt, got %s", d.Reason)
	}
}

func TestEntryGateHolds(t *testing.T) {
	cfg := testCfg()
	cfg.UseTrendFilter = true
	cases := []struct {
		name   string
		mut    func(*Signals, *Config)
		reason signal.Reason
	}{
		{"regime", func(s *Signals, c *Config) {
			c.UseRegimeFilter = true
			c.EntryStyle = "mean_reversion"
			s.Regime = "trend"
		}, signal.ReasonRegimeMismatch},
		{"trend", func(s *Signals, c *Config) {
			s.TrendSMA = signal.Some(25)
		}, signal.ReasonTrendFilter},
		{"vol", func(s *Signals, c *Config) {
			s.AnnualizedVol = signal.Some(1.2)
		}, signal.ReasonVolTooHigh},
		{"extended", func(s *Signals, c *Config) {
			s.Anchor = signal.Some(19)
			s.AnchorDistPct = signal.Some(5.26)
		}, signal.ReasonExtendedAboveAnchor},
		{"micro-wait", func(s *Signals, c *Config) {
			c.UseMicroEntry = true
			s.Anchor = signal.Some(20.2)
			s.AnchorDistPct = signal.Some(-0.99)
			s.ATR = signal.Some(1)
		}, signal.ReasonMicroEntryWait},
		{"atr-band", func(s *Signals, c *Config) {
			s.ATRPercentile = signal.Some(95)
		}, signal.ReasonATRPercentileBand},
		{"zscore", func(s *Signals, c *Config) {
			c.UseMicroEntry = true
			s.Anchor = signal.Some(23)
			s.AnchorDistPct = signal.Some(-13)
			s.ATR = signal.Some(1)
			s.ZScore = signal.Some(0)
		}, signal.ReasonZScoreAboveTrigger},
		{"structure", func(s *Signals, c *Config) {
			s.StructureKnown = true
			s.StructureOK = false
		}, signal.ReasonChecklistStructure},
		{"pattern-floor", func(s *Signals, c *Config) {
			s.Score = signal.Some(0.1)
		}, signal.ReasonChecklistPattern},
		{"pattern-confluence", func(s *Signals, c *Config) {
			s.Score = signal.Some(0.5)
			s.ZScore = signal.Some(0)
			s.Anchor = signal.Some(19.95)
			s.AnchorDistPct = signal.Some(0.25)
		}, signal.ReasonChecklistPattern},
		{"momentum", func(s *Signals, c *Config) {
			c.RequireMomentumConfirm = true
			s.MomentumKnown = true
			s.MomentumConfirm = false
		}, signal.ReasonChecklistMomentum},
		{"flow", func(s *Signals, c *Config) {
			s.Flow = signal.Some(0.05)
		}, signal.ReasonChecklistFlow},
		{"overbought-flow", func(s *Signals, c *Config) {
			s.Flow = signal.Some(0.2)
			s.MomentumRaw = signal.Some(75)
		}, signal.ReasonChecklistOverboughtFlow},
		{"veto", func(s *Signals, c *Config) {
			s.RuleVetoed = true
		}, signal.ReasonRuleVeto},
		{"exposure", func(s *Signals, c *Config) {
			s.ExistingValue = 6000 // past the 10% target on 50k
		}, signal.ReasonExposureCap},
	}
	for _, tc := range cases {
		sig := Signals{Price: 20}
		c := cfg
		tc.mut(&sig, &c)
		d := Decide("SPY", sig, nil, okAccount(), et(10, 0), nil, c)
		if d.Action != signal.Hold || d.Reason != tc.reason {
			t.Fatalf("%s: expected hold/%s, got %s/%s", tc.name, tc.reason, d.Action, d.Reason)
		}
		reasonInClosedSet(t, d)
	}
}

func TestProbabilityGate(t *testing.T) {
	cfg := testCfg()
	cfg.ProbabilityThreshold = 0.4
	d := Decide("SPY", Signals{Price: 20}, nil, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Buy {
		t.Fatalf("neutral 0.5 clears a 0.4 threshold, got %s/%s", d.Action, d.Reason)
	}
	// High volatility haircuts the estimate below the threshold: 0.5*0.7=0.35.
	sig := Signals{Price: 20, AnnualizedVol: signal.Some(0.6)}
	d = Decide("SPY", sig, nil, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Hold || d.Reason != signal.ReasonNoSignal {
		t.Fatalf("expected hold/no_signal after vol haircut, got %s/%s", d.Action, d.Reason)
	}
	// Strong recent returns lift it back up.
	sig.Return1m = signal.Some(1)
	sig.Return5m = signal.Some(1)
	d = Decide("SPY", sig, nil, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Buy {
		t.Fatalf("1.0*0.7=0.7 clears the gate, got %s/%s", d.Action, d.Reason)
	}
}

func TestBreakevenAndTrailingExits(t *testing.T) {
	cfg := testCfg()
	cfg.ScaleOutLevelsPct = nil

	pos := NewPositionState(10, 100, time.Time{})
	pos.PeakPLPct = 1.5
	d := Decide("SPY", Signals{Price: 99.9}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonBreakeven {
		t.Fatalf("peak over activation falling to breakeven must exit, got %s", d.Reason)
	}

	pos = NewPositionState(10, 100, time.Time{})
	pos.PeakPLPct = 2.0
	d = Decide("SPY", Signals{Price: 101}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonTrailingStop {
		t.Fatalf("1%% giveback from a 2%% peak must trail out, got %s", d.Reason)
	}
}

func TestBreakevenHalfwayToAnchor(t *testing.T) {
	cfg := testCfg()
	cfg.ScaleOutLevelsPct = nil
	pos := NewPositionState(10, 100, time.Time{})
	anchor := signal.Some(104.0)

	d := Decide("SPY", Signals{Price: 102.5, Anchor: anchor}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Action != signal.Hold {
		t.Fatalf("halfway mark alone must not exit, got %s/%s", d.Action, d.Reason)
	}
	d = Decide("SPY", Signals{Price: 100, Anchor: anchor}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonBreakevenHalfway {
		t.Fatalf("retrace to breakeven after the halfway mark must exit, got %s", d.Reason)
	}
}

func TestTrailingATRAboveAnchor(t *testing.T) {
	cfg := testCfg()
	cfg.ScaleOutLevelsPct = nil
	cfg.TakeProfitAtAnchor = false
	pos := NewPositionState(10, 100, time.Time{})
	pos.PeakPLPct = 5
	sig := Signals{Price: 103, Anchor: signal.Some(101), ATR: signal.Some(1)}
	d := Decide("SPY", sig, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonTrailingATRAboveAnchor {
		t.Fatalf("2%% off peak above anchor breaches a ~1%% ATR trail, got %s", d.Reason)
	}
}

func TestFixedTakeProfit(t *testing.T) {
	cfg := testCfg()
	cfg.ScaleOutLevelsPct = nil
	cfg.TakeProfitPct = 2
	cfg.TrailingActivatePct = 0
	pos := NewPositionState(10, 100, time.Time{})
	d := Decide("SPY", Signals{Price: 102.5}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonTakeProfit || d.Qty != 10 {
		t.Fatalf("expected take_profit full size, got %s %d", d.Reason, d.Qty)
	}
}

func TestTimeStop(t *testing.T) {
	cfg := testCfg()
	cfg.ScaleOutLevelsPct = nil
	cfg.TrailingActivatePct = 0
	cfg.BreakevenActivatePct = 0
	pos := NewPositionState(10, 100, time.Time{})
	pos.BarsHeld = cfg.MaxHoldBars
	d := Decide("SPY", Signals{Price: 100.5}, pos, okAccount(), et(10, 0), nil, cfg)
	if d.Reason != signal.ReasonTimeStop {
		t.Fatalf("expected time_stop at the hold limit, got %s", d.Reason)
	}
}

// Invariant: qty > 0 exactly when the action is not hold.
func TestQtyActionInvariant(t *testing.T) {
	cfg := testCfg()
	decisions := []signal.Decision{
		Decide("SPY", Signals{Price: 20}, nil, okAccount(), et(10, 0), nil, cfg),
		Decide("SPY", Signals{Price: 20}, nil, risk.View{}, et(10, 0), nil, cfg),
		Decide("SPY", Signals{Price: 95}, NewPositionState(10, 100, time.Time{}), okAccount(), et(10, 0), nil, cfg),
		Decide("SPY", Signals{Price: 20, Session: "post"}, nil, okAccount(), et(10, 0), nil, cfg),
	}
	for i, d := range decisions {
		if (d.Action == signal.Hold) != (d.Qty == 0) {
			t.Fatalf("decision %d violates qty/action invariant: %+v", i, d)
		}
		reasonInClosedSet(t, d)
	}
}
