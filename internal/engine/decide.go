package engine

import (
	"math"
	"time"

	"greenlight-go/internal/micro"
	"greenlight-go/internal/regime"
	"greenlight-go/internal/risk"
	"greenlight-go/internal/signal"
	"greenlight-go/internal/sizing"
	"greenlight-go/internal/stats"
)

// Signals is the snapshot of every input one decision evaluates. Fields with
// Valid=false are unavailable and, per the liberal-defaults policy, never
// block an entry on their own.
type Signals struct {
	Price   float64
	Session string

	Score            signal.Float // composite technical score in [-1,1]
	MomentumRaw      signal.Float // raw 0-100 oscillator for overbought checks
	MomentumConfirm  bool
	MomentumKnown    bool // whether confirmation was computable at all
	StructureOK      bool
	StructureKnown   bool
	Regime           string

	Anchor        signal.Float
	AnchorDistPct signal.Float
	ATR           signal.Float
	ATRPercentile signal.Float
	ZScore        signal.Float
	Flow          signal.Float
	TrendSMA      signal.Float

	AnnualizedVol signal.Float
	Return1m      signal.Float
	Return5m      signal.Float

	// Sizing inputs.
	CandidateCloses []float64
	HeldCloses      [][]float64
	ExistingValue   float64

	RuleVetoed bool
}

// PositionState is the engine's view of one open position. Decide mutates the
// consumed-level flags so partial exits never fire twice.
type PositionState struct {
	Qty        int
	EntryPrice float64
	EntryTs    time.Time
	BarsHeld   int

	PeakPLPct        float64
	TookHalfAtAnchor bool
	ReachedHalfway   bool
	LevelsDone       map[float64]bool
}

// NewPositionState opens a position record at the fill price.
func NewPositionState(qty int, price float64, ts time.Time) *PositionState {
	return &PositionState{Qty: qty, EntryPrice: price, EntryTs: ts, LevelsDone: make(map[float64]bool)}
}

// PLPct is the unrealized P&L percent at the given price.
func (p *PositionState) PLPct(price float64) float64 {
	if p == nil || p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// observe updates the monotone peak and halfway marker before the ladder runs.
func (p *PositionState) observe(price float64, anchor signal.Float) {
	pl := p.PLPct(price)
	if pl > p.PeakPLPct {
		p.PeakPLPct = pl
	}
	if anchor.Valid && anchor.Value > p.EntryPrice {
		halfway := p.EntryPrice + (anchor.Value-p.EntryPrice)/2
		if price >= halfway {
			p.ReachedHalfway = true
		}
	}
}

// SessionContext carries the evaluation clock. Loc is the exchange calendar;
// tests inject fixed times through Now.
type SessionContext struct {
	Now time.Time
	Loc *time.Location
}

func (s SessionContext) afterClock(hhmm string) bool {
	if hhmm == "" {
		return false
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return false
	}
	loc := s.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := s.Now.In(loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	return !local.Before(cutoff)
}

func sessionAllowed(session string, allowed []string) bool {
	if session == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == session {
			return true
		}
	}
	return false
}

// rebase maps a return in [-1,1] onto [0,1].
func rebase(x float64) float64 {
	return (stats.Clamp(x, -1, 1) + 1) / 2
}

// probabilityOfGain is the bounded heuristic gating the final entry: short-
// and medium-term returns weighted 0.6/0.4, haircut under high volatility,
// 0.5 neutral when no return data exists.
func probabilityOfGain(sig Signals, cfg Config) float64 {
	p := 0.5
	if sig.Return1m.Valid || sig.Return5m.Valid {
		short, medium := 0.5, 0.5
		if sig.Return1m.Valid {
			short = rebase(sig.Return1m.Value)
		}
		if sig.Return5m.Valid {
			medium = rebase(sig.Return5m.Value)
		}
		p = 0.6*short + 0.4*medium
	}
	if sig.AnnualizedVol.Valid && cfg.VolProbCeiling > 0 && sig.AnnualizedVol.Value > cfg.VolProbCeiling {
		p *= cfg.VolProbFactor
	}
	return stats.Clamp(p, 0, 1)
}

// stopDistancePct is the working stop distance: ATR-derived when enabled and
// available, the fixed percent otherwise.
func stopDistancePct(sig Signals, cfg Config) float64 {
	if cfg.UseATRStop && sig.ATR.Valid {
		if d := micro.StopPct(sig.Price, sig.ATR.Value, cfg.ATRStopMultiple); d > 0 {
			return d
		}
	}
	return cfg.StopLossPct
}

// Decide evaluates the rule ladder for one symbol. Rules run in strict
// priority order and the first match returns; the ordering is load-bearing
// and reordering is a behavior change. pos may be nil (flat).
func Decide(symbol string, sig Signals, pos *PositionState, acct risk.View, sess SessionContext, kelly *sizing.KellyTracker, cfg Config) signal.Decision {
	d := decide(symbol, sig, pos, acct, sess, kelly, cfg)
	d.Ts = sess.Now
	return d
}

func decide(symbol string, sig Signals, pos *PositionState, acct risk.View, sess SessionContext, kelly *sizing.KellyTracker, cfg Config) signal.Decision {
	if cfg.SessionFilter && !sessionAllowed(sig.Session, cfg.AllowedSessions) {
		return signal.HoldDecision(symbol, signal.ReasonSessionFiltered)
	}

	if pos != nil && pos.Qty > 0 {
		return decideExit(symbol, sig, pos, sess, cfg)
	}
	return decideEntry(symbol, sig, acct, sess, kelly, cfg)
}

func decideExit(symbol string, sig Signals, pos *PositionState, sess SessionContext, cfg Config) signal.Decision {
	pos.observe(sig.Price, sig.Anchor)
	pl := pos.PLPct(sig.Price)

	// Scale-out ladder: one untriggered level per evaluation, consumed for
	// the lifetime of the position.
	if cfg.ScaleOutFraction > 0 {
		for _, level := range cfg.ScaleOutLevelsPct {
			if pos.LevelsDone[level] || pl < level {
				continue
			}
			qty := int(math.Round(float64(pos.Qty) * cfg.ScaleOutFraction))
			if qty < 1 {
				qty = 1
			}
			if qty >= pos.Qty {
				qty = pos.Qty
			}
			pos.LevelsDone[level] = true
			return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: qty, Reason: signal.ReasonScaleOutLevel}
		}
	}

	if sess.afterClock(cfg.HealthCheckAfter) && pl < 0 {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonHealthCheckCloseLoser}
	}
	if stop := stopDistancePct(sig, cfg); stop > 0 && pl <= -stop {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonStopLoss}
	}
	if cfg.TakeProfitAtAnchor && sig.Anchor.Valid && sig.Price >= sig.Anchor.Value {
		if cfg.ScaleOutHalfAtAnchor && !pos.TookHalfAtAnchor {
			qty := pos.Qty / 2
			if qty < 1 {
				qty = 1
			}
			pos.TookHalfAtAnchor = true
			return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: qty, Reason: signal.ReasonScaleOutHalfAtAnchor}
		}
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonTakeProfitAtAnchor}
	}
	if cfg.TakeProfitPct > 0 && pl >= cfg.TakeProfitPct {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonTakeProfit}
	}
	if cfg.TrailingATRMultiple > 0 && sig.Anchor.Valid && sig.Price > sig.Anchor.Value && sig.ATR.Valid {
		if trail := micro.StopPct(sig.Price, sig.ATR.Value, cfg.TrailingATRMultiple); trail > 0 && pos.PeakPLPct-pl >= trail {
			return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonTrailingATRAboveAnchor}
		}
	}
	if pos.ReachedHalfway && pl <= 0 {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonBreakevenHalfway}
	}
	if cfg.BreakevenActivatePct > 0 && pos.PeakPLPct >= cfg.BreakevenActivatePct && pl <= 0 {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonBreakeven}
	}
	if cfg.TrailingActivatePct > 0 && pos.PeakPLPct >= cfg.TrailingActivatePct && pos.PeakPLPct-pl > cfg.TrailingGivebackPct {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonTrailingStop}
	}
	if cfg.MaxHoldBars > 0 && pos.BarsHeld >= cfg.MaxHoldBars {
		return signal.Decision{Action: signal.Sell, Symbol: symbol, Qty: pos.Qty, Reason: signal.ReasonTimeStop}
	}
	return signal.HoldDecision(symbol, signal.ReasonNoSignal)
}

func decideEntry(symbol string, sig Signals, acct risk.View, sess SessionContext, kelly *sizing.KellyTracker, cfg Config) signal.Decision {
	if acct.KillSwitchActive {
		return signal.HoldDecision(symbol, signal.ReasonKillSwitchActive)
	}
	if acct.DailyCapReached {
		return signal.HoldDecision(symbol, signal.ReasonDailyCapReached)
	}
	if acct.DrawdownHalt {
		return signal.HoldDecision(symbol, signal.ReasonDrawdownHalt)
	}
	if sess.afterClock(cfg.NoNewBuysAfter) {
		return signal.HoldDecision(symbol, signal.ReasonAfterNoNewBuys)
	}
	if cfg.UseRegimeFilter && sig.Regime != "" && !regime.Allows(regime.Kind(sig.Regime), cfg.EntryStyle) {
		return signal.HoldDecision(symbol, signal.ReasonRegimeMismatch)
	}
	if cfg.UseTrendFilter && sig.TrendSMA.Valid && sig.Price < sig.TrendSMA.Value {
		return signal.HoldDecision(symbol, signal.ReasonTrendFilter)
	}
	if cfg.VolCeiling > 0 && sig.AnnualizedVol.Valid && sig.AnnualizedVol.Value > cfg.VolCeiling {
		return signal.HoldDecision(symbol, signal.ReasonVolTooHigh)
	}
	if cfg.UseAnchorFilter && sig.AnchorDistPct.Valid && sig.AnchorDistPct.Value > cfg.AnchorExtensionPct {
		return signal.HoldDecision(symbol, signal.ReasonExtendedAboveAnchor)
	}
	if cfg.UseMicroEntry && sig.Anchor.Valid && sig.ATR.Valid {
		deep := sig.Price <= sig.Anchor.Value-cfg.MicroEntryATRs*sig.ATR.Value
		flowOK := !sig.Flow.Valid || sig.Flow.Value >= 0
		if !deep || !flowOK {
			return signal.HoldDecision(symbol, signal.ReasonMicroEntryWait)
		}
	}
	if sig.ATRPercentile.Valid && (sig.ATRPercentile.Value < cfg.ATRPercentileMin || sig.ATRPercentile.Value > cfg.ATRPercentileMax) {
		return signal.HoldDecision(symbol, signal.ReasonATRPercentileBand)
	}
	if cfg.UseMicroEntry && sig.ZScore.Valid && sig.ZScore.Value > cfg.ZScoreTrigger {
		return signal.HoldDecision(symbol, signal.ReasonZScoreAboveTrigger)
	}
	if reason, blocked := checklist(sig, cfg); blocked {
		return signal.HoldDecision(symbol, reason)
	}
	if probabilityOfGain(sig, cfg) < cfg.ProbabilityThreshold {
		return signal.HoldDecision(symbol, signal.ReasonNoSignal)
	}
	if sig.RuleVetoed {
		return signal.HoldDecision(symbol, signal.ReasonRuleVeto)
	}
	if !acct.EquityOK {
		return signal.HoldDecision(symbol, signal.ReasonEquityUnavailable)
	}

	riskPct := sizing.RiskPct(cfg.Sizing, kelly)
	qty := sizing.Shares(acct.Equity, sig.Price, sig.ATR, riskPct, cfg.Sizing)
	qty = sizing.CorrelationAdjust(qty, sig.CandidateCloses, sig.HeldCloses, cfg.Sizing)
	budget := sizing.BudgetShares(acct.Equity, sig.Price, sig.ExistingValue, cfg.Sizing)
	if budget <= 0 {
		return signal.HoldDecision(symbol, signal.ReasonExposureCap)
	}
	if qty > budget {
		qty = budget
	}
	return signal.Decision{Action: signal.Buy, Symbol: symbol, Qty: qty, Reason: signal.ReasonEntrySignal}
}

// checklist is the four-part entry confirmation. Every sub-check passes when
// its inputs are unavailable; degraded data never blocks on its own.
func checklist(sig Signals, cfg Config) (signal.Reason, bool) {
	if sig.StructureKnown && !sig.StructureOK {
		return signal.ReasonChecklistStructure, true
	}
	if sig.Score.Valid {
		if sig.Score.Value < cfg.ScoreFloor {
			return signal.ReasonChecklistPattern, true
		}
		// Confluence: an outlier z-score or price at/below the anchor.
		// Only enforced when at least one confluence input exists.
		if sig.ZScore.Valid || sig.AnchorDistPct.Valid {
			atZ := sig.ZScore.Valid && sig.ZScore.Value <= cfg.ConfluenceZ
			atAnchor := sig.AnchorDistPct.Valid && sig.AnchorDistPct.Value <= 0
			if !atZ && !atAnchor {
				return signal.ReasonChecklistPattern, true
			}
		}
	}
	if cfg.RequireMomentumConfirm && sig.MomentumKnown && !sig.MomentumConfirm {
		return signal.ReasonChecklistMomentum, true
	}
	if sig.Flow.Valid {
		if sig.Flow.Value < cfg.FlowSurgeMin {
			return signal.ReasonChecklistFlow, true
		}
		if sig.MomentumRaw.Valid && sig.MomentumRaw.Value >= cfg.OverboughtLevel && sig.Flow.Value < cfg.OverboughtFlowMin {
			return signal.ReasonChecklistOverboughtFlow, true
		}
	}
	return "", false
}
