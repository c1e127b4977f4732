// Package engine owns per-symbol signal state and the account risk state, and
// turns inbound market events into trade decisions through a strict rule
// ladder.
package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"greenlight-go/internal/micro"
	"greenlight-go/internal/regime"
	"greenlight-go/internal/risk"
	"greenlight-go/internal/rules"
	"greenlight-go/internal/signal"
	"greenlight-go/internal/sizing"
	"greenlight-go/internal/stats"
	"greenlight-go/internal/technical"
)

type symbolState struct {
	bars    []signal.Bar // one entry per print, bounded by PriceCapacity
	session string
	vol     signal.Float
	ret1    signal.Float
	ret5    signal.Float
	pos     *PositionState
}

func (s *symbolState) closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Engine is the decision core. The event path is the single writer; all
// methods are safe for concurrent use so background timers can evaluate and
// report without racing it.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	account *risk.AccountState
	flow    *micro.FlowTracker
	kelly   *sizing.KellyTracker
	rules   rules.Checker
	loc     *time.Location
	now     func() time.Time
	symbols map[string]*symbolState
	log     zerolog.Logger
}

// New builds an engine. loc is the exchange calendar used for time-of-day
// gates; nil means UTC.
func New(cfg Config, account *risk.AccountState, checker rules.Checker, loc *time.Location, logger zerolog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.PriceCapacity <= 0 {
		cfg.PriceCapacity = 500
	}
	return &Engine{
		cfg:     cfg,
		account: account,
		flow:    micro.NewFlowTracker(cfg.FlowWindow),
		kelly:   &sizing.KellyTracker{},
		rules:   checker,
		loc:     loc,
		now:     time.Now,
		symbols: make(map[string]*symbolState),
		log:     logger,
	}
}

// SetClock overrides the evaluation clock. Tests use this to pin session
// gates to known times.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) state(symbol string) *symbolState {
	st, ok := e.symbols[symbol]
	if !ok {
		st = &symbolState{}
		e.symbols[symbol] = st
	}
	return st
}

// OnTrade applies one print and evaluates the ladder for its symbol.
func (e *Engine) OnTrade(t signal.Trade) signal.Decision {
	e.flow.OnTrade(t.Symbol, t.Price, t.Size)

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(t.Symbol)
	st.bars = append(st.bars, signal.Bar{Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Size})
	if len(st.bars) > e.cfg.PriceCapacity {
		st.bars = st.bars[len(st.bars)-e.cfg.PriceCapacity:]
	}
	if t.Session != "" {
		st.session = t.Session
	}
	if t.Return1m.Valid {
		st.ret1 = t.Return1m
		if e.account != nil {
			e.account.TripFromReturn(t.Return1m.Value * 100)
		}
	}
	if t.Return5m.Valid {
		st.ret5 = t.Return5m
	}
	if st.pos != nil {
		st.pos.BarsHeld++
	}
	return e.evaluateLocked(t.Symbol, st)
}

// OnQuote refreshes the book used for trade-flow classification.
func (e *Engine) OnQuote(q signal.Quote) {
	e.flow.OnQuote(q.Symbol, q.Bid, q.Ask)
}

// OnVolatility stores the latest volatility snapshot for its symbol.
func (e *Engine) OnVolatility(v signal.Volatility) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state(v.Symbol).vol = signal.Some(v.Annualized30d)
}

// OnPositions syncs broker-reported positions and pushes equity into the
// account state. Unrealized P&L magnitudes above 1 are treated as percents
// already and normalized.
func (e *Engine) OnPositions(updates []signal.PositionUpdate, equity signal.Float, now time.Time) {
	if e.account != nil && equity.Valid {
		e.account.UpdateEquity(equity.Value, now)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range updates {
		if u.Qty < 0 {
			// Long only: a short can only come from outside this engine.
			e.log.Warn().Str("symbol", u.Symbol).Int("qty", u.Qty).Msg("ignoring short position sync")
			continue
		}
		st := e.state(u.Symbol)
		if u.Qty == 0 {
			st.pos = nil
			continue
		}
		if st.pos == nil {
			st.pos = NewPositionState(u.Qty, u.CostBasis, now)
		} else {
			st.pos.Qty = u.Qty
			if u.CostBasis > 0 {
				st.pos.EntryPrice = u.CostBasis
			}
		}
		pl := u.UnrealizedPLPc
		if pl > 1 || pl < -1 {
			pl /= 100
		}
		if plPct := pl * 100; plPct > st.pos.PeakPLPct {
			st.pos.PeakPLPct = plPct
		}
	}
}

// ApplyFill records an executed order against the engine's position state.
// A position closing to zero books its round trip into the Kelly history.
func (e *Engine) ApplyFill(symbol string, side signal.Action, qty int, price float64, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state(symbol)
	switch side {
	case signal.Buy:
		if st.pos == nil {
			st.pos = NewPositionState(qty, price, ts)
			return
		}
		total := float64(st.pos.Qty) + float64(qty)
		st.pos.EntryPrice = (st.pos.EntryPrice*float64(st.pos.Qty) + price*float64(qty)) / total
		st.pos.Qty += qty
	case signal.Sell:
		if st.pos == nil {
			return
		}
		if qty >= st.pos.Qty {
			qty = st.pos.Qty
		}
		if st.pos.EntryPrice > 0 {
			e.kelly.Record(float64(qty) * (price - st.pos.EntryPrice))
		}
		st.pos.Qty -= qty
		if st.pos.Qty == 0 {
			st.pos = nil
		}
	}
}

// Position returns a copy of the current position for a symbol.
func (e *Engine) Position(symbol string) (PositionState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.symbols[symbol]
	if !ok || st.pos == nil {
		return PositionState{}, false
	}
	return *st.pos, true
}

// Evaluate runs the ladder for one symbol outside the trade path, e.g. from a
// periodic ticker.
func (e *Engine) Evaluate(symbol string) signal.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluateLocked(symbol, e.state(symbol))
}

func (e *Engine) evaluateLocked(symbol string, st *symbolState) signal.Decision {
	if len(st.bars) == 0 {
		d := signal.HoldDecision(symbol, signal.ReasonNoSignal)
		d.Ts = e.now()
		return d
	}
	sig := e.assemble(symbol, st)
	sess := SessionContext{Now: e.now(), Loc: e.loc}
	var acct risk.View
	if e.account != nil {
		acct = e.account.Snapshot()
	}
	d := Decide(symbol, sig, st.pos, acct, sess, e.kelly, e.cfg)
	e.log.Debug().
		Str("symbol", symbol).
		Str("action", string(d.Action)).
		Str("reason", string(d.Reason)).
		Int("qty", d.Qty).
		Msg("decision")
	return d
}

func (e *Engine) assemble(symbol string, st *symbolState) Signals {
	closes := st.closes()
	price := closes[len(closes)-1]
	sig := Signals{
		Price:   price,
		Session: st.session,

		Score:       technical.Score(closes, e.cfg.Technical),
		MomentumRaw: technical.MomentumValue(closes, e.cfg.Technical.MomentumPeriod),

		Anchor: micro.Anchor(st.bars, e.cfg.AnchorLookback),
		ATR:    micro.ATR(st.bars, e.cfg.ATRPeriod),
		ZScore: micro.ReturnsZScore(closes, e.cfg.ZScorePeriod),
		Flow:   e.flow.Imbalance(symbol),

		AnnualizedVol: st.vol,
		Return1m:      st.ret1,
		Return5m:      st.ret5,

		CandidateCloses: closes,
	}
	if sig.Anchor.Valid {
		sig.AnchorDistPct = micro.AnchorDistancePct(price, sig.Anchor.Value)
	}
	if atrSeries, ok := micro.ATRSeries(st.bars, e.cfg.ATRPeriod); ok {
		sig.ATRPercentile = micro.ATRPercentile(atrSeries, e.cfg.ATRPercentileLookback)
		if e.cfg.UseRegimeFilter {
			sig.Regime = string(regime.Classify(closes, atrSeries, e.cfg.Regime))
		}
	} else if e.cfg.UseRegimeFilter {
		sig.Regime = string(regime.Classify(closes, nil, e.cfg.Regime))
	}
	if res, ok := technical.Structure(closes, e.cfg.Technical); ok {
		sig.StructureKnown = true
		sig.StructureOK = res.OK()
	}
	if len(closes) >= e.cfg.Technical.MomentumPeriod+5 {
		sig.MomentumKnown = true
		sig.MomentumConfirm = technical.MomentumConfirm(closes, e.cfg.Technical)
	}
	if sma, ok := stats.SMA(closes, e.cfg.TrendSMAPeriod); ok {
		sig.TrendSMA = signal.Some(sma)
	}
	if st.pos != nil {
		sig.ExistingValue = float64(st.pos.Qty) * price
	}
	for other, ost := range e.symbols {
		if other == symbol || ost.pos == nil || ost.pos.Qty == 0 {
			continue
		}
		sig.HeldCloses = append(sig.HeldCloses, ost.closes())
	}
	_, sig.RuleVetoed = e.rules.Veto(map[string]signal.Float{
		"technical_score":     sig.Score,
		"momentum":            sig.MomentumRaw,
		"zscore":              sig.ZScore,
		"flow_imbalance":      sig.Flow,
		"annualized_vol":      sig.AnnualizedVol,
		"atr_percentile":      sig.ATRPercentile,
		"anchor_distance_pct": sig.AnchorDistPct,
	})
	return sig
}
