// Package signal standardizes payloads shared between data ingestion, the
// decision engine, and execution layers.
package signal

import "time"

// Float is an optional float64: Valid=false means the value is unavailable
// (not enough history, zero denominator, feed gap). Unavailable is a
// first-class state, never a zero.
type Float struct {
	Value float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Float { return Float{Value: v, Valid: true} }

// None is the absent value.
func None() Float { return Float{} }

// Or returns the value when present, otherwise the fallback.
func (f Float) Or(fallback float64) float64 {
	if f.Valid {
		return f.Value
	}
	return fallback
}

// Trade models one print from the tape.
type Trade struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	Session  string  `json:"session"`
	Return1m Float   `json:"-"`
	Return5m Float   `json:"-"`
	Ts       time.Time
}

// Quote models a top-of-book update.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Ts     time.Time
}

// Volatility is a periodic volatility snapshot for one symbol.
type Volatility struct {
	Symbol        string  `json:"symbol"`
	Annualized30d float64 `json:"annualized_vol_30d"`
	Ts            time.Time
}

// Bar is one OHLCV bar, the unit of all windowed computations.
type Bar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PositionUpdate is the broker-reported view of one open position.
type PositionUpdate struct {
	Symbol         string  `json:"symbol"`
	Qty            int     `json:"qty"`
	CostBasis      float64 `json:"cost_basis"`
	CurrentPrice   float64 `json:"current_price"`
	UnrealizedPLPc float64 `json:"unrealized_plpc"`
}

// Event type tags used on the wire.
const (
	EventTrade      = "trade"
	EventQuote      = "quote"
	EventVolatility = "volatility"
	EventPositions  = "positions"
)

// Event is the envelope for one inbound market event.
type Event struct {
	Type       string
	Ts         time.Time
	Trade      *Trade
	Quote      *Quote
	Volatility *Volatility
	Positions  []PositionUpdate
	Equity     Float // piggybacked on positions events when the broker reports it
}

// Action enumerates decision outcomes.
type Action string

const (
	Hold Action = "hold"
	Buy  Action = "buy"
	Sell Action = "sell"
)

// Reason is a machine-readable tag explaining a decision. The set is closed:
// every Decision carries exactly one of the constants below so decisions can
// be asserted and labeled without parsing free text.
type Reason string

const (
	// Exit ladder.
	ReasonHealthCheckCloseLoser  Reason = "health_check_close_loser"
	ReasonStopLoss               Reason = "stop_loss"
	ReasonScaleOutHalfAtAnchor   Reason = "scale_out_half_at_fair_value"
	ReasonTakeProfitAtAnchor     Reason = "take_profit_at_fair_value"
	ReasonTakeProfit             Reason = "take_profit"
	ReasonTrailingATRAboveAnchor Reason = "trailing_atr_above_anchor"
	ReasonBreakevenHalfway       Reason = "breakeven_halfway"
	ReasonBreakeven              Reason = "breakeven"
	ReasonTrailingStop           Reason = "trailing_stop"
	ReasonTimeStop               Reason = "time_stop"
	ReasonScaleOutLevel          Reason = "scale_out_level"

	// Entry gate holds.
	ReasonSessionFiltered     Reason = "session_filtered"
	ReasonKillSwitchActive    Reason = "kill_switch_active"
	ReasonDailyCapReached     Reason = "daily_cap_reached"
	ReasonDrawdownHalt        Reason = "drawdown_halt"
	ReasonAfterNoNewBuys      Reason = "after_no_new_buys"
	ReasonRegimeMismatch      Reason = "regime_mismatch"
	ReasonTrendFilter         Reason = "trend_filter"
	ReasonVolTooHigh          Reason = "vol_too_high"
	ReasonExtendedAboveAnchor Reason = "extended_above_anchor"
	ReasonMicroEntryWait      Reason = "micro_entry_wait"
	ReasonATRPercentileBand   Reason = "atr_percentile_out_of_band"
	ReasonZScoreAboveTrigger  Reason = "zscore_above_trigger"

	// Green Light checklist holds.
	ReasonChecklistStructure      Reason = "checklist_structure"
	ReasonChecklistPattern        Reason = "checklist_pattern"
	ReasonChecklistMomentum       Reason = "checklist_momentum"
	ReasonChecklistFlow           Reason = "checklist_flow"
	ReasonChecklistOverboughtFlow Reason = "checklist_overbought_flow"

	// Entry resolution.
	ReasonEntrySignal       Reason = "entry_signal"
	ReasonNoSignal          Reason = "no_signal"
	ReasonEquityUnavailable Reason = "equity_unavailable"
	ReasonExposureCap       Reason = "exposure_cap"
	ReasonRuleVeto          Reason = "rule_veto"
)

// Reasons lists every valid reason tag, for exhaustive round-trip tests.
func Reasons() []Reason {
	return []Reason{
		ReasonHealthCheckCloseLoser, ReasonStopLoss, ReasonScaleOutHalfAtAnchor,
		ReasonTakeProfitAtAnchor, ReasonTakeProfit, ReasonTrailingATRAboveAnchor,
		ReasonBreakevenHalfway, ReasonBreakeven, ReasonTrailingStop, ReasonTimeStop,
		ReasonScaleOutLevel, ReasonSessionFiltered, ReasonKillSwitchActive,
		ReasonDailyCapReached, ReasonDrawdownHalt, ReasonAfterNoNewBuys,
		ReasonRegimeMismatch, ReasonTrendFilter, ReasonVolTooHigh,
		ReasonExtendedAboveAnchor, ReasonMicroEntryWait, ReasonATRPercentileBand,
		ReasonZScoreAboveTrigger, ReasonChecklistStructure, ReasonChecklistPattern,
		ReasonChecklistMomentum, ReasonChecklistFlow, ReasonChecklistOverboughtFlow,
		ReasonEntrySignal, ReasonNoSignal, ReasonEquityUnavailable,
		ReasonExposureCap, ReasonRuleVeto,
	}
}

// Decision is the engine's verdict for one symbol on one evaluation.
type Decision struct {
	Action Action    `json:"action"`
	Symbol string    `json:"symbol"`
	Qty    int       `json:"qty"`
	Reason Reason    `json:"reason"`
	Ts     time.Time `json:"ts"`
}

// HoldDecision is shorthand for a qty-0 hold with the given reason.
func HoldDecision(symbol string, reason Reason) Decision {
	return Decision{Action: Hold, Symbol: symbol, Qty: 0, Reason: reason}
}
