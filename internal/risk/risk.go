// Package risk holds account-level risk state: daily P&L caps, the drawdown
// halt, and the kill switch. One AccountState exists per account; the equity
// path writes it and every decision reads it.
package risk

import (
	"sync"
	"time"
)

// Config holds the account-level thresholds.
type Config struct {
	DailyProfitTargetPct  float64 // trailing soft cap activates above this daily gain
	DailyTrailGivebackPct float64 // give back this much from the day's peak and stop
	DailyLossCapPct       float64 // hard stop on daily loss
	MaxDrawdownPct        float64 // halt entries at this drawdown from the running peak
	ShockReturnPct        float64 // one-period return magnitude that trips the kill switch
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		DailyProfitTargetPct:  3,
		DailyTrailGivebackPct: 1,
		DailyLossCapPct:       2,
		MaxDrawdownPct:        10,
		ShockReturnPct:        8,
	}
}

// AccountState tracks equity across the day and session. All methods are safe
// for concurrent use; decision calls take a snapshot read.
type AccountState struct {
	mu sync.Mutex

	loc *time.Location
	cfg Config

	dayKey       string
	dayStart     float64
	latest       float64
	hasEquity    bool
	dayPeakPLPct float64 // peak daily P&L percent once above the profit target
	peakTracking bool
	runningPeak  float64 // all-time peak equity, never reset
	killSwitch   bool
}

// NewAccountState builds the singleton account tracker. loc is the exchange
// calendar used for the daily roll; nil means UTC.
func NewAccountState(cfg Config, loc *time.Location) *AccountState {
	if loc == nil {
		loc = time.UTC
	}
	return &AccountState{cfg: cfg, loc: loc}
}

// UpdateEquity records the latest equity and performs the once-per-day roll on
// the first observation of a new calendar day.
func (a *AccountState) UpdateEquity(equity float64, now time.Time) {
	if equity <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := now.In(a.loc).Format("2006-01-02")
	if key != a.dayKey {
		a.dayKey = key
		a.dayStart = equity
		a.dayPeakPLPct = 0
		a.peakTracking = false
	}
	a.latest = equity
	a.hasEquity = true
	if equity > a.runningPeak {
		a.runningPeak = equity
	}
	if a.dayStart > 0 {
		plPct := (equity - a.dayStart) / a.dayStart * 100
		if plPct >= a.cfg.DailyProfitTargetPct {
			a.peakTracking = true
		}
		if a.peakTracking && plPct > a.dayPeakPLPct {
			a.dayPeakPLPct = plPct
		}
	}
}

// Equity returns the latest observed equity; ok=false before any update.
func (a *AccountState) Equity() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest, a.hasEquity
}

// DailyCapReached reports whether new entries are blocked by the day's P&L:
// either the trailing soft cap after the profit target, or the loss cap.
func (a *AccountState) DailyCapReached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasEquity || a.dayStart <= 0 {
		return false
	}
	plPct := (a.latest - a.dayStart) / a.dayStart * 100
	if a.peakTracking && a.dayPeakPLPct-plPct >= a.cfg.DailyTrailGivebackPct {
		return true
	}
	return plPct <= -a.cfg.DailyLossCapPct
}

// DrawdownHalt reports whether equity has fallen far enough from its running
// peak to stop all new entries. The peak never resets.
func (a *AccountState) DrawdownHalt() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasEquity || a.runningPeak <= 0 {
		return false
	}
	dd := (a.runningPeak - a.latest) / a.runningPeak * 100
	return dd >= a.cfg.MaxDrawdownPct
}

// TripFromReturn trips the kill switch on a one-period return shock. Returns
// whether the switch is now set.
func (a *AccountState) TripFromReturn(retPct float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if retPct <= -a.cfg.ShockReturnPct || retPct >= a.cfg.ShockReturnPct {
		a.killSwitch = true
	}
	return a.killSwitch
}

// Trip sets the kill switch unconditionally.
func (a *AccountState) Trip() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.killSwitch = true
}

// ResetKillSwitch clears the switch; only an operator action calls this.
func (a *AccountState) ResetKillSwitch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.killSwitch = false
}

// KillSwitchActive reports the switch state.
func (a *AccountState) KillSwitchActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.killSwitch
}

// View is the snapshot a single decision evaluates against.
type View struct {
	Equity           float64
	EquityOK         bool
	DailyCapReached  bool
	DrawdownHalt     bool
	KillSwitchActive bool
}

// Snapshot captures a consistent read of the account state.
func (a *AccountState) Snapshot() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := View{
		Equity:           a.latest,
		EquityOK:         a.hasEquity,
		KillSwitchActive: a.killSwitch,
	}
	if a.hasEquity && a.dayStart > 0 {
		plPct := (a.latest - a.dayStart) / a.dayStart * 100
		if a.peakTracking && a.dayPeakPLPct-plPct >= a.cfg.DailyTrailGivebackPct {
			v.DailyCapReached = true
		}
		if plPct <= -a.cfg.DailyLossCapPct {
			v.DailyCapReached = true
		}
	}
	if a.hasEquity && a.runningPeak > 0 {
		dd := (a.runningPeak - a.latest) / a.runningPeak * 100
		v.DrawdownHalt = dd >= a.cfg.MaxDrawdownPct
	}
	return v
}
