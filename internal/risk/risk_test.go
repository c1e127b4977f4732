package risk

import (
	"testing"
	"time"
)

func day(d int, hour int) time.Time {
	return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC)
}

func TestDailyRollResetsOncePerDay(t *testing.T) {
	a := NewAccountState(DefaultConfig(), time.UTC)
	a.UpdateEquity(100000, day(3, 10))
	a.UpdateEquity(98500, day(3, 15)) // -1.5%, inside the loss cap
	if a.DailyCapReached() {
		t.Fatalf("-1.5%% must not trip a 2%% loss cap")
	}
	a.UpdateEquity(98500, day(4, 10)) // new day: baseline re-anchors
	a.UpdateEquity(97600, day(4, 11)) // -0.91% on the new baseline
	if a.DailyCapReached() {
		t.Fatalf("new-day baseline must reset the daily P&L")
	}
	a.UpdateEquity(96000, day(4, 12)) // -2.54%
	if !a.DailyCapReached() {
		t.Fatalf("expected loss cap at -2.5%% on the day")
	}
}

func TestDailySoftCapTrailsPeak(t *testing.T) {
	a := NewAccountState(DefaultConfig(), time.UTC)
	a.UpdateEquity(100000, day(3, 10))
	a.UpdateEquity(104000, day(3, 11)) // +4%, above the 3% target: trailing armed
	if a.DailyCapReached() {
		t.Fatalf("at the peak the cap must not be tripped")
	}
	a.UpdateEquity(103500, day(3, 12)) // gave back 0.5%, under the 1% giveback
	if a.DailyCapReached() {
		t.Fatalf("0.5%% giveback must not trip a 1%% trail")
	}
	a.UpdateEquity(102900, day(3, 13)) // gave back 1.1% from the peak
	if !a.DailyCapReached() {
		t.Fatalf("expected trailing soft cap after giving back over 1%%")
	}
}

func TestDrawdownPeakNeverResets(t *testing.T) {
	a := NewAccountState(DefaultConfig(), time.UTC)
	a.UpdateEquity(100000, day(3, 10))
	a.UpdateEquity(95000, day(3, 15))
	if a.DrawdownHalt() {
		t.Fatalf("5%% drawdown must not halt at a 10%% limit")
	}
	a.UpdateEquity(89000, day(5, 10)) // new day, but the peak carries over
	if !a.DrawdownHalt() {
		t.Fatalf("11%% from the running peak must halt")
	}
}

func TestKillSwitch(t *testing.T) {
	a := NewAccountState(DefaultConfig(), time.UTC)
	if a.TripFromReturn(-3) {
		t.Fatalf("-3%% return must not trip an 8%% shock threshold")
	}
	if !a.TripFromReturn(-9) {
		t.Fatalf("-9%% return must trip")
	}
	if !a.KillSwitchActive() {
		t.Fatalf("switch must stay set")
	}
	a.ResetKillSwitch()
	if a.KillSwitchActive() {
		t.Fatalf("explicit reset must clear the switch")
	}
}

func TestSnapshotConsistency(t *testing.T) {
	a := NewAccountState(DefaultConfig(), time.UTC)
	v := a.Snapshot()
	if v.EquityOK {
		t.Fatalf("no equity observed yet")
	}
	a.UpdateEquity(100000, day(3, 10))
	a.Trip()
	v = a.Snapshot()
	if !v.EquityOK || v.Equity != 100000 {
		t.Fatalf("unexpected equity snapshot: %+v", v)
	}
	if !v.KillSwitchActive || v.DailyCapReached || v.DrawdownHalt {
		t.Fatalf("unexpected flags: %+v", v)
	}
}
