package engine

import (
	"greenlight-go/internal/config"
	"greenlight-go/internal/regime"
	"greenlight-go/internal/sizing"
	"greenlight-go/internal/technical"
)

// Config collects every decision threshold. All values come from the
// application config; nothing here is compiled in.
type Config struct {
	Technical technical.Config

	// Window lengths for the per-symbol state.
	PriceCapacity         int
	AnchorLookback        int
	ATRPeriod             int
	ATRPercentileLookback int
	ZScorePeriod          int
	FlowWindow            int

	Regime          regime.Config
	UseRegimeFilter bool
	EntryStyle      string

	SessionFilter    bool
	AllowedSessions  []string
	NoNewBuysAfter   string
	HealthCheckAfter string

	// Entry gates, in ladder order.
	UseTrendFilter         bool
	TrendSMAPeriod         int
	VolCeiling             float64
	UseAnchorFilter        bool
	AnchorExtensionPct     float64
	UseMicroEntry          bool
	MicroEntryATRs         float64
	ATRPercentileMin       float64
	ATRPercentileMax       float64
	ZScoreTrigger          float64
	ScoreFloor             float64
	ConfluenceZ            float64
	RequireMomentumConfirm bool
	FlowSurgeMin           float64
	OverboughtLevel        float64
	OverboughtFlowMin      float64
	ProbabilityThreshold   float64
	VolProbCeiling         float64
	VolProbFactor          float64

	// Exit ladder.
	StopLossPct          float64
	UseATRStop           bool
	ATRStopMultiple      float64
	ScaleOutHalfAtAnchor bool
	TakeProfitAtAnchor   bool
	TakeProfitPct        float64
	TrailingATRMultiple  float64
	BreakevenActivatePct float64
	TrailingActivatePct  float64
	TrailingGivebackPct  float64
	MaxHoldBars          int
	ScaleOutLevelsPct    []float64
	ScaleOutFraction     float64

	Sizing sizing.Config
}

// DefaultConfig mirrors the production parameter set.
func DefaultConfig() Config {
	return Config{
		Technical:             technical.DefaultConfig(),
		PriceCapacity:         500,
		AnchorLookback:        0,
		ATRPeriod:             14,
		ATRPercentileLookback: 50,
		ZScorePeriod:          20,
		FlowWindow:            100,

		Regime:          regime.DefaultConfig(),
		UseRegimeFilter: false,
		EntryStyle:      "mean_reversion",

		SessionFilter:    true,
		AllowedSessions:  []string{"regular"},
		NoNewBuysAfter:   "15:30",
		HealthCheckAfter: "15:45",

		UseTrendFilter:         false,
		TrendSMAPeriod:         20,
		VolCeiling:             1.0,
		UseAnchorFilter:        true,
		AnchorExtensionPct:     0.5,
		UseMicroEntry:          false,
		MicroEntryATRs:         1.0,
		ATRPercentileMin:       10,
		ATRPercentileMax:       90,
		ZScoreTrigger:          -1.5,
		ScoreFloor:             0.2,
		ConfluenceZ:            -1.0,
		RequireMomentumConfirm: false,
		FlowSurgeMin:           0.1,
		OverboughtLevel:        70,
		OverboughtFlowMin:      0.3,
		ProbabilityThreshold:   0.12,
		VolProbCeiling:         0.5,
		VolProbFactor:          0.7,

		StopLossPct:          2,
		UseATRStop:           true,
		ATRStopMultiple:      1.5,
		ScaleOutHalfAtAnchor: true,
		TakeProfitAtAnchor:   true,
		TakeProfitPct:        0,
		TrailingATRMultiple:  1.0,
		BreakevenActivatePct: 1.0,
		TrailingActivatePct:  1.5,
		TrailingGivebackPct:  0.75,
		MaxHoldBars:          240,
		ScaleOutLevelsPct:    []float64{1, 2},
		ScaleOutFraction:     0.33,

		Sizing: sizing.DefaultConfig(),
	}
}

// FromAppConfig maps the YAML configuration onto the engine's parameter set.
func FromAppConfig(c *config.Config) Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	cfg.Technical = technical.Config{
		MomentumPeriod:  c.Technical.MomentumPeriod,
		UseTrend:        c.Technical.UseTrend,
		TrendFast:       c.Technical.TrendFast,
		TrendSlow:       c.Technical.TrendSlow,
		TrendSignal:     c.Technical.TrendSignal,
		UsePatterns:     c.Technical.UsePatterns,
		PatternLookback: c.Technical.PatternLookback,
		BreakoutDivisor: c.Technical.BreakoutDivisor,
		FlagDivisor:     c.Technical.FlagDivisor,
	}
	cfg.PriceCapacity = c.Micro.PriceCapacity
	cfg.AnchorLookback = c.Micro.AnchorLookback
	cfg.ATRPeriod = c.Micro.ATRPeriod
	cfg.ATRPercentileLookback = c.Micro.ATRPercentileLookback
	cfg.ZScorePeriod = c.Micro.ZScorePeriod
	cfg.FlowWindow = c.Micro.FlowWindow

	cfg.Regime = regime.Config{
		Lookback:    c.Regime.Lookback,
		VolBandMin:  c.Regime.VolBandMin,
		TrendMomPct: c.Regime.TrendMomPct,
		FlatDistPct: c.Regime.FlatDistPct,
		FlatMomPct:  c.Regime.FlatMomPct,
	}
	cfg.UseRegimeFilter = c.Regime.Enabled
	cfg.EntryStyle = c.Regime.EntryStyle

	cfg.SessionFilter = c.Entry.SessionFilter
	cfg.AllowedSessions = c.Entry.AllowedSessions
	cfg.NoNewBuysAfter = c.Entry.NoNewBuysAfter
	cfg.HealthCheckAfter = c.Exit.HealthCheckAfter

	cfg.UseTrendFilter = c.Entry.UseTrendFilter
	cfg.TrendSMAPeriod = c.Entry.TrendSMAPeriod
	cfg.VolCeiling = c.Entry.VolCeiling
	cfg.UseAnchorFilter = c.Entry.UseAnchorFilter
	cfg.AnchorExtensionPct = c.Entry.AnchorExtensionPct
	cfg.UseMicroEntry = c.Entry.UseMicroEntry
	cfg.MicroEntryATRs = c.Entry.MicroEntryATRs
	cfg.ATRPercentileMin = c.Entry.ATRPercentileMin
	cfg.ATRPercentileMax = c.Entry.ATRPercentileMax
	cfg.ZScoreTrigger = c.Entry.ZScoreTrigger
	cfg.ScoreFloor = c.Entry.ScoreFloor
	cfg.RequireMomentumConfirm = c.Entry.RequireMomentumConfirm
	cfg.FlowSurgeMin = c.Entry.FlowSurgeMin
	cfg.OverboughtLevel = c.Entry.OverboughtLevel
	cfg.OverboughtFlowMin = c.Entry.OverboughtFlowMin
	cfg.ProbabilityThreshold = c.Entry.ProbabilityThreshold
	cfg.VolProbCeiling = c.Entry.VolProbCeiling
	cfg.VolProbFactor = c.Entry.VolProbFactor

	cfg.StopLossPct = c.Exit.StopLossPct
	cfg.UseATRStop = c.Exit.UseATRStop
	cfg.ATRStopMultiple = c.Exit.ATRStopMultiple
	cfg.ScaleOutHalfAtAnchor = c.Exit.ScaleOutHalfAtAnchor
	cfg.TakeProfitAtAnchor = c.Exit.TakeProfitAtAnchor
	cfg.TakeProfitPct = c.Exit.TakeProfitPct
	cfg.TrailingATRMultiple = c.Exit.TrailingATRMultiple
	cfg.BreakevenActivatePct = c.Exit.BreakevenActivatePct
	cfg.TrailingActivatePct = c.Exit.TrailingActivatePct
	cfg.TrailingGivebackPct = c.Exit.TrailingGivebackPct
	cfg.MaxHoldBars = c.Exit.MaxHoldBars
	cfg.ScaleOutLevelsPct = c.Exit.ScaleOutLevelsPct
	cfg.ScaleOutFraction = c.Exit.ScaleOutFraction

	cfg.Sizing = sizing.Config{
		UseRiskBased:   c.Sizing.UseRiskBased,
		RiskPct:        c.Sizing.RiskPct,
		StopMultiple:   c.Sizing.StopMultiple,
		PositionFrac:   c.Sizing.PositionFrac,
		MaxQty:         c.Sizing.MaxQty,
		UseKelly:       c.Sizing.UseKelly,
		KellyLookback:  c.Sizing.KellyLookback,
		KellyCap:       c.Sizing.KellyCap,
		UseCorrelation: c.Sizing.UseCorrelation,
		CorrLookback:   c.Sizing.CorrLookback,
		CorrThreshold:  c.Sizing.CorrThreshold,
		CorrReduction:  c.Sizing.CorrReduction,
		TargetPct:      c.Sizing.TargetPct,
		HardCapPct:     c.Sizing.HardCapPct,
	}
	return cfg
}
