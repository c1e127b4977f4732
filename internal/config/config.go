// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed selects the market-event source and its parameters.
type Feed struct {
	Mode    string   `yaml:"mode"` // stub, ndjson, websocket
	Path    string   `yaml:"path"` // ndjson file; empty means stdin
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

// Technical groups the chart-signal parameters.
type Technical struct {
	MomentumPeriod  int     `yaml:"momentum_period"`
	UseTrend        bool    `yaml:"use_trend"`
	TrendFast       int     `yaml:"trend_fast"`
	TrendSlow       int     `yaml:"trend_slow"`
	TrendSignal     int     `yaml:"trend_signal"`
	UsePatterns     bool    `yaml:"use_patterns"`
	PatternLookback int     `yaml:"pattern_lookback"`
	BreakoutDivisor float64 `yaml:"breakout_divisor"`
	FlagDivisor     float64 `yaml:"flag_divisor"`
}

// Micro groups the microstructure window lengths.
type Micro struct {
	PriceCapacity         int `yaml:"price_capacity"`  // per-symbol bar history bound
	AnchorLookback        int `yaml:"anchor_lookback"` // 0 = expanding
	ATRPeriod             int `yaml:"atr_period"`
	ATRPercentileLookback int `yaml:"atr_percentile_lookback"`
	ZScorePeriod          int `yaml:"zscore_period"`
	FlowWindow            int `yaml:"flow_window"`
}

// Regime configures the regime filter.
type Regime struct {
	Enabled     bool    `yaml:"enabled"`
	EntryStyle  string  `yaml:"entry_style"` // trend or mean_reversion
	Lookback    int     `yaml:"lookback"`
	VolBandMin  float64 `yaml:"vol_band_min"`
	TrendMomPct float64 `yaml:"trend_mom_pct"`
	FlatDistPct float64 `yaml:"flat_dist_pct"`
	FlatMomPct  float64 `yaml:"flat_mom_pct"`
}

// Entry holds every entry-gate threshold, in ladder order.
type Entry struct {
	SessionFilter          bool     `yaml:"session_filter"`
	AllowedSessions        []string `yaml:"allowed_sessions"`
	NoNewBuysAfter         string   `yaml:"no_new_buys_after"` // HH:MM exchange time
	UseTrendFilter         bool     `yaml:"use_trend_filter"`
	TrendSMAPeriod         int      `yaml:"trend_sma_period"`
	VolCeiling             float64  `yaml:"vol_ceiling"` // annualized
	UseAnchorFilter        bool     `yaml:"use_anchor_filter"`
	AnchorExtensionPct     float64  `yaml:"anchor_extension_pct"`
	UseMicroEntry          bool     `yaml:"use_micro_entry"`
	MicroEntryATRs         float64  `yaml:"micro_entry_atrs"`
	ATRPercentileMin       float64  `yaml:"atr_percentile_min"`
	ATRPercentileMax       float64  `yaml:"atr_percentile_max"`
	ZScoreTrigger          float64  `yaml:"zscore_trigger"`
	ScoreFloor             float64  `yaml:"score_floor"`
	RequireMomentumConfirm bool     `yaml:"require_momentum_confirm"`
	FlowSurgeMin           float64  `yaml:"flow_surge_min"`
	OverboughtLevel        float64  `yaml:"overbought_level"`
	OverboughtFlowMin      float64  `yaml:"overbought_flow_min"`
	ProbabilityThreshold   float64  `yaml:"probability_threshold"`
	VolProbCeiling         float64  `yaml:"vol_prob_ceiling"`
	VolProbFactor          float64  `yaml:"vol_prob_factor"`
}

// Exit holds the exit-ladder thresholds.
type Exit struct {
	StopLossPct          float64   `yaml:"stop_loss_pct"`
	UseATRStop           bool      `yaml:"use_atr_stop"`
	ATRStopMultiple      float64   `yaml:"atr_stop_multiple"`
	ScaleOutHalfAtAnchor bool      `yaml:"scale_out_half_at_anchor"`
	TakeProfitAtAnchor   bool      `yaml:"take_profit_at_anchor"`
	TakeProfitPct        float64   `yaml:"take_profit_pct"`
	TrailingATRMultiple  float64   `yaml:"trailing_atr_multiple"`
	BreakevenActivatePct float64   `yaml:"breakeven_activate_pct"`
	TrailingActivatePct  float64   `yaml:"trailing_activate_pct"`
	TrailingGivebackPct  float64   `yaml:"trailing_giveback_pct"`
	MaxHoldBars          int       `yaml:"max_hold_bars"`
	HealthCheckAfter     string    `yaml:"health_check_after"` // HH:MM exchange time
	ScaleOutLevelsPct    []float64 `yaml:"scale_out_levels_pct"`
	ScaleOutFraction     float64   `yaml:"scale_out_fraction"`
}

// Sizing groups position-sizing knobs.
type Sizing struct {
	UseRiskBased   bool    `yaml:"use_risk_based"`
	RiskPct        float64 `yaml:"risk_pct"`
	StopMultiple   float64 `yaml:"stop_multiple"`
	PositionFrac   float64 `yaml:"position_frac"`
	MaxQty         int     `yaml:"max_qty"`
	UseKelly       bool    `yaml:"use_kelly"`
	KellyLookback  int     `yaml:"kelly_lookback"`
	KellyCap       float64 `yaml:"kelly_cap"`
	UseCorrelation bool    `yaml:"use_correlation"`
	CorrLookback   int     `yaml:"corr_lookback"`
	CorrThreshold  float64 `yaml:"corr_threshold"`
	CorrReduction  float64 `yaml:"corr_reduction"`
	TargetPct      float64 `yaml:"target_pct"`
	HardCapPct     float64 `yaml:"hard_cap_pct"`
}

// Risk encodes the account-level circuit breakers.
type Risk struct {
	DailyProfitTargetPct  float64 `yaml:"daily_profit_target_pct"`
	DailyTrailGivebackPct float64 `yaml:"daily_trail_giveback_pct"`
	DailyLossCapPct       float64 `yaml:"daily_loss_cap_pct"`
	MaxDrawdownPct        float64 `yaml:"max_drawdown_pct"`
	ShockReturnPct        float64 `yaml:"shock_return_pct"`
	Timezone              string  `yaml:"timezone"`
}

// Execution tunes the order-placement collaborator.
type Execution struct {
	CooldownSecs int `yaml:"cooldown_secs"`
}

// Kafka configures the optional decision publisher.
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Telemetry configures decision recording.
type Telemetry struct {
	DecisionsPath string `yaml:"decisions_path"`
	Kafka         Kafka  `yaml:"kafka"`
}

// Rules points at the externally generated veto file.
type Rules struct {
	Path string `yaml:"path"`
}

// Paper captures paper-trading account settings.
type Paper struct {
	StartingCash float64 `yaml:"starting_cash"`
	FillsPath    string  `yaml:"fills_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Feed      Feed      `yaml:"feed"`
	Technical Technical `yaml:"technical"`
	Micro     Micro     `yaml:"micro"`
	Regime    Regime    `yaml:"regime"`
	Entry     Entry     `yaml:"entry"`
	Exit      Exit      `yaml:"exit"`
	Sizing    Sizing    `yaml:"sizing"`
	Risk      Risk      `yaml:"risk"`
	Execution Execution `yaml:"execution"`
	Telemetry Telemetry `yaml:"telemetry"`
	Rules     Rules     `yaml:"rules"`
	Paper     Paper     `yaml:"paper"`
}

// Defaults returns the production parameter set.
func Defaults() *Config {
	return &Config{
		App:  App{Name: "greenlight", Env: "dev", MetricsAddr: ":9109", LogLevel: "info"},
		Feed: Feed{Mode: "stub", Symbols: []string{"SPY"}},
		Technical: Technical{
			MomentumPeriod: 14, UseTrend: true, TrendFast: 12, TrendSlow: 26, TrendSignal: 9,
			UsePatterns: true, PatternLookback: 40, BreakoutDivisor: 5, FlagDivisor: 3,
		},
		Micro: Micro{PriceCapacity: 500, AnchorLookback: 0, ATRPeriod: 14, ATRPercentileLookback: 50, ZScorePeriod: 20, FlowWindow: 100},
		Regime: Regime{
			Enabled: false, EntryStyle: "mean_reversion", Lookback: 20,
			VolBandMin: 70, TrendMomPct: 0.5, FlatDistPct: 2, FlatMomPct: 1,
		},
		Entry: Entry{
			SessionFilter: true, AllowedSessions: []string{"regular"},
			NoNewBuysAfter: "15:30",
			UseTrendFilter: false, TrendSMAPeriod: 20,
			VolCeiling:      1.0,
			UseAnchorFilter: true, AnchorExtensionPct: 0.5,
			UseMicroEntry: false, MicroEntryATRs: 1.0,
			ATRPercentileMin: 10, ATRPercentileMax: 90,
			ZScoreTrigger:          -1.5,
			ScoreFloor:             0.2,
			RequireMomentumConfirm: false,
			FlowSurgeMin:           0.1,
			OverboughtLevel:        70,
			OverboughtFlowMin:      0.3,
			ProbabilityThreshold:   0.12,
			VolProbCeiling:         0.5,
			VolProbFactor:          0.7,
		},
		Exit: Exit{
			StopLossPct: 2, UseATRStop: true, ATRStopMultiple: 1.5,
			ScaleOutHalfAtAnchor: true, TakeProfitAtAnchor: true, TakeProfitPct: 0,
			TrailingATRMultiple: 1.0, BreakevenActivatePct: 1.0,
			TrailingActivatePct: 1.5, TrailingGivebackPct: 0.75,
			MaxHoldBars: 240, HealthCheckAfter: "15:45",
			ScaleOutLevelsPct: []float64{1, 2}, ScaleOutFraction: 0.33,
		},
		Sizing: Sizing{
			UseRiskBased: true, RiskPct: 1, StopMultiple: 1.5, PositionFrac: 0.05, MaxQty: 100,
			UseKelly: false, KellyLookback: 50, KellyCap: 0.25,
			UseCorrelation: false, CorrLookback: 20, CorrThreshold: 0.7, CorrReduction: 0.5,
			TargetPct: 10, HardCapPct: 15,
		},
		Risk: Risk{
			DailyProfitTargetPct: 3, DailyTrailGivebackPct: 1, DailyLossCapPct: 2,
			MaxDrawdownPct: 10, ShockReturnPct: 8, Timezone: "America/New_York",
		},
		Execution: Execution{CooldownSecs: 60},
		Telemetry: Telemetry{DecisionsPath: "decisions.jsonl"},
		Paper:     Paper{StartingCash: 50000},
	}
}

// Validate fails fast on parameter combinations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Technical.MomentumPeriod <= 0 {
		return fmt.Errorf("technical.momentum_period must be positive")
	}
	if c.Technical.UseTrend && (c.Technical.TrendFast <= 0 || c.Technical.TrendSlow <= c.Technical.TrendFast || c.Technical.TrendSignal <= 0) {
		return fmt.Errorf("technical trend periods must satisfy 0 < fast < slow and signal > 0")
	}
	if c.Micro.ATRPeriod <= 0 || c.Micro.ZScorePeriod <= 0 {
		return fmt.Errorf("micro windows must be positive")
	}
	if c.Entry.ATRPercentileMin < 0 || c.Entry.ATRPercentileMax > 100 || c.Entry.ATRPercentileMin > c.Entry.ATRPercentileMax {
		return fmt.Errorf("entry.atr_percentile band must be inside [0,100]")
	}
	if c.Entry.ProbabilityThreshold < 0 || c.Entry.ProbabilityThreshold > 1 {
		return fmt.Errorf("entry.probability_threshold must be in [0,1]")
	}
	if c.Exit.StopLossPct <= 0 && !c.Exit.UseATRStop {
		return fmt.Errorf("exit needs a stop: stop_loss_pct or use_atr_stop")
	}
	if c.Exit.ScaleOutFraction < 0 || c.Exit.ScaleOutFraction >= 1 {
		return fmt.Errorf("exit.scale_out_fraction must be in [0,1)")
	}
	if c.Sizing.MaxQty <= 0 {
		return fmt.Errorf("sizing.max_qty must be positive")
	}
	if c.Sizing.HardCapPct <= 0 || c.Sizing.TargetPct <= 0 {
		return fmt.Errorf("sizing exposure percents must be positive")
	}
	if c.Risk.Timezone != "" {
		if _, err := time.LoadLocation(c.Risk.Timezone); err != nil {
			return fmt.Errorf("risk.timezone: %w", err)
		}
	}
	switch c.Feed.Mode {
	case "", "stub", "ndjson", "websocket":
	default:
		return fmt.Errorf("feed.mode %q not recognized", c.Feed.Mode)
	}
	return nil
}

// Load reads a YAML file from disk and hydrates a Config struct on top of the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Defaults()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
