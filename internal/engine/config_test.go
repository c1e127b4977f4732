package engine

import (
	"testing"

	"greenlight-go/internal/config"
)

func TestFromAppConfigMapsEveryExitFlag(t *testing.T) {
	c := config.Defaults()
	c.Exit.TakeProfitAtAnchor = false
	c.Exit.ScaleOutHalfAtAnchor = false
	c.Micro.PriceCapacity = 250

	cfg := FromAppConfig(c)
	if cfg.TakeProfitAtAnchor {
		t.Fatalf("take_profit_at_anchor: false must reach the engine config")
	}
	if cfg.ScaleOutHalfAtAnchor {
		t.Fatalf("scale_out_half_at_anchor: false must reach the engine config")
	}
	if cfg.PriceCapacity != 250 {
		t.Fatalf("price_capacity must reach the engine config, got %d", cfg.PriceCapacity)
	}
}

func TestFromAppConfigNilUsesDefaults(t *testing.T) {
	cfg := FromAppConfig(nil)
	if !cfg.TakeProfitAtAnchor || cfg.PriceCapacity != 500 {
		t.Fatalf("nil config must yield the defaults, got %+v", cfg)
	}
}
