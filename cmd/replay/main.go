// Command replay runs a captured NDJSON event stream through the decision
// engine with simulated fills, then prints a tally of decisions by reason.
// Useful for parameter sweeps against recorded sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"greenlight-go/internal/config"
	"greenlight-go/internal/engine"
	"greenlight-go/internal/exchange"
	"greenlight-go/internal/execution"
	"greenlight-go/internal/paper"
	"greenlight-go/internal/risk"
	"greenlight-go/internal/rules"
	"greenlight-go/internal/signal"
	"greenlight-go/internal/util"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	capturePath := flag.String("file", "", "NDJSON capture file; empty reads stdin")
	flag.Parse()

	log := util.NewLogger("warn")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}

	loc := time.UTC
	if cfg.Risk.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Risk.Timezone); err == nil {
			loc = l
		}
	}

	account := risk.NewAccountState(risk.Config{
		DailyProfitTargetPct:  cfg.Risk.DailyProfitTargetPct,
		DailyTrailGivebackPct: cfg.Risk.DailyTrailGivebackPct,
		DailyLossCapPct:       cfg.Risk.DailyLossCapPct,
		MaxDrawdownPct:        cfg.Risk.MaxDrawdownPct,
		ShockReturnPct:        cfg.Risk.ShockReturnPct,
	}, loc)
	eng := engine.New(engine.FromAppConfig(cfg), account, rules.Checker{Path: cfg.Rules.Path}, loc, log)
	book := paper.NewAccount(cfg.Paper.StartingCash, 0)
	account.UpdateEquity(cfg.Paper.StartingCash, time.Now())

	feed := exchange.NewFeed(exchange.ProviderNDJSON, cfg.Feed.Symbols, log, exchange.WithPath(*capturePath))
	events := make(chan signal.Event, 1024)
	done := make(chan error, 1)
	go func() {
		done <- feed.Run(context.Background(), events)
		close(events)
	}()

	// Replay evaluates against event time, not wall time.
	var eventTime time.Time
	eng.SetClock(func() time.Time { return eventTime })

	marks := map[string]float64{}
	tally := map[signal.Reason]int{}
	var orders int
	for ev := range events {
		eventTime = ev.Ts
		switch ev.Type {
		case signal.EventTrade:
			marks[ev.Trade.Symbol] = ev.Trade.Price
			d := eng.OnTrade(*ev.Trade)
			tally[d.Reason]++
			if order, ok := execution.FromDecision(d, ev.Trade.Price); ok {
				if err := book.MarketFill(order.Symbol, order.Side, order.Qty, order.Price); err == nil {
					eng.ApplyFill(order.Symbol, d.Action, order.Qty, order.Price, ev.Ts)
					orders++
				}
			}
			account.UpdateEquity(book.Equity(marks), ev.Ts)
		case signal.EventQuote:
			eng.OnQuote(*ev.Quote)
		case signal.EventVolatility:
			eng.OnVolatility(*ev.Volatility)
		case signal.EventPositions:
			eng.OnPositions(ev.Positions, ev.Equity, ev.Ts)
		}
	}
	if err := <-done; err != nil {
		log.Fatal().Err(err).Msg("replay feed")
	}

	reasons := make([]string, 0, len(tally))
	for r := range tally {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	fmt.Println("decision tally:")
	for _, r := range reasons {
		fmt.Printf("  %-28s %d\n", r, tally[signal.Reason(r)])
	}
	snap := book.Snapshot(marks)
	fmt.Printf("orders filled: %d\n", orders)
	fmt.Printf("final equity:  %.2f (realized %.2f)\n", snap.Equity, snap.RealizedPnL)
}
