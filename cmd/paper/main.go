package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"greenlight-go/internal/config"
	"greenlight-go/internal/engine"
	"greenlight-go/internal/exchange"
	"greenlight-go/internal/execution"
	"greenlight-go/internal/metrics"
	"greenlight-go/internal/paper"
	"greenlight-go/internal/risk"
	"greenlight-go/internal/rules"
	"greenlight-go/internal/signal"
	"greenlight-go/internal/telemetry"
	"greenlight-go/internal/util"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	flag.Parse()
	if env := os.Getenv("GREENLIGHT_CONFIG"); env != "" {
		*configPath = env
	}

	bootLog := util.NewLogger("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

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

	var sinks telemetry.Fanout
	if cfg.Telemetry.DecisionsPath != "" {
		rec, err := telemetry.NewDecisionRecorder(cfg.Telemetry.DecisionsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open decision recorder")
		}
		defer rec.Close()
		sinks = append(sinks, rec)
	}
	if cfg.Telemetry.Kafka.Enabled {
		pub, err := telemetry.NewKafkaPublisher(cfg.Telemetry.Kafka.Brokers, cfg.Telemetry.Kafka.Topic, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect kafka publisher")
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	exec := execution.NewExecutor(log, time.Duration(cfg.Execution.CooldownSecs)*time.Second)
	book := paper.NewAccount(cfg.Paper.StartingCash, 0)
	var fills paper.FillRecorder = paper.NewLedger(256)
	if cfg.Paper.FillsPath != "" {
		rec, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open fill recorder")
		}
		defer rec.Close()
		fills = rec
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	feed := exchange.NewFeed(cfg.Feed.Mode, cfg.Feed.Symbols, log,
		exchange.WithPath(cfg.Feed.Path), exchange.WithURL(cfg.Feed.URL))
	events := make(chan signal.Event, 1024)
	go func() {
		if err := feed.Run(ctx, events); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
		}
		cancel()
	}()

	// Seed the risk state so entry sizing has equity before the first broker
	// positions event arrives.
	account.UpdateEquity(cfg.Paper.StartingCash, time.Now())

	marks := map[string]float64{}
	handle := func(d signal.Decision, price float64) {
		metrics.DecisionsTotal.WithLabelValues(d.Symbol, string(d.Action), string(d.Reason)).Inc()
		if err := sinks.Publish(d); err != nil {
			log.Warn().Err(err).Msg("decision sink")
		}
		order, ok := execution.FromDecision(d, price)
		if !ok {
			return
		}
		if err := exec.Submit(order); err != nil {
			log.Warn().Err(err).Str("sym", order.Symbol).Msg("order rejected")
			return
		}
		if err := book.MarketFill(order.Symbol, order.Side, order.Qty, order.Price); err != nil {
			log.Warn().Err(err).Str("sym", order.Symbol).Msg("paper fill rejected")
			return
		}
		fills.Record(execution.Fill{Symbol: order.Symbol, Side: order.Side, Qty: order.Qty, Price: order.Price, Ts: d.Ts})
		eng.ApplyFill(order.Symbol, d.Action, order.Qty, order.Price, d.Ts)
		account.UpdateEquity(book.Equity(marks), d.Ts)
	}

	evalTicker := time.NewTicker(5 * time.Second)
	defer evalTicker.Stop()

	log.Info().Strs("symbols", cfg.Feed.Symbols).Str("mode", cfg.Feed.Mode).Msg("paper engine started")
	for {
		select {
		case <-ctx.Done():
			snap := book.Snapshot(marks)
			log.Info().Float64("equity", snap.Equity).Float64("realized_pnl", snap.RealizedPnL).Msg("shutting down")
			return
		case <-evalTicker.C:
			for sym := range marks {
				handle(eng.Evaluate(sym), marks[sym])
			}
		case ev := <-events:
			switch ev.Type {
			case signal.EventTrade:
				marks[ev.Trade.Symbol] = ev.Trade.Price
				d := eng.OnTrade(*ev.Trade)
				handle(d, ev.Trade.Price)
				account.UpdateEquity(book.Equity(marks), ev.Ts)
			case signal.EventQuote:
				eng.OnQuote(*ev.Quote)
			case signal.EventVolatility:
				eng.OnVolatility(*ev.Volatility)
			case signal.EventPositions:
				eng.OnPositions(ev.Positions, ev.Equity, ev.Ts)
			}
		}
	}
}
