// Package exchange hosts market-event sources: a deterministic stub, an
// NDJSON stream reader, and a websocket client.
package exchange

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"greenlight-go/internal/metrics"
	"greenlight-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic events (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderNDJSON reads line-delimited events from a file or stdin.
	ProviderNDJSON = "ndjson"
	// ProviderWebsocket streams events from a websocket endpoint.
	ProviderWebsocket = "websocket"
)

// Feed represents a pluggable market event stream implementation.
type Feed struct {
	provider string
	symbols  []string
	log      zerolog.Logger
	path     string
	url      string
	reader   io.Reader
	interval time.Duration
	mu       sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const defaultStubInterval = 500 * time.Millisecond

// WithPath points the NDJSON provider at a capture file; empty means stdin.
func WithPath(path string) Option {
	return func(f *Feed) { f.path = path }
}

// WithURL sets the websocket endpoint.
func WithURL(url string) Option {
	return func(f *Feed) { f.url = url }
}

// WithReader overrides the NDJSON input stream directly.
func WithReader(r io.Reader) Option {
	return func(f *Feed) { f.reader = r }
}

// WithStubInterval overrides the synthetic tick cadence.
func WithStubInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		log:      log,
		interval: defaultStubInterval,
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSymbols replaces the tracked symbol list (deduplicated, sorted for determinism).
func (f *Feed) SetSymbols(symbols []string) {
	f.setSymbols(symbols)
}

func (f *Feed) setSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// tracked reports whether a symbol passes the filter; an empty list means all.
func (f *Feed) tracked(symbol string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.symbols) == 0 {
		return true
	}
	for _, s := range f.symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Run pushes events onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Event) error {
	switch f.provider {
	case ProviderNDJSON:
		return f.runNDJSON(ctx, out)
	case ProviderWebsocket:
		return f.runWebsocket(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) emit(ctx context.Context, out chan<- signal.Event, ev signal.Event) error {
	select {
	case out <- ev:
		metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runStub synthesizes a gently oscillating tape with quotes, so the full
// pipeline can run offline with no upstream.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.Event) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var step int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			step++
			px := 100 + 2*math.Sin(float64(step)/10)
			for _, s := range f.snapshotSymbols() {
				quote := signal.Event{Type: signal.EventQuote, Ts: ts, Quote: &signal.Quote{
					Symbol: s, Bid: px - 0.01, Ask: px + 0.01, Ts: ts,
				}}
				if err := f.emit(ctx, out, quote); err != nil {
					return err
				}
				trade := signal.Event{Type: signal.EventTrade, Ts: ts, Trade: &signal.Trade{
					Symbol: s, Price: px, Size: 100, Session: "regular", Ts: ts,
				}}
				if err := f.emit(ctx, out, trade); err != nil {
					return err
				}
			}
		}
	}
}

func (f *Feed) runNDJSON(ctx context.Context, out chan<- signal.Event) error {
	r := f.reader
	if r == nil {
		if f.path == "" {
			r = os.Stdin
		} else {
			file, err := os.Open(f.path)
			if err != nil {
				return err
			}
			defer file.Close()
			r = file
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := parseEvent([]byte(line))
		if err != nil {
			f.log.Warn().Err(err).Msg("skipping malformed event line")
			continue
		}
		if sym := eventSymbol(ev); sym != "" && !f.tracked(sym) {
			continue
		}
		if err := f.emit(ctx, out, ev); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func eventSymbol(ev signal.Event) string {
	switch {
	case ev.Trade != nil:
		return ev.Trade.Symbol
	case ev.Quote != nil:
		return ev.Quote.Symbol
	case ev.Volatility != nil:
		return ev.Volatility.Symbol
	default:
		return ""
	}
}
