// Package execution turns buy/sell decisions into order submissions, with a
// per-symbol cooldown to keep the engine from machine-gunning one name.
package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"greenlight-go/internal/metrics"
	"greenlight-go/internal/signal"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a closing order.
	Sell Side = "SELL"
)

// Order represents a placement request the executor can process.
type Order struct {
	Symbol string
	Side   Side
	Qty    int
	Price  float64 // 0 for market (avoid in real life)
}

// Fill reports an executed order.
type Fill struct {
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Qty    int       `json:"qty"`
	Price  float64   `json:"price"`
	Ts     time.Time `json:"ts"`
}

// ErrCooldown is returned when a buy arrives inside the symbol's cooldown window.
var ErrCooldown = fmt.Errorf("symbol in cooldown")

// Executor implements a logger-backed submitter for orders.
type Executor struct {
	log      zerolog.Logger
	cooldown time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastBuy map[string]time.Time
}

// NewExecutor wraps a zerolog logger for order submissions. A zero cooldown
// disables the per-symbol rate limit.
func NewExecutor(log zerolog.Logger, cooldown time.Duration) *Executor {
	return &Executor{
		log:      log,
		cooldown: cooldown,
		now:      time.Now,
		lastBuy:  make(map[string]time.Time),
	}
}

// SetClock overrides the executor's time source.
func (executor *Executor) SetClock(now func() time.Time) { executor.now = now }

// FromDecision maps an actionable decision to an order. Holds map to nothing.
func FromDecision(d signal.Decision, price float64) (Order, bool) {
	switch d.Action {
	case signal.Buy:
		return Order{Symbol: d.Symbol, Side: Buy, Qty: d.Qty, Price: price}, true
	case signal.Sell:
		return Order{Symbol: d.Symbol, Side: Sell, Qty: d.Qty, Price: price}, true
	default:
		return Order{}, false
	}
}

// Submit logs the order request; wire real broker placement later. Buys are
// throttled per symbol, sells always go through.
func (executor *Executor) Submit(order Order) error {
	if order.Qty <= 0 {
		return fmt.Errorf("order qty must be positive, got %d", order.Qty)
	}
	if order.Side == Buy && executor.cooldown > 0 {
		executor.mu.Lock()
		last, ok := executor.lastBuy[order.Symbol]
		ts := executor.now()
		if ok && ts.Sub(last) < executor.cooldown {
			executor.mu.Unlock()
			return fmt.Errorf("%w: %s until %s", ErrCooldown, order.Symbol, last.Add(executor.cooldown).Format(time.RFC3339))
		}
		executor.lastBuy[order.Symbol] = ts
		executor.mu.Unlock()
	}
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	executor.log.Info().Str("sym", order.Symbol).Str("side", string(order.Side)).Int("qty", order.Qty).Float64("px", order.Price).Msg("submit order (paper)")
	// TODO: wire real REST placement via a broker connector
	return nil
}
