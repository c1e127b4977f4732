package micro

import (
	"sync"

	"greenlight-go/internal/signal"
)

type flowEntry struct {
	buyVol  float64
	sellVol float64
}

type flowBook struct {
	bid, ask  float64
	entries   []flowEntry
	buyTotal  float64
	sellTotal float64
}

// FlowTracker classifies tape prints against the last known bid/ask and keeps
// a bounded rolling imbalance per symbol. Safe for concurrent use.
type FlowTracker struct {
	mu       sync.Mutex
	capacity int
	books    map[string]*flowBook
}

// NewFlowTracker bounds each symbol's window to capacity classified trades.
func NewFlowTracker(capacity int) *FlowTracker {
	if capacity <= 0 {
		capacity = 100
	}
	return &FlowTracker{capacity: capacity, books: make(map[string]*flowBook)}
}

func (f *FlowTracker) book(symbol string) *flowBook {
	b, ok := f.books[symbol]
	if !ok {
		b = &flowBook{}
		f.books[symbol] = b
	}
	return b
}

// OnQuote refreshes the last bid/ask. Quotes never emit imbalance entries.
func (f *FlowTracker) OnQuote(symbol string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.book(symbol)
	b.bid, b.ask = bid, ask
}

// OnTrade classifies one print: aggressive buy at or above the ask, aggressive
// sell at or below the bid, otherwise by side of mid. Exact-mid prints and
// trades before any quote are ignored.
func (f *FlowTracker) OnTrade(symbol string, price, size float64) {
	if price <= 0 || size <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.book(symbol)
	if b.bid <= 0 || b.ask <= 0 {
		return
	}
	var e flowEntry
	switch {
	case price >= b.ask:
		e.buyVol = size
	case price <= b.bid:
		e.sellVol = size
	default:
		mid := (b.bid + b.ask) / 2
		switch {
		case price > mid:
			e.buyVol = size
		case price < mid:
			e.sellVol = size
		default:
			return
		}
	}
	b.entries = append(b.entries, e)
	b.buyTotal += e.buyVol
	b.sellTotal += e.sellVol
	if len(b.entries) > f.capacity {
		old := b.entries[0]
		b.entries = b.entries[1:]
		b.buyTotal -= old.buyVol
		b.sellTotal -= old.sellVol
	}
}

// Imbalance is (buy - sell)/(buy + sell) over the rolling window, in [-1, 1].
// Unavailable until at least one classified trade exists.
func (f *FlowTracker) Imbalance(symbol string) signal.Float {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[symbol]
	if !ok {
		return signal.None()
	}
	total := b.buyTotal + b.sellTotal
	if total <= 0 {
		return signal.None()
	}
	return signal.Some((b.buyTotal - b.sellTotal) / total)
}
