package exchange

import (
	"encoding/json"
	"fmt"
	"time"

	"greenlight-go/internal/signal"
)

// wireEvent is the line format shared by the NDJSON and websocket feeds: one
// JSON object per event, discriminated by type.
type wireEvent struct {
	Type    string  `json:"type"`
	Symbol  string  `json:"symbol"`
	Ts      int64   `json:"ts"` // unix milliseconds
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Session string  `json:"session"`

	Return1m *float64 `json:"return_1m,omitempty"`
	Return5m *float64 `json:"return_5m,omitempty"`

	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`

	AnnualizedVol float64 `json:"annualized_vol_30d"`

	Equity    *float64                `json:"equity,omitempty"`
	Positions []signal.PositionUpdate `json:"positions,omitempty"`
}

func optional(p *float64) signal.Float {
	if p == nil {
		return signal.None()
	}
	return signal.Some(*p)
}

// parseEvent decodes one wire line into the engine's event envelope.
func parseEvent(line []byte) (signal.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return signal.Event{}, fmt.Errorf("decode event: %w", err)
	}
	ts := time.UnixMilli(w.Ts)
	switch w.Type {
	case signal.EventTrade:
		if w.Symbol == "" || w.Price <= 0 {
			return signal.Event{}, fmt.Errorf("trade event missing symbol or price")
		}
		return signal.Event{Type: w.Type, Ts: ts, Trade: &signal.Trade{
			Symbol:   w.Symbol,
			Price:    w.Price,
			Size:     w.Size,
			Session:  w.Session,
			Return1m: optional(w.Return1m),
			Return5m: optional(w.Return5m),
			Ts:       ts,
		}}, nil
	case signal.EventQuote:
		if w.Symbol == "" {
			return signal.Event{}, fmt.Errorf("quote event missing symbol")
		}
		return signal.Event{Type: w.Type, Ts: ts, Quote: &signal.Quote{
			Symbol: w.Symbol, Bid: w.Bid, Ask: w.Ask, Ts: ts,
		}}, nil
	case signal.EventVolatility:
		if w.Symbol == "" {
			return signal.Event{}, fmt.Errorf("volatility event missing symbol")
		}
		return signal.Event{Type: w.Type, Ts: ts, Volatility: &signal.Volatility{
			Symbol: w.Symbol, Annualized30d: w.AnnualizedVol, Ts: ts,
		}}, nil
	case signal.EventPositions:
		return signal.Event{Type: w.Type, Ts: ts, Positions: w.Positions, Equity: optional(w.Equity)}, nil
	default:
		return signal.Event{}, fmt.Errorf("unknown event type %q", w.Type)
	}
}
