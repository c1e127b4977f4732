package exchange

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"greenlight-go/internal/signal"
)

// runWebsocket consumes the event stream over a websocket, reconnecting with
// exponential backoff on failures.
func (f *Feed) runWebsocket(ctx context.Context, out chan<- signal.Event) error {
	if f.url == "" {
		return fmt.Errorf("websocket feed requires a url")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeStream(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("event feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeStream(ctx context.Context, out chan<- signal.Event) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("url", f.url).Strs("symbols", f.snapshotSymbols()).Msg("connected market event feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := parseEvent(message)
		if err != nil {
			f.log.Warn().Err(err).Msg("failed to decode feed message")
			continue
		}
		if sym := eventSymbol(ev); sym != "" && !f.tracked(sym) {
			continue
		}
		if err := f.emit(ctx, out, ev); err != nil {
			return err
		}
	}
}
