package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"intraday-trader/internal/models"
	"intraday-trader/pkg/utils"
)

// wsBar is the wire format for one bar update. Messages without a type
// field are treated as bars.
type wsBar struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"` // unix seconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// wsQuote is the wire format for one quote update.
type wsQuote struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
}

// wsEnvelope carries only the message discriminator.
type wsEnvelope struct {
	Type string `json:"type"`
}

type wsSubscribe struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// WSFeed is a websocket bar feed with automatic reconnect and
// resubscription.
type WSFeed struct {
	url    string
	logger zerolog.Logger
	retry  utils.RetryConfig

	bars   chan models.Bar
	quotes chan models.Quote

	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed []string
	closed     bool
}

// NewWSFeed creates a websocket feed client for the given URL.
func NewWSFeed(url string, retry utils.RetryConfig, logger zerolog.Logger) *WSFeed {
	return &WSFeed{
		url:    url,
		logger: logger.With().Str("component", "ws_feed").Logger(),
		retry:  retry,
		bars:   make(chan models.Bar, 256),
		quotes: make(chan models.Quote, 256),
	}
}

// Bars returns the channel of incoming bar updates.
func (f *WSFeed) Bars() <-chan models.Bar {
	return f.bars
}

// Quotes returns the channel of incoming quote updates.
func (f *WSFeed) Quotes() <-chan models.Quote {
	return f.quotes
}

// Subscribe records the symbol set and, when connected, sends the
// subscription frame. The set is replayed after every reconnect.
func (f *WSFeed) Subscribe(symbols []string) error {
	f.mu.Lock()
	f.subscribed = append([]string(nil), symbols...)
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.WriteJSON(wsSubscribe{Action: "subscribe", Symbols: symbols})
}

// Run connects and pumps bars until the context is cancelled or Close is
// called. Transient connection failures are retried with bounded backoff;
// when the retry budget is exhausted Run returns the last error.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := f.connect(ctx)
		if err != nil {
			return fmt.Errorf("connecting feed: %w", err)
		}

		err = f.pump(ctx, conn)
		f.mu.Lock()
		closed := f.closed
		f.conn = nil
		f.mu.Unlock()

		if closed || ctx.Err() != nil {
			return nil
		}
		f.logger.Warn().Err(err).Msg("feed disconnected, reconnecting")
	}
}

func (f *WSFeed) connect(ctx context.Context) (*websocket.Conn, error) {
	return utils.RetryWithResult(ctx, f.retry, func() (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.url, nil)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		f.conn = conn
		symbols := append([]string(nil), f.subscribed...)
		f.mu.Unlock()

		if len(symbols) > 0 {
			if err := conn.WriteJSON(wsSubscribe{Action: "subscribe", Symbols: symbols}); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	})
}

func (f *WSFeed) pump(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env wsEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			f.logger.Debug().Err(err).Msg("dropping malformed feed message")
			continue
		}

		switch env.Type {
		case "quote":
			var wq wsQuote
			if err := json.Unmarshal(payload, &wq); err != nil {
				f.logger.Debug().Err(err).Msg("dropping malformed quote message")
				continue
			}
			quote := models.Quote{
				Symbol:    wq.Symbol,
				Timestamp: time.Unix(wq.Timestamp, 0),
				Bid:       wq.Bid,
				Ask:       wq.Ask,
				Last:      wq.Last,
			}
			select {
			case f.quotes <- quote:
			case <-ctx.Done():
				return ctx.Err()
			default:
				f.logger.Warn().Str("symbol", quote.Symbol).Msg("quote channel full, dropping quote")
			}
		default:
			var wb wsBar
			if err := json.Unmarshal(payload, &wb); err != nil {
				f.logger.Debug().Err(err).Msg("dropping malformed feed message")
				continue
			}
			bar := models.Bar{
				Symbol:    wb.Symbol,
				Timestamp: time.Unix(wb.Timestamp, 0),
				Open:      wb.Open,
				High:      wb.High,
				Low:       wb.Low,
				Close:     wb.Close,
				Volume:    wb.Volume,
			}
			select {
			case f.bars <- bar:
			case <-ctx.Done():
				return ctx.Err()
			default:
				f.logger.Warn().Str("symbol", bar.Symbol).Msg("bar channel full, dropping bar")
			}
		}
	}
}

// Close shuts the feed down.
func (f *WSFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
