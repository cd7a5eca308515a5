// Package stream implements a market provider backed by a websocket
// last-trade feed. The feed keeps an in-memory quote cache that Snapshot
// consults, so decision iterations never block on the socket.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/market"
)

func init() {
	market.RegisterProvider("stream", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		if cfg.WSURL == "" {
			return nil, fmt.Errorf("stream provider %s: ws_url is required", name)
		}
		f := NewFeed(cfg.WSURL, cfg.Symbols)
		return f, nil
	})
}

const (
	readTimeout      = 60 * time.Second
	writeTimeout     = 10 * time.Second
	reconnectBackoff = 2 * time.Second
	maxReconnectWait = time.Minute
	staleAfter       = 5 * time.Minute
)

// tick is the wire format of one feed message.
type tick struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Last      float64 `json:"last"`
	Volume    float64 `json:"volume"`
	AvgVolume float64 `json:"avg_volume"`
}

// Feed maintains the websocket connection and the latest quote per symbol.
type Feed struct {
	url     string
	symbols []string

	mu     sync.RWMutex
	quotes map[string]*market.Snapshot

	startOnce sync.Once
}

// NewFeed constructs a feed for the given subscription list.
func NewFeed(url string, symbols []string) *Feed {
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm = append(norm, strings.ToUpper(strings.TrimSpace(s)))
	}
	return &Feed{
		url:     url,
		symbols: norm,
		quotes:  make(map[string]*market.Snapshot),
	}
}

// Start launches the connect/read loop. Safe to call more than once. The
// first Snapshot call starts the feed implicitly, so an explicit Start is
// only needed to warm the cache ahead of the first iteration.
func (f *Feed) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		go f.run(ctx)
	})
}

func (f *Feed) run(ctx context.Context) {
	backoff := reconnectBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		logx.Errorf("stream: connection lost: %v, reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("stream: dial %s: %w", f.url, err)
	}
	defer conn.Close()

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]any{"op": "subscribe", "symbols": f.symbols}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("stream: subscribe: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var t tick
		if err := json.Unmarshal(payload, &t); err != nil {
			logx.Errorf("stream: drop malformed tick: %v", err)
			continue
		}
		if t.Symbol == "" || t.Last <= 0 {
			continue
		}
		f.mu.Lock()
		f.quotes[strings.ToUpper(t.Symbol)] = &market.Snapshot{
			Symbol:     strings.ToUpper(t.Symbol),
			Open:       t.Open,
			High:       t.High,
			Low:        t.Low,
			Close:      t.Close,
			Last:       t.Last,
			Volume:     t.Volume,
			AvgVolume:  t.AvgVolume,
			CapturedAt: time.Now(),
			Source:     market.SourceReal,
		}
		f.mu.Unlock()
	}
}

// Snapshot implements market.Provider from the quote cache. A symbol that has
// never ticked, or whose quote has gone stale, is an error so callers can
// fall back or skip it.
func (f *Feed) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Lazy start: the feed outlives any single request, so the read loop
	// runs under its own context rather than the caller's.
	f.Start(context.Background())
	f.mu.RLock()
	snap, ok := f.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stream: no quote yet for %s", symbol)
	}
	if time.Since(snap.CapturedAt) > staleAfter {
		return nil, fmt.Errorf("stream: quote for %s stale since %s", symbol, snap.CapturedAt.Format(time.RFC3339))
	}
	out := *snap
	return &out, nil
}

// OptionChain implements market.Provider. The feed carries spot ticks only.
func (f *Feed) OptionChain(ctx context.Context, symbol string) ([]market.OptionQuote, error) {
	return nil, nil
}

// ListAssets implements market.Provider.
func (f *Feed) ListAssets(ctx context.Context) ([]market.Asset, error) {
	assets := make([]market.Asset, 0, len(f.symbols))
	for _, s := range f.symbols {
		assets = append(assets, market.Asset{Symbol: s, Lot: 100, IsActive: true})
	}
	return assets, nil
}
