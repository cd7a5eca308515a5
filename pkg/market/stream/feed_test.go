package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/market"
)

// tickServer accepts one websocket client, checks the subscription and then
// streams the given ticks until the test ends.
func tickServer(t *testing.T, ticks []map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Op      string   `json:"op"`
			Symbols []string `json:"symbols"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "subscribe", sub.Op)

		for i := 0; i < 200; i++ {
			for _, tk := range ticks {
				if err := conn.WriteJSON(tk); err != nil {
					return
				}
			}
			time.Sleep(5 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// awaitQuote polls the provider until the symbol has a quote or the deadline
// passes.
func awaitQuote(t *testing.T, p market.Provider, symbol string) *market.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := p.Snapshot(context.Background(), symbol)
		if err == nil {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no quote for %s before deadline", symbol)
	return nil
}

func TestSnapshotStartsFeedOnFirstUse(t *testing.T) {
	srv := tickServer(t, []map[string]any{
		{"symbol": "PETR4", "open": 25.0, "high": 25.6, "low": 24.8, "close": 25.1, "last": 25.4, "volume": 1000.0, "avg_volume": 900.0},
	})
	f := NewFeed(wsURL(srv), []string{"petr4"})

	// No explicit Start: the first Snapshot call brings the feed up.
	snap := awaitQuote(t, f, "PETR4")
	assert.Equal(t, "PETR4", snap.Symbol)
	assert.InDelta(t, 25.4, snap.Last, 1e-9)
	assert.Equal(t, market.SourceReal, snap.Source)
}

func TestBuiltProviderServesQuotesWithoutExplicitStart(t *testing.T) {
	srv := tickServer(t, []map[string]any{
		{"symbol": "PETR4", "last": 25.4, "volume": 1000.0, "avg_volume": 900.0},
		{"symbol": "VALE3", "last": 60.2, "volume": 500.0, "avg_volume": 450.0},
	})
	cfg := &market.Config{
		Default: "stream",
		Providers: map[string]*market.ProviderConfig{
			"stream": {Type: "stream", WSURL: wsURL(srv), Symbols: []string{"PETR4", "VALE3"}},
		},
	}
	require.NoError(t, cfg.Validate())
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	p := providers["stream"]
	require.NotNil(t, p)

	assert.InDelta(t, 25.4, awaitQuote(t, p, "PETR4").Last, 1e-9)
	assert.InDelta(t, 60.2, awaitQuote(t, p, "VALE3").Last, 1e-9)
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	srv := tickServer(t, []map[string]any{
		{"symbol": "PETR4", "last": 25.4},
	})
	f := NewFeed(wsURL(srv), []string{"PETR4"})
	awaitQuote(t, f, "PETR4")

	_, err := f.Snapshot(context.Background(), "VALE3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no quote yet")
}

func TestMalformedTicksAreDropped(t *testing.T) {
	srv := tickServer(t, []map[string]any{
		{"symbol": "", "last": 1.0},
		{"symbol": "PETR4", "last": -3.0},
		{"symbol": "PETR4", "last": 25.4},
	})
	f := NewFeed(wsURL(srv), []string{"PETR4"})

	snap := awaitQuote(t, f, "PETR4")
	assert.InDelta(t, 25.4, snap.Last, 1e-9)
}
