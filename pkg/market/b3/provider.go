package b3

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"daytrader-api/pkg/market"
)

func init() {
	market.RegisterProvider("b3", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []Option{}
		if cfg.APIKey != "" {
			opts = append(opts, WithAPIKey(cfg.APIKey))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, WithMaxRetries(cfg.MaxRetries))
		}
		if cfg.RatePerSec > 0 && cfg.RateBurst > 0 {
			opts = append(opts, WithRateLimit(cfg.RatePerSec, cfg.RateBurst))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		client, err := NewClient(cfg.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return NewProvider(client), nil
	})
}

// Provider adapts the gateway client to the market.Provider interface.
type Provider struct {
	client *Client
}

// NewProvider wraps an existing client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

type quoteDoc struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Last      float64 `json:"last"`
	Volume    float64 `json:"volume"`
	AvgVolume float64 `json:"avg_volume"`
}

type optionDoc struct {
	Symbol       string  `json:"symbol"`
	Underlying   string  `json:"underlying"`
	Side         string  `json:"side"`
	Strike       float64 `json:"strike"`
	Expiry       string  `json:"expiry"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	ImpliedVol   float64 `json:"implied_vol"`
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Vega         float64 `json:"vega"`
	Theta        float64 `json:"theta"`
	OpenInterest float64 `json:"open_interest"`
}

type assetDoc struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Lot    int    `json:"lot"`
	Active bool   `json:"active"`
}

// Snapshot implements market.Provider.
func (p *Provider) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	var doc quoteDoc
	q := url.Values{"symbol": []string{symbol}}
	if err := p.client.get(ctx, "/v1/quotes", q, &doc); err != nil {
		return nil, err
	}
	if doc.Symbol == "" {
		doc.Symbol = symbol
	}
	if doc.Last <= 0 {
		return nil, fmt.Errorf("b3: empty quote for %s", symbol)
	}
	return &market.Snapshot{
		Symbol:     strings.ToUpper(doc.Symbol),
		Open:       doc.Open,
		High:       doc.High,
		Low:        doc.Low,
		Close:      doc.Close,
		Last:       doc.Last,
		Volume:     doc.Volume,
		AvgVolume:  doc.AvgVolume,
		CapturedAt: time.Now(),
		Source:     market.SourceReal,
	}, nil
}

// OptionChain implements market.Provider.
func (p *Provider) OptionChain(ctx context.Context, symbol string) ([]market.OptionQuote, error) {
	var docs []optionDoc
	q := url.Values{"underlying": []string{symbol}}
	if err := p.client.get(ctx, "/v1/options", q, &docs); err != nil {
		return nil, err
	}
	quotes := make([]market.OptionQuote, 0, len(docs))
	for _, d := range docs {
		expiry, err := time.Parse("2006-01-02", d.Expiry)
		if err != nil {
			// A malformed row degrades that entry only.
			continue
		}
		side := market.OptionCall
		if strings.EqualFold(d.Side, "put") {
			side = market.OptionPut
		}
		quotes = append(quotes, market.OptionQuote{
			Symbol:     strings.ToUpper(d.Symbol),
			Underlying: strings.ToUpper(d.Underlying),
			Side:       side,
			Strike:     d.Strike,
			Expiry:     expiry,
			Bid:        d.Bid,
			Ask:        d.Ask,
			Last:       d.Last,
			ImpliedVol: d.ImpliedVol,
			Greeks: market.Greeks{
				Delta: d.Delta,
				Gamma: d.Gamma,
				Vega:  d.Vega,
				Theta: d.Theta,
			},
			OpenInterest: d.OpenInterest,
		})
	}
	return quotes, nil
}

// ListAssets implements market.Provider.
func (p *Provider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	var docs []assetDoc
	if err := p.client.get(ctx, "/v1/assets", nil, &docs); err != nil {
		return nil, err
	}
	assets := make([]market.Asset, 0, len(docs))
	for _, d := range docs {
		assets = append(assets, market.Asset{
			Symbol:   strings.ToUpper(d.Symbol),
			Name:     d.Name,
			Lot:      d.Lot,
			IsActive: d.Active,
		})
	}
	return assets, nil
}
