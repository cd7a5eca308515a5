// Package sim provides an in-memory market data provider for tests and paper
// sessions. Quotes are either scripted (SetSnapshot/SetChain) or derived from
// a seeded generator so repeated runs observe identical data.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"daytrader-api/pkg/market"
)

func init() {
	market.RegisterProvider("sim", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		p := New(cfg.Seed)
		for _, s := range cfg.Symbols {
			p.AddSymbol(s)
		}
		return p, nil
	})
}

// Provider is a deterministic market data simulator.
type Provider struct {
	mu sync.Mutex

	seed    int64
	symbols map[string]bool

	snapshots map[string]*market.Snapshot
	chains    map[string][]market.OptionQuote
	failures  map[string]error
}

// New constructs a simulator. The seed pins the generated price paths.
func New(seed int64) *Provider {
	return &Provider{
		seed:      seed,
		symbols:   make(map[string]bool),
		snapshots: make(map[string]*market.Snapshot),
		chains:    make(map[string][]market.OptionQuote),
		failures:  make(map[string]error),
	}
}

func canonical(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// AddSymbol registers a symbol in the simulated universe.
func (p *Provider) AddSymbol(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols[canonical(symbol)] = true
}

// SetSnapshot scripts the next snapshots returned for a symbol.
func (p *Provider) SetSnapshot(snap *market.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sym := canonical(snap.Symbol)
	p.symbols[sym] = true
	p.snapshots[sym] = snap
}

// SetChain scripts the option chain returned for an underlying.
func (p *Provider) SetChain(symbol string, chain []market.OptionQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sym := canonical(symbol)
	p.symbols[sym] = true
	p.chains[sym] = chain
}

// FailSymbol makes every fetch for one symbol return err until cleared with a
// nil err. Used to exercise partial-failure paths.
func (p *Provider) FailSymbol(symbol string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sym := canonical(symbol)
	if err == nil {
		delete(p.failures, sym)
		return
	}
	p.failures[sym] = err
}

func (p *Provider) baseFor(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return rand.New(rand.NewSource(p.seed ^ int64(h.Sum64())))
}

// Snapshot implements market.Provider. Generated quotes are a slow
// deterministic walk keyed by (seed, symbol, hour bucket).
func (p *Provider) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sym := canonical(symbol)
	if err, ok := p.failures[sym]; ok {
		return nil, err
	}
	if snap, ok := p.snapshots[sym]; ok {
		out := *snap
		out.CapturedAt = time.Now()
		out.Source = market.SourceSimulation
		return &out, nil
	}
	if !p.symbols[sym] {
		return nil, fmt.Errorf("sim: unknown symbol %s", sym)
	}

	rng := p.baseFor(sym)
	base := 10 + rng.Float64()*90
	bucket := time.Now().Unix() / 3600
	drift := math.Sin(float64(bucket%24)/24*2*math.Pi) * 0.01
	last := base * (1 + drift)
	return &market.Snapshot{
		Symbol:     sym,
		Open:       base,
		High:       math.Max(base, last) * 1.005,
		Low:        math.Min(base, last) * 0.995,
		Close:      base * 0.998,
		Last:       last,
		Volume:     1_000_000 + float64(rng.Intn(500_000)),
		AvgVolume:  1_000_000,
		CapturedAt: time.Now(),
		Source:     market.SourceSimulation,
	}, nil
}

// OptionChain implements market.Provider. Without a scripted chain it returns
// an empty slice.
func (p *Provider) OptionChain(ctx context.Context, symbol string) ([]market.OptionQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sym := canonical(symbol)
	if err, ok := p.failures[sym]; ok {
		return nil, err
	}
	chain := p.chains[sym]
	out := make([]market.OptionQuote, len(chain))
	copy(out, chain)
	return out, nil
}

// ListAssets implements market.Provider.
func (p *Provider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	assets := make([]market.Asset, 0, len(p.symbols))
	for sym := range p.symbols {
		assets = append(assets, market.Asset{Symbol: sym, Lot: 100, IsActive: true})
	}
	return assets, nil
}
