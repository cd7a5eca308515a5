package strategy

import (
	"context"
	"math"
	"sort"
	"time"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/market/indicators"
)

// Momentum is the options-daytrade variant: a strong intraday move on heavy
// volume in the underlying selects liquid near-expiry options with delta
// inside the configured band.
type Momentum struct {
	cfg MomentumConfig

	// rolling last-price history per symbol for the RSI guard
	history map[string][]float64
}

// NewMomentum builds the momentum strategy from configuration.
func NewMomentum(cfg MomentumConfig) *Momentum {
	return &Momentum{cfg: cfg, history: make(map[string][]float64)}
}

// Name implements Strategy.
func (m *Momentum) Name() string { return "momentum" }

const momentumHistoryCap = 64

// Generate implements Strategy.
func (m *Momentum) Generate(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, error) {
	symbols := sortedKeys(snaps)
	var out []Proposal
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		snap := snaps[sym]
		m.record(sym, snap.Last)

		ret := snap.IntradayReturn()
		if math.Abs(ret) < m.cfg.MinReturn {
			continue
		}
		if snap.VolumeRatio() < m.cfg.MinVolumeRatio {
			continue
		}
		if m.cfg.MaxRSI > 0 && ret > 0 {
			series := m.history[sym]
			rsi := indicators.RSI(series, 14)
			if len(rsi) > 0 {
				last := rsi[len(rsi)-1]
				if !math.IsNaN(last) && last > m.cfg.MaxRSI {
					continue
				}
			}
		}

		wantSide := market.OptionCall
		if ret < 0 {
			wantSide = market.OptionPut
		}
		quote, ok := m.pickOption(now, chains[sym], wantSide)
		if !ok {
			continue
		}
		price := quote.Mid()
		if price <= 0 {
			continue
		}
		qty := lotQuantity(m.cfg.NotionalBRL, price)
		if qty <= 0 {
			continue
		}
		out = append(out, NewProposal(now, m.Name(), sym, SideBuy, qty, price, map[string]float64{
			"underlying_return": ret,
			"volume_ratio":      snap.VolumeRatio(),
			"min_return":        m.cfg.MinReturn,
			"min_volume_ratio":  m.cfg.MinVolumeRatio,
			"option_delta":      quote.Greeks.Delta,
			"option_vega":       quote.Greeks.Vega,
			"implied_vol":       quote.ImpliedVol,
			"expected_gain":     math.Abs(ret) * quote.Greeks.Delta * snap.Last * float64(qty),
		}))
	}
	return out, nil
}

func (m *Momentum) record(symbol string, last float64) {
	h := append(m.history[symbol], last)
	if len(h) > momentumHistoryCap {
		h = h[len(h)-momentumHistoryCap:]
	}
	m.history[symbol] = h
}

// pickOption selects the most liquid chain entry matching side, delta band,
// spread and expiry constraints. Deterministic: ties break on symbol.
func (m *Momentum) pickOption(now time.Time, chain []market.OptionQuote, side market.OptionSide) (market.OptionQuote, bool) {
	var best market.OptionQuote
	found := false
	for _, q := range chain {
		if q.Side != side {
			continue
		}
		delta := math.Abs(q.Greeks.Delta)
		if delta < m.cfg.MinDelta || delta > m.cfg.MaxDelta {
			continue
		}
		if m.cfg.MaxSpreadRatio > 0 && q.SpreadRatio() > m.cfg.MaxSpreadRatio {
			continue
		}
		dte := q.DaysToExpiry(now)
		if dte < m.cfg.MinDaysToExp || (m.cfg.MaxDaysToExp > 0 && dte > m.cfg.MaxDaysToExp) {
			continue
		}
		if !found || q.OpenInterest > best.OpenInterest ||
			(q.OpenInterest == best.OpenInterest && q.Symbol < best.Symbol) {
			best = q
			found = true
		}
	}
	return best, found
}

func sortedKeys(snaps map[string]*market.Snapshot) []string {
	keys := make([]string, 0, len(snaps))
	for k := range snaps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lotQuantity converts a target notional into a round-lot contract count.
func lotQuantity(notional, price float64) int {
	if notional <= 0 || price <= 0 {
		return 0
	}
	lots := int(notional / price / 100)
	return lots * 100
}
