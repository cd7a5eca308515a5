package strategy

import (
	"context"
	"math"
	"time"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/market/indicators"
)

// VolMispricing trades the gap between an option's implied volatility and
// the realized volatility of its underlying: implied rich beyond the edge
// proposes a sell, implied cheap proposes a buy.
type VolMispricing struct {
	cfg VolMispricingConfig

	closes map[string][]float64
}

// NewVolMispricing builds the variant from configuration.
func NewVolMispricing(cfg VolMispricingConfig) *VolMispricing {
	return &VolMispricing{cfg: cfg, closes: make(map[string][]float64)}
}

// Name implements Strategy.
func (v *VolMispricing) Name() string { return "vol_mispricing" }

const volHistoryCap = 64

// Generate implements Strategy.
func (v *VolMispricing) Generate(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, error) {
	var out []Proposal
	for _, sym := range sortedKeys(snaps) {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		snap := snaps[sym]
		h := append(v.closes[sym], snap.Last)
		if len(h) > volHistoryCap {
			h = h[len(h)-volHistoryCap:]
		}
		v.closes[sym] = h

		realized := indicators.RealizedVol(h, 252)
		if math.IsNaN(realized) {
			continue
		}

		for _, q := range chains[sym] {
			if q.ImpliedVol <= 0 {
				continue
			}
			if v.cfg.MaxSpreadRatio > 0 && q.SpreadRatio() > v.cfg.MaxSpreadRatio {
				continue
			}
			dte := q.DaysToExpiry(now)
			if dte < v.cfg.MinDaysToExp || (v.cfg.MaxDaysToExp > 0 && dte > v.cfg.MaxDaysToExp) {
				continue
			}
			edge := q.ImpliedVol - realized
			if math.Abs(edge) < v.cfg.MinEdge {
				continue
			}
			price := q.Mid()
			if price <= 0 {
				continue
			}
			qty := lotQuantity(v.cfg.NotionalBRL, price)
			if qty <= 0 {
				continue
			}
			side := SideBuy
			if edge > 0 {
				// Implied above realized: the option is rich.
				side = SideSell
			}
			out = append(out, NewProposal(now, v.Name(), sym, side, qty, price, map[string]float64{
				"implied_vol":   q.ImpliedVol,
				"realized_vol":  realized,
				"edge":          edge,
				"min_edge":      v.cfg.MinEdge,
				"option_delta":  q.Greeks.Delta,
				"option_vega":   q.Greeks.Vega,
				"expected_gain": math.Abs(edge) * q.Greeks.Vega * float64(qty),
			}))
			// One proposal per underlying per cycle keeps exposure tame.
			break
		}
	}
	return out, nil
}
