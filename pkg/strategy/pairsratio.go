package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/market/indicators"
)

// PairsRatio watches the price ratio of configured pairs over a bounded
// trailing window and proposes the reversion legs when the ratio's z-score
// leaves the entry band.
type PairsRatio struct {
	cfg PairsRatioConfig

	// ratio history per pair key, capped at cfg.Window
	ratios map[string][]float64
}

// NewPairsRatio builds the variant from configuration.
func NewPairsRatio(cfg PairsRatioConfig) *PairsRatio {
	return &PairsRatio{cfg: cfg, ratios: make(map[string][]float64)}
}

// Name implements Strategy.
func (p *PairsRatio) Name() string { return "pairs_ratio" }

func pairKey(pair PairConfig) string { return pair.Long + "/" + pair.Short }

// Generate implements Strategy.
func (p *PairsRatio) Generate(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, error) {
	var out []Proposal
	for _, pair := range p.cfg.Pairs {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		longSnap, okL := snaps[pair.Long]
		shortSnap, okS := snaps[pair.Short]
		if !okL || !okS {
			continue
		}
		if longSnap.Last <= 0 || shortSnap.Last <= 0 {
			return out, fmt.Errorf("pairs_ratio: non-positive price for %s", pairKey(pair))
		}

		key := pairKey(pair)
		h := append(p.ratios[key], longSnap.Last/shortSnap.Last)
		if len(h) > p.cfg.Window {
			h = h[len(h)-p.cfg.Window:]
		}
		p.ratios[key] = h

		// Require a full window before trusting the z-score.
		if len(h) < p.cfg.Window {
			continue
		}
		z := indicators.ZScore(h)
		if math.IsNaN(z) || math.Abs(z) < p.cfg.EntryZ {
			continue
		}

		// Ratio stretched high: the long leg is rich relative to the short
		// leg, so sell it and buy the other.
		richSnap, cheapSnap := longSnap, shortSnap
		if z < 0 {
			richSnap, cheapSnap = shortSnap, longSnap
		}
		meta := map[string]float64{
			"zscore":  z,
			"entry_z": p.cfg.EntryZ,
			"window":  float64(p.cfg.Window),
			"ratio":   h[len(h)-1],
		}
		if qty := lotQuantity(p.cfg.NotionalBRL, richSnap.Last); qty > 0 {
			out = append(out, NewProposal(now, p.Name(), richSnap.Symbol, SideSell, qty, richSnap.Last, meta))
		}
		if qty := lotQuantity(p.cfg.NotionalBRL, cheapSnap.Last); qty > 0 {
			out = append(out, NewProposal(now, p.Name(), cheapSnap.Symbol, SideBuy, qty, cheapSnap.Last, meta))
		}
	}
	return out, nil
}
