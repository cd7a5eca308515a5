package strategy

import (
	"context"
	"math"
	"time"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/market/indicators"
)

// FutMomentum runs a breakout rule on index-future symbols: a close above the
// rolling high band proposes a buy, below the rolling low band a sell, with
// an optional EMA trend filter.
type FutMomentum struct {
	cfg FutMomentumConfig

	closes map[string][]float64
}

// NewFutMomentum builds the variant from configuration.
func NewFutMomentum(cfg FutMomentumConfig) *FutMomentum {
	return &FutMomentum{cfg: cfg, closes: make(map[string][]float64)}
}

// Name implements Strategy.
func (f *FutMomentum) Name() string { return "fut_momentum" }

// Generate implements Strategy.
func (f *FutMomentum) Generate(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, error) {
	var out []Proposal
	for _, sym := range f.cfg.Symbols {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		snap, ok := snaps[sym]
		if !ok || snap.Last <= 0 {
			continue
		}

		prev := f.closes[sym]
		var rollHigh, rollLow float64
		if len(prev) >= f.cfg.Window {
			window := prev[len(prev)-f.cfg.Window:]
			rollHigh, rollLow = window[0], window[0]
			for _, v := range window {
				rollHigh = math.Max(rollHigh, v)
				rollLow = math.Min(rollLow, v)
			}
		}

		h := append(prev, snap.Last)
		if limit := f.cfg.Window * 3; len(h) > limit {
			h = h[len(h)-limit:]
		}
		f.closes[sym] = h

		if rollHigh == 0 && rollLow == 0 {
			continue
		}

		var side Side
		switch {
		case snap.Last > rollHigh:
			side = SideBuy
		case snap.Last < rollLow:
			side = SideSell
		default:
			continue
		}

		if f.cfg.EMAPeriod > 0 {
			ema := indicators.EMA(h, f.cfg.EMAPeriod)
			last := ema[len(ema)-1]
			if math.IsNaN(last) {
				continue
			}
			// Only break out in the direction of the trend.
			if (side == SideBuy && snap.Last < last) || (side == SideSell && snap.Last > last) {
				continue
			}
		}

		qty := lotQuantity(f.cfg.NotionalBRL, snap.Last)
		if qty <= 0 {
			continue
		}
		out = append(out, NewProposal(now, f.Name(), sym, side, qty, snap.Last, map[string]float64{
			"roll_high": rollHigh,
			"roll_low":  rollLow,
			"window":    float64(f.cfg.Window),
			"last":      snap.Last,
		}))
	}
	return out, nil
}
