package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/market"
)

// Engine dispatches a snapshot set across the registered strategies. No
// strategy may block or fail the others: errors and panics are contained per
// strategy and reported through the result.
type Engine struct {
	strategies  []Strategy
	maxPerCycle int
	allowlist   map[string]bool
}

// NewEngine builds an engine over the supplied strategies. The allow-list is
// the configured instrument universe; proposals for symbols outside it are
// dropped after generation.
func NewEngine(strategies []Strategy, maxPerCycle int, universe []string) *Engine {
	if maxPerCycle <= 0 {
		maxPerCycle = 50
	}
	allow := make(map[string]bool, len(universe))
	for _, s := range universe {
		allow[s] = true
	}
	return &Engine{strategies: strategies, maxPerCycle: maxPerCycle, allowlist: allow}
}

// FromConfig assembles the enabled strategy set from configuration.
func FromConfig(cfg *Config) *Engine {
	var strategies []Strategy
	if cfg.IsEnabled("momentum") {
		strategies = append(strategies, NewMomentum(cfg.Momentum))
	}
	if cfg.IsEnabled("vol_mispricing") {
		strategies = append(strategies, NewVolMispricing(cfg.VolMispricing))
	}
	if cfg.IsEnabled("pairs_ratio") {
		strategies = append(strategies, NewPairsRatio(cfg.PairsRatio))
	}
	if cfg.IsEnabled("fut_momentum") {
		strategies = append(strategies, NewFutMomentum(cfg.FutMomentum))
	}
	return NewEngine(strategies, cfg.MaxPerCycle, cfg.Universe)
}

// Strategies exposes the dispatch list, in registration order.
func (e *Engine) Strategies() []Strategy { return e.strategies }

// Run invokes every strategy over the snapshot set and returns the combined,
// bounded, allow-listed proposal slice. Per-strategy failures are collected,
// never propagated to siblings.
func (e *Engine) Run(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, map[string]error) {
	var combined []Proposal
	failures := make(map[string]error)

	for _, s := range e.strategies {
		proposals, err := e.runOne(ctx, s, now, snaps, chains)
		if err != nil {
			logx.Errorf("strategy %s failed: %v", s.Name(), err)
			failures[s.Name()] = err
			continue
		}
		combined = append(combined, proposals...)
	}

	filtered := combined[:0]
	for _, p := range combined {
		if !e.allowlist[p.Symbol] {
			logx.Infof("strategy %s proposed %s outside the universe, dropped", p.Strategy, p.Symbol)
			continue
		}
		filtered = append(filtered, p)
	}

	// Stable order before capping keeps the bounded set deterministic.
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Strategy != filtered[j].Strategy {
			return filtered[i].Strategy < filtered[j].Strategy
		}
		return filtered[i].Symbol < filtered[j].Symbol
	})
	if len(filtered) > e.maxPerCycle {
		logx.Infof("strategy engine capped %d proposals to %d", len(filtered), e.maxPerCycle)
		filtered = filtered[:e.maxPerCycle]
	}
	return filtered, failures
}

func (e *Engine) runOne(ctx context.Context, s Strategy, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) (proposals []Proposal, err error) {
	defer func() {
		if r := recover(); r != nil {
			proposals = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Generate(ctx, now, snaps, chains)
}
