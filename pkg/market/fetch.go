package market

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// BatchResult carries per-symbol outcomes of a batch fetch. Failures never
// suppress the successes: the orchestrator persists what arrived and logs the
// rest.
type BatchResult struct {
	Snapshots map[string]*Snapshot
	Chains    map[string][]OptionQuote
	Errors    map[string]error
}

// Failed reports whether every symbol in the batch failed.
func (r *BatchResult) Failed() bool {
	return len(r.Snapshots) == 0 && len(r.Errors) > 0
}

// FetchAll retrieves snapshots (and option chains, when withChains is set)
// for each symbol with an individual timeout so one stalled call cannot wedge
// the whole batch.
func FetchAll(ctx context.Context, p Provider, symbols []string, perSymbolTimeout time.Duration, withChains bool) *BatchResult {
	if perSymbolTimeout <= 0 {
		perSymbolTimeout = 8 * time.Second
	}
	res := &BatchResult{
		Snapshots: make(map[string]*Snapshot, len(symbols)),
		Chains:    make(map[string][]OptionQuote),
		Errors:    make(map[string]error),
	}
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			res.Errors[symbol] = ctx.Err()
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, perSymbolTimeout)
		snap, err := p.Snapshot(callCtx, symbol)
		cancel()
		if err != nil {
			logx.Errorf("market: snapshot %s failed: %v", symbol, err)
			res.Errors[symbol] = err
			continue
		}
		res.Snapshots[symbol] = snap

		if !withChains {
			continue
		}
		callCtx, cancel = context.WithTimeout(ctx, perSymbolTimeout)
		chain, err := p.OptionChain(callCtx, symbol)
		cancel()
		if err != nil {
			// A missing chain degrades the symbol to spot-only; it does not
			// discard the snapshot.
			logx.Errorf("market: option chain %s failed: %v", symbol, err)
			continue
		}
		if len(chain) > 0 {
			res.Chains[symbol] = chain
		}
	}
	return res
}
