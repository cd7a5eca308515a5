// Package strategy turns market snapshots into candidate order proposals.
// Strategies are pure signal generators: they never talk to the store or the
// notification channels, and a proposal is immutable once created.
package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"daytrader-api/pkg/market"
)

// Side is the order direction of a proposal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Proposal statuses, tracked separately from the risk decision.
const (
	StatusGenerated = "generated"
	StatusSent      = "sent"
	StatusApproved  = "approved"
	StatusCancelled = "cancelled"
)

// Proposal is a uniquely identified candidate order. Never mutated after
// creation; status transitions happen in the store, not on this value.
type Proposal struct {
	ID        string
	CreatedAt time.Time
	Strategy  string
	Symbol    string
	Side      Side
	Quantity  int
	Price     float64
	// Metadata carries the strategy-specific numbers behind the signal:
	// expected gain/loss, greeks, thresholds used.
	Metadata map[string]float64
}

// Notional is quantity times price.
func (p *Proposal) Notional() float64 {
	return float64(p.Quantity) * p.Price
}

// NewProposal stamps identity and creation time onto a candidate order.
func NewProposal(now time.Time, strategyName, symbol string, side Side, quantity int, price float64, metadata map[string]float64) Proposal {
	if metadata == nil {
		metadata = map[string]float64{}
	}
	return Proposal{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Strategy:  strategyName,
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Metadata:  metadata,
	}
}

// Strategy is the capability shared by all signal generators. Given an
// identical snapshot set and identical rolling history, two runs must produce
// identical proposals (IDs excluded).
type Strategy interface {
	Name() string
	Generate(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, error)
}
