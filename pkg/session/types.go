// Package session runs the intraday trading loop: phase tracking, market
// capture, proposal generation, risk gating, approval routing and the
// end-of-day close.
package session

import (
	"context"
	"errors"
	"time"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/risk"
	"daytrader-api/pkg/strategy"
)

// ErrInvalidTransition reports a status change that would move a proposal
// backwards. The store returns it wrapped; callers match with errors.Is.
var ErrInvalidTransition = errors.New("session: proposal transition not allowed")

// Execution is one simulated fill, strategy-driven or end-of-day.
type Execution struct {
	OrderID    string
	ProposalID string
	Symbol     string
	Side       string
	Quantity   int
	Price      float64
	Slippage   float64
	Commission float64
	Notional   float64
	Status     string
	TradeDate  string
	Reason     string
	// Greeks of one unit of the filled instrument, carried onto the
	// position so the portfolio exposure survives restarts.
	Greeks market.Greeks
}

// ClosedPosition reports one position flattened by the end-of-day close.
type ClosedPosition struct {
	Symbol      string
	Side        string
	Quantity    int
	AvgPrice    float64
	ClosePrice  float64
	RealizedPnL float64
}

// PerformanceSnapshot is one point-in-time reading of the book.
type PerformanceSnapshot struct {
	CapturedAt    time.Time
	NAV           float64
	PnL           float64
	OpenPositions int
	Delta         float64
	Gamma         float64
	Vega          float64
}

// ProposalStats counts one trading day's proposals by status.
type ProposalStats map[string]int

// PersistenceService is everything the orchestrator needs from the store.
type PersistenceService interface {
	SaveProposal(ctx context.Context, p strategy.Proposal) error
	// SaveRiskEvaluation records the gate verdict; exactly one row per
	// evaluate call, approvals included.
	SaveRiskEvaluation(ctx context.Context, ev risk.Evaluation) error
	MarkProposalStatus(ctx context.Context, proposalID, status string) error
	GetProposal(ctx context.Context, proposalID string) (strategy.Proposal, error)
	PendingApprovals(ctx context.Context) ([]string, error)
	DailyProposalStats(ctx context.Context, tradeDate string) (ProposalStats, error)

	SaveExecution(ctx context.Context, exec Execution) error
	ApplyFill(ctx context.Context, exec Execution) error
	// CloseOutPositions flattens the open book for the trading day.
	// Repeating the call for a day already closed is a no-op.
	CloseOutPositions(ctx context.Context, tradeDate string, closedAt time.Time, lastPrices map[string]float64) ([]ClosedPosition, error)
	// LastCloseDate reports the most recent day an end-of-day close ran,
	// empty when none has. Derived from durable executions.
	LastCloseDate(ctx context.Context) (string, error)

	RecordCapture(ctx context.Context, snap *market.Snapshot) error
	RecordPerformance(ctx context.Context, perf PerformanceSnapshot) error
	PortfolioView(ctx context.Context) (risk.Portfolio, error)
}
