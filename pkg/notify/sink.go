// Package notify delivers trading notifications to chat and email channels.
// Delivery is best-effort: a dead channel never blocks the trading loop.
package notify

import (
	"context"

	"daytrader-api/pkg/strategy"
)

// Priority decorates a message for the channel; it never changes routing.
type Priority string

const (
	PriorityInfo     Priority = "info"
	PriorityWarning  Priority = "warning"
	PriorityCritical Priority = "critical"
)

// Sink is a single notification channel.
type Sink interface {
	// Send delivers a plain titled message.
	Send(ctx context.Context, title, text string, priority Priority) error
	// SendProposalForApproval delivers a proposal with approve/cancel
	// actions keyed by the proposal ID. Channels without interactive
	// affordances render it as text.
	SendProposalForApproval(ctx context.Context, p strategy.Proposal) error
}

// Approval is a human verdict on a pending proposal, collected by a channel
// that supports callbacks.
type Approval struct {
	ProposalID string
	Approved   bool
}

// ApprovalSource is implemented by sinks that can collect human verdicts.
type ApprovalSource interface {
	// PollApprovals fetches verdicts issued since the previous call.
	PollApprovals(ctx context.Context) ([]Approval, error)
}
