package notify

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/strategy"
)

// Multi fans a message out to every configured sink. A failing channel is
// logged and skipped, so one dead webhook never silences the rest.
type Multi struct {
	sinks []Sink
}

// NewMulti builds a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Send delivers to all sinks, always returning nil.
func (m *Multi) Send(ctx context.Context, title, text string, priority Priority) error {
	for _, s := range m.sinks {
		if err := s.Send(ctx, title, text, priority); err != nil {
			logx.Errorf("notify: send %q failed on %T: %v", title, s, err)
		}
	}
	return nil
}

// SendProposalForApproval delivers to all sinks, always returning nil.
func (m *Multi) SendProposalForApproval(ctx context.Context, p strategy.Proposal) error {
	for _, s := range m.sinks {
		if err := s.SendProposalForApproval(ctx, p); err != nil {
			logx.Errorf("notify: proposal %s failed on %T: %v", p.ID, s, err)
		}
	}
	return nil
}

// PollApprovals drains verdicts from every sink that can collect them.
func (m *Multi) PollApprovals(ctx context.Context) ([]Approval, error) {
	var out []Approval
	for _, s := range m.sinks {
		src, ok := s.(ApprovalSource)
		if !ok {
			continue
		}
		approvals, err := src.PollApprovals(ctx)
		if err != nil {
			logx.Errorf("notify: poll approvals failed on %T: %v", s, err)
			continue
		}
		out = append(out, approvals...)
	}
	return out, nil
}
