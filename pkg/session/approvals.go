package session

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/notify"
	"daytrader-api/pkg/strategy"
)

// RunApprovalLoop polls human verdicts and moves sent proposals forward.
// Transitions are forward-only: a verdict for a proposal that already left
// the sent state is dropped with a log line.
func (o *Orchestrator) RunApprovalLoop(ctx context.Context, source notify.ApprovalSource) error {
	if source == nil {
		return errors.New("session: approval source required")
	}
	ticker := time.NewTicker(o.cfg.ApprovalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			approvals, err := source.PollApprovals(ctx)
			if err != nil {
				logx.Errorf("session: poll approvals: %v", err)
				continue
			}
			for _, a := range approvals {
				o.applyVerdict(ctx, a)
			}
		}
	}
}

func (o *Orchestrator) applyVerdict(ctx context.Context, a notify.Approval) {
	status := strategy.StatusCancelled
	if a.Approved {
		status = strategy.StatusApproved
	}
	if err := o.store.MarkProposalStatus(ctx, a.ProposalID, status); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			logx.Infof("session: verdict for %s ignored, proposal no longer pending", a.ProposalID)
			return
		}
		logx.Errorf("session: mark %s %s: %v", a.ProposalID, status, err)
		return
	}
	logx.Infof("session: proposal %s %s", a.ProposalID, status)

	if !a.Approved {
		return
	}
	if err := o.fillApproved(ctx, a.ProposalID); err != nil {
		logx.Errorf("session: fill %s: %v", a.ProposalID, err)
	}
}

// fillApproved simulates the execution of an approved proposal at its quoted
// price plus configured slippage and commission, then folds the fill into
// the open book.
func (o *Orchestrator) fillApproved(ctx context.Context, proposalID string) error {
	p, err := o.store.GetProposal(ctx, proposalID)
	if err != nil {
		return err
	}

	price := p.Price
	slippage := price * o.cfg.SlippageRate
	if p.Side == strategy.SideBuy {
		price += slippage
	} else {
		price -= slippage
	}
	notional := float64(p.Quantity) * price
	now := o.now().In(o.clock.Location())

	return o.store.ApplyFill(ctx, Execution{
		ProposalID: p.ID,
		Symbol:     p.Symbol,
		Side:       string(p.Side),
		Quantity:   p.Quantity,
		Price:      price,
		Slippage:   slippage,
		Commission: notional * o.cfg.CommissionRate,
		Notional:   notional,
		Status:     "filled",
		TradeDate:  o.clock.TradingDate(now),
		Reason:     "fill",
		Greeks: market.Greeks{
			Delta: p.Metadata["option_delta"],
			Gamma: p.Metadata["option_gamma"],
			Vega:  p.Metadata["option_vega"],
		},
	})
}
