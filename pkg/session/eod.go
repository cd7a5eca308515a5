package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/notify"
)

// runEOD flattens the open book once per trading day. The in-memory marker
// only saves round trips; the durable guarantee is the partial unique index
// behind CloseOutPositions, which also covers restarts inside the window.
func (o *Orchestrator) runEOD(ctx context.Context, now time.Time) ([]ClosedPosition, error) {
	date := o.clock.TradingDate(now)
	if o.lastEODDate == date {
		return nil, nil
	}

	closed, err := o.store.CloseOutPositions(ctx, date, now, o.lastPrices)
	if err != nil {
		return closed, fmt.Errorf("eod close %s: %w", date, err)
	}
	o.lastEODDate = date
	logx.Infof("session: eod close %s flattened %d positions", date, len(closed))

	// Post-close analysis runs even on zero-position days.
	o.sendEODReport(ctx, date, closed)
	return closed, nil
}

func (o *Orchestrator) sendEODReport(ctx context.Context, date string, closed []ClosedPosition) {
	var b strings.Builder
	fmt.Fprintf(&b, "End of day %s\n", date)

	if len(closed) == 0 {
		b.WriteString("No positions to close.\n")
	} else {
		var realized float64
		for _, c := range closed {
			realized += c.RealizedPnL
			fmt.Fprintf(&b, "%s %s x%d: %.2f -> %.2f (%+.2f)\n",
				c.Symbol, c.Side, c.Quantity, c.AvgPrice, c.ClosePrice, c.RealizedPnL)
		}
		fmt.Fprintf(&b, "Realized PnL: %+.2f\n", realized)
	}

	if stats, err := o.store.DailyProposalStats(ctx, date); err != nil {
		logx.Errorf("session: eod stats %s: %v", date, err)
	} else {
		fmt.Fprintf(&b, "Proposals: %d generated, %d sent, %d approved, %d cancelled",
			stats["generated"]+stats["sent"]+stats["approved"]+stats["cancelled"],
			stats["sent"]+stats["approved"]+stats["cancelled"],
			stats["approved"], stats["cancelled"])
	}

	if err := o.sink.Send(ctx, "End-of-day close", b.String(), notify.PriorityInfo); err != nil {
		logx.Errorf("session: eod report %s: %v", date, err)
	}
}
