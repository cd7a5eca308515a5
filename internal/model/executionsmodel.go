package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Execution close reasons.
const (
	ExecutionReasonFill     = "fill"
	ExecutionReasonEODClose = "eod_close"
)

// ErrDuplicateEODClose reports an end-of-day close that already ran for the
// same symbol, side and trading day. Postgres enforces it through a unique
// partial index, so the guarantee survives restarts and concurrent writers.
var ErrDuplicateEODClose = errors.New("executions: eod close already recorded")

var _ ExecutionsModel = (*customExecutionsModel)(nil)

// Executions maps one row of public.executions.
type Executions struct {
	OrderId    string         `db:"order_id"`
	ProposalId sql.NullString `db:"proposal_id"`
	Symbol     string         `db:"symbol"`
	Side       string         `db:"side"`
	Quantity   int64          `db:"quantity"`
	Price      float64        `db:"price"`
	Slippage   float64        `db:"slippage"`
	Commission float64        `db:"commission"`
	Notional   float64        `db:"notional"`
	Status     string         `db:"status"`
	TradeDate  string         `db:"trade_date"`
	Reason     string         `db:"reason"`
}

// ExecutionRecord is the nullable-safe view.
type ExecutionRecord struct {
	OrderID    string
	ProposalID *string
	Symbol     string
	Side       string
	Quantity   int64
	Price      float64
	Slippage   float64
	Commission float64
	Notional   float64
	Status     string
	TradeDate  string
	Reason     string
}

type (
	ExecutionsModel interface {
		Insert(ctx context.Context, data *Executions) error
		ListByTradeDate(ctx context.Context, tradeDate string) ([]ExecutionRecord, error)
		LastEODCloseDate(ctx context.Context) (string, error)
	}

	defaultExecutionsModel struct {
		sqlc.CachedConn
		table string
	}

	customExecutionsModel struct {
		*defaultExecutionsModel
	}
)

// NewExecutionsModel returns a model for the executions table.
func NewExecutionsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) ExecutionsModel {
	return &customExecutionsModel{
		defaultExecutionsModel: &defaultExecutionsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "public.executions",
		},
	}
}

// Insert writes one execution. A duplicate end-of-day close trips the
// partial unique index and surfaces as ErrDuplicateEODClose.
func (m *defaultExecutionsModel) Insert(ctx context.Context, data *Executions) error {
	query := fmt.Sprintf(`INSERT INTO %s
(order_id, proposal_id, symbol, side, quantity, price, slippage, commission, notional, status, trade_date, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, m.table)
	_, err := m.ExecNoCacheCtx(ctx, query,
		data.OrderId, data.ProposalId, data.Symbol, data.Side, data.Quantity,
		data.Price, data.Slippage, data.Commission, data.Notional,
		data.Status, data.TradeDate, data.Reason)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && data.Reason == ExecutionReasonEODClose {
			return fmt.Errorf("%w: %s %s %s", ErrDuplicateEODClose, data.Symbol, data.Side, data.TradeDate)
		}
		return fmt.Errorf("executions.Insert %s: %w", data.OrderId, err)
	}
	return nil
}

func (m *defaultExecutionsModel) ListByTradeDate(ctx context.Context, tradeDate string) ([]ExecutionRecord, error) {
	query := fmt.Sprintf(`SELECT order_id, proposal_id, symbol, side, quantity, price, slippage, commission, notional, status, trade_date, reason
FROM %s WHERE trade_date = $1 ORDER BY order_id ASC`, m.table)

	var rows []Executions
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, tradeDate); err != nil {
		return nil, fmt.Errorf("executions.ListByTradeDate %s: %w", tradeDate, err)
	}
	result := make([]ExecutionRecord, 0, len(rows))
	for i := range rows {
		result = append(result, buildExecutionRecord(&rows[i]))
	}
	return result, nil
}

// LastEODCloseDate returns the most recent trading day an end-of-day close
// ran on, or empty when none has. Deriving this from persisted executions
// keeps the once-per-day guarantee across process restarts.
func (m *defaultExecutionsModel) LastEODCloseDate(ctx context.Context) (string, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(trade_date), '') FROM %s WHERE reason = $1`, m.table)

	var last string
	if err := m.QueryRowNoCacheCtx(ctx, &last, query, ExecutionReasonEODClose); err != nil {
		return "", fmt.Errorf("executions.LastEODCloseDate: %w", err)
	}
	return last, nil
}

func buildExecutionRecord(row *Executions) ExecutionRecord {
	rec := ExecutionRecord{
		OrderID:    row.OrderId,
		Symbol:     row.Symbol,
		Side:       row.Side,
		Quantity:   row.Quantity,
		Price:      row.Price,
		Slippage:   row.Slippage,
		Commission: row.Commission,
		Notional:   row.Notional,
		Status:     row.Status,
		TradeDate:  row.TradeDate,
		Reason:     row.Reason,
	}
	if row.ProposalId.Valid {
		value := row.ProposalId.String
		rec.ProposalID = &value
	}
	return rec
}
