package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ OpenPositionsModel = (*customOpenPositionsModel)(nil)

// OpenPositions maps one row of public.open_positions. The greek columns are
// per unit of the position, not for the whole book.
type OpenPositions struct {
	Id          int64           `db:"id"`
	Symbol      string          `db:"symbol"`
	Side        string          `db:"side"`
	Quantity    int64           `db:"quantity"`
	AvgPrice    float64         `db:"avg_price"`
	Delta       float64         `db:"delta"`
	Gamma       float64         `db:"gamma"`
	Vega        float64         `db:"vega"`
	OpenedAt    time.Time       `db:"opened_at"`
	ClosedAt    sql.NullTime    `db:"closed_at"`
	RealizedPnl sql.NullFloat64 `db:"realized_pnl"`
}

// PositionRecord is the nullable-safe view of a position.
type PositionRecord struct {
	ID       int64
	Symbol   string
	Side     string
	Quantity int64
	AvgPrice float64
	Delta    float64
	Gamma    float64
	Vega     float64
	OpenedAt time.Time
	ClosedAt *time.Time
}

// PositionFill carries one fill into Upsert. Delta, Gamma and Vega are per
// unit of the filled instrument.
type PositionFill struct {
	Symbol   string
	Side     string
	Quantity int64
	Price    float64
	Delta    float64
	Gamma    float64
	Vega     float64
	At       time.Time
}

type (
	OpenPositionsModel interface {
		// Upsert folds a fill into the open position for (symbol, side),
		// volume-weighting the average price and per-unit greeks, or opens a
		// new one.
		Upsert(ctx context.Context, fill PositionFill) error
		ListOpen(ctx context.Context) ([]PositionRecord, error)
		MarkClosed(ctx context.Context, id int64, at time.Time, realizedPnL float64) error
		// TotalRealizedPnL sums realized_pnl over every closed row.
		TotalRealizedPnL(ctx context.Context) (float64, error)
	}

	defaultOpenPositionsModel struct {
		sqlc.CachedConn
		table string
	}

	customOpenPositionsModel struct {
		*defaultOpenPositionsModel
	}
)

// NewOpenPositionsModel returns a model for the open_positions table.
func NewOpenPositionsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) OpenPositionsModel {
	return &customOpenPositionsModel{
		defaultOpenPositionsModel: &defaultOpenPositionsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "public.open_positions",
		},
	}
}

// Upsert relies on the partial unique index over (symbol, side) WHERE
// closed_at IS NULL, so the volume-weighted merge happens inside Postgres in
// a single statement.
func (m *defaultOpenPositionsModel) Upsert(ctx context.Context, fill PositionFill) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (symbol, side, quantity, avg_price, delta, gamma, vega, opened_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol, side) WHERE closed_at IS NULL DO UPDATE SET
    avg_price = (%[1]s.avg_price * %[1]s.quantity + EXCLUDED.avg_price * EXCLUDED.quantity)
                / (%[1]s.quantity + EXCLUDED.quantity),
    delta     = (%[1]s.delta * %[1]s.quantity + EXCLUDED.delta * EXCLUDED.quantity)
                / (%[1]s.quantity + EXCLUDED.quantity),
    gamma     = (%[1]s.gamma * %[1]s.quantity + EXCLUDED.gamma * EXCLUDED.quantity)
                / (%[1]s.quantity + EXCLUDED.quantity),
    vega      = (%[1]s.vega * %[1]s.quantity + EXCLUDED.vega * EXCLUDED.quantity)
                / (%[1]s.quantity + EXCLUDED.quantity),
    quantity  = %[1]s.quantity + EXCLUDED.quantity`, m.table)
	if _, err := m.ExecNoCacheCtx(ctx, query,
		fill.Symbol, fill.Side, fill.Quantity, fill.Price,
		fill.Delta, fill.Gamma, fill.Vega, fill.At); err != nil {
		return fmt.Errorf("open_positions.Upsert %s %s: %w", fill.Symbol, fill.Side, err)
	}
	return nil
}

func (m *defaultOpenPositionsModel) ListOpen(ctx context.Context) ([]PositionRecord, error) {
	query := fmt.Sprintf(`SELECT id, symbol, side, quantity, avg_price, delta, gamma, vega, opened_at, closed_at
FROM %s WHERE closed_at IS NULL ORDER BY symbol, side`, m.table)

	var rows []OpenPositions
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("open_positions.ListOpen: %w", err)
	}
	result := make([]PositionRecord, 0, len(rows))
	for i := range rows {
		result = append(result, buildPositionRecord(&rows[i]))
	}
	return result, nil
}

func (m *defaultOpenPositionsModel) MarkClosed(ctx context.Context, id int64, at time.Time, realizedPnL float64) error {
	query := fmt.Sprintf(`UPDATE %s SET closed_at = $2, realized_pnl = $3 WHERE id = $1 AND closed_at IS NULL`, m.table)
	res, err := m.ExecNoCacheCtx(ctx, query, id, at, realizedPnL)
	if err != nil {
		return fmt.Errorf("open_positions.MarkClosed %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("open_positions.MarkClosed %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *defaultOpenPositionsModel) TotalRealizedPnL(ctx context.Context) (float64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(SUM(realized_pnl), 0) FROM %s WHERE closed_at IS NOT NULL`, m.table)
	var total float64
	if err := m.QueryRowNoCacheCtx(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("open_positions.TotalRealizedPnL: %w", err)
	}
	return total, nil
}

func buildPositionRecord(row *OpenPositions) PositionRecord {
	rec := PositionRecord{
		ID:       row.Id,
		Symbol:   row.Symbol,
		Side:     row.Side,
		Quantity: row.Quantity,
		AvgPrice: row.AvgPrice,
		Delta:    row.Delta,
		Gamma:    row.Gamma,
		Vega:     row.Vega,
		OpenedAt: row.OpenedAt,
	}
	if row.ClosedAt.Valid {
		value := row.ClosedAt.Time
		rec.ClosedAt = &value
	}
	return rec
}
