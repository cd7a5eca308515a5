package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ PerformanceSnapshotsModel = (*customPerformanceSnapshotsModel)(nil)

// PerformanceSnapshots maps one row of public.performance_snapshots.
type PerformanceSnapshots struct {
	Id            int64     `db:"id"`
	CapturedAt    time.Time `db:"captured_at"`
	Nav           float64   `db:"nav"`
	Pnl           float64   `db:"pnl"`
	OpenPositions int64     `db:"open_positions"`
	Delta         float64   `db:"delta"`
	Gamma         float64   `db:"gamma"`
	Vega          float64   `db:"vega"`
}

type (
	PerformanceSnapshotsModel interface {
		Insert(ctx context.Context, data *PerformanceSnapshots) error
		Latest(ctx context.Context) (*PerformanceSnapshots, error)
	}

	defaultPerformanceSnapshotsModel struct {
		sqlc.CachedConn
		table string
	}

	customPerformanceSnapshotsModel struct {
		*defaultPerformanceSnapshotsModel
	}
)

// NewPerformanceSnapshotsModel returns a model for the performance_snapshots table.
func NewPerformanceSnapshotsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) PerformanceSnapshotsModel {
	return &customPerformanceSnapshotsModel{
		defaultPerformanceSnapshotsModel: &defaultPerformanceSnapshotsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "public.performance_snapshots",
		},
	}
}

func (m *defaultPerformanceSnapshotsModel) Insert(ctx context.Context, data *PerformanceSnapshots) error {
	query := fmt.Sprintf(`INSERT INTO %s
(captured_at, nav, pnl, open_positions, delta, gamma, vega)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, m.table)
	_, err := m.ExecNoCacheCtx(ctx, query,
		data.CapturedAt, data.Nav, data.Pnl, data.OpenPositions,
		data.Delta, data.Gamma, data.Vega)
	if err != nil {
		return fmt.Errorf("performance_snapshots.Insert: %w", err)
	}
	return nil
}

func (m *defaultPerformanceSnapshotsModel) Latest(ctx context.Context) (*PerformanceSnapshots, error) {
	query := fmt.Sprintf(`SELECT id, captured_at, nav, pnl, open_positions, delta, gamma, vega
FROM %s ORDER BY captured_at DESC LIMIT 1`, m.table)

	var row PerformanceSnapshots
	err := m.QueryRowNoCacheCtx(ctx, &row, query)
	switch err {
	case nil:
		return &row, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("performance_snapshots.Latest: %w", err)
	}
}
