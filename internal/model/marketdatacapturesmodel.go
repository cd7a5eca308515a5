package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ MarketDataCapturesModel = (*customMarketDataCapturesModel)(nil)

// MarketDataCaptures maps one row of public.market_data_captures,
// the append-only audit of every quote the pipeline consumed.
type MarketDataCaptures struct {
	Id         int64     `db:"id"`
	Ticker     string    `db:"ticker"`
	CapturedAt time.Time `db:"captured_at"`
	Open       float64   `db:"open"`
	High       float64   `db:"high"`
	Low        float64   `db:"low"`
	Close      float64   `db:"close"`
	Last       float64   `db:"last"`
	Volume     float64   `db:"volume"`
	AvgVolume  float64   `db:"avg_volume"`
	Source     string    `db:"source"`
}

type (
	MarketDataCapturesModel interface {
		Insert(ctx context.Context, data *MarketDataCaptures) error
		RecentByTicker(ctx context.Context, ticker string, limit int) ([]MarketDataCaptures, error)
	}

	defaultMarketDataCapturesModel struct {
		sqlc.CachedConn
		table string
	}

	customMarketDataCapturesModel struct {
		*defaultMarketDataCapturesModel
	}
)

// NewMarketDataCapturesModel returns a model for the market_data_captures table.
func NewMarketDataCapturesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) MarketDataCapturesModel {
	return &customMarketDataCapturesModel{
		defaultMarketDataCapturesModel: &defaultMarketDataCapturesModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "public.market_data_captures",
		},
	}
}

func (m *defaultMarketDataCapturesModel) Insert(ctx context.Context, data *MarketDataCaptures) error {
	query := fmt.Sprintf(`INSERT INTO %s
(ticker, captured_at, open, high, low, close, last, volume, avg_volume, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, m.table)
	_, err := m.ExecNoCacheCtx(ctx, query,
		data.Ticker, data.CapturedAt, data.Open, data.High, data.Low,
		data.Close, data.Last, data.Volume, data.AvgVolume, data.Source)
	if err != nil {
		return fmt.Errorf("market_data_captures.Insert %s: %w", data.Ticker, err)
	}
	return nil
}

func (m *defaultMarketDataCapturesModel) RecentByTicker(ctx context.Context, ticker string, limit int) ([]MarketDataCaptures, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, ticker, captured_at, open, high, low, close, last, volume, avg_volume, source
FROM %s WHERE ticker = $1 ORDER BY captured_at DESC LIMIT $2`, m.table)

	var rows []MarketDataCaptures
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, ticker, limit); err != nil {
		return nil, fmt.Errorf("market_data_captures.RecentByTicker %s: %w", ticker, err)
	}
	return rows, nil
}
