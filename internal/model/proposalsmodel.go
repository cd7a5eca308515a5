package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Proposal lifecycle states. Transitions only move forward: generated may
// become sent, sent may become approved or cancelled. Terminal states never
// change.
const (
	ProposalStatusGenerated = "generated"
	ProposalStatusSent      = "sent"
	ProposalStatusApproved  = "approved"
	ProposalStatusCancelled = "cancelled"
)

// ErrInvalidTransition reports a status update that would move a proposal
// backwards or out of a terminal state.
var ErrInvalidTransition = fmt.Errorf("proposals: invalid status transition")

var _ ProposalsModel = (*customProposalsModel)(nil)

const cacheProposalsIdPrefix = "cache:proposals:proposalId:"

// Proposals maps one row of public.proposals.
type Proposals struct {
	ProposalId   string         `db:"proposal_id"`
	CreatedAt    time.Time      `db:"created_at"`
	Strategy     string         `db:"strategy"`
	Symbol       string         `db:"symbol"`
	Side         string         `db:"side"`
	Quantity     int64          `db:"quantity"`
	Price        float64        `db:"price"`
	Status       string         `db:"status"`
	MetadataJson sql.NullString `db:"metadata_json"`
}

// ProposalRecord is the nullable-safe view handed to callers.
type ProposalRecord struct {
	ProposalID string
	CreatedAt  time.Time
	Strategy   string
	Symbol     string
	Side       string
	Quantity   int64
	Price      float64
	Status     string
	Metadata   []byte
}

// ProposalStatusCount is one bucket of the daily stats query.
type ProposalStatusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

type (
	// ProposalsModel persists strategy proposals and their forward-only
	// status transitions.
	ProposalsModel interface {
		Insert(ctx context.Context, data *Proposals) error
		FindOne(ctx context.Context, proposalID string) (*ProposalRecord, error)
		UpdateStatus(ctx context.Context, proposalID, status string) error
		ListByStatus(ctx context.Context, status string, limit int) ([]ProposalRecord, error)
		StatsByDate(ctx context.Context, tradeDate string, loc *time.Location) ([]ProposalStatusCount, error)
	}

	defaultProposalsModel struct {
		sqlc.CachedConn
		table string
	}

	customProposalsModel struct {
		*defaultProposalsModel
	}
)

// NewProposalsModel returns a model for the proposals table.
func NewProposalsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) ProposalsModel {
	return &customProposalsModel{
		defaultProposalsModel: &defaultProposalsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "public.proposals",
		},
	}
}

// allowedPrev lists the states a proposal may be in before moving to the
// given status.
func allowedPrev(status string) []string {
	switch status {
	case ProposalStatusSent:
		return []string{ProposalStatusGenerated}
	case ProposalStatusApproved, ProposalStatusCancelled:
		return []string{ProposalStatusSent}
	default:
		return nil
	}
}

func (m *defaultProposalsModel) Insert(ctx context.Context, data *Proposals) error {
	key := cacheProposalsIdPrefix + data.ProposalId
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf(`INSERT INTO %s
(proposal_id, created_at, strategy, symbol, side, quantity, price, status, metadata_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, m.table)
		return conn.ExecCtx(ctx, query,
			data.ProposalId, data.CreatedAt, data.Strategy, data.Symbol, data.Side,
			data.Quantity, data.Price, data.Status, data.MetadataJson)
	}, key)
	if err != nil {
		return fmt.Errorf("proposals.Insert %s: %w", data.ProposalId, err)
	}
	return nil
}

func (m *defaultProposalsModel) FindOne(ctx context.Context, proposalID string) (*ProposalRecord, error) {
	key := cacheProposalsIdPrefix + proposalID
	var row Proposals
	err := m.QueryRowCtx(ctx, &row, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf(`SELECT proposal_id, created_at, strategy, symbol, side, quantity, price, status, metadata_json
FROM %s WHERE proposal_id = $1 LIMIT 1`, m.table)
		return conn.QueryRowCtx(ctx, v, query, proposalID)
	})
	switch err {
	case nil:
		rec := buildProposalRecord(&row)
		return &rec, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("proposals.FindOne %s: %w", proposalID, err)
	}
}

// UpdateStatus moves a proposal forward. The predecessor check lives in the
// WHERE clause so concurrent updates cannot race a terminal state backwards.
func (m *defaultProposalsModel) UpdateStatus(ctx context.Context, proposalID, status string) error {
	prev := allowedPrev(status)
	if len(prev) == 0 {
		return fmt.Errorf("%w: to %q", ErrInvalidTransition, status)
	}

	key := cacheProposalsIdPrefix + proposalID
	res, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf(`UPDATE %s SET status = $2 WHERE proposal_id = $1 AND status = ANY($3)`, m.table)
		return conn.ExecCtx(ctx, query, proposalID, status, pq.Array(prev))
	}, key)
	if err != nil {
		return fmt.Errorf("proposals.UpdateStatus %s -> %s: %w", proposalID, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("proposals.UpdateStatus %s: rows affected: %w", proposalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, proposalID, status)
	}
	return nil
}

func (m *defaultProposalsModel) ListByStatus(ctx context.Context, status string, limit int) ([]ProposalRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT proposal_id, created_at, strategy, symbol, side, quantity, price, status, metadata_json
FROM %s WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, m.table)

	var rows []Proposals
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, status, limit); err != nil {
		return nil, fmt.Errorf("proposals.ListByStatus %s: %w", status, err)
	}
	result := make([]ProposalRecord, 0, len(rows))
	for i := range rows {
		result = append(result, buildProposalRecord(&rows[i]))
	}
	return result, nil
}

// StatsByDate counts proposals by status for one exchange-local trading day.
func (m *defaultProposalsModel) StatsByDate(ctx context.Context, tradeDate string, loc *time.Location) ([]ProposalStatusCount, error) {
	day, err := time.ParseInLocation("2006-01-02", tradeDate, loc)
	if err != nil {
		return nil, fmt.Errorf("proposals.StatsByDate parse %q: %w", tradeDate, err)
	}
	next := day.AddDate(0, 0, 1)

	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count
FROM %s WHERE created_at >= $1 AND created_at < $2 GROUP BY status`, m.table)

	var rows []ProposalStatusCount
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, day, next); err != nil {
		return nil, fmt.Errorf("proposals.StatsByDate %s: %w", tradeDate, err)
	}
	return rows, nil
}

func buildProposalRecord(row *Proposals) ProposalRecord {
	rec := ProposalRecord{
		ProposalID: row.ProposalId,
		CreatedAt:  row.CreatedAt,
		Strategy:   row.Strategy,
		Symbol:     row.Symbol,
		Side:       row.Side,
		Quantity:   row.Quantity,
		Price:      row.Price,
		Status:     row.Status,
	}
	if row.MetadataJson.Valid {
		rec.Metadata = []byte(row.MetadataJson.String)
	}
	return rec
}
