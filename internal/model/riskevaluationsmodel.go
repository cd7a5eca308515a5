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

var _ RiskEvaluationsModel = (*customRiskEvaluationsModel)(nil)

// RiskEvaluations maps one row of public.risk_evaluations. The table is
// append-only: every gate call leaves exactly one row, approvals included.
type RiskEvaluations struct {
	Id               int64           `db:"id"`
	ProposalId       string          `db:"proposal_id"`
	CreatedAt        time.Time       `db:"created_at"`
	Decision         string          `db:"decision"`
	Reason           string          `db:"reason"`
	ModifiedQuantity sql.NullInt64   `db:"modified_quantity"`
	ModifiedPrice    sql.NullFloat64 `db:"modified_price"`
}

// RiskEvaluationRecord is the nullable-safe view.
type RiskEvaluationRecord struct {
	ID               int64
	ProposalID       string
	CreatedAt        time.Time
	Decision         string
	Reason           string
	ModifiedQuantity *int64
	ModifiedPrice    *float64
}

type (
	RiskEvaluationsModel interface {
		Insert(ctx context.Context, data *RiskEvaluations) error
		ListByProposal(ctx context.Context, proposalID string) ([]RiskEvaluationRecord, error)
	}

	defaultRiskEvaluationsModel struct {
		sqlc.CachedConn
		table string
	}

	customRiskEvaluationsModel struct {
		*defaultRiskEvaluationsModel
	}
)

// NewRiskEvaluationsModel returns a model for the risk_evaluations table.
func NewRiskEvaluationsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) RiskEvaluationsModel {
	return &customRiskEvaluationsModel{
		defaultRiskEvaluationsModel: &defaultRiskEvaluationsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "public.risk_evaluations",
		},
	}
}

func (m *defaultRiskEvaluationsModel) Insert(ctx context.Context, data *RiskEvaluations) error {
	query := fmt.Sprintf(`INSERT INTO %s
(proposal_id, created_at, decision, reason, modified_quantity, modified_price)
VALUES ($1, $2, $3, $4, $5, $6)`, m.table)
	_, err := m.ExecNoCacheCtx(ctx, query,
		data.ProposalId, data.CreatedAt, data.Decision, data.Reason,
		data.ModifiedQuantity, data.ModifiedPrice)
	if err != nil {
		return fmt.Errorf("risk_evaluations.Insert %s: %w", data.ProposalId, err)
	}
	return nil
}

func (m *defaultRiskEvaluationsModel) ListByProposal(ctx context.Context, proposalID string) ([]RiskEvaluationRecord, error) {
	query := fmt.Sprintf(`SELECT id, proposal_id, created_at, decision, reason, modified_quantity, modified_price
FROM %s WHERE proposal_id = $1 ORDER BY id ASC`, m.table)

	var rows []RiskEvaluations
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, proposalID); err != nil {
		return nil, fmt.Errorf("risk_evaluations.ListByProposal %s: %w", proposalID, err)
	}
	result := make([]RiskEvaluationRecord, 0, len(rows))
	for i := range rows {
		result = append(result, buildRiskEvaluationRecord(&rows[i]))
	}
	return result, nil
}

func buildRiskEvaluationRecord(row *RiskEvaluations) RiskEvaluationRecord {
	rec := RiskEvaluationRecord{
		ID:         row.Id,
		ProposalID: row.ProposalId,
		CreatedAt:  row.CreatedAt,
		Decision:   row.Decision,
		Reason:     row.Reason,
	}
	if row.ModifiedQuantity.Valid {
		value := row.ModifiedQuantity.Int64
		rec.ModifiedQuantity = &value
	}
	if row.ModifiedPrice.Valid {
		value := row.ModifiedPrice.Float64
		rec.ModifiedPrice = &value
	}
	return rec
}
