package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "daytrader-api/internal/cache"
	"daytrader-api/internal/model"
	"daytrader-api/pkg/health"
	"daytrader-api/pkg/market"
	"daytrader-api/pkg/risk"
	"daytrader-api/pkg/session"
	"daytrader-api/pkg/strategy"
)

var (
	_ session.PersistenceService = (*Service)(nil)
	_ health.Store               = (*Service)(nil)
)

// Service wires Postgres + Redis collaborators behind the orchestrator and
// health persistence hooks.
type Service struct {
	sqlConn        sqlx.SqlConn
	proposalsModel model.ProposalsModel
	riskModel      model.RiskEvaluationsModel
	execModel      model.ExecutionsModel
	positionsModel model.OpenPositionsModel
	capturesModel  model.MarketDataCapturesModel
	perfModel      model.PerformanceSnapshotsModel
	cache          gocache.Cache
	ttl            cachekeys.TTLSet
	loc            *time.Location
	baseNAV        float64
}

// defaultBaseNAV is the starting capital assumed when none is configured.
const defaultBaseNAV = 100_000

// Config enumerates dependencies needed to persist trading events.
type Config struct {
	SQLConn        sqlx.SqlConn
	ProposalsModel model.ProposalsModel
	RiskModel      model.RiskEvaluationsModel
	ExecModel      model.ExecutionsModel
	PositionsModel model.OpenPositionsModel
	CapturesModel  model.MarketDataCapturesModel
	PerfModel      model.PerformanceSnapshotsModel
	Cache          gocache.Cache
	TTL            cachekeys.TTLSet
	Location       *time.Location
	// BaseNAV is the starting capital; NAV reported by PortfolioView is
	// BaseNAV plus the realized PnL of every closed position.
	BaseNAV float64
}

// NewService returns a concrete persistence service when mandatory
// dependencies are present.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	baseNAV := cfg.BaseNAV
	if baseNAV <= 0 {
		baseNAV = defaultBaseNAV
	}
	return &Service{
		sqlConn:        cfg.SQLConn,
		proposalsModel: cfg.ProposalsModel,
		riskModel:      cfg.RiskModel,
		execModel:      cfg.ExecModel,
		positionsModel: cfg.PositionsModel,
		capturesModel:  cfg.CapturesModel,
		perfModel:      cfg.PerfModel,
		cache:          cfg.Cache,
		ttl:            cfg.TTL,
		loc:            loc,
		baseNAV:        baseNAV,
	}
}

// SaveProposal writes a freshly generated proposal in status generated.
func (s *Service) SaveProposal(ctx context.Context, p strategy.Proposal) error {
	if s == nil || s.proposalsModel == nil {
		return nil
	}
	row := &model.Proposals{
		ProposalId: p.ID,
		CreatedAt:  p.CreatedAt,
		Strategy:   p.Strategy,
		Symbol:     p.Symbol,
		Side:       string(p.Side),
		Quantity:   int64(p.Quantity),
		Price:      p.Price,
		Status:     model.ProposalStatusGenerated,
	}
	if len(p.Metadata) > 0 {
		if data, err := json.Marshal(p.Metadata); err == nil {
			row.MetadataJson = sql.NullString{String: string(data), Valid: true}
		}
	}
	err := s.proposalsModel.Insert(ctx, row)
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

// SaveRiskEvaluation appends the gate verdict for a proposal. Failure here
// is surfaced: the audit trail must not have holes.
func (s *Service) SaveRiskEvaluation(ctx context.Context, ev risk.Evaluation) error {
	if s == nil || s.riskModel == nil {
		return errors.New("enginepersist: risk evaluations model not configured")
	}
	row := &model.RiskEvaluations{
		ProposalId: ev.Proposal.ID,
		CreatedAt:  time.Now().In(s.loc),
		Decision:   string(ev.Decision),
		Reason:     ev.Reason,
	}
	if ev.Decision == risk.DecisionModify {
		row.ModifiedQuantity = sql.NullInt64{Int64: int64(ev.Proposal.Quantity), Valid: true}
		row.ModifiedPrice = sql.NullFloat64{Float64: ev.Proposal.Price, Valid: true}
	}
	return s.riskModel.Insert(ctx, row)
}

// MarkProposalStatus moves a proposal forward along its lifecycle.
func (s *Service) MarkProposalStatus(ctx context.Context, proposalID, status string) error {
	if s == nil || s.proposalsModel == nil {
		return nil
	}
	if err := s.proposalsModel.UpdateStatus(ctx, proposalID, status); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return fmt.Errorf("%w: %s -> %s", session.ErrInvalidTransition, proposalID, status)
		}
		return err
	}
	s.dropCacheKey(ctx, cachekeys.PendingProposalsKey())
	return nil
}

// GetProposal loads one proposal by ID.
func (s *Service) GetProposal(ctx context.Context, proposalID string) (strategy.Proposal, error) {
	if s == nil || s.proposalsModel == nil {
		return strategy.Proposal{}, model.ErrNotFound
	}
	rec, err := s.proposalsModel.FindOne(ctx, proposalID)
	if err != nil {
		return strategy.Proposal{}, err
	}
	p := strategy.Proposal{
		ID:        rec.ProposalID,
		CreatedAt: rec.CreatedAt,
		Strategy:  rec.Strategy,
		Symbol:    rec.Symbol,
		Side:      strategy.Side(rec.Side),
		Quantity:  int(rec.Quantity),
		Price:     rec.Price,
	}
	if len(rec.Metadata) > 0 {
		_ = json.Unmarshal(rec.Metadata, &p.Metadata)
	}
	return p, nil
}

// PendingApprovals lists the IDs of proposals sitting in status sent.
func (s *Service) PendingApprovals(ctx context.Context) ([]string, error) {
	if s == nil || s.proposalsModel == nil {
		return nil, nil
	}
	var ids []string
	if s.cacheGet(ctx, cachekeys.PendingProposalsKey(), &ids) {
		return ids, nil
	}
	records, err := s.proposalsModel.ListByStatus(ctx, model.ProposalStatusSent, 0)
	if err != nil {
		return nil, err
	}
	ids = make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ProposalID)
	}
	s.cacheSet(ctx, cachekeys.PendingProposalsKey(), ids, cachekeys.PendingProposalsTTL(s.ttl))
	return ids, nil
}

// DailyProposalStats counts one trading day's proposals by status.
func (s *Service) DailyProposalStats(ctx context.Context, tradeDate string) (session.ProposalStats, error) {
	if s == nil || s.proposalsModel == nil {
		return nil, nil
	}
	stats := session.ProposalStats{}
	if s.cacheGet(ctx, cachekeys.ProposalStatsKey(tradeDate), &stats) {
		return stats, nil
	}
	counts, err := s.proposalsModel.StatsByDate(ctx, tradeDate, s.loc)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats[c.Status] = int(c.Count)
	}
	s.cacheSet(ctx, cachekeys.ProposalStatsKey(tradeDate), stats, cachekeys.ProposalStatsTTL(s.ttl))
	return stats, nil
}

// SaveExecution writes one fill row.
func (s *Service) SaveExecution(ctx context.Context, exec session.Execution) error {
	if s == nil || s.execModel == nil {
		return nil
	}
	return s.execModel.Insert(ctx, executionRow(exec))
}

// ApplyFill records the execution and folds it into the open book.
func (s *Service) ApplyFill(ctx context.Context, exec session.Execution) error {
	if s == nil || s.execModel == nil || s.positionsModel == nil {
		return nil
	}
	if err := s.execModel.Insert(ctx, executionRow(exec)); err != nil {
		return err
	}
	fill := model.PositionFill{
		Symbol:   exec.Symbol,
		Side:     exec.Side,
		Quantity: int64(exec.Quantity),
		Price:    exec.Price,
		Delta:    exec.Greeks.Delta,
		Gamma:    exec.Greeks.Gamma,
		Vega:     exec.Greeks.Vega,
		At:       time.Now().In(s.loc),
	}
	if err := s.positionsModel.Upsert(ctx, fill); err != nil {
		return err
	}
	s.dropCacheKey(ctx, cachekeys.OpenPositionsKey())
	return nil
}

// CloseOutPositions flattens the open book at last known prices, one closing
// execution per (symbol, side). The partial unique index on executions makes
// a repeated run for the same day a no-op: the duplicate insert is tolerated
// and the position row is still marked closed.
func (s *Service) CloseOutPositions(ctx context.Context, tradeDate string, closedAt time.Time, lastPrices map[string]float64) ([]session.ClosedPosition, error) {
	if s == nil || s.positionsModel == nil || s.execModel == nil {
		return nil, nil
	}
	open, err := s.positionsModel.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	closed := make([]session.ClosedPosition, 0, len(open))
	for _, pos := range open {
		price, ok := lastPrices[pos.Symbol]
		if !ok || price <= 0 {
			price = pos.AvgPrice
		}
		row := &model.Executions{
			OrderId:   uuid.NewString(),
			Symbol:    pos.Symbol,
			Side:      closingSide(pos.Side),
			Quantity:  pos.Quantity,
			Price:     price,
			Notional:  float64(pos.Quantity) * price,
			Status:    "filled",
			TradeDate: tradeDate,
			Reason:    model.ExecutionReasonEODClose,
		}
		err := s.execModel.Insert(ctx, row)
		if err != nil && !errors.Is(err, model.ErrDuplicateEODClose) {
			return closed, err
		}
		if errors.Is(err, model.ErrDuplicateEODClose) {
			logx.WithContext(ctx).Infof("enginepersist: eod close already recorded symbol=%s side=%s date=%s", pos.Symbol, pos.Side, tradeDate)
		}
		pnl := realizedPnL(pos.Side, float64(pos.Quantity), pos.AvgPrice, price)
		if err := s.positionsModel.MarkClosed(ctx, pos.ID, closedAt, pnl); err != nil && !errors.Is(err, model.ErrNotFound) {
			return closed, err
		}
		closed = append(closed, session.ClosedPosition{
			Symbol:      pos.Symbol,
			Side:        pos.Side,
			Quantity:    int(pos.Quantity),
			AvgPrice:    pos.AvgPrice,
			ClosePrice:  price,
			RealizedPnL: pnl,
		})
	}
	s.dropCacheKey(ctx, cachekeys.OpenPositionsKey())
	return closed, nil
}

// LastCloseDate reports the most recent day an end-of-day close ran.
func (s *Service) LastCloseDate(ctx context.Context) (string, error) {
	if s == nil || s.execModel == nil {
		return "", nil
	}
	return s.execModel.LastEODCloseDate(ctx)
}

// RecordCapture appends one snapshot to the market data audit.
func (s *Service) RecordCapture(ctx context.Context, snap *market.Snapshot) error {
	if s == nil || s.capturesModel == nil || snap == nil {
		return nil
	}
	err := s.capturesModel.Insert(ctx, &model.MarketDataCaptures{
		Ticker:     strings.ToUpper(snap.Symbol),
		CapturedAt: snap.CapturedAt,
		Open:       snap.Open,
		High:       snap.High,
		Low:        snap.Low,
		Close:      snap.Close,
		Last:       snap.Last,
		Volume:     snap.Volume,
		AvgVolume:  snap.AvgVolume,
		Source:     string(snap.Source),
	})
	if err != nil {
		return err
	}
	s.cacheSet(ctx, cachekeys.SnapshotLatestKey(snap.Symbol), snap, cachekeys.SnapshotTTL(s.ttl))
	return nil
}

// RecordPerformance appends one performance snapshot.
func (s *Service) RecordPerformance(ctx context.Context, perf session.PerformanceSnapshot) error {
	if s == nil || s.perfModel == nil {
		return nil
	}
	err := s.perfModel.Insert(ctx, &model.PerformanceSnapshots{
		CapturedAt:    perf.CapturedAt,
		Nav:           perf.NAV,
		Pnl:           perf.PnL,
		OpenPositions: int64(perf.OpenPositions),
		Delta:         perf.Delta,
		Gamma:         perf.Gamma,
		Vega:          perf.Vega,
	})
	if err != nil {
		return err
	}
	s.cacheSet(ctx, cachekeys.PerformanceLatestKey(), perf, cachekeys.PerformanceTTL(s.ttl))
	return nil
}

// PortfolioView assembles the point-in-time book the risk gate evaluates
// against. Everything derives from the positions table: greeks are summed
// from the open rows (sold positions contribute with a negative sign) and
// NAV is the base capital plus the realized PnL of every closed row.
func (s *Service) PortfolioView(ctx context.Context) (risk.Portfolio, error) {
	if s == nil {
		return risk.Portfolio{}, nil
	}
	pf := risk.Portfolio{NAV: s.baseNAV}
	if s.positionsModel == nil {
		return pf, nil
	}
	realized, err := s.positionsModel.TotalRealizedPnL(ctx)
	if err != nil {
		return risk.Portfolio{}, err
	}
	pf.NAV += realized

	open, err := s.positionsModel.ListOpen(ctx)
	if err != nil {
		return risk.Portfolio{}, err
	}
	pf.Positions = len(open)
	for _, pos := range open {
		qty := float64(pos.Quantity)
		sign := positionSign(pos.Side)
		pf.OpenNotional += qty * pos.AvgPrice
		pf.Greeks.Delta += sign * qty * pos.Delta
		pf.Greeks.Gamma += sign * qty * pos.Gamma
		pf.Greeks.Vega += sign * qty * pos.Vega
	}
	return pf, nil
}

// Ping verifies the database connection is alive.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.sqlConn == nil {
		return errors.New("enginepersist: no database connection")
	}
	var one int
	return s.sqlConn.QueryRowCtx(ctx, &one, "SELECT 1")
}

// CaptureCount reports how many snapshots were recorded for one trading day.
func (s *Service) CaptureCount(ctx context.Context, tradeDate string) (int, error) {
	if s == nil || s.sqlConn == nil {
		return 0, nil
	}
	var count int
	if s.cacheGet(ctx, cachekeys.CaptureCountKey(tradeDate), &count) {
		return count, nil
	}
	day, err := time.ParseInLocation("2006-01-02", tradeDate, s.loc)
	if err != nil {
		return 0, err
	}
	const query = `SELECT COUNT(*) FROM public.market_data_captures WHERE captured_at >= $1 AND captured_at < $2`
	if err := s.sqlConn.QueryRowCtx(ctx, &count, query, day, day.AddDate(0, 0, 1)); err != nil {
		return 0, err
	}
	s.cacheSet(ctx, cachekeys.CaptureCountKey(tradeDate), count, cachekeys.CaptureCountTTL(s.ttl))
	return count, nil
}

// StaleSentProposals lists sent proposals waiting on a human longer than the
// threshold.
func (s *Service) StaleSentProposals(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if s == nil || s.proposalsModel == nil {
		return nil, nil
	}
	records, err := s.proposalsModel.ListByStatus(ctx, model.ProposalStatusSent, 0)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().In(s.loc).Add(-olderThan)
	var stale []string
	for _, rec := range records {
		if rec.CreatedAt.Before(cutoff) {
			stale = append(stale, rec.ProposalID)
		}
	}
	return stale, nil
}

func executionRow(exec session.Execution) *model.Executions {
	row := &model.Executions{
		OrderId:    exec.OrderID,
		Symbol:     strings.ToUpper(exec.Symbol),
		Side:       exec.Side,
		Quantity:   int64(exec.Quantity),
		Price:      exec.Price,
		Slippage:   exec.Slippage,
		Commission: exec.Commission,
		Notional:   exec.Notional,
		Status:     exec.Status,
		TradeDate:  exec.TradeDate,
		Reason:     exec.Reason,
	}
	if row.OrderId == "" {
		row.OrderId = uuid.NewString()
	}
	if row.Reason == "" {
		row.Reason = model.ExecutionReasonFill
	}
	if exec.ProposalID != "" {
		row.ProposalId = sql.NullString{String: exec.ProposalID, Valid: true}
	}
	return row
}

func closingSide(openSide string) string {
	if strings.EqualFold(openSide, string(strategy.SideBuy)) {
		return string(strategy.SideSell)
	}
	return string(strategy.SideBuy)
}

func realizedPnL(side string, qty, avgPrice, closePrice float64) float64 {
	return positionSign(side) * (closePrice - avgPrice) * qty
}

func positionSign(side string) float64 {
	if strings.EqualFold(side, string(strategy.SideSell)) {
		return -1
	}
	return 1
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *Service) cacheGet(ctx context.Context, key string, v any) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.GetCtx(ctx, key, v); err != nil {
		if !s.cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("enginepersist: load cache key=%s err=%v", key, err)
		}
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, v, ttl); err != nil {
		logx.WithContext(ctx).Errorf("enginepersist: set cache key=%s err=%v", key, err)
	}
}

func (s *Service) dropCacheKey(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelCtx(ctx, key); err != nil && !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("enginepersist: del cache key=%s err=%v", key, err)
	}
}
