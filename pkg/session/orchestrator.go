package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/journal"
	"daytrader-api/pkg/market"
	"daytrader-api/pkg/notify"
	"daytrader-api/pkg/risk"
	"daytrader-api/pkg/sessionclock"
	"daytrader-api/pkg/strategy"
)

const iterationBackoff = 60 * time.Second

// Orchestrator drives the intraday loop. The notification edge triggers are
// keyed to the calendar date in process memory, so a mid-day restart may
// resend them; only the end-of-day marker is primed from the store, which is
// what keeps the closing trades themselves idempotent.
type Orchestrator struct {
	cfg      Config
	clock    *sessionclock.Clock
	provider market.Provider
	engine   *strategy.Engine
	gate     *risk.Gate
	store    PersistenceService
	sink     notify.Sink
	symbols  []string

	journal *journal.Writer // optional

	startedDate       string
	notifiedCloseDate string
	lastEODDate       string
	dataFailStreak    int
	lastPrices        map[string]float64

	eodStartMin int
	eodEndMin   int

	now func() time.Time
}

// New builds an orchestrator. The config is validated and defaulted here so
// a malformed end-of-day window fails before any loop starts.
func New(cfg Config, clock *sessionclock.Clock, provider market.Provider, engine *strategy.Engine,
	gate *risk.Gate, store PersistenceService, sink notify.Sink, symbols []string) (*Orchestrator, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil || provider == nil || engine == nil || gate == nil || store == nil || sink == nil {
		return nil, errors.New("session: missing dependency")
	}
	if len(symbols) == 0 {
		return nil, errors.New("session: empty symbol universe")
	}
	start, _ := parseDayMinute(cfg.EODStart)
	end, _ := parseDayMinute(cfg.EODEnd)
	return &Orchestrator{
		cfg:         cfg,
		clock:       clock,
		provider:    provider,
		engine:      engine,
		gate:        gate,
		store:       store,
		sink:        sink,
		symbols:     symbols,
		lastPrices:  make(map[string]float64),
		eodStartMin: start,
		eodEndMin:   end,
		now:         time.Now,
	}, nil
}

// WithJournal attaches a per-iteration audit writer.
func (o *Orchestrator) WithJournal(w *journal.Writer) *Orchestrator {
	o.journal = w
	return o
}

// Run loops until the context is cancelled. An in-flight iteration always
// finishes; cancellation is honoured at the top of the loop and while
// sleeping between passes.
func (o *Orchestrator) Run(ctx context.Context) error {
	if last, err := o.store.LastCloseDate(ctx); err != nil {
		logx.Errorf("session: priming eod marker: %v", err)
	} else if last != "" {
		o.lastEODDate = last
		logx.Infof("session: eod marker primed from store: %s", last)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wait := o.iterate(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// iterate runs one pass and returns how long to sleep before the next.
// Panics and errors are contained here; the loop itself never dies.
func (o *Orchestrator) iterate(ctx context.Context) (wait time.Duration) {
	now := o.now().In(o.clock.Location())
	rec := &journal.IterationRecord{
		Timestamp: now,
		Phase:     o.clock.Phase(now).String(),
		TradeDate: o.clock.TradingDate(now),
	}
	wait = o.cfg.Interval

	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("session: iteration panic: %v\n%s", r, debug.Stack())
			rec.Success = false
			rec.ErrorMessage = fmt.Sprintf("panic: %v", r)
			wait = iterationBackoff
		}
		o.writeJournal(rec)
	}()

	if err := o.pass(ctx, now, rec); err != nil {
		logx.Errorf("session: iteration: %v", err)
		rec.ErrorMessage = err.Error()
		return iterationBackoff
	}
	rec.Success = true

	if o.clock.Phase(now) == sessionclock.PhaseClosed {
		until := time.Until(o.clock.NextOpen(now))
		if until > time.Hour {
			until = time.Hour
		}
		if until > o.cfg.Interval {
			return until
		}
	}
	return o.cfg.Interval
}

func (o *Orchestrator) pass(ctx context.Context, now time.Time, rec *journal.IterationRecord) error {
	o.fireEdgeNotifications(ctx, now)

	snaps, chains := o.capture(ctx, rec)

	phase := o.clock.Phase(now)
	tradingPhase := phase == sessionclock.PhasePreMarket ||
		phase == sessionclock.PhaseTrading ||
		phase == sessionclock.PhasePostMarket
	if tradingPhase && now.Hour() < o.cfg.CutoffHour && len(snaps) > 0 {
		if err := o.decide(ctx, now, snaps, chains, rec); err != nil {
			return err
		}
	}

	o.recordPerformance(ctx, now)

	if o.inEODWindow(now) {
		closed, err := o.runEOD(ctx, now)
		if err != nil {
			return err
		}
		rec.EODClosed = len(closed)
	}
	return nil
}

// fireEdgeNotifications sends the open and close messages at most once per
// calendar date each. The close message only fires on a date this process
// also announced as open, so a daemon launched after hours stays quiet.
func (o *Orchestrator) fireEdgeNotifications(ctx context.Context, now time.Time) {
	date := o.clock.TradingDate(now)
	if o.clock.ShouldStartTrading(now) && o.startedDate != date {
		o.startedDate = date
		if err := o.sink.Send(ctx, "Trading session starting",
			fmt.Sprintf("Session %s: watching %s", date, strings.Join(o.symbols, ", ")),
			notify.PriorityInfo); err != nil {
			logx.Errorf("session: open notification: %v", err)
		}
	}
	if o.clock.ShouldStopTrading(now) && o.startedDate == date && o.notifiedCloseDate != date {
		o.notifiedCloseDate = date
		if err := o.sink.Send(ctx, "Trading session closed",
			o.dailySummary(ctx, date), notify.PriorityInfo); err != nil {
			logx.Errorf("session: close notification: %v", err)
		}
	}
}

// capture fetches snapshots for every configured symbol regardless of phase,
// persisting each success. A symbol failing never blocks its siblings; only
// a fully failed pass counts toward the escalation streak.
func (o *Orchestrator) capture(ctx context.Context, rec *journal.IterationRecord) (map[string]*market.Snapshot, map[string][]market.OptionQuote) {
	batch := market.FetchAll(ctx, o.provider, o.symbols, o.cfg.PerSymbolTimeout, true)

	for sym, err := range batch.Errors {
		if rec.CaptureErrors == nil {
			rec.CaptureErrors = make(map[string]string)
		}
		rec.CaptureErrors[sym] = err.Error()
	}
	for sym, snap := range batch.Snapshots {
		rec.Captured = append(rec.Captured, sym)
		o.lastPrices[sym] = snap.Last
		if err := o.store.RecordCapture(ctx, snap); err != nil {
			logx.Errorf("session: record capture %s: %v", sym, err)
		}
	}

	if len(batch.Snapshots) == 0 {
		o.dataFailStreak++
		logx.Errorf("session: market data fully unavailable (streak %d)", o.dataFailStreak)
		if o.dataFailStreak == o.cfg.MaxDataFailures {
			if err := o.sink.Send(ctx, "Market data unavailable",
				fmt.Sprintf("%d consecutive failed fetches across all symbols", o.dataFailStreak),
				notify.PriorityCritical); err != nil {
				logx.Errorf("session: data failure escalation: %v", err)
			}
		}
	} else {
		o.dataFailStreak = 0
	}
	return batch.Snapshots, batch.Chains
}

// decide runs the strategy engine over the fresh snapshots and pushes every
// proposal through persist -> gate -> persist-verdict -> deliver.
func (o *Orchestrator) decide(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot,
	chains map[string][]market.OptionQuote, rec *journal.IterationRecord) error {
	proposals, strategyErrs := o.engine.Run(ctx, now, snaps, chains)
	for name, err := range strategyErrs {
		logx.Errorf("session: strategy %s: %v", name, err)
	}

	for _, p := range proposals {
		if err := o.store.SaveProposal(ctx, p); err != nil {
			logx.Errorf("session: save proposal %s: %v", p.ID, err)
			continue
		}
		portfolio, err := o.store.PortfolioView(ctx)
		if err != nil {
			logx.Errorf("session: portfolio view: %v", err)
			portfolio = risk.Portfolio{NAV: o.cfg.InitialNAV}
		}

		ev := o.gate.Evaluate(p, portfolio)
		// The audit trail must not have holes: a verdict that cannot be
		// persisted aborts the iteration rather than trading past it.
		if err := o.store.SaveRiskEvaluation(ctx, ev); err != nil {
			return fmt.Errorf("save risk evaluation for %s: %w", p.ID, err)
		}
		rec.Proposals = append(rec.Proposals, journal.ProposalEntry{
			ID:       p.ID,
			Strategy: p.Strategy,
			Symbol:   p.Symbol,
			Side:     string(p.Side),
			Quantity: ev.Proposal.Quantity,
			Price:    ev.Proposal.Price,
			Decision: string(ev.Decision),
			Reason:   ev.Reason,
		})

		if ev.Decision == risk.DecisionReject {
			continue
		}
		if err := o.store.MarkProposalStatus(ctx, p.ID, strategy.StatusSent); err != nil {
			logx.Errorf("session: mark sent %s: %v", p.ID, err)
			continue
		}
		if err := o.sink.SendProposalForApproval(ctx, ev.Proposal); err != nil {
			logx.Errorf("session: deliver proposal %s: %v", p.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) recordPerformance(ctx context.Context, now time.Time) {
	portfolio, err := o.store.PortfolioView(ctx)
	if err != nil {
		logx.Errorf("session: performance portfolio view: %v", err)
		return
	}
	perf := PerformanceSnapshot{
		CapturedAt:    now,
		NAV:           portfolio.NAV,
		PnL:           portfolio.NAV - o.cfg.InitialNAV,
		OpenPositions: portfolio.Positions,
		Delta:         portfolio.Greeks.Delta,
		Gamma:         portfolio.Greeks.Gamma,
		Vega:          portfolio.Greeks.Vega,
	}
	if err := o.store.RecordPerformance(ctx, perf); err != nil {
		logx.Errorf("session: record performance: %v", err)
	}
}

func (o *Orchestrator) inEODWindow(now time.Time) bool {
	if isWeekendDay(now.Weekday()) {
		return false
	}
	minute := dayMinute(now)
	return minute >= o.eodStartMin && minute < o.eodEndMin
}

func isWeekendDay(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func (o *Orchestrator) dailySummary(ctx context.Context, date string) string {
	stats, err := o.store.DailyProposalStats(ctx, date)
	if err != nil {
		logx.Errorf("session: daily stats: %v", err)
		return fmt.Sprintf("Session %s closed.", date)
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	return fmt.Sprintf("Session %s closed.\nProposals: %d total, %d sent, %d approved, %d cancelled.",
		date, total, stats["sent"]+stats["approved"]+stats["cancelled"], stats["approved"], stats["cancelled"])
}

func (o *Orchestrator) writeJournal(rec *journal.IterationRecord) {
	if o.journal == nil {
		return
	}
	if _, err := o.journal.WriteIteration(rec); err != nil {
		logx.Errorf("session: journal write: %v", err)
	}
}
