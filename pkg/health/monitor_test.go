package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/notify"
	"daytrader-api/pkg/sessionclock"
	"daytrader-api/pkg/strategy"
)

type fakeStore struct {
	pingErr  error
	captures int
	stale    []string
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *fakeStore) CaptureCount(ctx context.Context, tradeDate string) (int, error) {
	return s.captures, nil
}

func (s *fakeStore) StaleSentProposals(ctx context.Context, olderThan time.Duration) ([]string, error) {
	return s.stale, nil
}

type fakeProvider struct {
	err error
}

func (p *fakeProvider) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &market.Snapshot{Symbol: symbol, Last: 36.5}, nil
}

func (p *fakeProvider) OptionChain(ctx context.Context, symbol string) ([]market.OptionQuote, error) {
	return nil, nil
}

func (p *fakeProvider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	return nil, nil
}

type fakeSink struct {
	mu         sync.Mutex
	titles     []string
	priorities []notify.Priority
}

func (s *fakeSink) Send(ctx context.Context, title, text string, priority notify.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	s.priorities = append(s.priorities, priority)
	return nil
}

func (s *fakeSink) SendProposalForApproval(ctx context.Context, p strategy.Proposal) error {
	return nil
}

func (s *fakeSink) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func testClock(t *testing.T) *sessionclock.Clock {
	t.Helper()
	clock, err := sessionclock.New(sessionclock.Config{})
	require.NoError(t, err)
	return clock
}

// Monday 2025-06-02 at the given local time in Sao Paulo.
func localTime(t *testing.T, hhmm string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	parsed, err := time.ParseInLocation("2006-01-02 15:04", "2025-06-02 "+hhmm, loc)
	require.NoError(t, err)
	return parsed
}

func newMonitor(t *testing.T, cfg Config, store *fakeStore, provider *fakeProvider, sink *fakeSink) *Monitor {
	t.Helper()
	m := NewMonitor(cfg, store, provider, sink, testClock(t))
	m.now = func() time.Time { return localTime(t, "11:00") }
	return m
}

func TestCheckAllHealthy(t *testing.T) {
	store := &fakeStore{captures: 12}
	m := newMonitor(t, Config{CanarySymbol: "PETR4"}, store, &fakeProvider{}, &fakeSink{})

	issues := m.Check(context.Background())

	assert.Empty(t, issues)
}

func TestCheckFlagsZeroCapturesDuringTrading(t *testing.T) {
	store := &fakeStore{captures: 0}
	m := newMonitor(t, Config{}, store, &fakeProvider{}, &fakeSink{})

	issues := m.Check(context.Background())

	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "no market captures")
}

func TestCheckZeroCapturesFineWhileClosed(t *testing.T) {
	store := &fakeStore{captures: 0}
	m := newMonitor(t, Config{}, store, &fakeProvider{}, &fakeSink{})
	m.now = func() time.Time { return localTime(t, "22:00") }

	assert.Empty(t, m.Check(context.Background()))
}

func TestCheckCollectsEveryIssue(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("connection refused"), stale: []string{"p1", "p2"}}
	provider := &fakeProvider{err: errors.New("gateway timeout")}
	m := newMonitor(t, Config{CanarySymbol: "PETR4"}, store, provider, &fakeSink{})

	issues := m.Check(context.Background())

	require.Len(t, issues, 3)
	assert.Contains(t, issues[0], "store ping failed")
	assert.Contains(t, issues[1], "canary PETR4 failed")
	assert.Contains(t, issues[2], "2 proposals awaiting approval")
}

func TestEscalatesAfterConsecutiveFailures(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("down")}
	sink := &fakeSink{}
	m := newMonitor(t, Config{EscalateAfter: 3}, store, &fakeProvider{}, sink)

	ctx := context.Background()
	m.tick(ctx)
	m.tick(ctx)
	assert.Empty(t, sink.sent(), "no escalation before the threshold")

	m.tick(ctx)
	require.Len(t, sink.sent(), 1)
	assert.Equal(t, "Health check failing", sink.sent()[0])
	assert.Equal(t, notify.PriorityCritical, sink.priorities[0])
}

func TestRecoveryResetsStreak(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("down")}
	sink := &fakeSink{}
	m := newMonitor(t, Config{EscalateAfter: 3}, store, &fakeProvider{}, sink)

	ctx := context.Background()
	m.tick(ctx)
	m.tick(ctx)
	store.pingErr = nil
	m.tick(ctx)
	store.pingErr = errors.New("down again")
	m.tick(ctx)
	m.tick(ctx)

	assert.Empty(t, sink.sent(), "streak restarted after recovery")
}

func TestDailyReportFiresOncePerDate(t *testing.T) {
	store := &fakeStore{captures: 40}
	sink := &fakeSink{}
	m := newMonitor(t, Config{ReportTimes: []string{"11:00", "18:05"}}, store, &fakeProvider{}, sink)

	ctx := context.Background()
	m.maybeReport(ctx)
	m.maybeReport(ctx)

	require.Len(t, sink.sent(), 1)
	assert.Equal(t, "Daily health report", sink.sent()[0])

	m.now = func() time.Time { return localTime(t, "18:05") }
	m.maybeReport(ctx)
	assert.Len(t, sink.sent(), 2)
}

func TestReportOffScheduleSendsNothing(t *testing.T) {
	sink := &fakeSink{}
	m := newMonitor(t, Config{ReportTimes: []string{"18:05"}}, &fakeStore{captures: 1}, &fakeProvider{}, sink)

	m.maybeReport(context.Background())

	assert.Empty(t, sink.sent())
}
