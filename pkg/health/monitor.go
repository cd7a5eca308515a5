// Package health runs an independent audit loop over the store and market
// provider, reporting through the notification sink.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/notify"
	"daytrader-api/pkg/sessionclock"
)

// Store is the slice of persistence the monitor audits.
type Store interface {
	Ping(ctx context.Context) error
	CaptureCount(ctx context.Context, tradeDate string) (int, error)
	StaleSentProposals(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Config tunes the monitor loop.
type Config struct {
	Interval        time.Duration `yaml:"interval" json:",default=3600s"`
	ReportTimes     []string      `yaml:"report_times" json:",optional"` // "HH:MM" local
	CanarySymbol    string        `yaml:"canary_symbol" json:",optional"`
	StaleAfter      time.Duration `yaml:"stale_after" json:",default=30m"`
	EscalateAfter   int           `yaml:"escalate_after" json:",default=3"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" json:",default=10s"`
}

// Monitor audits store and provider health on a fixed cadence and emits a
// human report at the configured daily times.
type Monitor struct {
	cfg      Config
	store    Store
	provider market.Provider
	sink     notify.Sink
	clock    *sessionclock.Clock

	consecutiveFailures int
	lastReportDate      map[string]string // report time -> date already sent
	now                 func() time.Time
}

// NewMonitor builds a health monitor.
func NewMonitor(cfg Config, store Store, provider market.Provider, sink notify.Sink, clock *sessionclock.Clock) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.EscalateAfter <= 0 {
		cfg.EscalateAfter = 3
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	return &Monitor{
		cfg:            cfg,
		store:          store,
		provider:       provider,
		sink:           sink,
		clock:          clock,
		lastReportDate: make(map[string]string),
		now:            time.Now,
	}
}

// Run loops until the context is cancelled. Report times are checked every
// minute so a "09:50" entry fires once per day.
func (m *Monitor) Run(ctx context.Context) {
	audit := time.NewTicker(m.cfg.Interval)
	defer audit.Stop()
	reports := time.NewTicker(time.Minute)
	defer reports.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-audit.C:
			m.tick(ctx)
		case <-reports.C:
			m.maybeReport(ctx)
		}
	}
}

// Check runs one audit and returns its findings.
func (m *Monitor) Check(ctx context.Context) (issues []string) {
	now := m.now().In(m.clock.Location())
	tradeDate := m.clock.TradingDate(now)

	if err := m.store.Ping(ctx); err != nil {
		issues = append(issues, fmt.Sprintf("store ping failed: %v", err))
	} else if count, err := m.store.CaptureCount(ctx, tradeDate); err != nil {
		issues = append(issues, fmt.Sprintf("capture count failed: %v", err))
	} else if count == 0 && m.clock.Phase(now) == sessionclock.PhaseTrading {
		issues = append(issues, "no market captures recorded during trading hours")
	}

	if m.provider != nil && m.cfg.CanarySymbol != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.ProviderTimeout)
		_, err := m.provider.Snapshot(fetchCtx, m.cfg.CanarySymbol)
		cancel()
		if err != nil {
			issues = append(issues, fmt.Sprintf("provider canary %s failed: %v", m.cfg.CanarySymbol, err))
		}
	}

	stale, err := m.store.StaleSentProposals(ctx, m.cfg.StaleAfter)
	if err != nil {
		issues = append(issues, fmt.Sprintf("stale proposal scan failed: %v", err))
	} else if len(stale) > 0 {
		issues = append(issues, fmt.Sprintf("%d proposals awaiting approval for over %s", len(stale), m.cfg.StaleAfter))
	}
	return issues
}

func (m *Monitor) tick(ctx context.Context) {
	issues := m.Check(ctx)
	if len(issues) == 0 {
		if m.consecutiveFailures > 0 {
			logx.Infof("health: recovered after %d failed audits", m.consecutiveFailures)
		}
		m.consecutiveFailures = 0
		return
	}

	m.consecutiveFailures++
	logx.Errorf("health: audit found %d issues (streak %d): %s",
		len(issues), m.consecutiveFailures, strings.Join(issues, "; "))
	if m.consecutiveFailures >= m.cfg.EscalateAfter {
		if err := m.sink.Send(ctx, "Health check failing",
			fmt.Sprintf("%d consecutive failed audits:\n%s", m.consecutiveFailures, strings.Join(issues, "\n")),
			notify.PriorityCritical); err != nil {
			logx.Errorf("health: escalation send: %v", err)
		}
	}
}

func (m *Monitor) maybeReport(ctx context.Context) {
	now := m.now().In(m.clock.Location())
	hhmm := now.Format("15:04")
	date := now.Format("2006-01-02")
	for _, at := range m.cfg.ReportTimes {
		if at != hhmm || m.lastReportDate[at] == date {
			continue
		}
		m.lastReportDate[at] = date
		m.sendReport(ctx, now)
	}
}

func (m *Monitor) sendReport(ctx context.Context, now time.Time) {
	tradeDate := m.clock.TradingDate(now)
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\n", m.clock.Phase(now))
	if count, err := m.store.CaptureCount(ctx, tradeDate); err == nil {
		fmt.Fprintf(&b, "Captures today: %d\n", count)
	}
	issues := m.Check(ctx)
	if len(issues) == 0 {
		b.WriteString("All checks passing")
	} else {
		fmt.Fprintf(&b, "Issues:\n%s", strings.Join(issues, "\n"))
	}
	if err := m.sink.Send(ctx, "Daily health report", b.String(), notify.PriorityInfo); err != nil {
		logx.Errorf("health: report send: %v", err)
	}
}
