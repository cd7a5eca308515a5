package session

import (
	"fmt"
	"time"
)

// Config tunes the orchestrator loops. Durations arrive parsed by the
// outer config layer.
type Config struct {
	Interval         time.Duration `yaml:"interval" json:",default=300s"`
	CutoffHour       int           `yaml:"cutoff_hour" json:",default=15"`
	EODStart         string        `yaml:"eod_start" json:",default=17:00"`
	EODEnd           string        `yaml:"eod_end" json:",default=18:00"`
	ApprovalInterval time.Duration `yaml:"approval_interval" json:",default=5s"`
	MaxDataFailures  int           `yaml:"max_data_failures" json:",default=3"`
	SlippageRate     float64       `yaml:"slippage_rate" json:",default=0.001"`
	CommissionRate   float64       `yaml:"commission_rate" json:",default=0.0005"`
	InitialNAV       float64       `yaml:"initial_nav" json:",default=100000"`
	PerSymbolTimeout time.Duration `yaml:"per_symbol_timeout" json:",default=15s"`
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 300 * time.Second
	}
	if c.CutoffHour <= 0 {
		c.CutoffHour = 15
	}
	if c.EODStart == "" {
		c.EODStart = "17:00"
	}
	if c.EODEnd == "" {
		c.EODEnd = "18:00"
	}
	if c.ApprovalInterval <= 0 {
		c.ApprovalInterval = 5 * time.Second
	}
	if c.MaxDataFailures <= 0 {
		c.MaxDataFailures = 3
	}
	if c.InitialNAV <= 0 {
		c.InitialNAV = 100_000
	}
	if c.PerSymbolTimeout <= 0 {
		c.PerSymbolTimeout = 15 * time.Second
	}
}

// Validate rejects configs whose end-of-day window is empty or malformed.
func (c *Config) Validate() error {
	start, err := parseDayMinute(c.EODStart)
	if err != nil {
		return fmt.Errorf("session: eod_start: %w", err)
	}
	end, err := parseDayMinute(c.EODEnd)
	if err != nil {
		return fmt.Errorf("session: eod_end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("session: eod window %q..%q is empty", c.EODStart, c.EODEnd)
	}
	if c.CutoffHour < 0 || c.CutoffHour > 23 {
		return fmt.Errorf("session: cutoff_hour %d out of range", c.CutoffHour)
	}
	return nil
}

// parseDayMinute converts "HH:MM" to minutes from midnight.
func parseDayMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func dayMinute(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
