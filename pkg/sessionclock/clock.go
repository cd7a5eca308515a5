// Package sessionclock derives the exchange session phase from wall-clock
// time. All functions are pure: the clock holds only immutable configuration,
// and every query recomputes the phase from the supplied instant. Edge-trigger
// bookkeeping ("did we already notify today") belongs to the caller.
package sessionclock

import (
	"fmt"
	"time"
)

// Phase enumerates the market session states.
type Phase int

const (
	PhaseClosed Phase = iota
	PhasePreMarket
	PhaseTrading
	PhasePostMarket
)

// String returns the canonical upper-snake name used in logs and persistence.
func (p Phase) String() string {
	switch p {
	case PhasePreMarket:
		return "PRE_MARKET"
	case PhaseTrading:
		return "TRADING"
	case PhasePostMarket:
		return "POST_MARKET"
	default:
		return "CLOSED"
	}
}

// Config describes the exchange timetable. Times are "HH:MM" strings in the
// exchange's local timezone and are parsed once at construction.
type Config struct {
	Timezone  string `yaml:"timezone" json:",default=America/Sao_Paulo"`
	PreOpen   string `yaml:"pre_open" json:",default=09:45"`
	Open      string `yaml:"open" json:",default=10:00"`
	Close     string `yaml:"close" json:",default=17:00"`
	PostClose string `yaml:"post_close" json:",default=17:30"`
}

// Clock answers session-phase queries for one exchange timetable.
type Clock struct {
	loc       *time.Location
	preOpen   dayMinute
	open      dayMinute
	close     dayMinute
	postClose dayMinute
}

// dayMinute is a minute offset from local midnight.
type dayMinute int

func parseDayMinute(s string) (dayMinute, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("sessionclock: parse time %q: %w", s, err)
	}
	return dayMinute(t.Hour()*60 + t.Minute()), nil
}

// New builds a Clock from configuration, applying the default B3-style
// timetable for any empty field.
func New(cfg Config) (*Clock, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Sao_Paulo"
	}
	if cfg.PreOpen == "" {
		cfg.PreOpen = "09:45"
	}
	if cfg.Open == "" {
		cfg.Open = "10:00"
	}
	if cfg.Close == "" {
		cfg.Close = "17:00"
	}
	if cfg.PostClose == "" {
		cfg.PostClose = "17:30"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sessionclock: load timezone %q: %w", cfg.Timezone, err)
	}
	c := &Clock{loc: loc}
	if c.preOpen, err = parseDayMinute(cfg.PreOpen); err != nil {
		return nil, err
	}
	if c.open, err = parseDayMinute(cfg.Open); err != nil {
		return nil, err
	}
	if c.close, err = parseDayMinute(cfg.Close); err != nil {
		return nil, err
	}
	if c.postClose, err = parseDayMinute(cfg.PostClose); err != nil {
		return nil, err
	}
	if !(c.preOpen < c.open && c.open < c.close && c.close < c.postClose) {
		return nil, fmt.Errorf("sessionclock: timetable must satisfy pre_open < open < close < post_close")
	}
	return c, nil
}

// MustNew is New that panics on invalid configuration.
func MustNew(cfg Config) *Clock {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the exchange timezone.
func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) minuteOf(now time.Time) dayMinute {
	local := now.In(c.loc)
	return dayMinute(local.Hour()*60 + local.Minute())
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// Phase maps an instant onto the session state machine. Weekends and any time
// outside the configured windows resolve to CLOSED. Holidays are deliberately
// not modelled; the weekday approximation is part of the contract.
func (c *Clock) Phase(now time.Time) Phase {
	local := now.In(c.loc)
	if isWeekend(local.Weekday()) {
		return PhaseClosed
	}
	m := c.minuteOf(now)
	switch {
	case m >= c.preOpen && m < c.open:
		return PhasePreMarket
	case m >= c.open && m < c.close:
		return PhaseTrading
	case m >= c.close && m < c.postClose:
		return PhasePostMarket
	default:
		return PhaseClosed
	}
}

// ShouldStartTrading reports whether the session-open notification window is
// active: any weekday instant from pre-open up to the close.
func (c *Clock) ShouldStartTrading(now time.Time) bool {
	local := now.In(c.loc)
	if isWeekend(local.Weekday()) {
		return false
	}
	m := c.minuteOf(now)
	return m >= c.preOpen && m < c.close
}

// ShouldStopTrading reports whether the close has passed for the current
// weekday. Level-triggered by design; the orchestrator edge-triggers it.
func (c *Clock) ShouldStopTrading(now time.Time) bool {
	local := now.In(c.loc)
	if isWeekend(local.Weekday()) {
		return false
	}
	return c.minuteOf(now) >= c.close
}

// NextOpen rolls forward to the next weekday open, skipping Saturdays and
// Sundays. When called before today's open on a weekday it returns today's
// open.
func (c *Clock) NextOpen(now time.Time) time.Time {
	local := now.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for {
		open := day.Add(time.Duration(c.open) * time.Minute)
		if !isWeekend(day.Weekday()) && open.After(local) {
			return open
		}
		day = day.AddDate(0, 0, 1)
	}
}

// TradingDate returns the calendar date string (exchange-local) used to key
// once-per-day actions such as the EOD close.
func (c *Clock) TradingDate(now time.Time) string {
	return now.In(c.loc).Format("2006-01-02")
}
