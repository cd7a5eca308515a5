package market

import "time"

// Source tags distinguish audit rows captured from a live feed from rows
// produced by the simulator.
const (
	SourceReal       = "real"
	SourceSimulation = "simulation"
)

// Snapshot is the normalized per-symbol market view consumed by strategies
// and captured into the audit store every polling iteration.
type Snapshot struct {
	Symbol     string    // Exchange ticker, e.g. "PETR4"
	Open       float64   // Session open price
	High       float64   // Session high
	Low        float64   // Session low
	Close      float64   // Previous close
	Last       float64   // Latest trade price
	Volume     float64   // Session traded volume
	AvgVolume  float64   // Trailing average daily volume
	CapturedAt time.Time // Snapshot timestamp (exchange-local)
	Source     string    // SourceReal or SourceSimulation
}

// VolumeRatio reports session volume relative to the trailing daily average.
// Returns zero when the average is unknown.
func (s *Snapshot) VolumeRatio() float64 {
	if s == nil || s.AvgVolume <= 0 {
		return 0
	}
	return s.Volume / s.AvgVolume
}

// IntradayReturn is the move from session open to last, as a fraction.
func (s *Snapshot) IntradayReturn() float64 {
	if s == nil || s.Open <= 0 {
		return 0
	}
	return (s.Last - s.Open) / s.Open
}

// OptionSide discriminates calls from puts.
type OptionSide string

const (
	OptionCall OptionSide = "CALL"
	OptionPut  OptionSide = "PUT"
)

// Greeks carries the option sensitivities supplied by the pricing source.
// The pipeline consumes them as inputs; no pricing model lives here.
type Greeks struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
}

// OptionQuote is one option-chain entry for an underlying.
type OptionQuote struct {
	Symbol       string // Option ticker, e.g. "PETRF252"
	Underlying   string // Underlying ticker
	Side         OptionSide
	Strike       float64
	Expiry       time.Time
	Bid          float64
	Ask          float64
	Last         float64
	ImpliedVol   float64
	Greeks       Greeks
	OpenInterest float64
}

// Mid returns the bid/ask midpoint, falling back to last when one side is
// missing.
func (q *OptionQuote) Mid() float64 {
	if q == nil {
		return 0
	}
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// SpreadRatio returns (ask-bid)/mid; zero when a side is missing.
func (q *OptionQuote) SpreadRatio() float64 {
	mid := q.Mid()
	if q == nil || q.Bid <= 0 || q.Ask <= 0 || mid <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid
}

// DaysToExpiry counts whole calendar days between now and expiry.
func (q *OptionQuote) DaysToExpiry(now time.Time) int {
	if q == nil || q.Expiry.IsZero() {
		return 0
	}
	d := q.Expiry.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Asset describes a tradeable instrument in the configured universe.
type Asset struct {
	Symbol   string
	Name     string
	Lot      int
	IsActive bool
}
