package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/market"
)

func momentumCfg() MomentumConfig {
	return MomentumConfig{
		MinReturn:      0.02,
		MinVolumeRatio: 1.5,
		MinDelta:       0.3,
		MaxDelta:       0.7,
		MaxSpreadRatio: 0.10,
		MinDaysToExp:   5,
		MaxDaysToExp:   45,
		NotionalBRL:    5000,
	}
}

func snapWith(symbol string, open, last, volume, avgVolume float64) *market.Snapshot {
	return &market.Snapshot{
		Symbol:    symbol,
		Open:      open,
		Last:      last,
		Volume:    volume,
		AvgVolume: avgVolume,
		Source:    market.SourceSimulation,
	}
}

func callQuote(symbol string, delta, bid, ask float64, dte int, now time.Time) market.OptionQuote {
	return market.OptionQuote{
		Symbol:       symbol,
		Underlying:   "PETR4",
		Side:         market.OptionCall,
		Strike:       26,
		Expiry:       now.AddDate(0, 0, dte),
		Bid:          bid,
		Ask:          ask,
		ImpliedVol:   0.35,
		Greeks:       market.Greeks{Delta: delta, Vega: 0.05},
		OpenInterest: 1000,
	}
}

func TestMomentumProposesCallOnUpMove(t *testing.T) {
	now := time.Now()
	m := NewMomentum(momentumCfg())

	snaps := map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 25.00, 25.80, 3_000_000, 1_500_000), // +3.2%, 2x volume
	}
	chains := map[string][]market.OptionQuote{
		"PETR4": {callQuote("PETRF260", 0.45, 1.00, 1.05, 20, now)},
	}

	out, err := m.Generate(context.Background(), now, snaps, chains)
	require.NoError(t, err)
	require.Len(t, out, 1)
	p := out[0]
	assert.Equal(t, "momentum", p.Strategy)
	assert.Equal(t, SideBuy, p.Side)
	assert.Equal(t, "PETR4", p.Symbol)
	assert.InDelta(t, 1.025, p.Price, 1e-9)
	assert.Equal(t, 4800, p.Quantity) // 5000 / 1.025 rounded down to a 100 lot
	assert.InDelta(t, 0.032, p.Metadata["underlying_return"], 1e-9)
	assert.InDelta(t, 0.45, p.Metadata["option_delta"], 1e-9)
}

func TestMomentumBelowThresholdsIsQuiet(t *testing.T) {
	now := time.Now()
	m := NewMomentum(momentumCfg())

	tests := []struct {
		name string
		snap *market.Snapshot
	}{
		{"small move", snapWith("PETR4", 25.00, 25.10, 3_000_000, 1_500_000)},
		{"thin volume", snapWith("PETR4", 25.00, 25.80, 1_000_000, 1_500_000)},
	}
	chains := map[string][]market.OptionQuote{
		"PETR4": {callQuote("PETRF260", 0.45, 1.00, 1.05, 20, now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Generate(context.Background(), now, map[string]*market.Snapshot{"PETR4": tt.snap}, chains)
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestMomentumOptionFilters(t *testing.T) {
	now := time.Now()
	m := NewMomentum(momentumCfg())
	snaps := map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 25.00, 25.80, 3_000_000, 1_500_000),
	}

	tests := []struct {
		name  string
		quote market.OptionQuote
	}{
		{"delta out of band", callQuote("PETRF260", 0.90, 1.00, 1.05, 20, now)},
		{"spread too wide", callQuote("PETRF260", 0.45, 1.00, 1.40, 20, now)},
		{"expiry too near", callQuote("PETRF260", 0.45, 1.00, 1.05, 2, now)},
		{"expiry too far", callQuote("PETRF260", 0.45, 1.00, 1.05, 90, now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Generate(context.Background(), now, snaps, map[string][]market.OptionQuote{"PETR4": {tt.quote}})
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestMomentumPicksMostLiquidContract(t *testing.T) {
	now := time.Now()
	m := NewMomentum(momentumCfg())
	snaps := map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 25.00, 25.80, 3_000_000, 1_500_000),
	}
	thin := callQuote("PETRF250", 0.40, 0.90, 0.95, 20, now)
	thin.OpenInterest = 100
	deep := callQuote("PETRF260", 0.50, 1.00, 1.05, 20, now)
	deep.OpenInterest = 9000

	out, err := m.Generate(context.Background(), now, snaps, map[string][]market.OptionQuote{"PETR4": {thin, deep}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.50, out[0].Metadata["option_delta"], 1e-9)
}

func TestMomentumDeterministicExceptID(t *testing.T) {
	now := time.Now()
	snaps := map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 25.00, 25.80, 3_000_000, 1_500_000),
	}
	chains := map[string][]market.OptionQuote{
		"PETR4": {callQuote("PETRF260", 0.45, 1.00, 1.05, 20, now)},
	}

	a, err := NewMomentum(momentumCfg()).Generate(context.Background(), now, snaps, chains)
	require.NoError(t, err)
	b, err := NewMomentum(momentumCfg()).Generate(context.Background(), now, snaps, chains)
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ID, b[0].ID)
	a[0].ID, b[0].ID = "", ""
	a[0].CreatedAt, b[0].CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, a[0], b[0])
}
