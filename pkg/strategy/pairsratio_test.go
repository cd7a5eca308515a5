package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/market"
)

func pairsCfg() PairsRatioConfig {
	return PairsRatioConfig{
		Pairs:       []PairConfig{{Long: "PETR4", Short: "PETR3"}},
		Window:      10,
		EntryZ:      2.0,
		NotionalBRL: 10000,
	}
}

func feedPair(t *testing.T, p *PairsRatio, longPx, shortPx float64, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, err := p.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
			"PETR4": snapWith("PETR4", longPx, longPx, 1, 1),
			"PETR3": snapWith("PETR3", shortPx, shortPx, 1, 1),
		}, nil)
		require.NoError(t, err)
	}
}

func TestPairsRatioNeedsFullWindow(t *testing.T) {
	p := NewPairsRatio(pairsCfg())
	// Even a wild ratio move produces nothing before the window fills.
	feedPair(t, p, 25.0, 25.0, 5)
	out, err := p.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 40.0, 40.0, 1, 1),
		"PETR3": snapWith("PETR3", 25.0, 25.0, 1, 1),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPairsRatioProposesBothLegsOnStretch(t *testing.T) {
	p := NewPairsRatio(pairsCfg())
	feedPair(t, p, 25.0, 25.0, 9)

	// Tenth observation stretches the ratio far above its window mean.
	out, err := p.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 30.0, 30.0, 1, 1),
		"PETR3": snapWith("PETR3", 25.0, 25.0, 1, 1),
	}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	bySide := map[Side]Proposal{}
	for _, pr := range out {
		bySide[pr.Side] = pr
	}
	assert.Equal(t, "PETR4", bySide[SideSell].Symbol, "rich leg is sold")
	assert.Equal(t, "PETR3", bySide[SideBuy].Symbol, "cheap leg is bought")
	assert.Greater(t, bySide[SideSell].Metadata["zscore"], 2.0)
}

func TestPairsRatioQuietInsideBand(t *testing.T) {
	p := NewPairsRatio(pairsCfg())
	// Alternate the ratio so the window has realistic dispersion, then land
	// the last observation near the middle of the band.
	for i := 0; i < 10; i++ {
		longPx := 25.0
		if i%2 == 0 {
			longPx = 25.5
		}
		feedPair(t, p, longPx, 25.0, 1)
	}
	out, err := p.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 25.25, 25.25, 1, 1),
		"PETR3": snapWith("PETR3", 25.0, 25.0, 1, 1),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPairsRatioMissingLegSkipsPair(t *testing.T) {
	p := NewPairsRatio(pairsCfg())
	out, err := p.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
		"PETR4": snapWith("PETR4", 25.0, 25.0, 1, 1),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFutMomentumBreakout(t *testing.T) {
	cfg := FutMomentumConfig{
		Symbols:     []string{"WINQ25"},
		Window:      5,
		NotionalBRL: 100000,
	}
	f := NewFutMomentum(cfg)

	// Fill the rolling window with a flat series.
	for i := 0; i < 6; i++ {
		out, err := f.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
			"WINQ25": snapWith("WINQ25", 120000, 120000, 1, 1),
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	}

	// Break above the rolling high.
	out, err := f.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
		"WINQ25": snapWith("WINQ25", 120000, 121000, 1, 1),
	}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SideBuy, out[0].Side)
	assert.InDelta(t, 120000, out[0].Metadata["roll_high"], 1e-9)

	// Break below the rolling low on a fresh instance.
	f2 := NewFutMomentum(cfg)
	for i := 0; i < 6; i++ {
		_, err := f2.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
			"WINQ25": snapWith("WINQ25", 120000, 120000, 1, 1),
		}, nil)
		require.NoError(t, err)
	}
	out, err = f2.Generate(context.Background(), time.Now(), map[string]*market.Snapshot{
		"WINQ25": snapWith("WINQ25", 120000, 118000, 1, 1),
	}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SideSell, out[0].Side)
}

func TestVolMispricingEdges(t *testing.T) {
	cfg := VolMispricingConfig{
		MinEdge:      0.10,
		MinDaysToExp: 5,
		MaxDaysToExp: 60,
		NotionalBRL:  5000,
	}
	v := NewVolMispricing(cfg)
	now := time.Now()

	// Build enough history for a realized-vol estimate on a fairly calm
	// series; implied vol is far richer than realized.
	closes := []float64{25.0, 25.1, 24.9, 25.05, 25.0, 25.1, 25.0}
	quote := callQuote("PETRF260", 0.45, 1.00, 1.05, 30, now)
	quote.ImpliedVol = 3.0

	var out []Proposal
	var err error
	for _, px := range closes {
		out, err = v.Generate(context.Background(), now, map[string]*market.Snapshot{
			"PETR4": snapWith("PETR4", px, px, 1, 1),
		}, map[string][]market.OptionQuote{"PETR4": {quote}})
		require.NoError(t, err)
	}
	require.Len(t, out, 1)
	assert.Equal(t, SideSell, out[0].Side, "implied above realized sells the option")
	assert.Greater(t, out[0].Metadata["edge"], 0.10)
}
