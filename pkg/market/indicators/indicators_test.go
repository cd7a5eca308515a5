package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ema := EMA(prices, 3)
	require.Len(t, ema, len(prices))

	assert.True(t, math.IsNaN(ema[0]))
	assert.True(t, math.IsNaN(ema[1]))
	// Seed is the SMA of the first window.
	assert.InDelta(t, 2.0, ema[2], 1e-9)
	// EMA trails a rising series from below.
	assert.Less(t, ema[len(ema)-1], prices[len(prices)-1])
	assert.Greater(t, ema[len(ema)-1], ema[len(ema)-2])
}

func TestEMAShortSeries(t *testing.T) {
	ema := EMA([]float64{1, 2}, 5)
	require.Len(t, ema, 2)
	for _, v := range ema {
		assert.True(t, math.IsNaN(v))
	}
	assert.Empty(t, EMA(nil, 3))
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	rsi := RSI(up, 5)
	assert.InDelta(t, 100.0, rsi[len(rsi)-1], 1e-9)

	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	rsi = RSI(down, 5)
	assert.InDelta(t, 0.0, rsi[len(rsi)-1], 1e-9)

	flat := []float64{5, 5, 5, 5, 5, 5, 5}
	rsi = RSI(flat, 5)
	assert.InDelta(t, 50.0, rsi[len(rsi)-1], 1e-9)
}

func TestRealizedVol(t *testing.T) {
	flat := []float64{100, 100, 100, 100, 100}
	assert.InDelta(t, 0.0, RealizedVol(flat, 252), 1e-9)

	wavy := []float64{100, 105, 98, 107, 95, 104}
	vol := RealizedVol(wavy, 252)
	assert.False(t, math.IsNaN(vol))
	assert.Greater(t, vol, 0.0)

	assert.True(t, math.IsNaN(RealizedVol([]float64{100}, 252)))
	assert.True(t, math.IsNaN(RealizedVol([]float64{100, -5, 100}, 252)))
}

func TestZScore(t *testing.T) {
	series := []float64{1, 1, 1, 1, 5}
	z := ZScore(series)
	assert.Greater(t, z, 1.0)

	centered := []float64{-1, 1, -1, 1, 0}
	assert.InDelta(t, 0.0, ZScore(centered), 1e-9)

	assert.True(t, math.IsNaN(ZScore([]float64{3})))
	assert.True(t, math.IsNaN(ZScore([]float64{2, 2, 2})))
}
