package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/strategy"
)

func gateCfg() Config {
	return Config{
		MaxExposureRatio:    0.5,
		MaxPortfolioDelta:   1000,
		MaxPortfolioGamma:   200,
		MaxPortfolioVega:    500,
		MaxPositionNotional: 10_000,
	}
}

func proposal(side strategy.Side, qty int, price float64) strategy.Proposal {
	return strategy.NewProposal(time.Now(), "momentum_options", "PETR4", side, qty, price,
		map[string]float64{"option_delta": 0.5})
}

func flatPortfolio() Portfolio {
	return Portfolio{NAV: 100_000}
}

func TestGateApprovesWithinLimits(t *testing.T) {
	g := NewGate(gateCfg())

	ev := g.Evaluate(proposal(strategy.SideBuy, 1000, 2.5), flatPortfolio())

	assert.Equal(t, DecisionApprove, ev.Decision)
	assert.Equal(t, 1000, ev.Proposal.Quantity)
	assert.NotEmpty(t, ev.Reason)
}

func TestGateKillSwitchRejectsEverything(t *testing.T) {
	g := NewGate(gateCfg())
	g.SetKillSwitch(true)

	ev := g.Evaluate(proposal(strategy.SideBuy, 100, 1.0), flatPortfolio())
	assert.Equal(t, DecisionReject, ev.Decision)
	assert.Contains(t, ev.Reason, "kill switch")

	g.SetKillSwitch(false)
	ev = g.Evaluate(proposal(strategy.SideBuy, 100, 1.0), flatPortfolio())
	assert.Equal(t, DecisionApprove, ev.Decision)
}

func TestGateRejectsExcessExposure(t *testing.T) {
	g := NewGate(gateCfg())
	pf := Portfolio{NAV: 100_000, OpenNotional: 48_000}

	// 48k open plus 5k new breaches the 50k limit.
	ev := g.Evaluate(proposal(strategy.SideBuy, 2000, 2.5), pf)

	assert.Equal(t, DecisionReject, ev.Decision)
	assert.Contains(t, ev.Reason, "exposure")
}

func TestGateRejectsGreekBreach(t *testing.T) {
	g := NewGate(gateCfg())
	pf := Portfolio{NAV: 1_000_000, Greeks: market.Greeks{Delta: 900}}

	p := proposal(strategy.SideBuy, 1000, 2.0)
	p.Metadata["option_delta"] = 0.6 // 600 incoming delta on top of 900

	ev := g.Evaluate(p, pf)
	assert.Equal(t, DecisionReject, ev.Decision)
	assert.Contains(t, ev.Reason, "delta")
}

func TestGateSellOffsetsPortfolioDelta(t *testing.T) {
	g := NewGate(gateCfg())
	pf := Portfolio{NAV: 1_000_000, Greeks: market.Greeks{Delta: 900}}

	// Selling delta brings the book back toward flat, so the cap holds.
	p := proposal(strategy.SideSell, 1000, 2.0)
	p.Metadata["option_delta"] = 0.6

	ev := g.Evaluate(p, pf)
	assert.Equal(t, DecisionApprove, ev.Decision)
}

func TestGateClampsOversizedPosition(t *testing.T) {
	g := NewGate(gateCfg())

	// 20000 * 2.5 = 50k notional against a 10k cap: clamp to 4000 contracts.
	ev := g.Evaluate(proposal(strategy.SideBuy, 20_000, 2.5), flatPortfolio())

	assert.Equal(t, DecisionModify, ev.Decision)
	assert.Equal(t, 4000, ev.Proposal.Quantity)
	assert.Contains(t, ev.Reason, "clamped")
}

func TestGateRejectsWhenClampHitsZero(t *testing.T) {
	g := NewGate(Config{MaxPositionNotional: 50})

	// Even a single round lot exceeds the cap.
	ev := g.Evaluate(proposal(strategy.SideBuy, 100, 2.5), flatPortfolio())

	assert.Equal(t, DecisionReject, ev.Decision)
}

func TestGateDisabledChecksPass(t *testing.T) {
	g := NewGate(Config{})

	ev := g.Evaluate(proposal(strategy.SideBuy, 1_000_000, 100), Portfolio{})
	assert.Equal(t, DecisionApprove, ev.Decision)
}
