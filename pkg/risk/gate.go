// Package risk gates strategy proposals against portfolio limits. The gate
// itself is pure: it never writes the audit row, it only decides. The
// orchestrator persists exactly one evaluation per call, approvals included.
package risk

import (
	"fmt"
	"math"
	"sync/atomic"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/strategy"
)

// Decision is the gate outcome for one proposal.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionModify  Decision = "MODIFY"
	DecisionReject  Decision = "REJECT"
)

// Config carries every limit the gate consumes. No silent defaults: zero
// disables a check explicitly.
type Config struct {
	MaxExposureRatio    float64 `yaml:"max_exposure_ratio" json:",default=0.5"` // open+new notional vs NAV
	MaxPortfolioDelta   float64 `yaml:"max_portfolio_delta" json:",optional"`
	MaxPortfolioGamma   float64 `yaml:"max_portfolio_gamma" json:",optional"`
	MaxPortfolioVega    float64 `yaml:"max_portfolio_vega" json:",optional"`
	MaxPositionNotional float64 `yaml:"max_position_notional" json:",optional"` // clamp, not reject
}

// Portfolio is the point-in-time view the gate evaluates against, assembled
// by the orchestrator from the store.
type Portfolio struct {
	NAV          float64
	OpenNotional float64
	Positions    int
	Greeks       market.Greeks
}

// Evaluation is the gate verdict. On MODIFY, Proposal carries the clamped
// quantity; otherwise it echoes the input.
type Evaluation struct {
	Decision Decision
	Proposal strategy.Proposal
	Reason   string
}

// Gate evaluates proposals in a fixed check order, short-circuiting on the
// first failure: kill-switch, exposure, greeks, then the size clamp.
type Gate struct {
	cfg        Config
	killSwitch atomic.Bool
}

// NewGate builds a gate from configuration.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// SetKillSwitch flips the global halt. When active every proposal is
// rejected until released.
func (g *Gate) SetKillSwitch(active bool) { g.killSwitch.Store(active) }

// KillSwitchActive reports the current halt state.
func (g *Gate) KillSwitchActive() bool { return g.killSwitch.Load() }

// proposalGreeks extracts the per-contract sensitivities a strategy attached
// to its proposal. Proposals without greeks contribute only notional.
func proposalGreeks(p *strategy.Proposal) market.Greeks {
	sign := 1.0
	if p.Side == strategy.SideSell {
		sign = -1
	}
	qty := float64(p.Quantity) * sign
	return market.Greeks{
		Delta: p.Metadata["option_delta"] * qty,
		Gamma: p.Metadata["option_gamma"] * qty,
		Vega:  p.Metadata["option_vega"] * qty,
	}
}

// Evaluate runs the check chain for one proposal.
func (g *Gate) Evaluate(p strategy.Proposal, portfolio Portfolio) Evaluation {
	if g.killSwitch.Load() {
		return Evaluation{
			Decision: DecisionReject,
			Proposal: p,
			Reason:   "kill switch active",
		}
	}

	if g.cfg.MaxExposureRatio > 0 && portfolio.NAV > 0 {
		projected := portfolio.OpenNotional + p.Notional()
		limit := portfolio.NAV * g.cfg.MaxExposureRatio
		if projected > limit {
			return Evaluation{
				Decision: DecisionReject,
				Proposal: p,
				Reason: fmt.Sprintf("exposure %.2f exceeds limit %.2f (%.0f%% of NAV %.2f)",
					projected, limit, g.cfg.MaxExposureRatio*100, portfolio.NAV),
			}
		}
	}

	pg := proposalGreeks(&p)
	if reason := g.checkGreek("delta", portfolio.Greeks.Delta, pg.Delta, g.cfg.MaxPortfolioDelta); reason != "" {
		return Evaluation{Decision: DecisionReject, Proposal: p, Reason: reason}
	}
	if reason := g.checkGreek("gamma", portfolio.Greeks.Gamma, pg.Gamma, g.cfg.MaxPortfolioGamma); reason != "" {
		return Evaluation{Decision: DecisionReject, Proposal: p, Reason: reason}
	}
	if reason := g.checkGreek("vega", portfolio.Greeks.Vega, pg.Vega, g.cfg.MaxPortfolioVega); reason != "" {
		return Evaluation{Decision: DecisionReject, Proposal: p, Reason: reason}
	}

	if g.cfg.MaxPositionNotional > 0 && p.Notional() > g.cfg.MaxPositionNotional && p.Price > 0 {
		clamped := int(g.cfg.MaxPositionNotional/p.Price) / 100 * 100
		if clamped <= 0 {
			return Evaluation{
				Decision: DecisionReject,
				Proposal: p,
				Reason:   fmt.Sprintf("position notional %.2f cannot be clamped under %.2f", p.Notional(), g.cfg.MaxPositionNotional),
			}
		}
		modified := p
		modified.Quantity = clamped
		return Evaluation{
			Decision: DecisionModify,
			Proposal: modified,
			Reason:   fmt.Sprintf("quantity clamped from %d to %d by position notional cap %.2f", p.Quantity, clamped, g.cfg.MaxPositionNotional),
		}
	}

	return Evaluation{Decision: DecisionApprove, Proposal: p, Reason: "within limits"}
}

func (g *Gate) checkGreek(name string, current, incoming, limit float64) string {
	if limit <= 0 {
		return ""
	}
	projected := math.Abs(current + incoming)
	if projected > limit {
		return fmt.Sprintf("portfolio %s %.2f exceeds cap %.2f after proposal", name, projected, limit)
	}
	return ""
}
