package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/market"
)

type stubStrategy struct {
	name      string
	proposals []Proposal
	err       error
	panics    bool
	calls     int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Generate(ctx context.Context, now time.Time, snaps map[string]*market.Snapshot, chains map[string][]market.OptionQuote) ([]Proposal, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.proposals, s.err
}

func proposalFor(strategyName, symbol string) Proposal {
	return NewProposal(time.Now(), strategyName, symbol, SideBuy, 100, 10, nil)
}

func TestEngineIsolatesFailures(t *testing.T) {
	good := &stubStrategy{name: "good", proposals: []Proposal{proposalFor("good", "PETR4")}}
	bad := &stubStrategy{name: "bad", err: errors.New("feed broken")}
	panicky := &stubStrategy{name: "panicky", panics: true}

	e := NewEngine([]Strategy{bad, panicky, good}, 50, []string{"PETR4"})
	out, failures := e.Run(context.Background(), time.Now(), nil, nil)

	require.Len(t, out, 1)
	assert.Equal(t, "PETR4", out[0].Symbol)
	assert.Equal(t, 1, good.calls, "sibling failures must not suppress healthy strategies")
	assert.Len(t, failures, 2)
	assert.Error(t, failures["bad"])
	assert.Contains(t, failures["panicky"].Error(), "panicked")
}

func TestEngineAppliesAllowlist(t *testing.T) {
	s := &stubStrategy{name: "s", proposals: []Proposal{
		proposalFor("s", "PETR4"),
		proposalFor("s", "GME"),
	}}
	e := NewEngine([]Strategy{s}, 50, []string{"PETR4", "VALE3"})
	out, failures := e.Run(context.Background(), time.Now(), nil, nil)

	assert.Empty(t, failures)
	require.Len(t, out, 1)
	assert.Equal(t, "PETR4", out[0].Symbol)
}

func TestEngineCapsOutput(t *testing.T) {
	var many []Proposal
	for i := 0; i < 10; i++ {
		many = append(many, proposalFor("s", "PETR4"))
	}
	s := &stubStrategy{name: "s", proposals: many}
	e := NewEngine([]Strategy{s}, 3, []string{"PETR4"})
	out, _ := e.Run(context.Background(), time.Now(), nil, nil)
	assert.Len(t, out, 3)
}

func TestEngineDeterministicOrder(t *testing.T) {
	a := &stubStrategy{name: "alpha", proposals: []Proposal{proposalFor("alpha", "VALE3"), proposalFor("alpha", "PETR4")}}
	b := &stubStrategy{name: "beta", proposals: []Proposal{proposalFor("beta", "PETR4")}}

	e := NewEngine([]Strategy{b, a}, 50, []string{"PETR4", "VALE3"})
	first, _ := e.Run(context.Background(), time.Now(), nil, nil)
	second, _ := e.Run(context.Background(), time.Now(), nil, nil)

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].Strategy, second[i].Strategy)
		assert.Equal(t, first[i].Symbol, second[i].Symbol)
	}
	// Sorted by strategy then symbol.
	assert.Equal(t, "alpha", first[0].Strategy)
	assert.Equal(t, "PETR4", first[0].Symbol)
	assert.Equal(t, "beta", first[2].Strategy)
}

func TestFromConfigRespectsEnabledList(t *testing.T) {
	cfg := &Config{
		Enabled:  []string{"momentum", "pairs_ratio"},
		Universe: []string{"PETR4"},
	}
	cfg.applyDefaults()
	e := FromConfig(cfg)
	require.Len(t, e.Strategies(), 2)
	assert.Equal(t, "momentum", e.Strategies()[0].Name())
	assert.Equal(t, "pairs_ratio", e.Strategies()[1].Name())
}
