package market_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/market"
	"daytrader-api/pkg/market/sim"
)

func TestFetchAllCollectsEverySymbol(t *testing.T) {
	p := sim.New(7)
	p.AddSymbol("PETR4")
	p.AddSymbol("VALE3")
	p.SetChain("PETR4", []market.OptionQuote{{Symbol: "PETRF252", Underlying: "PETR4", Strike: 36}})

	res := market.FetchAll(context.Background(), p, []string{"PETR4", "VALE3"}, time.Second, true)

	require.Len(t, res.Snapshots, 2)
	assert.Empty(t, res.Errors)
	assert.False(t, res.Failed())
	assert.Equal(t, "PETR4", res.Snapshots["PETR4"].Symbol)
	require.Len(t, res.Chains["PETR4"], 1)
	assert.NotContains(t, res.Chains, "VALE3", "unscripted chain stays absent")
}

func TestFetchAllPartialFailureKeepsSurvivors(t *testing.T) {
	p := sim.New(7)
	p.AddSymbol("PETR4")
	p.AddSymbol("VALE3")
	p.FailSymbol("VALE3", errors.New("gateway timeout"))

	res := market.FetchAll(context.Background(), p, []string{"PETR4", "VALE3"}, time.Second, false)

	require.Len(t, res.Snapshots, 1)
	assert.Contains(t, res.Snapshots, "PETR4")
	require.Len(t, res.Errors, 1)
	assert.EqualError(t, res.Errors["VALE3"], "gateway timeout")
	assert.False(t, res.Failed())
}

func TestFetchAllTotalFailure(t *testing.T) {
	p := sim.New(7)
	p.AddSymbol("PETR4")
	p.FailSymbol("PETR4", errors.New("down"))

	res := market.FetchAll(context.Background(), p, []string{"PETR4"}, time.Second, false)

	assert.Empty(t, res.Snapshots)
	assert.True(t, res.Failed())
}

func TestFetchAllCancelledContext(t *testing.T) {
	p := sim.New(7)
	p.AddSymbol("PETR4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := market.FetchAll(ctx, p, []string{"PETR4"}, time.Second, false)

	assert.Empty(t, res.Snapshots)
	assert.ErrorIs(t, res.Errors["PETR4"], context.Canceled)
}
