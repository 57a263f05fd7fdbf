package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func minDispersionInput(quantity int64, accounts []Account) Input {
	return Input{
		Order:    Order{SecurityID: "912828ZW8", Side: SideBuy, Quantity: quantity},
		Security: Security{CUSIP: "912828ZW8", Price: 1.0, SpreadDuration: 5.0, Duration: 4.0, OAS: 80, MinDenomination: 1000},
		Accounts: accounts,
		Params: Parameters{
			TargetMetric:  MetricActiveSpreadDuration,
			Tolerance:     1e-6,
			MaxIterations: 1000,
		},
		Constraints:   DefaultConstraints(1000),
		SolverTimeout: 5 * time.Second,
	}
}

func dispersedAccounts() []Account {
	return []Account{
		{AccountID: "A", AccountName: "Account A", NAV: 100_000_000, AvailableCash: 50_000_000, ActiveSpreadDuration: 0.30},
		{AccountID: "B", AccountName: "Account B", NAV: 150_000_000, AvailableCash: 50_000_000, ActiveSpreadDuration: 0.10},
		{AccountID: "C", AccountName: "Account C", NAV: 80_000_000, AvailableCash: 50_000_000, ActiveSpreadDuration: -0.20},
	}
}

func TestMinDispersion_ReducesOrFallsBack(t *testing.T) {
	in := minDispersionInput(10_000_000, dispersedAccounts())

	strategy := &MinDispersionStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, proposal.Quantities, 3)

	// Conservation and lot-size invariants hold regardless of convergence
	var total int64
	for _, q := range proposal.Quantities {
		assert.GreaterOrEqual(t, q, int64(0))
		assert.Zero(t, q%1000)
		total += q
	}
	assert.LessOrEqual(t, total, in.Order.Quantity)

	// Whether solved or fallen back, the result never disperses worse than
	// the pro-rata split it starts from.
	proRata, err := (&ProRataStrategy{log: zerolog.Nop()}).Allocate(context.Background(), in)
	require.NoError(t, err)

	impact := PerUnitImpact(in.Security, MetricActiveSpreadDuration, SideBuy)
	postStd := func(quantities []int64) float64 {
		post := make([]float64, len(in.Accounts))
		for i, acct := range in.Accounts {
			post[i] = acct.ActiveSpreadDuration + float64(quantities[i])*impact
		}
		return stat.PopStdDev(post, nil)
	}

	assert.LessOrEqual(t, postStd(proposal.Quantities), postStd(proRata.Quantities)+1e-6)
}

func TestMinDispersion_RespectsCashCaps(t *testing.T) {
	accounts := dispersedAccounts()
	accounts[2].AvailableCash = 500_000 // C can barely participate

	in := minDispersionInput(10_000_000, accounts)

	strategy := &MinDispersionStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)

	assert.LessOrEqual(t, proposal.Quantities[2], int64(500_000))
}

func TestMinDispersion_EmptyAccounts(t *testing.T) {
	in := minDispersionInput(1_000_000, nil)

	strategy := &MinDispersionStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, proposal.Quantities)
}

func TestMinDispersion_DefaultsApplied(t *testing.T) {
	in := minDispersionInput(1_000_000, dispersedAccounts())
	in.Params = Parameters{} // No metric, tolerance, or iteration cap

	strategy := &MinDispersionStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, proposal.Quantities, 3)
}
