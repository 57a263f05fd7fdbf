package allocation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proRataInput(order Order, accounts []Account) Input {
	return Input{
		Order:       order,
		Security:    Security{CUSIP: "912828ZW8", Price: 1.0, SpreadDuration: 5.0, Duration: 4.0, OAS: 80, MinDenomination: 1000},
		Accounts:    accounts,
		Constraints: DefaultConstraints(1000),
	}
}

func TestProRata_SplitsByNAV(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", AccountName: "Account A", NAV: 100_000_000, AvailableCash: 5_000_000},
		{AccountID: "B", AccountName: "Account B", NAV: 150_000_000, AvailableCash: 8_000_000},
		{AccountID: "C", AccountName: "Account C", NAV: 80_000_000, AvailableCash: 3_000_000},
	}
	in := proRataInput(Order{SecurityID: "912828ZW8", Side: SideBuy, Quantity: 10_000_000}, accounts)

	strategy := &ProRataStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, proposal.Quantities, 3)

	// NAV weights 100:150:80 floor to lots, extra lot goes to the largest NAV
	assert.Equal(t, int64(3_030_000), proposal.Quantities[0])
	assert.Equal(t, int64(4_546_000), proposal.Quantities[1])
	assert.Equal(t, int64(2_424_000), proposal.Quantities[2])

	var total int64
	for _, q := range proposal.Quantities {
		total += q
	}
	assert.Equal(t, in.Order.Quantity, total)
}

func TestProRata_EqualNAVSplitsEvenly(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 50_000_000, AvailableCash: 10_000_000},
		{AccountID: "B", NAV: 50_000_000, AvailableCash: 10_000_000},
		{AccountID: "C", NAV: 50_000_000, AvailableCash: 10_000_000},
		{AccountID: "D", NAV: 50_000_000, AvailableCash: 10_000_000},
	}
	in := proRataInput(Order{SecurityID: "912828ZW8", Side: SideBuy, Quantity: 8_000_000}, accounts)

	strategy := &ProRataStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)

	for _, q := range proposal.Quantities {
		assert.Equal(t, int64(2_000_000), q)
	}
}

func TestProRata_CashBoundsBuy(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, AvailableCash: 1_000_000},
		{AccountID: "B", NAV: 100_000_000, AvailableCash: 50_000_000},
	}
	in := proRataInput(Order{SecurityID: "912828ZW8", Side: SideBuy, Quantity: 10_000_000}, accounts)

	strategy := &ProRataStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)

	// A is cash-capped at 1M; the remainder flows to B
	assert.Equal(t, int64(1_000_000), proposal.Quantities[0])
	assert.Equal(t, int64(9_000_000), proposal.Quantities[1])
}

func TestProRata_PositionBoundsSell(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, CurrentPosition: 2_000_000},
		{AccountID: "B", NAV: 100_000_000, CurrentPosition: 10_000_000},
	}
	in := proRataInput(Order{SecurityID: "912828ZW8", Side: SideSell, Quantity: 6_000_000}, accounts)

	strategy := &ProRataStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, int64(2_000_000), proposal.Quantities[0])
	assert.Equal(t, int64(4_000_000), proposal.Quantities[1])
}

func TestProRata_DenominationRoundingDisabled(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, AvailableCash: 5_000_000},
		{AccountID: "B", NAV: 150_000_000, AvailableCash: 8_000_000},
		{AccountID: "C", NAV: 80_000_000, AvailableCash: 3_000_000},
	}
	in := proRataInput(Order{SecurityID: "912828ZW8", Side: SideBuy, Quantity: 10_000_000}, accounts)
	in.Constraints.RoundToDenomination = false

	strategy := &ProRataStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)

	// Shares truncate to whole units, not 1000-lots; the one leftover unit
	// goes to the largest NAV
	assert.Equal(t, int64(3_030_303), proposal.Quantities[0])
	assert.Equal(t, int64(4_545_455), proposal.Quantities[1])
	assert.Equal(t, int64(2_424_242), proposal.Quantities[2])
}

func TestProRata_ZeroTotalNAV(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 0, AvailableCash: 1_000_000},
		{AccountID: "B", NAV: -5, AvailableCash: 1_000_000},
	}
	in := proRataInput(Order{SecurityID: "912828ZW8", Side: SideBuy, Quantity: 1_000_000}, accounts)

	strategy := &ProRataStrategy{log: zerolog.Nop()}
	proposal, err := strategy.Allocate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 0}, proposal.Quantities)
}
