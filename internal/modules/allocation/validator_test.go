package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	flags []ComplianceFlag
	err   error
	seen  []AccountQuantity
}

func (c *stubChecker) Check(ctx context.Context, order Order, security Security, allocations []AccountQuantity) ([]ComplianceFlag, error) {
	c.seen = allocations
	return c.flags, c.err
}

func validatorInput(order Order, accounts []Account) Input {
	return Input{
		Order:       order,
		Security:    Security{CUSIP: "912828ZW8", Price: 1.0, SpreadDuration: 5.0, MinDenomination: 1000},
		Accounts:    accounts,
		Constraints: DefaultConstraints(1000),
	}
}

func TestValidator_CashClampWarns(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", AccountName: "Account A", NAV: 100_000_000, AvailableCash: 2_500_500},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 5_000_000}, accounts)

	v := NewValidator(nil, zerolog.Nop())
	out, warnings, err := v.Apply(context.Background(), in, []int64{5_000_000})
	require.NoError(t, err)

	// Clamped to cash and floored to the lot size
	assert.Equal(t, []int64{2_500_000}, out)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningInsufficientCash, warnings[0].Type)
	assert.Equal(t, "A", warnings[0].AccountID)
}

func TestValidator_SellClampsToPosition(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, CurrentPosition: 1_500_000},
	}
	in := validatorInput(Order{Side: SideSell, Quantity: 5_000_000}, accounts)

	v := NewValidator(nil, zerolog.Nop())
	out, warnings, err := v.Apply(context.Background(), in, []int64{3_000_000})
	require.NoError(t, err)

	assert.Equal(t, []int64{1_500_000}, out)
	assert.Empty(t, warnings)
}

func TestValidator_ConcentrationCap(t *testing.T) {
	limit := 0.02 // 2% of NAV
	accounts := []Account{
		{AccountID: "A", AccountName: "Account A", NAV: 100_000_000, AvailableCash: 50_000_000, MaxConcentration: &limit},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 10_000_000}, accounts)

	v := NewValidator(nil, zerolog.Nop())
	out, warnings, err := v.Apply(context.Background(), in, []int64{5_000_000})
	require.NoError(t, err)

	assert.Equal(t, []int64{2_000_000}, out)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningConcentration, warnings[0].Type)
}

func TestValidator_TightestConcentrationWins(t *testing.T) {
	acctLimit := 0.05
	reqLimit := 0.01
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, AvailableCash: 50_000_000, MaxConcentration: &acctLimit},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 10_000_000}, accounts)
	in.Constraints.MaxConcentration = &reqLimit

	v := NewValidator(nil, zerolog.Nop())
	out, _, err := v.Apply(context.Background(), in, []int64{5_000_000})
	require.NoError(t, err)

	assert.Equal(t, []int64{1_000_000}, out)
}

func TestValidator_MinLotZeroesSmallAllocations(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", AccountName: "Account A", NAV: 100_000_000, AvailableCash: 50_000_000},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 1_000_000}, accounts)
	in.Constraints.MinAllocation = 5000

	v := NewValidator(nil, zerolog.Nop())
	out, warnings, err := v.Apply(context.Background(), in, []int64{3000})
	require.NoError(t, err)

	assert.Equal(t, []int64{0}, out)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningMinLotSize, warnings[0].Type)
}

func TestValidator_ComplianceExcludesFlagged(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", AccountName: "Account A", NAV: 100_000_000, AvailableCash: 50_000_000},
		{AccountID: "B", AccountName: "Account B", NAV: 100_000_000, AvailableCash: 50_000_000},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 2_000_000}, accounts)

	checker := &stubChecker{flags: []ComplianceFlag{{AccountID: "B", Reason: "restricted security"}}}
	v := NewValidator(checker, zerolog.Nop())

	out, warnings, err := v.Apply(context.Background(), in, []int64{1_000_000, 1_000_000})
	require.NoError(t, err)

	assert.Equal(t, []int64{1_000_000, 0}, out)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningCompliance, warnings[0].Type)
	assert.Equal(t, "B", warnings[0].AccountID)

	// Only non-zero allocations reach the checker
	require.Len(t, checker.seen, 2)
}

func TestValidator_CheckerFailureIsFatal(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, AvailableCash: 50_000_000},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 1_000_000}, accounts)

	checker := &stubChecker{err: errors.New("compliance system down")}
	v := NewValidator(checker, zerolog.Nop())

	_, _, err := v.Apply(context.Background(), in, []int64{1_000_000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compliance check failed")
}

func TestValidator_ComplianceSkippedWhenDisabled(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000, AvailableCash: 50_000_000},
	}
	in := validatorInput(Order{Side: SideBuy, Quantity: 1_000_000}, accounts)
	in.Constraints.ComplianceCheck = false

	checker := &stubChecker{flags: []ComplianceFlag{{AccountID: "A", Reason: "restricted"}}}
	v := NewValidator(checker, zerolog.Nop())

	out, warnings, err := v.Apply(context.Background(), in, []int64{1_000_000})
	require.NoError(t, err)

	assert.Equal(t, []int64{1_000_000}, out)
	assert.Empty(t, warnings)
	assert.Nil(t, checker.seen)
}
