// Package allocation implements the bond order allocation engine: three
// strategies behind one contract (pro-rata, custom weights, minimum
// dispersion), a constraint validator, and pre/post-trade risk metrics.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Input is everything a strategy needs for one allocation. Accounts is the
// eligible-account vector in stable input order; strategies return quantities
// parallel to it.
type Input struct {
	Order       Order
	Security    Security
	Accounts    []Account
	Params      Parameters
	Constraints Constraints

	// Solver bounds for MIN_DISPERSION. Zero SolverTimeout means no
	// wall-clock bound beyond MaxIterations.
	SolverTimeout   time.Duration
	RemainderPolicy RemainderPolicy
}

// Proposal is a strategy's raw output before validation and metrics.
// Quantities is parallel to Input.Accounts; every entry is a non-negative
// multiple of the minimum denomination.
type Proposal struct {
	Quantities []int64
	Warnings   []Warning
}

// Strategy is the common contract of the three allocation behaviors.
// Implementations are pure functions of their input.
type Strategy interface {
	Name() string
	Allocate(ctx context.Context, in Input) (Proposal, error)
}

// NewStrategy returns the strategy for the given method.
// Unknown methods are a validation failure.
func NewStrategy(method Method, log zerolog.Logger) (Strategy, error) {
	switch method {
	case MethodProRata:
		return &ProRataStrategy{log: log.With().Str("strategy", "pro_rata").Logger()}, nil
	case MethodCustomWeights:
		return &CustomWeightsStrategy{log: log.With().Str("strategy", "custom_weights").Logger()}, nil
	case MethodMinDispersion:
		return &MinDispersionStrategy{log: log.With().Str("strategy", "min_dispersion").Logger()}, nil
	default:
		return nil, &ValidationError{
			Code:    "UNKNOWN_METHOD",
			Message: fmt.Sprintf("unknown allocation method: %s", method),
		}
	}
}

// ValidationError is fatal: the request is malformed and no allocation is
// attempted.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed [%s]: %s", e.Code, e.Message)
}

// InfeasibleError is fatal: the inputs admit no allocation at all
// (no eligible accounts, or nobody can absorb even one denomination).
type InfeasibleError struct {
	Code    string
	Message string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("allocation infeasible [%s]: %s", e.Code, e.Message)
}

// minDenomination returns the denomination all allocations must be a
// multiple of. With denomination rounding disabled the unit is one face
// value, so quantities are only truncated to integers.
func minDenomination(in Input) int64 {
	if in.Constraints.RoundToDenomination && in.Security.MinDenomination > 0 {
		return in.Security.MinDenomination
	}
	return 1
}

// maxQuantity returns the upper bound for one account's allocation:
// cash-bound for buys when respect_cash is set, position-bound for sells,
// never more than the order itself.
func maxQuantity(order Order, security Security, acct Account, constraints Constraints) int64 {
	limit := order.Quantity

	switch order.Side {
	case SideBuy:
		if constraints.RespectCash {
			price := EffectivePrice(order, security)
			if price > 0 {
				affordable := int64(acct.AvailableCash / price)
				if affordable < limit {
					limit = affordable
				}
			}
		}
	case SideSell:
		if acct.CurrentPosition < limit {
			limit = acct.CurrentPosition
		}
	}

	if limit < 0 {
		return 0
	}
	return limit
}
