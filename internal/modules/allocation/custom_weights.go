package allocation

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// weightSumEpsilon is the tolerance on the weight-sum invariant.
const weightSumEpsilon = 1e-6

// CustomWeightsStrategy allocates by explicit per-account weights.
// Accounts without a weight receive zero.
type CustomWeightsStrategy struct {
	log zerolog.Logger
}

// Name returns the strategy name
func (s *CustomWeightsStrategy) Name() string { return "CustomWeightsAllocation" }

// Allocate validates the weights (fail fast, before any allocation), then
// splits the order by weight with floor rounding. The remainder goes back out
// proportionally to the assigned weights rather than by NAV rank.
func (s *CustomWeightsStrategy) Allocate(ctx context.Context, in Input) (Proposal, error) {
	if err := validateWeights(in.Params.Weights); err != nil {
		return Proposal{}, err
	}

	n := len(in.Accounts)
	var warnings []Warning

	known := make(map[string]bool, n)
	for _, acct := range in.Accounts {
		known[acct.AccountID] = true
	}
	for accountID := range in.Params.Weights {
		if !known[accountID] {
			warnings = append(warnings, Warning{
				Type:      WarningCompliance,
				AccountID: accountID,
				Message:   fmt.Sprintf("account %s in weights not found in account list", accountID),
			})
		}
	}

	denom := minDenomination(in)
	raw := make([]float64, n)
	caps := make([]int64, n)
	for i, acct := range in.Accounts {
		raw[i] = float64(in.Order.Quantity) * in.Params.Weights[acct.AccountID]
		caps[i] = maxQuantity(in.Order, in.Security, acct, in.Constraints)
	}

	quantities := roundAndDistribute(raw, in.Accounts, caps, denom, in.Order.Quantity, RemainderResidual)

	return Proposal{Quantities: quantities, Warnings: warnings}, nil
}

// validateWeights enforces the weight invariants: present, each in [0, 1],
// sum equal to 1.0 within epsilon. Violations are a validation failure, not
// a warning.
func validateWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return &ValidationError{
			Code:    "NO_WEIGHTS",
			Message: "no weights provided for custom allocation",
		}
	}

	var total float64
	for accountID, w := range weights {
		if w < 0 {
			return &ValidationError{
				Code:    "NEGATIVE_WEIGHT",
				Message: fmt.Sprintf("negative weight %g for account %s", w, accountID),
			}
		}
		if w > 1 {
			return &ValidationError{
				Code:    "WEIGHT_EXCEEDS_ONE",
				Message: fmt.Sprintf("weight %g exceeds 1.0 for account %s", w, accountID),
			}
		}
		total += w
	}

	if math.Abs(total-1.0) > weightSumEpsilon {
		return &ValidationError{
			Code:    "INVALID_WEIGHT_SUM",
			Message: fmt.Sprintf("weights must sum to 1.0, got %.6f", total),
		}
	}

	return nil
}
