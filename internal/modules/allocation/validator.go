package allocation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AccountQuantity pairs an account with a proposed quantity, the shape the
// compliance collaborator consumes.
type AccountQuantity struct {
	AccountID string
	Quantity  int64
}

// ComplianceFlag marks one account the compliance collaborator rejected.
type ComplianceFlag struct {
	AccountID string
	Reason    string
}

// ComplianceChecker is the external compliance collaborator contract.
// A nil checker or a disabled compliance_check constraint means no flags.
type ComplianceChecker interface {
	Check(ctx context.Context, order Order, security Security, allocations []AccountQuantity) ([]ComplianceFlag, error)
}

// Validator applies the uniform post-strategy constraint pass: cash clamps,
// position clamps, concentration caps, minimum-lot rejection, and compliance
// exclusion. Everything degrades to warnings; only a collaborator failure
// aborts.
type Validator struct {
	checker ComplianceChecker
	log     zerolog.Logger
}

// NewValidator creates a validator. checker may be nil.
func NewValidator(checker ComplianceChecker, log zerolog.Logger) *Validator {
	return &Validator{
		checker: checker,
		log:     log.With().Str("component", "validator").Logger(),
	}
}

// Apply clamps and flags the raw strategy output. The returned slice is a
// new vector parallel to in.Accounts; the input is not modified.
func (v *Validator) Apply(ctx context.Context, in Input, quantities []int64) ([]int64, []Warning, error) {
	out := make([]int64, len(quantities))
	copy(out, quantities)

	denom := minDenomination(in)
	price := EffectivePrice(in.Order, in.Security)
	var warnings []Warning

	for i, acct := range in.Accounts {
		if out[i] <= 0 {
			out[i] = 0
			continue
		}

		// Cash cap for buys
		if in.Order.Side == SideBuy && in.Constraints.RespectCash && price > 0 {
			cashCap := floorToDenomination(acct.AvailableCash/price, denom)
			if out[i] > cashCap {
				warnings = append(warnings, Warning{
					Type:      WarningInsufficientCash,
					AccountID: acct.AccountID,
					Message: fmt.Sprintf("account %s has insufficient cash: allocation reduced from %d to %d",
						acct.AccountName, out[i], cashCap),
				})
				out[i] = cashCap
			}
		}

		// Position cap for sells
		if in.Order.Side == SideSell && out[i] > acct.CurrentPosition {
			out[i] = floorToDenomination(float64(acct.CurrentPosition), denom)
		}

		// Concentration cap: tightest of the request-level and per-account
		// limits, as a fraction of NAV.
		if cap, ok := concentrationCap(acct, in.Constraints); ok && acct.NAV > 0 && price > 0 {
			maxQty := floorToDenomination(cap*acct.NAV/price, denom)
			if out[i] > maxQty {
				warnings = append(warnings, Warning{
					Type:      WarningConcentration,
					AccountID: acct.AccountID,
					Message: fmt.Sprintf("account %s concentration limit %.1f%% of NAV: allocation reduced from %d to %d",
						acct.AccountName, cap*100, out[i], maxQty),
				})
				out[i] = maxQty
			}
		}

		// Minimum lot: below the denomination or the configured floor the
		// account receives zero, flagged but not fatal.
		minLot := in.Constraints.MinAllocation
		if minLot < denom {
			minLot = denom
		}
		if out[i] > 0 && out[i] < minLot {
			warnings = append(warnings, Warning{
				Type:      WarningMinLotSize,
				AccountID: acct.AccountID,
				Message: fmt.Sprintf("account %s allocation %d is below minimum %d",
					acct.AccountName, out[i], minLot),
			})
			out[i] = 0
		}
	}

	// Compliance runs last, against the post-clamp quantities. A flagged
	// account is excluded outright; this is the one warning that implies
	// exclusion.
	if in.Constraints.ComplianceCheck && v.checker != nil {
		var pairs []AccountQuantity
		for i, acct := range in.Accounts {
			if out[i] > 0 {
				pairs = append(pairs, AccountQuantity{AccountID: acct.AccountID, Quantity: out[i]})
			}
		}

		if len(pairs) > 0 {
			flags, err := v.checker.Check(ctx, in.Order, in.Security, pairs)
			if err != nil {
				return nil, nil, fmt.Errorf("compliance check failed: %w", err)
			}

			flagged := make(map[string]string, len(flags))
			for _, f := range flags {
				flagged[f.AccountID] = f.Reason
			}
			for i, acct := range in.Accounts {
				if reason, ok := flagged[acct.AccountID]; ok && out[i] > 0 {
					warnings = append(warnings, Warning{
						Type:      WarningCompliance,
						AccountID: acct.AccountID,
						Message:   fmt.Sprintf("account %s excluded by compliance: %s", acct.AccountName, reason),
					})
					out[i] = 0
				}
			}
		}
	}

	return out, warnings, nil
}

// concentrationCap returns the effective concentration limit for an account,
// if any.
func concentrationCap(acct Account, constraints Constraints) (float64, bool) {
	var cap float64
	ok := false

	if constraints.MaxConcentration != nil && *constraints.MaxConcentration > 0 {
		cap = *constraints.MaxConcentration
		ok = true
	}
	if acct.MaxConcentration != nil && *acct.MaxConcentration > 0 {
		if !ok || *acct.MaxConcentration < cap {
			cap = *acct.MaxConcentration
		}
		ok = true
	}
	return cap, ok
}
