package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/events"
)

// AccountProvider supplies the candidate accounts of the named portfolio
// groups, with each account's position in the target security. A provider
// failure fails the whole request; the engine never runs on partial data.
type AccountProvider interface {
	GroupAccounts(ctx context.Context, groups []string, securityID string) ([]Account, error)
}

// SecurityProvider supplies the security with its current analytics. Stale
// or missing analytics must surface as an error, not a silent default.
type SecurityProvider interface {
	SecurityWithAnalytics(ctx context.Context, securityID string) (Security, error)
}

// Defaults carries the engine configuration passed explicitly into every
// allocation call.
type Defaults struct {
	MinDenomination int64 // Used when the security carries no denomination
	MinAllocation   int64
	Tolerance       float64
	MaxIterations   int
	SolverTimeout   time.Duration
	RemainderPolicy RemainderPolicy
}

// Request is one allocation request as received from the API layer.
type Request struct {
	Order           Order        `json:"order"`
	Method          Method       `json:"allocation_method"`
	PortfolioGroups []string     `json:"portfolio_groups"`
	Parameters      Parameters   `json:"parameters"`
	Constraints     *Constraints `json:"constraints,omitempty"`
}

// Service orchestrates an allocation end to end: strategy selection, the
// constraint pass, metrics, and the audit write. The computation itself is
// stateless; every call is a pure function of its inputs.
type Service struct {
	accounts   AccountProvider
	securities SecurityProvider
	validator  *Validator
	audit      *AuditRepository
	bus        *events.Bus
	defaults   Defaults
	log        zerolog.Logger
}

// NewService creates the allocation service. audit and bus may be nil.
func NewService(
	accounts AccountProvider,
	securities SecurityProvider,
	validator *Validator,
	audit *AuditRepository,
	bus *events.Bus,
	defaults Defaults,
	log zerolog.Logger,
) *Service {
	return &Service{
		accounts:   accounts,
		securities: securities,
		validator:  validator,
		audit:      audit,
		bus:        bus,
		defaults:   defaults,
		log:        log.With().Str("service", "allocation").Logger(),
	}
}

// Allocate resolves the request against the providers, computes the
// allocation, and records it to the audit trail.
func (s *Service) Allocate(ctx context.Context, req Request) (*Result, error) {
	result, err := s.Preview(ctx, req)
	if err != nil {
		return nil, err
	}

	result.AllocationID = uuid.New().String()
	result.Timestamp = time.Now().UTC()

	if s.audit != nil {
		if err := s.audit.Save(result); err != nil {
			return nil, fmt.Errorf("failed to record allocation: %w", err)
		}
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type: events.AllocationCompleted,
			Data: map[string]interface{}{
				"allocation_id":   result.AllocationID,
				"security_id":     result.Order.SecurityID,
				"method":          result.Method,
				"total_allocated": result.Summary.TotalAllocated,
				"allocation_rate": result.Summary.AllocationRate,
			},
		})
	}

	return result, nil
}

// Preview resolves the request and computes the allocation without touching
// the audit trail.
func (s *Service) Preview(ctx context.Context, req Request) (*Result, error) {
	if len(req.PortfolioGroups) == 0 {
		return nil, &ValidationError{Code: "NO_PORTFOLIO_GROUPS", Message: "at least one portfolio group is required"}
	}

	security, err := s.securities.SecurityWithAnalytics(ctx, req.Order.SecurityID)
	if err != nil {
		return nil, &ValidationError{
			Code:    "SECURITY_ANALYTICS",
			Message: fmt.Sprintf("security analytics unavailable for %s: %v", req.Order.SecurityID, err),
		}
	}

	accounts, err := s.accounts.GroupAccounts(ctx, req.PortfolioGroups, req.Order.SecurityID)
	if err != nil {
		return nil, fmt.Errorf("account provider failed: %w", err)
	}

	constraints := DefaultConstraints(s.defaults.MinAllocation)
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	return s.Compute(ctx, req.Order, security, accounts, req.Method, req.Parameters, constraints)
}

// Compute runs the engine over fully-resolved inputs. It is deterministic:
// identical inputs always produce identical results, with no identifier or
// timestamp assigned.
func (s *Service) Compute(
	ctx context.Context,
	order Order,
	security Security,
	accounts []Account,
	method Method,
	params Parameters,
	constraints Constraints,
) (*Result, error) {
	if security.MinDenomination <= 0 && s.defaults.MinDenomination > 0 {
		security.MinDenomination = s.defaults.MinDenomination
	}

	if err := validateOrder(order, security, constraints); err != nil {
		return nil, err
	}

	strategy, err := NewStrategy(method, s.log)
	if err != nil {
		return nil, err
	}

	params = s.applyParameterDefaults(params)

	eligible, skipped := eligibleAccounts(order, security, accounts, constraints)
	if len(eligible) == 0 {
		return nil, &InfeasibleError{
			Code:    "NO_ELIGIBLE_ACCOUNTS",
			Message: "no eligible accounts for allocation",
		}
	}

	in := Input{
		Order:           order,
		Security:        security,
		Accounts:        eligible,
		Params:          params,
		Constraints:     constraints,
		SolverTimeout:   s.defaults.SolverTimeout,
		RemainderPolicy: s.defaults.RemainderPolicy,
	}

	denom := minDenomination(in)
	feasible := false
	for _, acct := range eligible {
		if maxQuantity(order, security, acct, constraints) >= denom {
			feasible = true
			break
		}
	}
	if !feasible {
		return nil, &InfeasibleError{
			Code:    "INSUFFICIENT_CAPACITY",
			Message: "no eligible account can absorb even one minimum denomination",
		}
	}

	started := time.Now()
	proposal, err := strategy.Allocate(ctx, in)
	if err != nil {
		return nil, err
	}

	quantities, validatorWarnings, err := s.validator.Apply(ctx, in, proposal.Quantities)
	if err != nil {
		return nil, err
	}

	result := s.assembleResult(in, method, quantities)
	result.Warnings = append(result.Warnings, skipped...)
	result.Warnings = append(result.Warnings, proposal.Warnings...)
	result.Warnings = append(result.Warnings, validatorWarnings...)
	result.Summary.AccountsSkipped = len(accounts) - result.Summary.AccountsAllocated

	s.log.Info().
		Str("method", string(method)).
		Str("security_id", order.SecurityID).
		Int64("order_quantity", order.Quantity).
		Int64("total_allocated", result.Summary.TotalAllocated).
		Int("accounts_allocated", result.Summary.AccountsAllocated).
		Int("warnings", len(result.Warnings)).
		Dur("elapsed", time.Since(started)).
		Msg("Allocation computed")

	return result, nil
}

// applyParameterDefaults fills solver parameters the request left unset.
func (s *Service) applyParameterDefaults(params Parameters) Parameters {
	if params.TargetMetric == "" {
		params.TargetMetric = MetricActiveSpreadDuration
	}
	if params.Tolerance <= 0 {
		params.Tolerance = s.defaults.Tolerance
	}
	if params.MaxIterations <= 0 {
		params.MaxIterations = s.defaults.MaxIterations
	}
	return params
}

// assembleResult builds lines and the summary from the final quantities.
// Lines cover every eligible account in input order, including those that
// ended at zero; their pre-trade metric persists into the dispersion
// calculation.
func (s *Service) assembleResult(in Input, method Method, quantities []int64) *Result {
	price := EffectivePrice(in.Order, in.Security)

	lines := make([]Line, len(in.Accounts))
	preMetrics := make([]float64, len(in.Accounts))
	postMetrics := make([]float64, len(in.Accounts))

	var totalAllocated int64
	accountsAllocated := 0

	for i, acct := range in.Accounts {
		q := quantities[i]
		notional := float64(q) * price

		cashUsed := 0.0
		if in.Order.Side == SideBuy {
			cashUsed = notional
		}

		pre := preTradeMetrics(acct)
		post := postTradeMetrics(pre, in.Security, q, in.Order.Side)

		lines[i] = Line{
			AccountID:         acct.AccountID,
			AccountName:       acct.AccountName,
			AllocatedQuantity: q,
			AllocatedNotional: notional,
			AvailableCash:     acct.AvailableCash,
			PostTradeCash:     acct.AvailableCash - cashUsed,
			CashUsed:          cashUsed,
			PreTradeMetrics:   pre,
			PostTradeMetrics:  post,
		}

		preMetrics[i] = metricValue(pre, in.Params.TargetMetric)
		postMetrics[i] = metricValue(post, in.Params.TargetMetric)

		totalAllocated += q
		if q > 0 {
			accountsAllocated++
		}
	}

	rate := 0.0
	if in.Order.Quantity > 0 {
		rate = float64(totalAllocated) / float64(in.Order.Quantity)
	}

	return &Result{
		Order:  in.Order,
		Method: method,
		Lines:  lines,
		Summary: Summary{
			TotalAllocated:    totalAllocated,
			Unallocated:       in.Order.Quantity - totalAllocated,
			AllocationRate:    rate,
			AccountsAllocated: accountsAllocated,
			Dispersion:        computeDispersion(preMetrics, postMetrics, in.Params.Tolerance),
		},
		Warnings: []Warning{},
	}
}

// validateOrder rejects malformed inputs before any strategy executes.
func validateOrder(order Order, security Security, constraints Constraints) error {
	if order.Side != SideBuy && order.Side != SideSell {
		return &ValidationError{
			Code:    "INVALID_SIDE",
			Message: fmt.Sprintf("order side must be BUY or SELL, got %q", order.Side),
		}
	}
	if order.Quantity <= 0 {
		return &ValidationError{
			Code:    "INVALID_QUANTITY",
			Message: fmt.Sprintf("invalid order quantity: %d", order.Quantity),
		}
	}
	if EffectivePrice(order, security) <= 0 {
		return &ValidationError{
			Code:    "INVALID_PRICE",
			Message: fmt.Sprintf("invalid security price: %g", EffectivePrice(order, security)),
		}
	}
	if security.MinDenomination > 0 && constraints.MinAllocation > 0 &&
		constraints.MinAllocation < security.MinDenomination {
		return &ValidationError{
			Code: "INVALID_MIN_ALLOCATION",
			Message: fmt.Sprintf("minimum allocation %d is less than security minimum denomination %d",
				constraints.MinAllocation, security.MinDenomination),
		}
	}
	return nil
}

// eligibleAccounts filters the candidate set. Restricted accounts, cashless
// accounts on buys (when respect_cash is set), and positionless accounts on
// sells are excluded with a warning; input order is preserved.
func eligibleAccounts(order Order, security Security, accounts []Account, constraints Constraints) ([]Account, []Warning) {
	var eligible []Account
	var warnings []Warning

	for _, acct := range accounts {
		if isRestricted(acct, security) {
			warnings = append(warnings, Warning{
				Type:      WarningCompliance,
				AccountID: acct.AccountID,
				Message:   fmt.Sprintf("account %s is restricted from %s", acct.AccountName, security.CUSIP),
			})
			continue
		}

		if order.Side == SideBuy && constraints.RespectCash && acct.AvailableCash <= 0 {
			warnings = append(warnings, Warning{
				Type:      WarningInsufficientCash,
				AccountID: acct.AccountID,
				Message:   fmt.Sprintf("account %s has no available cash", acct.AccountName),
			})
			continue
		}

		if order.Side == SideSell && acct.CurrentPosition <= 0 {
			warnings = append(warnings, Warning{
				Type:      WarningMinLotSize,
				AccountID: acct.AccountID,
				Message:   fmt.Sprintf("account %s holds no position in %s", acct.AccountName, security.CUSIP),
			})
			continue
		}

		eligible = append(eligible, acct)
	}

	return eligible, warnings
}

// isRestricted reports whether the account is barred from the security.
func isRestricted(acct Account, security Security) bool {
	for _, cusip := range acct.RestrictedSecurities {
		if cusip == security.CUSIP {
			return true
		}
	}
	return false
}
