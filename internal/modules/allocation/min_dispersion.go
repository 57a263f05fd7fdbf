package allocation

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

const (
	defaultTolerance     = 1e-6
	defaultMaxIterations = 1000

	// sumPenaltyWeight enforces the full-allocation equality constraint via
	// a quadratic penalty; box constraints are handled by projection.
	sumPenaltyWeight = 1000.0
)

// MinDispersionStrategy chooses the allocation vector that minimizes the
// post-trade standard deviation of the target metric across accounts,
// subject to full allocation and per-account cash/position bounds.
type MinDispersionStrategy struct {
	log zerolog.Logger
}

// Name returns the strategy name
func (s *MinDispersionStrategy) Name() string { return "MinimumDispersionAllocation" }

// Allocate runs the constrained solver from a pro-rata starting point, falls
// back to pro-rata on non-convergence or timeout, then rounds the continuous
// solution to denomination multiples. The request never fails because the
// optimizer did not converge.
func (s *MinDispersionStrategy) Allocate(ctx context.Context, in Input) (Proposal, error) {
	n := len(in.Accounts)
	if n == 0 {
		return Proposal{Quantities: []int64{}}, nil
	}

	metric := in.Params.TargetMetric
	if metric == "" {
		metric = MetricActiveSpreadDuration
	}
	tolerance := in.Params.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	maxIterations := in.Params.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	quantity := float64(in.Order.Quantity)
	current := currentMetricValues(in.Accounts, metric)
	// Metric shift caused by allocating everything to one account, in the
	// weight space the solver works in.
	unitShift := quantity * PerUnitImpact(in.Security, metric, in.Order.Side)

	// Box constraints as allocation fractions.
	upper := make([]float64, n)
	caps := make([]int64, n)
	for i, acct := range in.Accounts {
		caps[i] = maxQuantity(in.Order, in.Security, acct, in.Constraints)
		upper[i] = float64(caps[i]) / quantity
	}

	initial := initialGuess(in.Accounts, upper)

	solution, converged := s.solve(current, unitShift, upper, initial, tolerance, maxIterations, in.SolverTimeout)

	var warnings []Warning
	if !converged {
		s.log.Warn().Msg("Optimization failed to converge, falling back to pro-rata")
		solution = initial
		warnings = append(warnings, Warning{
			Type:    WarningOptimizationFallback,
			Message: "dispersion optimization did not converge; pro-rata allocation substituted",
		})
	}

	denom := minDenomination(in)
	raw := make([]float64, n)
	for i := range solution {
		raw[i] = solution[i] * quantity
	}

	policy := in.RemainderPolicy
	if policy == "" {
		policy = RemainderNAVRank
	}
	quantities := roundAndDistribute(raw, in.Accounts, caps, denom, in.Order.Quantity, policy)

	return Proposal{Quantities: quantities, Warnings: warnings}, nil
}

// solve minimizes popStd(current + f*unitShift) + penalty*(sum(f)-1)^2 over
// the box [0, upper] using BFGS, retrying with Nelder-Mead when BFGS stalls.
// Returns the projected solution and whether the solver converged.
func (s *MinDispersionStrategy) solve(
	current []float64,
	unitShift float64,
	upper []float64,
	initial []float64,
	tolerance float64,
	maxIterations int,
	timeout time.Duration,
) ([]float64, bool) {
	n := len(current)

	objective := func(x []float64) float64 {
		xProj := projectToBox(x, upper)

		mean := 0.0
		post := make([]float64, n)
		for i := range xProj {
			post[i] = current[i] + xProj[i]*unitShift
			mean += post[i]
		}
		mean /= float64(n)

		variance := 0.0
		sum := 0.0
		for i := range post {
			d := post[i] - mean
			variance += d * d
			sum += xProj[i]
		}
		variance /= float64(n)

		return math.Sqrt(variance) + sumPenaltyWeight*(sum-1.0)*(sum-1.0)
	}

	gradient := func(grad, x []float64) {
		xProj := projectToBox(x, upper)

		mean := 0.0
		post := make([]float64, n)
		sum := 0.0
		for i := range xProj {
			post[i] = current[i] + xProj[i]*unitShift
			mean += post[i]
			sum += xProj[i]
		}
		mean /= float64(n)

		variance := 0.0
		for i := range post {
			d := post[i] - mean
			variance += d * d
		}
		variance /= float64(n)
		std := math.Sqrt(variance)

		for i := range grad {
			grad[i] = 2 * sumPenaltyWeight * (sum - 1.0)
			if std > 1e-12 {
				grad[i] += unitShift * (post[i] - mean) / (float64(n) * std)
			}
		}
	}

	problem := optimize.Problem{Func: objective, Grad: gradient}

	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Runtime:         timeout,
		Converger: &optimize.FunctionConverge{
			Relative:   tolerance,
			Iterations: 20,
		},
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil || !successStatuses[result.Status] {
			status := "error"
			if result != nil {
				status = result.Status.String()
			}
			s.log.Debug().Err(err).Str("status", status).Msg("Solver did not converge")
			return nil, false
		}
	}

	return projectToBox(result.X, upper), true
}

// initialGuess returns the NAV-proportional starting point, or a uniform
// split when total NAV is zero, clamped to the box.
func initialGuess(accounts []Account, upper []float64) []float64 {
	n := len(accounts)
	guess := make([]float64, n)

	var totalNAV float64
	for _, acct := range accounts {
		if acct.NAV > 0 {
			totalNAV += acct.NAV
		}
	}

	for i, acct := range accounts {
		if totalNAV > 0 {
			guess[i] = math.Max(acct.NAV, 0) / totalNAV
		} else {
			guess[i] = 1.0 / float64(n)
		}
		if guess[i] > upper[i] {
			guess[i] = upper[i]
		}
	}
	return guess
}

// projectToBox clamps each entry to [0, upper_i].
func projectToBox(x, upper []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0, math.Min(upper[i], x[i]))
	}
	return proj
}
