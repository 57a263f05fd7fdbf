package allocation

import (
	"context"

	"github.com/rs/zerolog"
)

// ProRataStrategy allocates proportionally to a base metric, NAV by default.
type ProRataStrategy struct {
	log zerolog.Logger
}

// Name returns the strategy name
func (s *ProRataStrategy) Name() string { return "ProRataAllocation" }

// Allocate splits the order quantity across accounts in proportion to NAV,
// floors each share to the minimum denomination, and hands the rounding
// remainder out by NAV rank.
func (s *ProRataStrategy) Allocate(ctx context.Context, in Input) (Proposal, error) {
	n := len(in.Accounts)
	quantities := make([]int64, n)

	weights := proRataWeights(in.Accounts, in.Params.BaseMetric)
	if weights == nil {
		// Zero total NAV: nothing to allocate against. The orchestrator
		// reports a zero allocation rate rather than failing.
		s.log.Warn().Msg("Total base metric is zero, returning empty allocation")
		return Proposal{Quantities: quantities}, nil
	}

	denom := minDenomination(in)
	raw := make([]float64, n)
	caps := make([]int64, n)
	for i, acct := range in.Accounts {
		raw[i] = float64(in.Order.Quantity) * weights[i]
		caps[i] = maxQuantity(in.Order, in.Security, acct, in.Constraints)
	}

	quantities = roundAndDistribute(raw, in.Accounts, caps, denom, in.Order.Quantity, RemainderNAVRank)

	return Proposal{Quantities: quantities}, nil
}

// proRataWeights computes normalized weights over the accounts from the
// chosen base metric. Returns nil when the metric totals to zero.
func proRataWeights(accounts []Account, baseMetric string) []float64 {
	values := make([]float64, len(accounts))
	var total float64
	for i, acct := range accounts {
		// NAV is the base for every supported metric today; MARKET_VALUE
		// will diverge once per-account market values come from the
		// analytics provider.
		v := acct.NAV
		if v < 0 {
			v = 0
		}
		values[i] = v
		total += v
	}

	if total <= 0 {
		return nil
	}

	for i := range values {
		values[i] /= total
	}
	return values
}
