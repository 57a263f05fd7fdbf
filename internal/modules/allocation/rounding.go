package allocation

import "sort"

// RemainderPolicy selects how the rounding shortfall is handed back out.
type RemainderPolicy string

const (
	// RemainderNAVRank grants denomination increments to accounts in
	// descending NAV order.
	RemainderNAVRank RemainderPolicy = "nav_rank"
	// RemainderResidual grants each increment to the account with the
	// largest gap between its continuous target and its rounded quantity,
	// which tracks the original weight proportions.
	RemainderResidual RemainderPolicy = "residual"
)

// floorToDenomination rounds a continuous quantity down to the nearest
// denomination multiple. Never rounds up; over-allocation is worse than a
// remainder.
func floorToDenomination(quantity float64, denom int64) int64 {
	if quantity <= 0 || denom <= 0 {
		return 0
	}
	return (int64(quantity) / denom) * denom
}

// roundAndDistribute floors each continuous target to a denomination multiple,
// then hands the shortfall against total back out in denomination increments.
// raw and caps are parallel to accounts; caps bound each account's final
// quantity. An account never receives more than its cap allows, so the
// returned sum can fall short of total when capacity runs out.
func roundAndDistribute(
	raw []float64,
	accounts []Account,
	caps []int64,
	denom int64,
	total int64,
	policy RemainderPolicy,
) []int64 {
	n := len(raw)
	rounded := make([]int64, n)

	var allocated int64
	for i := range raw {
		q := floorToDenomination(raw[i], denom)
		capQ := (caps[i] / denom) * denom
		if q > capQ {
			q = capQ
		}
		rounded[i] = q
		allocated += q
	}

	remainder := total - allocated
	if remainder < denom {
		return rounded
	}

	switch policy {
	case RemainderResidual:
		distributeByResidual(raw, rounded, caps, denom, &remainder)
	default:
		distributeByNAVRank(accounts, rounded, caps, denom, &remainder)
	}

	return rounded
}

// distributeByNAVRank cycles accounts from largest NAV down, granting one
// denomination per visit until the remainder is exhausted or nobody can
// accept more.
func distributeByNAVRank(accounts []Account, rounded []int64, caps []int64, denom int64, remainder *int64) {
	order := make([]int, len(accounts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return accounts[order[a]].NAV > accounts[order[b]].NAV
	})

	for *remainder >= denom {
		progressed := false
		for _, i := range order {
			if *remainder < denom {
				break
			}
			capQ := (caps[i] / denom) * denom
			if rounded[i]+denom <= capQ {
				rounded[i] += denom
				*remainder -= denom
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
}

// distributeByResidual repeatedly grants one denomination to the account with
// the largest unmet continuous target, recomputing after every grant so the
// distribution stays proportional to the original weights. Accounts with a
// zero target never receive a grant; mass no targeted account can absorb
// stays unallocated.
func distributeByResidual(raw []float64, rounded []int64, caps []int64, denom int64, remainder *int64) {
	for *remainder >= denom {
		best := -1
		bestResidual := 0.0
		for i := range raw {
			if raw[i] <= 0 {
				continue
			}
			capQ := (caps[i] / denom) * denom
			if rounded[i]+denom > capQ {
				continue
			}
			residual := raw[i] - float64(rounded[i])
			if best == -1 || residual > bestResidual {
				best = i
				bestResidual = residual
			}
		}
		if best == -1 {
			break
		}
		rounded[best] += denom
		*remainder -= denom
	}
}
