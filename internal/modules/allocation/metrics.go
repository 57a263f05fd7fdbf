package allocation

import (
	"gonum.org/v1/gonum/stat"
)

// metricNotionalScale converts face-value units into the notional scale the
// account-level risk metrics are quoted against (per million face).
const metricNotionalScale = 1e6

// PerUnitImpact returns the change in the target metric caused by one
// face-value unit of the order. Derived from the security's analytics, so it
// is identical across accounts for a single-security order. Negative for
// sells.
func PerUnitImpact(security Security, metric TargetMetric, side Side) float64 {
	var analytic float64
	switch metric {
	case MetricDuration:
		analytic = security.Duration
	case MetricOAS:
		analytic = security.OAS
	default:
		analytic = security.SpreadDuration
	}

	impact := analytic * security.Price / metricNotionalScale
	if side == SideSell {
		impact = -impact
	}
	return impact
}

// currentMetricValue reads the account's stored value of the target metric.
func currentMetricValue(acct Account, metric TargetMetric) float64 {
	switch metric {
	case MetricDuration:
		return acct.PortfolioDuration
	case MetricOAS:
		return acct.OAS
	default:
		return acct.ActiveSpreadDuration
	}
}

// currentMetricValues extracts the target metric across a set of accounts.
func currentMetricValues(accounts []Account, metric TargetMetric) []float64 {
	values := make([]float64, len(accounts))
	for i, acct := range accounts {
		values[i] = currentMetricValue(acct, metric)
	}
	return values
}

// metricValue extracts one metric from a TradeMetrics snapshot.
func metricValue(m TradeMetrics, metric TargetMetric) float64 {
	switch metric {
	case MetricDuration:
		return m.Duration
	case MetricOAS:
		return m.OAS
	default:
		return m.ActiveSpreadDuration
	}
}

// preTradeMetrics snapshots an account's metrics before the trade.
func preTradeMetrics(acct Account) TradeMetrics {
	return TradeMetrics{
		ActiveSpreadDuration:   acct.ActiveSpreadDuration,
		ContributionToDuration: acct.PortfolioDuration * (acct.NAV / metricNotionalScale),
		Duration:               acct.PortfolioDuration,
		OAS:                    acct.OAS,
		SpreadDuration:         acct.SpreadDuration,
	}
}

// postTradeMetrics shifts the pre-trade snapshot by the allocated quantity
// times the security's per-unit impact. Zero allocations leave the snapshot
// unchanged.
func postTradeMetrics(pre TradeMetrics, security Security, quantity int64, side Side) TradeMetrics {
	post := pre
	if quantity == 0 {
		return post
	}

	q := float64(quantity)
	post.ActiveSpreadDuration += q * PerUnitImpact(security, MetricActiveSpreadDuration, side)
	post.Duration += q * PerUnitImpact(security, MetricDuration, side)
	post.OAS += q * PerUnitImpact(security, MetricOAS, side)
	return post
}

// computeDispersion builds the dispersion summary over the eligible-account
// set. Standard deviation is population, not sample-corrected; accounts with
// zero allocation still count with their pre-trade metric unchanged.
func computeDispersion(pre, post []float64, tolerance float64) *DispersionMetrics {
	if len(pre) == 0 {
		return nil
	}

	preStd := stat.PopStdDev(pre, nil)
	postStd := stat.PopStdDev(post, nil)

	improvement := 0.0
	if preStd > 0 {
		improvement = 1.0 - postStd/preStd
		if improvement < 0 {
			improvement = 0
		}
		if improvement > 1 {
			improvement = 1
		}
	}

	target := stat.Mean(post, nil)
	maxDev, minDev := 0.0, 0.0
	withinTolerance := target > 0
	for i, v := range post {
		dev := v - target
		if dev < 0 {
			dev = -dev
		}
		if i == 0 || dev > maxDev {
			maxDev = dev
		}
		if i == 0 || dev < minDev {
			minDev = dev
		}
		if target > 0 && dev/target > tolerance {
			withinTolerance = false
		}
	}

	return &DispersionMetrics{
		PreTradeStdDev:  preStd,
		PostTradeStdDev: postStd,
		Improvement:     improvement,
		MaxDeviation:    maxDev,
		MinDeviation:    minDev,
		TargetValue:     target,
		WithinTolerance: withinTolerance,
	}
}
