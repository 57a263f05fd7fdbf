package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerUnitImpact(t *testing.T) {
	security := Security{
		Price:          1.0,
		Duration:       4.0,
		SpreadDuration: 5.0,
		OAS:            80,
	}

	assert.InDelta(t, 5e-6, PerUnitImpact(security, MetricActiveSpreadDuration, SideBuy), 1e-12)
	assert.InDelta(t, 4e-6, PerUnitImpact(security, MetricDuration, SideBuy), 1e-12)
	assert.InDelta(t, 80e-6, PerUnitImpact(security, MetricOAS, SideBuy), 1e-12)

	// Sells move the metric the other way
	assert.InDelta(t, -5e-6, PerUnitImpact(security, MetricActiveSpreadDuration, SideSell), 1e-12)

	// Price scales the impact
	security.Price = 0.5
	assert.InDelta(t, 2.5e-6, PerUnitImpact(security, MetricActiveSpreadDuration, SideBuy), 1e-12)
}

func TestPostTradeMetrics(t *testing.T) {
	security := Security{Price: 1.0, Duration: 4.0, SpreadDuration: 5.0, OAS: 80}
	pre := TradeMetrics{ActiveSpreadDuration: 0.30, Duration: 5.2, OAS: 85}

	post := postTradeMetrics(pre, security, 1_000_000, SideBuy)
	assert.InDelta(t, 0.30+5.0, post.ActiveSpreadDuration, 1e-9)
	assert.InDelta(t, 5.2+4.0, post.Duration, 1e-9)
	assert.InDelta(t, 85+80.0, post.OAS, 1e-9)

	// Zero allocation leaves the snapshot untouched
	assert.Equal(t, pre, postTradeMetrics(pre, security, 0, SideBuy))

	sold := postTradeMetrics(pre, security, 1_000_000, SideSell)
	assert.InDelta(t, 0.30-5.0, sold.ActiveSpreadDuration, 1e-9)
}

func TestComputeDispersion_Improvement(t *testing.T) {
	pre := []float64{0.30, 0.10, -0.20}
	post := []float64{0.07, 0.07, 0.07}

	d := computeDispersion(pre, post, 0.05)
	require.NotNil(t, d)

	assert.Greater(t, d.PreTradeStdDev, 0.0)
	assert.InDelta(t, 0.0, d.PostTradeStdDev, 1e-12)
	assert.InDelta(t, 1.0, d.Improvement, 1e-9)
	assert.InDelta(t, 0.07, d.TargetValue, 1e-12)
	assert.True(t, d.WithinTolerance)
}

func TestComputeDispersion_WorseningClampsToZero(t *testing.T) {
	pre := []float64{1.0, 1.1, 0.9}
	post := []float64{2.0, 0.5, 0.2}

	d := computeDispersion(pre, post, 0.05)
	require.NotNil(t, d)

	assert.Greater(t, d.PostTradeStdDev, d.PreTradeStdDev)
	assert.Equal(t, 0.0, d.Improvement)
}

func TestComputeDispersion_ZeroPreStd(t *testing.T) {
	pre := []float64{0.5, 0.5, 0.5}
	post := []float64{0.6, 0.6, 0.6}

	d := computeDispersion(pre, post, 0.05)
	require.NotNil(t, d)

	assert.Equal(t, 0.0, d.Improvement)
	assert.True(t, d.WithinTolerance)
}

func TestComputeDispersion_Empty(t *testing.T) {
	assert.Nil(t, computeDispersion(nil, nil, 0.05))
}
