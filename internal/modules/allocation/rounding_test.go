package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorToDenomination(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		denom    int64
		want     int64
	}{
		{"exact multiple", 5000, 1000, 5000},
		{"rounds down", 5999.99, 1000, 5000},
		{"never rounds up", 999.999, 1000, 0},
		{"zero quantity", 0, 1000, 0},
		{"negative quantity", -500, 1000, 0},
		{"unit denomination", 1234.56, 1, 1234},
		{"zero denomination", 5000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, floorToDenomination(tt.quantity, tt.denom))
		})
	}
}

func TestRoundAndDistribute_NAVRank(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100_000_000},
		{AccountID: "B", NAV: 150_000_000},
		{AccountID: "C", NAV: 80_000_000},
	}
	raw := []float64{3_030_303.03, 4_545_454.55, 2_424_242.42}
	caps := []int64{10_000_000, 10_000_000, 10_000_000}

	got := roundAndDistribute(raw, accounts, caps, 1000, 10_000_000, RemainderNAVRank)

	// The rounding shortfall of one lot goes to the largest NAV first
	assert.Equal(t, []int64{3_030_000, 4_546_000, 2_424_000}, got)

	var total int64
	for _, q := range got {
		total += q
	}
	assert.Equal(t, int64(10_000_000), total)
}

func TestRoundAndDistribute_Residual(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 10},
		{AccountID: "B", NAV: 10},
		{AccountID: "C", NAV: 10},
	}
	// Residuals after flooring: A 0.9, B 0.5, C 0.6 lots
	raw := []float64{1900, 2500, 3600}
	caps := []int64{8000, 8000, 8000}

	got := roundAndDistribute(raw, accounts, caps, 1000, 8000, RemainderResidual)

	// Floors 1000/2000/3000 leave two lots; largest residuals are A then C
	assert.Equal(t, []int64{2000, 2000, 4000}, got)
}

func TestRoundAndDistribute_ResidualSkipsZeroTargets(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 10},
		{AccountID: "B", NAV: 10},
		{AccountID: "C", NAV: 10},
	}
	// C has no target at all; every floor comes up empty
	raw := []float64{900, 500, 0}
	caps := []int64{8000, 8000, 8000}

	got := roundAndDistribute(raw, accounts, caps, 1000, 3000, RemainderResidual)

	// All three lots land on targeted accounts, none on C
	assert.Equal(t, []int64{2000, 1000, 0}, got)
}

func TestRoundAndDistribute_RespectsCaps(t *testing.T) {
	accounts := []Account{
		{AccountID: "A", NAV: 100},
		{AccountID: "B", NAV: 50},
	}
	raw := []float64{6000, 6000}
	caps := []int64{4000, 5000}

	got := roundAndDistribute(raw, accounts, caps, 1000, 12_000, RemainderNAVRank)

	// Capacity runs out: sum falls short of the order, never over a cap
	assert.Equal(t, []int64{4000, 5000}, got)
}

func TestRoundAndDistribute_RemainderBelowDenomination(t *testing.T) {
	accounts := []Account{{AccountID: "A", NAV: 1}, {AccountID: "B", NAV: 2}}
	raw := []float64{500, 400}
	caps := []int64{1000, 1000}

	got := roundAndDistribute(raw, accounts, caps, 1000, 900, RemainderNAVRank)

	// 900 cannot fill a single lot; nothing is granted
	assert.Equal(t, []int64{0, 0}, got)
}
