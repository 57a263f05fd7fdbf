package allocation

import "time"

// Side is the direction of an order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Method identifies an allocation strategy
type Method string

const (
	MethodProRata       Method = "PRO_RATA"
	MethodCustomWeights Method = "CUSTOM_WEIGHTS"
	MethodMinDispersion Method = "MIN_DISPERSION"
)

// TargetMetric is the per-account risk metric a strategy operates on
type TargetMetric string

const (
	MetricActiveSpreadDuration TargetMetric = "ACTIVE_SPREAD_DURATION"
	MetricDuration             TargetMetric = "DURATION"
	MetricOAS                  TargetMetric = "OAS"
)

// WarningType classifies non-fatal allocation conditions
type WarningType string

const (
	WarningInsufficientCash     WarningType = "INSUFFICIENT_CASH"
	WarningMinLotSize           WarningType = "MIN_LOT_SIZE"
	WarningCompliance           WarningType = "COMPLIANCE"
	WarningConcentration        WarningType = "CONCENTRATION"
	WarningOptimizationFallback WarningType = "OPTIMIZATION_FALLBACK"
)

// Order describes a single bond order to be split across accounts.
// Quantity is in integer face-value units. Immutable once handed to the engine.
type Order struct {
	SecurityID     string  `json:"security_id"`
	Side           Side    `json:"side"`
	Quantity       int64   `json:"quantity"`
	Price          float64 `json:"price,omitempty"` // Optional override; 0 = use security price
	SettlementDate string  `json:"settlement_date,omitempty"`
}

// Account carries the financial state of one candidate account.
// Supplied fresh per request; the engine never mutates or persists it.
type Account struct {
	AccountID            string   `json:"account_id"`
	AccountName          string   `json:"account_name"`
	NAV                  float64  `json:"nav"`
	AvailableCash        float64  `json:"available_cash"`
	CurrentPosition      int64    `json:"current_position"` // Face value held of the target security
	ActiveSpreadDuration float64  `json:"active_spread_duration"`
	PortfolioDuration    float64  `json:"portfolio_duration"`
	SpreadDuration       float64  `json:"spread_duration"`
	OAS                  float64  `json:"oas"`
	RestrictedSecurities []string `json:"restricted_securities,omitempty"`
	MaxConcentration     *float64 `json:"max_concentration,omitempty"` // Fraction of NAV
}

// Security carries the analytics of the security being allocated
type Security struct {
	CUSIP           string  `json:"cusip"`
	Ticker          string  `json:"ticker,omitempty"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	Duration        float64 `json:"duration"`
	SpreadDuration  float64 `json:"spread_duration"`
	OAS             float64 `json:"oas"`
	MinDenomination int64   `json:"min_denomination"`
	Coupon          float64 `json:"coupon,omitempty"`
	MaturityDate    string  `json:"maturity_date,omitempty"`
}

// Parameters is the strategy-specific parameter block. Which fields apply
// depends on the method: BaseMetric for PRO_RATA, Weights for CUSTOM_WEIGHTS,
// TargetMetric/Tolerance/MaxIterations for MIN_DISPERSION.
type Parameters struct {
	BaseMetric    string             `json:"base_metric,omitempty"`
	Weights       map[string]float64 `json:"weights,omitempty"`
	TargetMetric  TargetMetric       `json:"target_metric,omitempty"`
	Tolerance     float64            `json:"tolerance,omitempty"`
	MaxIterations int                `json:"max_iterations,omitempty"`
}

// Constraints bound every strategy's output
type Constraints struct {
	RespectCash         bool     `json:"respect_cash"`
	MinAllocation       int64    `json:"min_allocation"`
	ComplianceCheck     bool     `json:"compliance_check"`
	RoundToDenomination bool     `json:"round_to_denomination"`
	MaxConcentration    *float64 `json:"max_concentration,omitempty"` // Fraction of NAV
}

// DefaultConstraints returns the constraint defaults used when a request
// omits the constraints block.
func DefaultConstraints(minAllocation int64) Constraints {
	return Constraints{
		RespectCash:         true,
		MinAllocation:       minAllocation,
		ComplianceCheck:     true,
		RoundToDenomination: true,
	}
}

// TradeMetrics is a snapshot of an account's risk metrics at a point in time
type TradeMetrics struct {
	ActiveSpreadDuration   float64 `json:"active_spread_duration"`
	ContributionToDuration float64 `json:"contribution_to_duration"`
	Duration               float64 `json:"duration"`
	OAS                    float64 `json:"oas"`
	SpreadDuration         float64 `json:"spread_duration"`
}

// Warning records a non-fatal condition that reduced or zeroed an allocation
type Warning struct {
	Type      WarningType `json:"type"`
	AccountID string      `json:"account_id,omitempty"`
	Message   string      `json:"message"`
}

// Line is the per-account allocation result
type Line struct {
	AccountID         string       `json:"account_id"`
	AccountName       string       `json:"account_name"`
	AllocatedQuantity int64        `json:"allocated_quantity"`
	AllocatedNotional float64      `json:"allocated_notional"`
	AvailableCash     float64      `json:"available_cash"`
	PostTradeCash     float64      `json:"post_trade_cash"`
	CashUsed          float64      `json:"cash_used"`
	PreTradeMetrics   TradeMetrics `json:"pre_trade_metrics"`
	PostTradeMetrics  TradeMetrics `json:"post_trade_metrics"`
}

// DispersionMetrics summarizes the cross-account spread of the target metric
type DispersionMetrics struct {
	PreTradeStdDev  float64 `json:"pre_trade_std_dev"`
	PostTradeStdDev float64 `json:"post_trade_std_dev"`
	Improvement     float64 `json:"improvement"`
	MaxDeviation    float64 `json:"max_deviation"`
	MinDeviation    float64 `json:"min_deviation"`
	TargetValue     float64 `json:"target_value"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// Summary aggregates an allocation result
type Summary struct {
	TotalAllocated    int64              `json:"total_allocated"`
	Unallocated       int64              `json:"unallocated"`
	AllocationRate    float64            `json:"allocation_rate"`
	AccountsAllocated int                `json:"accounts_allocated"`
	AccountsSkipped   int                `json:"accounts_skipped"`
	Dispersion        *DispersionMetrics `json:"dispersion_metrics,omitempty"`
}

// Result is the complete output of one allocation computation.
// Lines follow the input account order.
type Result struct {
	AllocationID string    `json:"allocation_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Order        Order     `json:"order"`
	Method       Method    `json:"method"`
	Lines        []Line    `json:"allocations"`
	Summary      Summary   `json:"summary"`
	Warnings     []Warning `json:"warnings"`
}

// EffectivePrice returns the order's override price if set, otherwise the
// security's current price.
func EffectivePrice(order Order, security Security) float64 {
	if order.Price > 0 {
		return order.Price
	}
	return security.Price
}
