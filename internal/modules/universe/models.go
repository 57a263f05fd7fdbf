package universe

import "time"

// Security is the stored reference record of one fixed income security,
// including its most recently refreshed analytics.
type Security struct {
	CUSIP           string  `json:"cusip"`
	Ticker          string  `json:"ticker"`
	Description     string  `json:"description"`
	Issuer          string  `json:"issuer,omitempty"`
	Coupon          float64 `json:"coupon"`
	MaturityDate    string  `json:"maturity_date"`
	Rating          string  `json:"rating,omitempty"`
	AssetType       string  `json:"asset_type,omitempty"`
	MinDenomination int64   `json:"min_denomination"`

	// Analytics, refreshed from the vendor
	Price              float64   `json:"price"`
	Duration           float64   `json:"duration"`
	SpreadDuration     float64   `json:"spread_duration"`
	OAS                float64   `json:"oas"`
	AnalyticsUpdatedAt time.Time `json:"analytics_updated_at"`
}

// Analytics is one vendor analytics snapshot for a security
type Analytics struct {
	CUSIP          string    `json:"cusip"`
	Price          float64   `json:"price"`
	Duration       float64   `json:"duration"`
	SpreadDuration float64   `json:"spread_duration"`
	OAS            float64   `json:"oas"`
	AsOf           time.Time `json:"as_of"`
}
