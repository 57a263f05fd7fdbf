package portfolio

// Group represents a portfolio group: a set of accounts managed together
// that an order is allocated across.
type Group struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Strategy     string  `json:"strategy"`
	TotalNAV     float64 `json:"total_nav"`
	Manager      string  `json:"manager,omitempty"`
	CreatedDate  string  `json:"created_date,omitempty"`
	AccountCount int     `json:"account_count"`
}

// AccountRecord is the stored state of one investment account
type AccountRecord struct {
	AccountID            string   `json:"account_id"`
	GroupTicker          string   `json:"group_ticker"`
	AccountName          string   `json:"account_name"`
	NAV                  float64  `json:"nav"`
	AvailableCash        float64  `json:"available_cash"`
	ActiveSpreadDuration float64  `json:"active_spread_duration"`
	PortfolioDuration    float64  `json:"portfolio_duration"`
	SpreadDuration       float64  `json:"spread_duration"`
	OAS                  float64  `json:"oas"`
	MaxConcentration     *float64 `json:"max_concentration,omitempty"`
}

// Position is an account's holding of one security, in face-value units
type Position struct {
	AccountID string `json:"account_id"`
	CUSIP     string `json:"cusip"`
	Quantity  int64  `json:"quantity"`
}
