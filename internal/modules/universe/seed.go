package universe

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

var seedSecurities = []Security{
	{
		CUSIP: "912828ZW8", Ticker: "T 2.5 05/31/25",
		Description: "US Treasury Note 2.5% Due 05/31/2025", Issuer: "US Treasury",
		Coupon: 2.5, MaturityDate: "2025-05-31", Rating: "AAA", AssetType: "GOVT",
		MinDenomination: 1000, Price: 0.98750, Duration: 2.3, SpreadDuration: 2.2, OAS: 0,
	},
	{
		CUSIP: "912828A89", Ticker: "T 3.0 08/15/27",
		Description: "US Treasury Note 3.0% Due 08/15/2027", Issuer: "US Treasury",
		Coupon: 3.0, MaturityDate: "2027-08-15", Rating: "AAA", AssetType: "GOVT",
		MinDenomination: 1000, Price: 0.99125, Duration: 4.2, SpreadDuration: 4.0, OAS: 0,
	},
	{
		CUSIP: "912828B45", Ticker: "T 4.0 11/30/30",
		Description: "US Treasury Bond 4.0% Due 11/30/2030", Issuer: "US Treasury",
		Coupon: 4.0, MaturityDate: "2030-11-30", Rating: "AAA", AssetType: "GOVT",
		MinDenomination: 1000, Price: 1.02500, Duration: 7.8, SpreadDuration: 7.4, OAS: 0,
	},
	{
		CUSIP: "459200JX0", Ticker: "IBM 3.45 02/19/26",
		Description: "IBM Corp 3.45% Due 02/19/2026", Issuer: "IBM Corp",
		Coupon: 3.45, MaturityDate: "2026-02-19", Rating: "A+", AssetType: "CORP",
		MinDenomination: 2000, Price: 0.97250, Duration: 3.8, SpreadDuration: 3.6, OAS: 85,
	},
	{
		CUSIP: "037833CY7", Ticker: "AAPL 4.25 05/10/29",
		Description: "Apple Inc 4.25% Due 05/10/2029", Issuer: "Apple Inc",
		Coupon: 4.25, MaturityDate: "2029-05-10", Rating: "AA+", AssetType: "CORP",
		MinDenomination: 2000, Price: 1.01875, Duration: 6.5, SpreadDuration: 6.2, OAS: 65,
	},
	{
		CUSIP: "594918BP8", Ticker: "MSFT 3.7 08/08/28",
		Description: "Microsoft Corp 3.7% Due 08/08/2028", Issuer: "Microsoft Corp",
		Coupon: 3.7, MaturityDate: "2028-08-08", Rating: "AAA", AssetType: "CORP",
		MinDenomination: 2000, Price: 0.99500, Duration: 5.4, SpreadDuration: 5.1, OAS: 55,
	},
	{
		CUSIP: "06051GHZ8", Ticker: "BAC 4.0 04/01/27",
		Description: "Bank of America Corp 4.0% Due 04/01/2027", Issuer: "Bank of America Corp",
		Coupon: 4.0, MaturityDate: "2027-04-01", Rating: "A-", AssetType: "CORP",
		MinDenomination: 2000, Price: 0.96750, Duration: 4.1, SpreadDuration: 3.9, OAS: 120,
	},
	{
		CUSIP: "46625HKA7", Ticker: "JPM 3.9 07/15/26",
		Description: "JPMorgan Chase & Co 3.9% Due 07/15/2026", Issuer: "JPMorgan Chase & Co",
		Coupon: 3.9, MaturityDate: "2026-07-15", Rating: "A-", AssetType: "CORP",
		MinDenomination: 2000, Price: 0.98125, Duration: 3.2, SpreadDuration: 3.0, OAS: 95,
	},
}

// Seed populates the security master with development data when it is
// empty, and returns the seeded CUSIPs for position generation.
func Seed(ctx context.Context, repo *Repository, log zerolog.Logger) ([]string, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		log.Debug().Int("securities", count).Msg("Universe already seeded")
		return repo.AllCUSIPs(ctx)
	}

	now := time.Now().UTC()
	cusips := make([]string, 0, len(seedSecurities))
	for _, sec := range seedSecurities {
		sec.AnalyticsUpdatedAt = now
		if err := repo.Upsert(ctx, sec); err != nil {
			return nil, err
		}
		cusips = append(cusips, sec.CUSIP)
	}

	log.Info().Int("securities", len(cusips)).Msg("Seeded security universe")
	return cusips, nil
}
