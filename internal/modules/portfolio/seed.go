package portfolio

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
)

// seedRandSource keeps generated NAVs, cash, and positions reproducible
// across restarts so allocation results are stable in dev mode.
const seedRandSource = 42

type seedGroup struct {
	group        Group
	accountCount int
	idPrefix     string
	namePattern  string
	navMin       float64
	navMax       float64
	conservative bool
}

var seedGroups = []seedGroup{
	{
		group: Group{
			Ticker:      "ALPHA-CORE",
			Name:        "Alpha Core Fixed Income",
			Description: "Core fixed income investment portfolio",
			Strategy:    "CORE",
			TotalNAV:    4_500_000_000,
			Manager:     "Sarah Johnson",
			CreatedDate: "2022-03-15",
		},
		accountCount: 12,
		idPrefix:     "ALPHA",
		namePattern:  "Alpha Account %d",
		navMin:       100_000_000,
		navMax:       500_000_000,
	},
	{
		group: Group{
			Ticker:      "INST-PRIME",
			Name:        "Institutional Prime",
			Description: "Prime institutional investor portfolio group",
			Strategy:    "CORE_PLUS",
			TotalNAV:    8_200_000_000,
			Manager:     "Michael Chen",
			CreatedDate: "2021-01-10",
		},
		accountCount: 6,
		idPrefix:     "INST",
		namePattern:  "Institutional Prime %d",
		navMin:       800_000_000,
		navMax:       2_000_000_000,
	},
	{
		group: Group{
			Ticker:      "DURATION-PRO",
			Name:        "Duration Professional",
			Description: "Long duration professional bond portfolio",
			Strategy:    "LDI",
			TotalNAV:    12_500_000_000,
			Manager:     "Jennifer Martinez",
			CreatedDate: "2020-06-01",
		},
		accountCount: 11,
		idPrefix:     "DUR",
		namePattern:  "Duration Portfolio %d",
		navMin:       200_000_000,
		navMax:       1_000_000_000,
		conservative: true,
	},
	{
		group: Group{
			Ticker:      "BALANCED-SELECT",
			Name:        "Balanced Select Portfolio",
			Description: "Select balanced investment portfolio",
			Strategy:    "BALANCED",
			TotalNAV:    3_100_000_000,
			Manager:     "David Thompson",
			CreatedDate: "2023-02-20",
		},
		accountCount: 2,
		idPrefix:     "BAL",
		namePattern:  "Balanced Account %d",
		navMin:       150_000_000,
		navMax:       400_000_000,
	},
}

// Seed populates the portfolio tables with development data when they are
// empty. cusips is the seeded security universe; each account receives a
// deterministic subset as starting positions.
func Seed(ctx context.Context, repo *Repository, cusips []string, log zerolog.Logger) error {
	count, err := repo.CountGroups(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug().Int("groups", count).Msg("Portfolio data already seeded")
		return nil
	}

	rng := rand.New(rand.NewSource(seedRandSource))
	accounts := 0

	for _, sg := range seedGroups {
		if err := repo.UpsertGroup(ctx, sg.group); err != nil {
			return err
		}

		for i := 1; i <= sg.accountCount; i++ {
			nav := sg.navMin + rng.Float64()*(sg.navMax-sg.navMin)

			// Pension-style mandates hold less cash than core accounts.
			cashPct := 0.02 + rng.Float64()*0.06
			if sg.conservative {
				cashPct = 0.01 + rng.Float64()*0.02
			}
			cash := math.Round(nav*cashPct/1000) * 1000

			rec := AccountRecord{
				AccountID:            fmt.Sprintf("%s%03d", sg.idPrefix, i),
				GroupTicker:          sg.group.Ticker,
				AccountName:          fmt.Sprintf(sg.namePattern, i),
				NAV:                  math.Round(nav),
				AvailableCash:        cash,
				ActiveSpreadDuration: 5.5 + float64(i%5)*0.2,
				PortfolioDuration:    5.8 + float64(i%5)*0.2,
				SpreadDuration:       5.3 + float64(i%5)*0.2,
				OAS:                  75 + float64(i%4)*10,
			}
			if err := repo.UpsertAccount(ctx, rec); err != nil {
				return err
			}
			accounts++

			// Every account starts with positions in roughly half the
			// universe, sized in round lots.
			for j, cusip := range cusips {
				if (i+j)%2 != 0 {
					continue
				}
				quantity := int64(rng.Intn(50)+1) * 100_000
				pos := Position{AccountID: rec.AccountID, CUSIP: cusip, Quantity: quantity}
				if err := repo.UpsertPosition(ctx, pos); err != nil {
					return err
				}
			}

			// A few accounts carry a restriction against the first seeded
			// security, exercising the compliance path end to end.
			if i%3 == 0 && len(cusips) > 0 {
				if err := repo.AddRestriction(ctx, rec.AccountID, cusips[0], "ESG_COMPLIANT"); err != nil {
					return err
				}
			}
		}
	}

	log.Info().
		Int("groups", len(seedGroups)).
		Int("accounts", accounts).
		Msg("Seeded portfolio data")

	return nil
}
