package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/allocation"
)

// AnalyticsSource fetches current analytics for a security from the
// vendor. Implemented by the Aladdin client.
type AnalyticsSource interface {
	SecurityAnalytics(ctx context.Context, cusip string) (Analytics, error)
}

// defaultStaleAfter bounds how old stored analytics may be before an
// allocation forces a vendor refresh.
const defaultStaleAfter = time.Hour

// Service resolves securities with current analytics for the allocation
// engine. Stored analytics are used while fresh; stale or missing
// analytics trigger a vendor fetch, and a failed fetch fails the request
// rather than allocating on bad numbers.
type Service struct {
	repo       *Repository
	vendor     AnalyticsSource
	staleAfter time.Duration
	log        zerolog.Logger
}

// NewService creates the universe service. vendor may be nil, in which
// case stored analytics are served regardless of age.
func NewService(repo *Repository, vendor AnalyticsSource, staleAfter time.Duration, log zerolog.Logger) *Service {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Service{
		repo:       repo,
		vendor:     vendor,
		staleAfter: staleAfter,
		log:        log.With().Str("service", "universe").Logger(),
	}
}

// SecurityWithAnalytics returns the security ready for allocation.
func (s *Service) SecurityWithAnalytics(ctx context.Context, cusip string) (allocation.Security, error) {
	sec, err := s.repo.GetByCUSIP(ctx, cusip)
	if err != nil {
		return allocation.Security{}, err
	}
	if sec == nil {
		return allocation.Security{}, fmt.Errorf("unknown security: %s", cusip)
	}

	if s.needsRefresh(sec) {
		refreshed, err := s.refresh(ctx, sec)
		if err != nil {
			return allocation.Security{}, fmt.Errorf("analytics refresh failed for %s: %w", cusip, err)
		}
		sec = refreshed
	}

	if sec.Price <= 0 || sec.Duration <= 0 {
		return allocation.Security{}, fmt.Errorf("security %s has no usable analytics", cusip)
	}

	return toAllocationSecurity(*sec), nil
}

// RefreshAnalytics re-fetches analytics for every stored security. Used
// by the scheduled snapshot job; individual failures are logged and
// skipped so one bad CUSIP does not stall the sweep.
func (s *Service) RefreshAnalytics(ctx context.Context) (int, error) {
	if s.vendor == nil {
		return 0, nil
	}

	cusips, err := s.repo.AllCUSIPs(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, cusip := range cusips {
		analytics, err := s.vendor.SecurityAnalytics(ctx, cusip)
		if err != nil {
			s.log.Warn().Err(err).Str("cusip", cusip).Msg("Analytics refresh failed")
			continue
		}
		if err := s.repo.UpdateAnalytics(ctx, analytics); err != nil {
			s.log.Warn().Err(err).Str("cusip", cusip).Msg("Analytics store failed")
			continue
		}
		refreshed++
	}

	s.log.Info().Int("refreshed", refreshed).Int("total", len(cusips)).Msg("Analytics sweep complete")
	return refreshed, nil
}

func (s *Service) needsRefresh(sec *Security) bool {
	if s.vendor == nil {
		return false
	}
	if sec.AnalyticsUpdatedAt.IsZero() {
		return true
	}
	return time.Since(sec.AnalyticsUpdatedAt) > s.staleAfter
}

func (s *Service) refresh(ctx context.Context, sec *Security) (*Security, error) {
	analytics, err := s.vendor.SecurityAnalytics(ctx, sec.CUSIP)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAnalytics(ctx, analytics); err != nil {
		return nil, err
	}

	updated := *sec
	updated.Price = analytics.Price
	updated.Duration = analytics.Duration
	updated.SpreadDuration = analytics.SpreadDuration
	updated.OAS = analytics.OAS
	updated.AnalyticsUpdatedAt = analytics.AsOf

	s.log.Debug().Str("cusip", sec.CUSIP).Msg("Analytics refreshed")
	return &updated, nil
}

func toAllocationSecurity(sec Security) allocation.Security {
	return allocation.Security{
		CUSIP:           sec.CUSIP,
		Ticker:          sec.Ticker,
		Description:     sec.Description,
		Price:           sec.Price,
		Duration:        sec.Duration,
		SpreadDuration:  sec.SpreadDuration,
		OAS:             sec.OAS,
		MinDenomination: sec.MinDenomination,
		Coupon:          sec.Coupon,
		MaturityDate:    sec.MaturityDate,
	}
}
