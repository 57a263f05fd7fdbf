package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/events"
	"github.com/jlancaster7/allocator-backend/internal/modules/universe"
)

// analyticsRefreshTimeout bounds one full sweep over the universe
const analyticsRefreshTimeout = 5 * time.Minute

// AnalyticsRefreshJob re-fetches vendor analytics for the whole security
// universe so allocations run on current numbers.
type AnalyticsRefreshJob struct {
	service *universe.Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewAnalyticsRefreshJob creates a new analytics refresh job
func NewAnalyticsRefreshJob(service *universe.Service, bus *events.Bus, log zerolog.Logger) *AnalyticsRefreshJob {
	return &AnalyticsRefreshJob{
		service: service,
		bus:     bus,
		log:     log.With().Str("job", "analytics_refresh").Logger(),
	}
}

// Name returns the job name
func (j *AnalyticsRefreshJob) Name() string {
	return "analytics_refresh"
}

// Run executes one analytics sweep
func (j *AnalyticsRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), analyticsRefreshTimeout)
	defer cancel()

	refreshed, err := j.service.RefreshAnalytics(ctx)
	if err != nil {
		return err
	}

	if j.bus != nil && refreshed > 0 {
		j.bus.Publish(events.Event{
			Type: events.SnapshotRefreshed,
			Data: map[string]interface{}{"securities_refreshed": refreshed},
		})
	}

	return nil
}
