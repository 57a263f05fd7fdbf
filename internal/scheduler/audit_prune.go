package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/allocation"
)

// AuditPruneJob trims allocation audit records past the retention window
type AuditPruneJob struct {
	audit     *allocation.AuditRepository
	retention time.Duration
	log       zerolog.Logger
}

// NewAuditPruneJob creates a new audit prune job
func NewAuditPruneJob(audit *allocation.AuditRepository, retention time.Duration, log zerolog.Logger) *AuditPruneJob {
	return &AuditPruneJob{
		audit:     audit,
		retention: retention,
		log:       log.With().Str("job", "audit_prune").Logger(),
	}
}

// Name returns the job name
func (j *AuditPruneJob) Name() string {
	return "audit_prune"
}

// Run prunes audit records older than the retention window
func (j *AuditPruneJob) Run() error {
	if j.retention <= 0 {
		return nil // Retention disabled, keep everything
	}

	cutoff := time.Now().UTC().Add(-j.retention)
	pruned, err := j.audit.PruneOlderThan(cutoff)
	if err != nil {
		return err
	}

	if pruned > 0 {
		j.log.Info().
			Int64("pruned", pruned).
			Time("cutoff", cutoff).
			Msg("Audit records pruned")
	}

	return nil
}
