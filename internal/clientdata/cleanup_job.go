package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob physically removes entries older than the retention window.
// Reads already ignore stale entries; this only reclaims space.
type CleanupJob struct {
	pruner    Pruner
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewCleanupJob creates a new fact cache cleanup job.
func NewCleanupJob(pruner Pruner, retention time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("job", "fact_cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune fact cache")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Fact cache cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "fact_cache_cleanup"
}
