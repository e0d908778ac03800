package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/config"
	"github.com/aristath/marketfacts/internal/scheduler"
)

// RegisterJobs creates the cron scheduler and registers background jobs.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	// Object storage has no cheap listing by age; expiry is left to bucket lifecycle rules
	pruner, ok := container.CacheStore.(clientdata.Pruner)
	if !ok {
		log.Info().Str("backend", cfg.Cache.Backend).Msg("Cache backend cannot prune, cleanup job not registered")
		return nil
	}

	container.CleanupJob = clientdata.NewCleanupJob(pruner, cfg.Cache.Retention, log)
	if err := container.Scheduler.AddJob(cfg.Cache.CleanupSchedule, container.CleanupJob); err != nil {
		return fmt.Errorf("failed to register %s: %w", container.CleanupJob.Name(), err)
	}

	return nil
}
