package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired cache rows. It runs on the cron scheduler.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes expired rows from every cache table. A failure on one table
// does not stop cleanup of the others.
func (j *CleanupJob) Run() error {
	var total int64
	var lastErr error

	for _, table := range AllTables {
		deleted, err := j.repo.DeleteExpired(table)
		if err != nil {
			j.log.Error().Err(err).Str("table", table).Msg("Failed to clean cache table")
			lastErr = err
			continue
		}
		total += deleted
	}

	j.log.Info().Int64("deleted", total).Msg("Cache cleanup completed")
	return lastErr
}
