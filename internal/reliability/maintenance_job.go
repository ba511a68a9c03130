package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/database"
)

// DatabaseMaintenanceJob runs the nightly integrity check and WAL checkpoint
// over every database. A corrupt database aborts the job loudly; WAL bloat
// is only logged.
type DatabaseMaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewDatabaseMaintenanceJob creates the maintenance job.
func NewDatabaseMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name.
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks and checkpoints every database.
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	for name, db := range j.databases {
		if err := db.QuickCheck(ctx); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}

		if stats, err := db.GetStats(); err == nil {
			j.log.Debug().
				Str("database", name).
				Int64("size_bytes", stats.SizeBytes).
				Msg("database maintained")
		}
	}

	j.log.Info().Dur("elapsed", time.Since(start)).Int("databases", len(j.databases)).
		Msg("database maintenance completed")
	return nil
}
