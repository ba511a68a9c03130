package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/universe"
)

// BatchSubmitter is the slice of the research service this job needs.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, names []string) (string, error)
}

// ResearchRunJob submits a research batch over the active universe. Wired
// to a nightly schedule so reports stay fresh without anyone asking.
type ResearchRunJob struct {
	securities *universe.SecurityRepository
	research   BatchSubmitter
	log        zerolog.Logger
}

// NewResearchRunJob creates the scheduled research run job.
func NewResearchRunJob(securities *universe.SecurityRepository, research BatchSubmitter, log zerolog.Logger) *ResearchRunJob {
	return &ResearchRunJob{
		securities: securities,
		research:   research,
		log:        log.With().Str("job", "research_run").Logger(),
	}
}

// Name returns the job name.
func (j *ResearchRunJob) Name() string {
	return "research_run"
}

// Run submits one batch covering every active security.
func (j *ResearchRunJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := j.securities.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active securities: %w", err)
	}
	if len(active) == 0 {
		j.log.Info().Msg("universe is empty, nothing to research")
		return nil
	}

	names := make([]string, 0, len(active))
	for _, identity := range active {
		names = append(names, identity.Symbol)
	}

	batchID, err := j.research.SubmitBatch(ctx, names)
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}
	j.log.Info().Str("batch_id", batchID).Int("securities", len(names)).Msg("scheduled research batch submitted")
	return nil
}
