package research

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/events"
)

// Coordinator drives one security job: it fans the dimension tasks out
// under the inner concurrency bound, collects every outcome without letting
// a failure short-circuit the rest, runs the overall synthesis once the
// join barrier is down, and finalizes the job's status.
type Coordinator struct {
	executor *Executor
	store    Store
	tracker  *Tracker
	events   *events.Manager
	inner    int64
	log      zerolog.Logger
}

// NewCoordinator creates a security coordinator for one batch run.
func NewCoordinator(executor *Executor, store Store, tracker *Tracker, eventManager *events.Manager, inner int, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		executor: executor,
		store:    store,
		tracker:  tracker,
		events:   eventManager,
		inner:    int64(inner),
		log:      log.With().Str("component", "coordinator").Logger(),
	}
}

// RunSecurity runs a security job to a terminal state and signals done
// exactly once. It is invoked at most once per job per run.
func (c *Coordinator) RunSecurity(ctx context.Context, job *domain.SecurityJob, done chan<- string) {
	defer func() { done <- job.ID }()

	log := c.log.With().Str("job_id", job.ID).Str("security", job.Security).Logger()
	c.setJobStatus(ctx, job, domain.JobRunning, "")

	outcomes := c.runDimensions(ctx, job)

	synthesis := c.executor.Synthesize(ctx, job, outcomes)

	// The job completes as long as synthesis produced a result, even over
	// degraded input. Only synthesis itself failing fails the job.
	status := domain.JobCompleted
	jobErr := ""
	if !synthesis.OK() {
		status = domain.JobFailed
		jobErr = synthesis.Err.Error()
	}
	c.setJobStatus(ctx, job, status, jobErr)

	var score *float64
	if synthesis.OK() {
		s := synthesis.Result.Score
		score = &s
	}
	if c.events != nil {
		c.events.EmitTyped(events.SecurityCompleted, "research", &events.SecurityCompletedData{
			BatchID:  job.BatchID,
			Security: job.Security,
			Status:   string(status),
			Score:    score,
		})
	}
	log.Info().Str("status", string(status)).Msg("security job finished")
}

// runDimensions fans out all analysis dimensions under the inner semaphore
// and blocks until every one has settled. Outcomes come back in report
// order regardless of completion order.
func (c *Coordinator) runDimensions(ctx context.Context, job *domain.SecurityJob) []TaskOutcome {
	dims := domain.AnalysisDimensions()
	sem := semaphore.NewWeighted(c.inner)
	results := make(chan TaskOutcome, len(dims))

	for _, dim := range dims {
		go func(dim domain.Dimension) {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- c.executor.Abandon(ctx, job, dim, err)
				return
			}
			defer sem.Release(1)
			results <- c.executor.Execute(ctx, job, dim)
		}(dim)
	}

	settled := make(map[domain.Dimension]TaskOutcome, len(dims))
	for range dims {
		outcome := <-results
		settled[outcome.Dimension] = outcome
	}

	ordered := make([]TaskOutcome, 0, len(dims))
	for _, dim := range dims {
		ordered = append(ordered, settled[dim])
	}
	return ordered
}

func (c *Coordinator) setJobStatus(ctx context.Context, job *domain.SecurityJob, status domain.JobStatus, jobErr string) {
	job.Status = status
	job.Error = jobErr
	c.tracker.SetJobStatus(job.ID, status, jobErr)
	if err := c.store.SetSecurityStatus(context.WithoutCancel(ctx), job.ID, status, jobErr); err != nil {
		c.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist security status")
	}
}
