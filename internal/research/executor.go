package research

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/extract"
)

// Executor runs one (security, dimension) analysis: resolve the identity,
// collect the dimension's data, invoke the generative backend, extract a
// score and summary, persist the terminal state.
//
// The executor never lets a failure escape as an error return to its caller:
// every internal failure is caught, mapped to a terminal error status,
// persisted, and handed back as a typed value inside the TaskOutcome. That
// containment is what keeps one dimension's failure away from its siblings.
type Executor struct {
	resolver   Resolver
	collectors CollectorSet
	generator  Generator
	store      Store
	tracker    *Tracker
	log        zerolog.Logger
}

// NewExecutor creates a task executor bound to one batch run's tracker.
func NewExecutor(resolver Resolver, collectors CollectorSet, generator Generator, store Store, tracker *Tracker, log zerolog.Logger) *Executor {
	return &Executor{
		resolver:   resolver,
		collectors: collectors,
		generator:  generator,
		store:      store,
		tracker:    tracker,
		log:        log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs one dimension task for a security job and settles it.
func (e *Executor) Execute(ctx context.Context, job *domain.SecurityJob, dim domain.Dimension) TaskOutcome {
	task := job.Tasks[dim]
	e.markRunning(job.ID, task)

	identity, err := e.resolver.Resolve(ctx, job.Security)
	if err != nil {
		return e.settleError(ctx, job.ID, task, err)
	}

	collector, ok := e.collectors.Get(dim)
	if !ok {
		return e.settleError(ctx, job.ID, task, &domain.CollectionError{Dimension: dim, Err: errNoCollector})
	}
	record, err := collector.Collect(ctx, *identity)
	if err != nil {
		return e.settleError(ctx, job.ID, task, &domain.CollectionError{Dimension: dim, Err: err})
	}

	text, err := e.generator.Generate(ctx, buildAnalysisPrompt(*identity, record))
	if err != nil {
		return e.settleError(ctx, job.ID, task, &domain.GenerationError{Err: err})
	}

	return e.settleDone(ctx, job.ID, task, text)
}

// Synthesize runs the reserved overall task over the settled dimension
// outcomes. It runs even when every dimension failed; the prompt just says
// so. A synthesis failure is what fails the security job, so it carries its
// own error type.
func (e *Executor) Synthesize(ctx context.Context, job *domain.SecurityJob, outcomes []TaskOutcome) TaskOutcome {
	task := job.Overall
	e.markRunning(job.ID, task)

	identity := domain.SecurityIdentity{Symbol: job.Security}
	if resolved, err := e.resolver.Resolve(ctx, job.Security); err == nil {
		identity = *resolved
	}

	text, err := e.generator.Generate(ctx, buildSynthesisPrompt(identity, outcomes))
	if err != nil {
		return e.settleError(ctx, job.ID, task, &domain.SynthesisError{Err: err})
	}

	return e.settleDone(ctx, job.ID, task, text)
}

// Abandon settles a task as errored without running it, used when the run
// is cancelled before the task ever acquired a slot.
func (e *Executor) Abandon(ctx context.Context, job *domain.SecurityJob, dim domain.Dimension, cause error) TaskOutcome {
	task := job.Tasks[dim]
	return e.settleError(ctx, job.ID, task, cause)
}

func (e *Executor) markRunning(jobID string, task *domain.DimensionTask) {
	task.Status = domain.TaskRunning
	task.UpdatedAt = time.Now().UTC()
	e.tracker.SetTask(jobID, *task)
}

func (e *Executor) settleDone(ctx context.Context, jobID string, task *domain.DimensionTask, text string) TaskOutcome {
	extraction := extract.Extract(text)

	score := extraction.Score
	task.Status = domain.TaskDone
	task.Score = &score
	task.Summary = extraction.Summary
	task.RawText = text
	task.Error = ""
	task.UpdatedAt = time.Now().UTC()

	if err := e.persist(ctx, jobID, task); err != nil {
		// A result we cannot store is a result we lost.
		task.Score = nil
		task.Summary = ""
		task.RawText = ""
		return e.settleError(ctx, jobID, task, err)
	}

	e.tracker.SetTask(jobID, *task)
	return TaskOutcome{
		Dimension: task.Dimension,
		Result:    &DimensionResult{Score: score, Summary: extraction.Summary, RawText: text},
	}
}

func (e *Executor) settleError(ctx context.Context, jobID string, task *domain.DimensionTask, cause error) TaskOutcome {
	task.Status = domain.TaskError
	task.Error = cause.Error()
	task.UpdatedAt = time.Now().UTC()

	if err := e.persist(ctx, jobID, task); err != nil {
		e.log.Error().Err(err).Str("job_id", jobID).Str("dimension", string(task.Dimension)).
			Msg("failed to persist task error state")
	}

	e.tracker.SetTask(jobID, *task)
	e.log.Warn().Str("job_id", jobID).Str("dimension", string(task.Dimension)).
		Err(cause).Msg("dimension task failed")
	return TaskOutcome{Dimension: task.Dimension, Err: cause}
}

// persist writes the terminal state detached from run cancellation: a task
// that finished while the batch was being cancelled still gets recorded.
func (e *Executor) persist(ctx context.Context, jobID string, task *domain.DimensionTask) error {
	return e.store.UpsertDimensionResult(context.WithoutCancel(ctx), jobID, task)
}

var errNoCollector = errors.New("no collector registered for dimension")
