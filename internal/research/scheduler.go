package research

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/events"
)

// Scheduler drives one batch: it skips securities already terminal from a
// prior run, fans coordinators out under the outer concurrency bound, and
// counts completion signals until every dispatched job has settled.
type Scheduler struct {
	coordinator *Coordinator
	store       Store
	tracker     *Tracker
	events      *events.Manager
	outer       int64
	log         zerolog.Logger
}

// NewScheduler creates a batch scheduler for one run.
func NewScheduler(coordinator *Coordinator, store Store, tracker *Tracker, eventManager *events.Manager, outer int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		store:       store,
		tracker:     tracker,
		events:      eventManager,
		outer:       int64(outer),
		log:         log.With().Str("component", "scheduler").Logger(),
	}
}

// RunBatch runs a batch to a terminal state. jobs is the batch's full job
// list, pending the subset still to run; terminal entries stay untouched,
// which is what makes calling this again on a partially-completed batch safe.
func (s *Scheduler) RunBatch(ctx context.Context, batch *domain.Batch, jobs, pending []*domain.SecurityJob) {
	log := s.log.With().Str("batch_id", batch.ID).Logger()

	completed := len(jobs) - len(pending)
	log.Info().Int("total", len(jobs)).Int("pending", len(pending)).
		Int("already_done", completed).Msg("batch run starting")

	s.tracker.SetBatchStatus(domain.BatchRunning)
	s.persistBatchStatus(ctx, batch, domain.BatchRunning, completed)

	sem := semaphore.NewWeighted(s.outer)
	done := make(chan string, len(pending))
	dispatched := 0

	for _, job := range pending {
		// Acquire fails once the run is cancelled, which is exactly the
		// point where no new coordinators may start.
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		dispatched++
		go func(job *domain.SecurityJob) {
			defer sem.Release(1)
			s.coordinator.RunSecurity(ctx, job, done)
		}(job)
	}

	// One signal per dispatched coordinator, no polling of task internals.
	for i := 0; i < dispatched; i++ {
		<-done
		completed++
		s.persistBatchStatus(ctx, batch, domain.BatchRunning, completed)
		if s.events != nil {
			s.events.EmitTyped(events.ResearchProgress, "research", &events.ResearchProgressData{
				BatchID:   batch.ID,
				Completed: completed,
				Total:     batch.Total,
			})
		}
	}

	final := domain.BatchCompleted
	if ctx.Err() != nil {
		final = domain.BatchCancelled
	}
	batch.Completed = completed
	batch.Status = final
	s.persistBatchStatus(ctx, batch, final, completed)
	s.tracker.SetBatchStatus(final)

	s.emitFinal(batch, final)
	log.Info().Str("status", string(final)).Int("completed", completed).
		Int("total", batch.Total).Msg("batch run finished")
}

func (s *Scheduler) persistBatchStatus(ctx context.Context, batch *domain.Batch, status domain.BatchStatus, completed int) {
	if err := s.store.SetBatchStatus(context.WithoutCancel(ctx), batch.ID, status, completed); err != nil {
		s.log.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to persist batch status")
	}
}

func (s *Scheduler) emitFinal(batch *domain.Batch, status domain.BatchStatus) {
	if s.events == nil {
		return
	}
	if status == domain.BatchCancelled {
		s.events.EmitTyped(events.BatchCancelled, "research", &events.BatchCancelledData{BatchID: batch.ID})
		return
	}

	snap := s.tracker.Snapshot()
	failed := 0
	for _, sec := range snap.Securities {
		if sec.Status == domain.JobFailed {
			failed++
		}
	}
	s.events.EmitTyped(events.BatchCompleted, "research", &events.BatchCompletedData{
		BatchID:   batch.ID,
		Completed: batch.Completed,
		Total:     batch.Total,
		Failed:    failed,
		MeanScore: meanOverallScore(snap),
	})
}
