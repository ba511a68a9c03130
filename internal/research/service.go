package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/events"
)

var (
	// ErrBatchNotFound is returned when a batch id matches nothing.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchNotRunning is returned when cancelling a batch with no
	// active run.
	ErrBatchNotRunning = errors.New("batch is not running")
	// ErrBatchRunning is returned when resuming a batch that already has
	// an active run.
	ErrBatchRunning = errors.New("batch is already running")
	// ErrNoSecurities is returned for an empty submission.
	ErrNoSecurities = errors.New("no securities given")
)

// Config holds the orchestration bounds for a service.
type Config struct {
	OuterConcurrency int
	InnerConcurrency int
	ProgressInterval time.Duration
}

// Service is the boundary the transport layer talks to: submit, resume and
// cancel batches, subscribe to progress, query status. It owns the set of
// active runs and their cancellation scopes.
type Service struct {
	store      Store
	resolver   Resolver
	collectors CollectorSet
	generator  Generator
	events     *events.Manager
	cfg        Config
	log        zerolog.Logger

	mu   sync.Mutex
	runs map[string]*batchRun
	wg   sync.WaitGroup
}

type batchRun struct {
	tracker   *Tracker
	publisher *Publisher
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewService creates the research service.
func NewService(store Store, resolver Resolver, collectorSet CollectorSet, generator Generator, eventManager *events.Manager, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		resolver:   resolver,
		collectors: collectorSet,
		generator:  generator,
		events:     eventManager,
		cfg:        cfg,
		log:        log.With().Str("component", "research").Logger(),
		runs:       make(map[string]*batchRun),
	}
}

// SubmitBatch creates a batch over the given security names, persists it and
// its pre-declared jobs, and starts the run in the background. Returns the
// batch id immediately.
func (s *Service) SubmitBatch(ctx context.Context, names []string) (string, error) {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "", ErrNoSecurities
	}

	batch := &domain.Batch{
		ID:         uuid.NewString(),
		Securities: cleaned,
		Total:      len(cleaned),
		Status:     domain.BatchPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return "", fmt.Errorf("create batch: %w", err)
	}

	jobs := make([]*domain.SecurityJob, 0, len(cleaned))
	for _, name := range cleaned {
		job := domain.NewSecurityJob(uuid.NewString(), batch.ID, name)
		if err := s.store.CreateSecurityJob(ctx, job); err != nil {
			return "", fmt.Errorf("create security job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if s.events != nil {
		s.events.EmitTyped(events.BatchSubmitted, "research", &events.BatchSubmittedData{
			BatchID:    batch.ID,
			Securities: batch.Total,
		})
	}

	s.launch(batch, jobs, jobs)
	s.log.Info().Str("batch_id", batch.ID).Int("securities", batch.Total).Msg("batch submitted")
	return batch.ID, nil
}

// ResumeBatch restarts a previously submitted batch. Securities already in a
// terminal state are skipped; their stored results are left untouched.
func (s *Service) ResumeBatch(ctx context.Context, batchID string) error {
	s.mu.Lock()
	if run, ok := s.runs[batchID]; ok {
		select {
		case <-run.done:
		default:
			s.mu.Unlock()
			return ErrBatchRunning
		}
	}
	s.mu.Unlock()

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return ErrBatchNotFound
	}
	jobs, err := s.store.ListSecurityJobs(ctx, batchID)
	if err != nil {
		return err
	}
	pending, err := s.store.ListPendingSecurities(ctx, batchID)
	if err != nil {
		return err
	}

	s.launch(batch, jobs, pending)
	s.log.Info().Str("batch_id", batchID).Int("pending", len(pending)).Msg("batch resumed")
	return nil
}

// CancelBatch stops dispatching new work for a running batch and propagates
// cancellation into its in-flight calls. Already-terminal results stand.
func (s *Service) CancelBatch(batchID string) error {
	s.mu.Lock()
	run, ok := s.runs[batchID]
	s.mu.Unlock()
	if !ok {
		return ErrBatchNotRunning
	}
	select {
	case <-run.done:
		return ErrBatchNotRunning
	default:
	}

	run.cancel()
	s.log.Info().Str("batch_id", batchID).Msg("batch cancellation requested")
	return nil
}

// SubscribeProgress returns a fresh snapshot stream for a batch, starting
// from current state. The channel closes after the terminal frame.
func (s *Service) SubscribeProgress(ctx context.Context, batchID string) (<-chan ProgressSnapshot, error) {
	s.mu.Lock()
	run, ok := s.runs[batchID]
	s.mu.Unlock()
	if ok {
		return run.publisher.Subscribe(ctx), nil
	}

	// Not in memory: rebuild a static view from the store. For a terminal
	// batch the subscriber gets exactly one terminal frame.
	tracker, err := s.trackerFromStore(ctx, batchID)
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher(tracker, s.cfg.ProgressInterval, s.log)
	return publisher.Subscribe(ctx), nil
}

// BatchStatus returns a point-in-time snapshot of a batch.
func (s *Service) BatchStatus(ctx context.Context, batchID string) (*ProgressSnapshot, error) {
	s.mu.Lock()
	run, ok := s.runs[batchID]
	s.mu.Unlock()
	if ok {
		snap := run.tracker.Snapshot()
		return &snap, nil
	}

	tracker, err := s.trackerFromStore(ctx, batchID)
	if err != nil {
		return nil, err
	}
	snap := tracker.Snapshot()
	return &snap, nil
}

// Shutdown cancels all active runs and waits for them to settle or for ctx
// to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, run := range s.runs {
		run.cancel()
	}
	s.mu.Unlock()

	settled := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(settled)
	}()
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch starts one batch run in the background with its own cancellation
// scope and a fresh tracker seeded from the full job list. Only the pending
// subset is dispatched. The run evicts itself from the active set once it
// settles; late status queries and subscriptions fall back to the store.
func (s *Service) launch(batch *domain.Batch, jobs, pending []*domain.SecurityJob) {
	tracker := NewTracker(batch.ID, jobs)
	publisher := NewPublisher(tracker, s.cfg.ProgressInterval, s.log)
	runCtx, cancel := context.WithCancel(context.Background())
	run := &batchRun{
		tracker:   tracker,
		publisher: publisher,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[batch.ID] = run
	s.mu.Unlock()

	executor := NewExecutor(s.resolver, s.collectors, s.generator, s.store, tracker, s.log)
	coordinator := NewCoordinator(executor, s.store, tracker, s.events, s.cfg.InnerConcurrency, s.log)
	scheduler := NewScheduler(coordinator, s.store, tracker, s.events, s.cfg.OuterConcurrency, s.log)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.runs[batch.ID] == run {
				delete(s.runs, batch.ID)
			}
			s.mu.Unlock()
		}()
		defer close(run.done)
		defer cancel()
		scheduler.RunBatch(runCtx, batch, jobs, pending)
	}()
}

// trackerFromStore rebuilds a read-only tracker for a batch that has no
// active run, so status and late subscriptions survive restarts.
func (s *Service) trackerFromStore(ctx context.Context, batchID string) (*Tracker, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	jobs, err := s.store.ListSecurityJobs(ctx, batchID)
	if err != nil {
		return nil, err
	}
	tracker := NewTracker(batchID, jobs)
	tracker.SetBatchStatus(batch.Status)
	return tracker, nil
}
