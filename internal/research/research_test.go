package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/collectors"
	"github.com/aristath/lookout/internal/database"
	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/extract"
)

const synthesisMarker = "overall investment assessment"

type stubResolver struct {
	missing map[string]bool
}

func (r *stubResolver) Resolve(_ context.Context, name string) (*domain.SecurityIdentity, error) {
	if r.missing[name] {
		return nil, &domain.ResolutionError{Name: name}
	}
	return &domain.SecurityIdentity{Symbol: strings.ToUpper(name), Name: name}, nil
}

type stubCollector struct {
	dim      domain.Dimension
	failures map[string]error
	delay    time.Duration
}

func (c *stubCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*collectors.Record, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := c.failures[identity.Symbol]; err != nil {
		return nil, err
	}
	record := &collectors.Record{Dimension: c.dim}
	record.Add("Fact", "value for "+identity.Symbol)
	return record, nil
}

type stubCollectorSet struct {
	failures map[domain.Dimension]map[string]error
	delays   map[domain.Dimension]time.Duration
}

func (s *stubCollectorSet) Get(dim domain.Dimension) (collectors.Collector, bool) {
	return &stubCollector{dim: dim, failures: s.failures[dim], delay: s.delays[dim]}, true
}

// stubGenerator is the generative backend fake. It records every prompt,
// tracks the number of simultaneously running calls, and can be told to
// fail or block on prompts containing given substrings.
type stubGenerator struct {
	mu          sync.Mutex
	prompts     []string
	inFlight    int32
	maxInFlight int32
	latency     time.Duration
	response    string
	failWhen    map[string]error
	blockWhen   string
	blocked     chan struct{}
	release     chan struct{}
	onGenerate  func(prompt string)
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{
		response: "The data looks healthy overall.\n\nScore: 7.5\nSummary: Solid across the board.",
	}
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	current := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		max := atomic.LoadInt32(&g.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&g.maxInFlight, max, current) {
			break
		}
	}

	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	hook := g.onGenerate
	g.mu.Unlock()
	if hook != nil {
		hook(prompt)
	}

	for substr, err := range g.failWhen {
		if strings.Contains(prompt, substr) {
			return "", err
		}
	}

	if g.blockWhen != "" && strings.Contains(prompt, g.blockWhen) {
		select {
		case g.blocked <- struct{}{}:
		default:
		}
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.response, nil
}

func (g *stubGenerator) allPrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func (g *stubGenerator) promptCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *stubGenerator) synthesisPrompts() []string {
	var out []string
	for _, p := range g.allPrompts() {
		if strings.Contains(p, synthesisMarker) {
			out = append(out, p)
		}
	}
	return out
}

func setupStore(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileStandard,
		Name:    "research",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func newTestService(t *testing.T, store *Repository, gen *stubGenerator, colls *stubCollectorSet, cfg Config) *Service {
	t.Helper()
	if colls == nil {
		colls = &stubCollectorSet{}
	}
	if cfg.OuterConcurrency == 0 {
		cfg.OuterConcurrency = 2
	}
	if cfg.InnerConcurrency == 0 {
		cfg.InnerConcurrency = 4
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 10 * time.Millisecond
	}
	svc := NewService(store, &stubResolver{}, colls, gen, nil, cfg, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

// drainProgress reads frames until the channel closes and returns them all.
func drainProgress(t *testing.T, ch <-chan ProgressSnapshot) []ProgressSnapshot {
	t.Helper()
	var frames []ProgressSnapshot
	timeout := time.After(10 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				require.NotEmpty(t, frames, "stream closed without any frame")
				return frames
			}
			frames = append(frames, snap)
		case <-timeout:
			t.Fatal("timed out waiting for terminal progress frame")
		}
	}
}

func TestBatchAllSucceed(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	svc := newTestService(t, store, gen, nil, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"aapl", "msft"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)

	final := frames[len(frames)-1]
	assert.True(t, final.Terminal)
	assert.Equal(t, domain.BatchCompleted, final.Status)
	assert.Equal(t, 2, final.CompletedSecurities)
	assert.Equal(t, 2, final.TotalSecurities)
	assert.Equal(t, final.TotalTasks, final.CompletedTasks)

	for _, sec := range final.Securities {
		assert.Equal(t, domain.JobCompleted, sec.Status)
		require.NotNil(t, sec.Overall.Score, "security %s missing overall score", sec.Security)
		assert.InDelta(t, 7.5, *sec.Overall.Score, 1e-9)
		for dim, task := range sec.Tasks {
			assert.Equal(t, domain.TaskDone, task.Status, "dimension %s", dim)
		}
	}

	// 8 generate calls per security: 7 dimensions plus synthesis.
	assert.Equal(t, 16, gen.promptCount())

	batch, err := store.GetBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, batch.Status)
	assert.Equal(t, 2, batch.Completed)
}

func TestCompletedCountMonotonic(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	gen.latency = 5 * time.Millisecond
	svc := newTestService(t, store, gen, nil, Config{OuterConcurrency: 3})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)

	prev := -1
	for _, frame := range frames {
		assert.GreaterOrEqual(t, frame.CompletedSecurities, prev, "completed count went backward")
		prev = frame.CompletedSecurities
	}
	final := frames[len(frames)-1]
	assert.True(t, final.Terminal)
	assert.Equal(t, final.TotalSecurities, final.CompletedSecurities)
	for _, frame := range frames[:len(frames)-1] {
		assert.False(t, frame.Terminal, "terminal marker before the final frame")
	}
}

func TestDimensionFailureIsolation(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	colls := &stubCollectorSet{failures: map[domain.Dimension]map[string]error{
		domain.DimensionGrowth: {"AAPL": errors.New("feed offline")},
	}}
	svc := newTestService(t, store, gen, colls, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"aapl"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	final := frames[len(frames)-1]

	require.Len(t, final.Securities, 1)
	sec := final.Securities[0]
	assert.Equal(t, domain.JobCompleted, sec.Status, "one failed dimension must not fail the security")
	assert.Equal(t, domain.TaskError, sec.Tasks[domain.DimensionGrowth].Status)
	assert.Contains(t, sec.Tasks[domain.DimensionGrowth].Error, "feed offline")
	for _, dim := range domain.AnalysisDimensions() {
		if dim == domain.DimensionGrowth {
			continue
		}
		assert.Equal(t, domain.TaskDone, sec.Tasks[dim].Status, "sibling %s affected by growth failure", dim)
	}
	assert.Equal(t, domain.TaskDone, sec.Overall.Status)

	// The synthesis input silently excludes the failed dimension.
	synthesis := gen.synthesisPrompts()
	require.Len(t, synthesis, 1)
	assert.NotContains(t, synthesis[0], domain.DimensionGrowth.Description())
	assert.Contains(t, synthesis[0], domain.DimensionFundamentals.Description())

	// The error is durably recorded, not silently dropped.
	jobs, err := store.ListSecurityJobs(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	stored := jobs[0].Tasks[domain.DimensionGrowth]
	assert.Equal(t, domain.TaskError, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestResolutionFailureStillSynthesizes(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	cfg := Config{OuterConcurrency: 1, InnerConcurrency: 2, ProgressInterval: 10 * time.Millisecond}
	svc := NewService(store, &stubResolver{missing: map[string]bool{"ghost": true}}, &stubCollectorSet{}, gen, nil, cfg, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"ghost"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	final := frames[len(frames)-1]

	sec := final.Securities[0]
	for dim, task := range sec.Tasks {
		assert.Equal(t, domain.TaskError, task.Status, "dimension %s", dim)
	}
	// Synthesis runs over empty input rather than being skipped.
	assert.Equal(t, domain.JobCompleted, sec.Status)
	assert.Equal(t, domain.TaskDone, sec.Overall.Status)

	synthesis := gen.synthesisPrompts()
	require.Len(t, synthesis, 1)
	assert.Contains(t, synthesis[0], "No dimension analyses are available")
}

func TestSynthesisFailureFailsSecurityOnly(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	gen.failWhen = map[string]error{synthesisMarker + " of bad": errors.New("backend unreachable")}
	svc := newTestService(t, store, gen, nil, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"bad", "good"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	final := frames[len(frames)-1]

	assert.Equal(t, domain.BatchCompleted, final.Status, "one failed security must not fail the batch")
	byName := map[string]SecurityProgress{}
	for _, sec := range final.Securities {
		byName[sec.Security] = sec
	}
	assert.Equal(t, domain.JobFailed, byName["bad"].Status)
	assert.Contains(t, byName["bad"].Error, "backend unreachable")
	assert.Equal(t, domain.JobCompleted, byName["good"].Status)
}

func TestJoinBarrier(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	colls := &stubCollectorSet{delays: map[domain.Dimension]time.Duration{
		domain.DimensionTechnicals: 60 * time.Millisecond,
		domain.DimensionRisk:       90 * time.Millisecond,
	}}

	job := domain.NewSecurityJob("job-1", "batch-1", "aapl")
	require.NoError(t, store.CreateSecurityJob(context.Background(), job))

	tracker := NewTracker("batch-1", []*domain.SecurityJob{job})
	executor := NewExecutor(&stubResolver{}, colls, gen, store, tracker, zerolog.Nop())
	coordinator := NewCoordinator(executor, store, tracker, nil, 4, zerolog.Nop())

	var violation atomic.Bool
	gen.onGenerate = func(prompt string) {
		if !strings.Contains(prompt, synthesisMarker) {
			return
		}
		snap := tracker.Snapshot()
		for _, sec := range snap.Securities {
			for _, task := range sec.Tasks {
				if !task.Status.Terminal() {
					violation.Store(true)
				}
			}
		}
	}

	done := make(chan string, 1)
	coordinator.RunSecurity(context.Background(), job, done)
	assert.Equal(t, "job-1", <-done)

	assert.False(t, violation.Load(), "synthesis started before all dimension tasks settled")
	assert.Len(t, gen.synthesisPrompts(), 1)
	assert.Equal(t, domain.JobCompleted, job.Status)
}

func TestConcurrencyBound(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	gen.latency = 20 * time.Millisecond
	svc := newTestService(t, store, gen, nil, Config{OuterConcurrency: 2, InnerConcurrency: 2})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	drainProgress(t, stream)

	max := atomic.LoadInt32(&gen.maxInFlight)
	assert.LessOrEqual(t, max, int32(4), "outer*inner bound exceeded: %d concurrent calls", max)
	assert.Greater(t, max, int32(1), "bound test never actually ran anything concurrently")
}

func TestResumeSkipsTerminalSecurities(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	batch := &domain.Batch{
		ID:         "batch-resume",
		Securities: []string{"done", "todo"},
		Total:      2,
		Status:     domain.BatchRunning,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateBatch(ctx, batch))

	doneJob := domain.NewSecurityJob("job-done", batch.ID, "done")
	for _, task := range doneJob.Tasks {
		task.Status = domain.TaskDone
		score := 6.0
		task.Score = &score
		task.Summary = "prior result"
	}
	doneJob.Overall.Status = domain.TaskDone
	require.NoError(t, store.CreateSecurityJob(ctx, doneJob))
	require.NoError(t, store.SetSecurityStatus(ctx, doneJob.ID, domain.JobCompleted, ""))

	todoJob := domain.NewSecurityJob("job-todo", batch.ID, "todo")
	require.NoError(t, store.CreateSecurityJob(ctx, todoJob))

	before, err := store.TaskSignature(ctx, doneJob.ID)
	require.NoError(t, err)

	gen := newStubGenerator()
	svc := newTestService(t, store, gen, nil, Config{})
	require.NoError(t, svc.ResumeBatch(ctx, batch.ID))

	stream, err := svc.SubscribeProgress(ctx, batch.ID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	final := frames[len(frames)-1]
	assert.Equal(t, 2, final.CompletedSecurities)
	assert.Equal(t, domain.BatchCompleted, final.Status)

	// No executor work for the already-completed security.
	for _, prompt := range gen.allPrompts() {
		assert.NotContains(t, prompt, "DONE", "terminal security was re-executed")
	}
	assert.Equal(t, 8, gen.promptCount())

	after, err := store.TaskSignature(ctx, doneJob.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "stored results of the completed security changed on resume")
}

// pendingQueryStore counts resumability-query calls on top of the real
// repository.
type pendingQueryStore struct {
	*Repository
	mu           sync.Mutex
	pendingCalls int
}

func (s *pendingQueryStore) ListPendingSecurities(ctx context.Context, batchID string) ([]*domain.SecurityJob, error) {
	s.mu.Lock()
	s.pendingCalls++
	s.mu.Unlock()
	return s.Repository.ListPendingSecurities(ctx, batchID)
}

func TestResumeDispatchesFromPendingQuery(t *testing.T) {
	repo := setupStore(t)
	store := &pendingQueryStore{Repository: repo}
	ctx := context.Background()

	batch := &domain.Batch{
		ID:         "batch-pending-query",
		Securities: []string{"done", "todo"},
		Total:      2,
		Status:     domain.BatchRunning,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateBatch(ctx, batch))

	doneJob := domain.NewSecurityJob("job-done", batch.ID, "done")
	for _, task := range doneJob.Tasks {
		task.Status = domain.TaskDone
	}
	doneJob.Overall.Status = domain.TaskDone
	require.NoError(t, store.CreateSecurityJob(ctx, doneJob))
	require.NoError(t, store.SetSecurityStatus(ctx, doneJob.ID, domain.JobCompleted, ""))
	require.NoError(t, store.CreateSecurityJob(ctx, domain.NewSecurityJob("job-todo", batch.ID, "todo")))

	gen := newStubGenerator()
	svc := NewService(store, &stubResolver{}, &stubCollectorSet{}, gen, nil, Config{
		OuterConcurrency: 2,
		InnerConcurrency: 4,
		ProgressInterval: 10 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(shutdownCtx)
	})

	require.NoError(t, svc.ResumeBatch(ctx, batch.ID))
	stream, err := svc.SubscribeProgress(ctx, batch.ID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	assert.Equal(t, domain.BatchCompleted, frames[len(frames)-1].Status)

	store.mu.Lock()
	calls := store.pendingCalls
	store.mu.Unlock()
	assert.Equal(t, 1, calls, "resume did not use the store's pending-securities query")
	assert.Equal(t, 8, gen.promptCount(), "terminal security was re-dispatched")
}

func TestRunStateEvictedAfterCompletion(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	svc := newTestService(t, store, gen, nil, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"aapl"})
	require.NoError(t, err)

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	drainProgress(t, stream)

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.runs) == 0
	}, 5*time.Second, 10*time.Millisecond, "settled run still held in memory")

	// Late queries fall back to the store.
	snap, err := svc.BatchStatus(ctx, batchID)
	require.NoError(t, err)
	assert.True(t, snap.Terminal)
	assert.Equal(t, domain.BatchCompleted, snap.Status)
	assert.ErrorIs(t, svc.CancelBatch(batchID), ErrBatchNotRunning)
}

func TestResumeWhileRunning(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	gen.blockWhen = "AAPL"
	gen.blocked = make(chan struct{}, 16)
	gen.release = make(chan struct{})
	svc := newTestService(t, store, gen, nil, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"aapl"})
	require.NoError(t, err)

	select {
	case <-gen.blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}
	assert.ErrorIs(t, svc.ResumeBatch(ctx, batchID), ErrBatchRunning)
	close(gen.release)
}

func TestCancelBatch(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	gen.blockWhen = "S2"
	gen.blocked = make(chan struct{}, 16)
	gen.release = make(chan struct{})
	svc := newTestService(t, store, gen, nil, Config{OuterConcurrency: 1, InnerConcurrency: 2})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"s1", "s2", "s3"})
	require.NoError(t, err)

	// Wait until the second security is in flight, then cancel.
	select {
	case <-gen.blocked:
	case <-time.After(10 * time.Second):
		t.Fatal("second security never started")
	}
	require.NoError(t, svc.CancelBatch(batchID))

	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	final := frames[len(frames)-1]

	assert.Equal(t, domain.BatchCancelled, final.Status)
	assert.NotEqual(t, domain.BatchCompleted, final.Status)

	byName := map[string]SecurityProgress{}
	for _, sec := range final.Securities {
		byName[sec.Security] = sec
	}
	// The already-completed security keeps its result.
	assert.Equal(t, domain.JobCompleted, byName["s1"].Status)
	require.NotNil(t, byName["s1"].Overall.Score)
	// No new coordinator was dispatched after cancellation.
	assert.Equal(t, domain.JobPending, byName["s3"].Status)
	for _, prompt := range gen.allPrompts() {
		assert.NotContains(t, prompt, "S3", "security dispatched after cancellation")
	}

	assert.ErrorIs(t, svc.CancelBatch(batchID), ErrBatchNotRunning)
}

func TestCancelUnknownBatch(t *testing.T) {
	store := setupStore(t)
	svc := newTestService(t, store, newStubGenerator(), nil, Config{})
	assert.ErrorIs(t, svc.CancelBatch("nope"), ErrBatchNotRunning)
}

func TestSubmitEmptyBatch(t *testing.T) {
	store := setupStore(t)
	svc := newTestService(t, store, newStubGenerator(), nil, Config{})
	_, err := svc.SubmitBatch(context.Background(), []string{"", "  "})
	assert.ErrorIs(t, err, ErrNoSecurities)
}

func TestBatchStatusAfterRestart(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	svc := newTestService(t, store, gen, nil, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"aapl"})
	require.NoError(t, err)
	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	drainProgress(t, stream)

	// A fresh service over the same store sees the terminal batch.
	restarted := newTestService(t, store, newStubGenerator(), nil, Config{})
	snap, err := restarted.BatchStatus(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, snap.Status)
	assert.True(t, snap.Terminal)
	assert.Equal(t, 1, snap.CompletedSecurities)

	stream, err = restarted.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	assert.True(t, frames[len(frames)-1].Terminal)

	_, err = restarted.BatchStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestExtractorDefaultsFlowThrough(t *testing.T) {
	store := setupStore(t)
	gen := newStubGenerator()
	gen.response = "completely free-form text with no score line at all"
	svc := newTestService(t, store, gen, nil, Config{})

	ctx := context.Background()
	batchID, err := svc.SubmitBatch(ctx, []string{"aapl"})
	require.NoError(t, err)
	stream, err := svc.SubscribeProgress(ctx, batchID)
	require.NoError(t, err)
	frames := drainProgress(t, stream)
	final := frames[len(frames)-1]

	sec := final.Securities[0]
	assert.Equal(t, domain.JobCompleted, sec.Status)
	require.NotNil(t, sec.Overall.Score)
	assert.InDelta(t, extract.NeutralScore, *sec.Overall.Score, 1e-9)
}
