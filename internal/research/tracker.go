package research

import (
	"sync"
	"time"

	"github.com/aristath/lookout/internal/domain"
)

// Tracker holds the live in-memory state of one batch. Workers write state
// transitions into it as they happen; the progress publisher reads immutable
// snapshots out of it. It is the only place worker and observer goroutines
// meet, so it is the only place that takes a lock.
type Tracker struct {
	mu        sync.RWMutex
	batchID   string
	status    domain.BatchStatus
	jobs      map[string]*domain.SecurityJob
	order     []string
	listeners map[chan struct{}]struct{}
}

// NewTracker creates a tracker seeded from the batch's security jobs. The
// jobs are copied in; workers report transitions through tracker methods
// rather than sharing the job structs with the publisher.
func NewTracker(batchID string, jobs []*domain.SecurityJob) *Tracker {
	t := &Tracker{
		batchID:   batchID,
		status:    domain.BatchPending,
		jobs:      make(map[string]*domain.SecurityJob, len(jobs)),
		order:     make([]string, 0, len(jobs)),
		listeners: make(map[chan struct{}]struct{}),
	}
	for _, job := range jobs {
		t.jobs[job.ID] = copyJob(job)
		t.order = append(t.order, job.ID)
	}
	return t
}

// BatchID returns the tracked batch's id.
func (t *Tracker) BatchID() string {
	return t.batchID
}

// SetBatchStatus records a batch-level status transition.
func (t *Tracker) SetBatchStatus(status domain.BatchStatus) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
	t.notify()
}

// SetJobStatus records a security-level status transition.
func (t *Tracker) SetJobStatus(jobID string, status domain.JobStatus, jobErr string) {
	t.mu.Lock()
	if job, ok := t.jobs[jobID]; ok {
		job.Status = status
		job.Error = jobErr
	}
	t.mu.Unlock()
	t.notify()
}

// SetTask records a dimension task transition. The task is copied in.
func (t *Tracker) SetTask(jobID string, task domain.DimensionTask) {
	t.mu.Lock()
	if job, ok := t.jobs[jobID]; ok {
		stored := task
		if task.Dimension == domain.DimensionOverall {
			job.Overall = &stored
		} else {
			job.Tasks[task.Dimension] = &stored
		}
	}
	t.mu.Unlock()
	t.notify()
}

// Snapshot builds an immutable view of the current state.
func (t *Tracker) Snapshot() ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := ProgressSnapshot{
		BatchID:         t.batchID,
		Status:          t.status,
		TotalSecurities: len(t.order),
		Securities:      make([]SecurityProgress, 0, len(t.order)),
		Terminal:        t.status == domain.BatchCompleted || t.status == domain.BatchCancelled,
		Timestamp:       time.Now().UTC(),
	}

	for _, id := range t.order {
		job := t.jobs[id]
		progress := SecurityProgress{
			Security: job.Security,
			Status:   job.Status,
			Tasks:    make(map[domain.Dimension]TaskReport, len(job.Tasks)),
			Error:    job.Error,
		}
		if job.Status.Terminal() {
			snap.CompletedSecurities++
		}
		for dim, task := range job.Tasks {
			progress.Tasks[dim] = taskReport(task)
			snap.TotalTasks++
			if task.Status.Terminal() {
				snap.CompletedTasks++
			}
		}
		if job.Overall != nil {
			progress.Overall = taskReport(job.Overall)
			snap.TotalTasks++
			if job.Overall.Status.Terminal() {
				snap.CompletedTasks++
			}
		}
		snap.Securities = append(snap.Securities, progress)
	}
	return snap
}

// addListener registers a wakeup channel the tracker pokes on every change.
func (t *Tracker) addListener() chan struct{} {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.listeners[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

func (t *Tracker) removeListener(ch chan struct{}) {
	t.mu.Lock()
	delete(t.listeners, ch)
	t.mu.Unlock()
}

// notify pokes every listener without blocking. A listener that has not
// consumed its previous poke just keeps the one it has.
func (t *Tracker) notify() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for ch := range t.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func taskReport(task *domain.DimensionTask) TaskReport {
	return TaskReport{Status: task.Status, Score: task.Score, Error: task.Error}
}

func copyJob(job *domain.SecurityJob) *domain.SecurityJob {
	clone := &domain.SecurityJob{
		ID:       job.ID,
		BatchID:  job.BatchID,
		Security: job.Security,
		Status:   job.Status,
		Error:    job.Error,
		Tasks:    make(map[domain.Dimension]*domain.DimensionTask, len(job.Tasks)),
	}
	for dim, task := range job.Tasks {
		t := *task
		clone.Tasks[dim] = &t
	}
	if job.Overall != nil {
		t := *job.Overall
		clone.Overall = &t
	}
	return clone
}
