// Package research is the batch orchestrator: it expands securities into
// per-dimension analysis tasks, schedules them under two-level concurrency
// bounds, contains per-task failures, persists every state transition for
// resumability, and publishes ordered progress snapshots to subscribers.
package research

import (
	"context"
	"time"

	"github.com/aristath/lookout/internal/collectors"
	"github.com/aristath/lookout/internal/domain"
)

// DimensionResult is the successful output of one dimension task.
type DimensionResult struct {
	Score   float64
	Summary string
	RawText string
}

// TaskOutcome is the settled result of one dimension task, success or typed
// failure. Outcomes are values, never panics or propagated errors, so a
// failed task cannot take its siblings down with it.
type TaskOutcome struct {
	Dimension domain.Dimension
	Result    *DimensionResult
	Err       error
}

// OK reports whether the task produced a result.
func (o TaskOutcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// SecurityProgress is the per-security slice of a progress snapshot.
type SecurityProgress struct {
	Security string                          `json:"security"`
	Status   domain.JobStatus                `json:"status"`
	Tasks    map[domain.Dimension]TaskReport `json:"tasks"`
	Overall  TaskReport                      `json:"overall"`
	Error    string                          `json:"error,omitempty"`
}

// TaskReport is one task's externally visible state inside a snapshot.
type TaskReport struct {
	Status domain.TaskStatus `json:"status"`
	Score  *float64          `json:"score,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// ProgressSnapshot is an immutable point-in-time view of a batch. A new one
// is built on every publish tick; nothing mutates it after construction.
type ProgressSnapshot struct {
	BatchID             string             `json:"batch_id"`
	Status              domain.BatchStatus `json:"status"`
	CompletedSecurities int                `json:"completed_securities"`
	TotalSecurities     int                `json:"total_securities"`
	CompletedTasks      int                `json:"completed_tasks"`
	TotalTasks          int                `json:"total_tasks"`
	Securities          []SecurityProgress `json:"securities"`
	Terminal            bool               `json:"terminal"`
	Timestamp           time.Time          `json:"timestamp"`
}

// Store is the durable record of batches, securities and dimension results.
// Every method is an idempotent upsert: re-writing the same terminal state
// is safe, which is what makes at-least-once execution acceptable.
type Store interface {
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	CreateSecurityJob(ctx context.Context, job *domain.SecurityJob) error
	UpsertDimensionResult(ctx context.Context, jobID string, task *domain.DimensionTask) error
	SetSecurityStatus(ctx context.Context, jobID string, status domain.JobStatus, jobErr string) error
	SetBatchStatus(ctx context.Context, batchID string, status domain.BatchStatus, completed int) error
	ListPendingSecurities(ctx context.Context, batchID string) ([]*domain.SecurityJob, error)
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	ListSecurityJobs(ctx context.Context, batchID string) ([]*domain.SecurityJob, error)
}

// Resolver maps a free-form security name to a full identity.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*domain.SecurityIdentity, error)
}

// Generator is the generative text backend boundary.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CollectorSet is the dimension-to-collector table boundary.
type CollectorSet interface {
	Get(dim domain.Dimension) (collectors.Collector, bool)
}
