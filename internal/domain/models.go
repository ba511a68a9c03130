// Package domain provides core domain models and types.
package domain

import "time"

// Dimension identifies one analytical dimension of a research report.
// The set is closed: adding a dimension means adding a constant here and a
// collector table entry in the collectors registry.
type Dimension string

const (
	DimensionFundamentals Dimension = "fundamentals"
	DimensionValuation    Dimension = "valuation"
	DimensionGrowth       Dimension = "growth"
	DimensionDividends    Dimension = "dividends"
	DimensionTechnicals   Dimension = "technicals"
	DimensionSentiment    Dimension = "sentiment"
	DimensionRisk         Dimension = "risk"

	// DimensionOverall is the reserved synthesis dimension. It has no
	// collector; its input is built from the other dimensions' summaries.
	DimensionOverall Dimension = "overall"
)

// AnalysisDimensions returns the fixed set of analysis dimensions, in report
// order, excluding the reserved overall dimension.
func AnalysisDimensions() []Dimension {
	return []Dimension{
		DimensionFundamentals,
		DimensionValuation,
		DimensionGrowth,
		DimensionDividends,
		DimensionTechnicals,
		DimensionSentiment,
		DimensionRisk,
	}
}

// Description returns a human-readable description for a dimension.
func (d Dimension) Description() string {
	switch d {
	case DimensionFundamentals:
		return "Fundamentals and financial health"
	case DimensionValuation:
		return "Valuation and price multiples"
	case DimensionGrowth:
		return "Revenue and earnings growth"
	case DimensionDividends:
		return "Dividend history and sustainability"
	case DimensionTechnicals:
		return "Technical indicators and momentum"
	case DimensionSentiment:
		return "News flow and market sentiment"
	case DimensionRisk:
		return "Volatility and downside risk"
	case DimensionOverall:
		return "Overall synthesis"
	}
	return string(d)
}

// TaskStatus represents the lifecycle state of one dimension task.
// Transitions only move forward: pending -> running -> done|error.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskError   TaskStatus = "error"
)

// Terminal reports whether the status is done or error.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskError
}

// JobStatus represents the lifecycle state of one security within a batch.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// BatchStatus represents the lifecycle state of a research batch.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchCancelled BatchStatus = "cancelled"
)

// SecurityIdentity is the resolved identity of a security, the minimum a
// collector or prompt needs to talk about it unambiguously.
type SecurityIdentity struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `json:"currency,omitempty"`
	Sector   string `json:"sector,omitempty"`
}

// DimensionTask is one (security, dimension) unit of work. All tasks for a
// security are pre-declared when the security job is created; exactly one
// executor instance ever mutates a given task.
type DimensionTask struct {
	Dimension Dimension  `json:"dimension"`
	Status    TaskStatus `json:"status"`
	Score     *float64   `json:"score,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	RawText   string     `json:"raw_text,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SecurityJob is the unit of work for one security within a batch.
type SecurityJob struct {
	ID       string                       `json:"id"`
	BatchID  string                       `json:"batch_id"`
	Security string                       `json:"security"`
	Status   JobStatus                    `json:"status"`
	Tasks    map[Dimension]*DimensionTask `json:"tasks"`
	Overall  *DimensionTask               `json:"overall,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

// NewSecurityJob creates a pending security job with all dimension tasks
// pre-declared, including the reserved overall task.
func NewSecurityJob(id, batchID, security string) *SecurityJob {
	tasks := make(map[Dimension]*DimensionTask, len(AnalysisDimensions()))
	for _, dim := range AnalysisDimensions() {
		tasks[dim] = &DimensionTask{Dimension: dim, Status: TaskPending}
	}
	return &SecurityJob{
		ID:       id,
		BatchID:  batchID,
		Security: security,
		Status:   JobPending,
		Tasks:    tasks,
		Overall:  &DimensionTask{Dimension: DimensionOverall, Status: TaskPending},
	}
}

// Batch identifies one orchestration run over a list of securities.
type Batch struct {
	ID         string      `json:"id"`
	Securities []string    `json:"securities"`
	Total      int         `json:"total"`
	Completed  int         `json:"completed"`
	Status     BatchStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}
