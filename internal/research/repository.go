package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/database"
	"github.com/aristath/lookout/internal/domain"
)

// Repository is the sqlite-backed Store implementation over research.db.
// All writes are idempotent upserts keyed on natural primary keys, so
// replaying a terminal transition after a crash is a no-op.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new research repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "research").Logger(),
	}
}

// EnsureSchema creates the research tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id         TEXT PRIMARY KEY,
			securities TEXT NOT NULL,
			total      INTEGER NOT NULL,
			completed  INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS security_jobs (
			id         TEXT PRIMARY KEY,
			batch_id   TEXT NOT NULL,
			security   TEXT NOT NULL,
			status     TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_jobs_batch ON security_jobs(batch_id)`,
		`CREATE TABLE IF NOT EXISTS dimension_results (
			job_id     TEXT NOT NULL,
			dimension  TEXT NOT NULL,
			status     TEXT NOT NULL,
			score      REAL,
			summary    TEXT NOT NULL DEFAULT '',
			raw_text   TEXT NOT NULL DEFAULT '',
			error      TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			PRIMARY KEY (job_id, dimension)
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return &domain.StoreError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

// CreateBatch inserts a batch record. Creating the same batch twice is a
// no-op rather than an error.
func (r *Repository) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	securities, err := json.Marshal(batch.Securities)
	if err != nil {
		return &domain.StoreError{Op: "create batch", Err: err}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO batches (id, securities, total, completed, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		batch.ID, string(securities), batch.Total, batch.Completed, string(batch.Status), now, now)
	if err != nil {
		return &domain.StoreError{Op: "create batch", Err: err}
	}
	return nil
}

// CreateSecurityJob inserts a security job and pre-declares all of its
// dimension rows, the reserved overall row included. The job row and its
// task rows land in one transaction.
func (r *Repository) CreateSecurityJob(ctx context.Context, job *domain.SecurityJob) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO security_jobs (id, batch_id, security, status, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			job.ID, job.BatchID, job.Security, string(job.Status), job.Error, now, now)
		if err != nil {
			return err
		}

		for _, task := range job.Tasks {
			if err := upsertDimensionResult(ctx, tx, job.ID, task); err != nil {
				return err
			}
		}
		if job.Overall != nil {
			return upsertDimensionResult(ctx, tx, job.ID, job.Overall)
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: "create security job", Err: err}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UpsertDimensionResult writes a dimension task's current state. Keyed on
// (job, dimension), so re-writing a terminal result replaces it in place.
func (r *Repository) UpsertDimensionResult(ctx context.Context, jobID string, task *domain.DimensionTask) error {
	return upsertDimensionResult(ctx, r.db, jobID, task)
}

func upsertDimensionResult(ctx context.Context, db execer, jobID string, task *domain.DimensionTask) error {
	var score interface{}
	if task.Score != nil {
		score = *task.Score
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO dimension_results (job_id, dimension, status, score, summary, raw_text, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, dimension) DO UPDATE SET
			status = excluded.status,
			score = excluded.score,
			summary = excluded.summary,
			raw_text = excluded.raw_text,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		jobID, string(task.Dimension), string(task.Status), score,
		task.Summary, task.RawText, task.Error, now)
	if err != nil {
		return &domain.StoreError{Op: "upsert dimension result", Err: err}
	}
	return nil
}

// SetSecurityStatus updates a security job's status and error message.
func (r *Repository) SetSecurityStatus(ctx context.Context, jobID string, status domain.JobStatus, jobErr string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		"UPDATE security_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), jobErr, now, jobID)
	if err != nil {
		return &domain.StoreError{Op: "set security status", Err: err}
	}
	return nil
}

// SetBatchStatus updates a batch's status and completed count.
func (r *Repository) SetBatchStatus(ctx context.Context, batchID string, status domain.BatchStatus, completed int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		"UPDATE batches SET status = ?, completed = ?, updated_at = ? WHERE id = ?",
		string(status), completed, now, batchID)
	if err != nil {
		return &domain.StoreError{Op: "set batch status", Err: err}
	}
	return nil
}

// GetBatch returns a batch by id, or nil when not found.
func (r *Repository) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	var batch domain.Batch
	var securities, status, createdAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, securities, total, completed, status, created_at FROM batches WHERE id = ?",
		batchID).Scan(&batch.ID, &securities, &batch.Total, &batch.Completed, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get batch", Err: err}
	}
	if err := json.Unmarshal([]byte(securities), &batch.Securities); err != nil {
		return nil, &domain.StoreError{Op: "get batch", Err: err}
	}
	batch.Status = domain.BatchStatus(status)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		batch.CreatedAt = t
	}
	return &batch, nil
}

// ListSecurityJobs returns all security jobs for a batch with their
// dimension task state loaded, ordered by security.
func (r *Repository) ListSecurityJobs(ctx context.Context, batchID string) ([]*domain.SecurityJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, batch_id, security, status, error
		FROM security_jobs WHERE batch_id = ? ORDER BY security`, batchID)
	if err != nil {
		return nil, &domain.StoreError{Op: "list security jobs", Err: err}
	}
	defer rows.Close()

	var jobs []*domain.SecurityJob
	for rows.Next() {
		var job domain.SecurityJob
		var status string
		if err := rows.Scan(&job.ID, &job.BatchID, &job.Security, &status, &job.Error); err != nil {
			return nil, &domain.StoreError{Op: "list security jobs", Err: err}
		}
		job.Status = domain.JobStatus(status)
		job.Tasks = make(map[domain.Dimension]*domain.DimensionTask)
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list security jobs", Err: err}
	}

	for _, job := range jobs {
		if err := r.loadTasks(ctx, job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// ListPendingSecurities returns the batch's security jobs not yet in a
// terminal state. This is the resumability query: jobs already completed or
// failed in a prior run are left untouched.
func (r *Repository) ListPendingSecurities(ctx context.Context, batchID string) ([]*domain.SecurityJob, error) {
	jobs, err := r.ListSecurityJobs(ctx, batchID)
	if err != nil {
		return nil, err
	}
	pending := make([]*domain.SecurityJob, 0, len(jobs))
	for _, job := range jobs {
		if !job.Status.Terminal() {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

func (r *Repository) loadTasks(ctx context.Context, job *domain.SecurityJob) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dimension, status, score, summary, raw_text, error, updated_at
		FROM dimension_results WHERE job_id = ?`, job.ID)
	if err != nil {
		return &domain.StoreError{Op: "load dimension results", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var task domain.DimensionTask
		var dimension, status, updatedAt string
		var score sql.NullFloat64
		if err := rows.Scan(&dimension, &status, &score, &task.Summary, &task.RawText, &task.Error, &updatedAt); err != nil {
			return &domain.StoreError{Op: "load dimension results", Err: err}
		}
		task.Dimension = domain.Dimension(dimension)
		task.Status = domain.TaskStatus(status)
		if score.Valid {
			v := score.Float64
			task.Score = &v
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			task.UpdatedAt = t
		}

		if task.Dimension == domain.DimensionOverall {
			job.Overall = &task
		} else {
			job.Tasks[task.Dimension] = &task
		}
	}
	return rows.Err()
}

// TaskSignature returns a stable fingerprint of a job's stored dimension
// rows, used by tests to assert that resumed runs leave completed jobs
// byte-identical.
func (r *Repository) TaskSignature(ctx context.Context, jobID string) (string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dimension, status, COALESCE(score, -1), summary, raw_text, error
		FROM dimension_results WHERE job_id = ? ORDER BY dimension`, jobID)
	if err != nil {
		return "", &domain.StoreError{Op: "task signature", Err: err}
	}
	defer rows.Close()

	signature := ""
	for rows.Next() {
		var dimension, status, summary, rawText, taskErr string
		var score float64
		if err := rows.Scan(&dimension, &status, &score, &summary, &rawText, &taskErr); err != nil {
			return "", &domain.StoreError{Op: "task signature", Err: err}
		}
		signature += fmt.Sprintf("%s|%s|%g|%s|%s|%s\n", dimension, status, score, summary, rawText, taskErr)
	}
	return signature, rows.Err()
}
