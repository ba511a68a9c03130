package research

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/domain"
)

func TestCreateBatchIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	batch := &domain.Batch{
		ID:         "batch-1",
		Securities: []string{"aapl", "msft"},
		Total:      2,
		Status:     domain.BatchPending,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateBatch(ctx, batch))
	require.NoError(t, store.CreateBatch(ctx, batch))

	got, err := store.GetBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"aapl", "msft"}, got.Securities)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, domain.BatchPending, got.Status)
}

func TestGetBatchNotFound(t *testing.T) {
	store := setupStore(t)
	got, err := store.GetBatch(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateSecurityJobPredeclaresTasks(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	job := domain.NewSecurityJob("job-1", "batch-1", "aapl")
	require.NoError(t, store.CreateSecurityJob(ctx, job))
	require.NoError(t, store.CreateSecurityJob(ctx, job))

	jobs, err := store.ListSecurityJobs(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	loaded := jobs[0]
	assert.Len(t, loaded.Tasks, len(domain.AnalysisDimensions()))
	for _, dim := range domain.AnalysisDimensions() {
		require.NotNil(t, loaded.Tasks[dim], "dimension %s not pre-declared", dim)
		assert.Equal(t, domain.TaskPending, loaded.Tasks[dim].Status)
	}
	require.NotNil(t, loaded.Overall)
	assert.Equal(t, domain.TaskPending, loaded.Overall.Status)
}

func TestUpsertDimensionResultReplacesInPlace(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	job := domain.NewSecurityJob("job-1", "batch-1", "aapl")
	require.NoError(t, store.CreateSecurityJob(ctx, job))

	score := 7.5
	task := &domain.DimensionTask{
		Dimension: domain.DimensionRisk,
		Status:    domain.TaskDone,
		Score:     &score,
		Summary:   "manageable volatility",
		RawText:   "full analysis text",
	}
	require.NoError(t, store.UpsertDimensionResult(ctx, "job-1", task))
	require.NoError(t, store.UpsertDimensionResult(ctx, "job-1", task))

	jobs, err := store.ListSecurityJobs(ctx, "batch-1")
	require.NoError(t, err)
	stored := jobs[0].Tasks[domain.DimensionRisk]
	assert.Equal(t, domain.TaskDone, stored.Status)
	require.NotNil(t, stored.Score)
	assert.InDelta(t, 7.5, *stored.Score, 1e-9)
	assert.Equal(t, "manageable volatility", stored.Summary)
}

func TestListPendingSecuritiesSkipsTerminal(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i, status := range []domain.JobStatus{domain.JobCompleted, domain.JobFailed, domain.JobPending, domain.JobRunning} {
		job := domain.NewSecurityJob("job-"+string(rune('a'+i)), "batch-1", "sec-"+string(rune('a'+i)))
		require.NoError(t, store.CreateSecurityJob(ctx, job))
		require.NoError(t, store.SetSecurityStatus(ctx, job.ID, status, ""))
	}

	pending, err := store.ListPendingSecurities(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, job := range pending {
		assert.False(t, job.Status.Terminal())
	}
}

func TestSetBatchStatusRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	batch := &domain.Batch{ID: "batch-1", Securities: []string{"aapl"}, Total: 1, Status: domain.BatchPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateBatch(ctx, batch))
	require.NoError(t, store.SetBatchStatus(ctx, "batch-1", domain.BatchCompleted, 1))

	got, err := store.GetBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, got.Status)
	assert.Equal(t, 1, got.Completed)
}

func TestTaskSignatureStable(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	job := domain.NewSecurityJob("job-1", "batch-1", "aapl")
	require.NoError(t, store.CreateSecurityJob(ctx, job))

	first, err := store.TaskSignature(ctx, "job-1")
	require.NoError(t, err)
	second, err := store.TaskSignature(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}
