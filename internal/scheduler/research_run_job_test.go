package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/database"
	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/universe"
)

type fakeSubmitter struct {
	submitted [][]string
}

func (f *fakeSubmitter) SubmitBatch(_ context.Context, names []string) (string, error) {
	f.submitted = append(f.submitted, names)
	return "batch-1", nil
}

func setupSecurities(t *testing.T) *universe.SecurityRepository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := universe.NewSecurityRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestResearchRunJobSubmitsActiveUniverse(t *testing.T) {
	repo := setupSecurities(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, domain.SecurityIdentity{Symbol: "AAPL"}))
	require.NoError(t, repo.Upsert(ctx, domain.SecurityIdentity{Symbol: "MSFT"}))
	require.NoError(t, repo.Upsert(ctx, domain.SecurityIdentity{Symbol: "NVDA"}))
	require.NoError(t, repo.SetActive(ctx, "NVDA", false))

	submitter := &fakeSubmitter{}
	job := NewResearchRunJob(repo, submitter, zerolog.Nop())
	assert.Equal(t, "research_run", job.Name())

	require.NoError(t, job.Run())
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, submitter.submitted[0])
}

func TestResearchRunJobEmptyUniverse(t *testing.T) {
	repo := setupSecurities(t)
	submitter := &fakeSubmitter{}
	job := NewResearchRunJob(repo, submitter, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, submitter.submitted, "no batch submitted for an empty universe")
}
