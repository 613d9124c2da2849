package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/model"
)

func TestSQLiteRepository_InsertGetUpdate(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	j := model.Job{
		ID:             "job-1",
		Pipeline:       model.PipelineAIScan,
		State:          model.JobPending,
		Total:          10,
		Token:          "tok",
		TokenExpiresAt: time.Now().Add(time.Hour),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, repo.Insert(ctx, j))

	// Insert is idempotent.
	require.NoError(t, repo.Insert(ctx, j))

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, model.JobPending, got.State)
	require.Equal(t, 10, got.Total)

	require.NoError(t, repo.UpdateProgress(ctx, "job-1", 5))
	require.NoError(t, repo.SetState(ctx, "job-1", model.JobRunning))

	got, err = repo.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, 5, got.Processed)
	require.Equal(t, model.JobRunning, got.State)
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrJobNotFound)
}
