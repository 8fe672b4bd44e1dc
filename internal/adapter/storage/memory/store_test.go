package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlagae/vidpipe/internal/domain"
)

func TestStore_CallerCannotMutateStoredState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityNormal, map[string]any{
		"quality": "720p",
	})
	require.NoError(t, store.SaveJob(ctx, job))

	// Mutating the original after saving must not leak into the store.
	job.Status = domain.JobStatusFailed
	job.Params["quality"] = "1080p"

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Equal(t, "720p", got.StringParam("quality"))

	// Nor mutating what came back out.
	got.Status = domain.JobStatusCancelled
	again, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, again.Status)
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.GetVideo(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetQueue(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetVariantByVideoQualityFormat(ctx, "missing", domain.Quality720p, domain.FormatMP4)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.UpdateJob(ctx, &domain.Job{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListQueuedJobsOrdering(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	low := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityLow, nil)
	high := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityHigh, nil)
	oldNormal := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityNormal, nil)
	oldNormal.CreatedAt = time.Now().Add(-time.Hour)
	newNormal := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityNormal, nil)

	for _, j := range []*domain.Job{low, high, oldNormal, newNormal} {
		require.NoError(t, store.SaveJob(ctx, j))
	}

	got, err := store.ListQueuedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, high.ID, got[0].ID)
	assert.Equal(t, oldNormal.ID, got[1].ID)
	assert.Equal(t, newNormal.ID, got[2].ID)
	assert.Equal(t, low.ID, got[3].ID)
}
