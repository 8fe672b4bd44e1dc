package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob("vid-1", JobTypeTranscode, PriorityNormal, map[string]any{"quality": "720p"})

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "vid-1", job.VideoID)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)
	assert.Zero(t, job.RetryCount)
	assert.WithinDuration(t, time.Now(), job.ScheduledAt, time.Second)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestJob_MarkCompleted(t *testing.T) {
	job := NewJob("vid-1", JobTypeTranscode, PriorityNormal, nil)
	job.MarkProcessing("worker-1")
	require.NotNil(t, job.StartedAt)

	job.MarkCompleted(map[string]any{"output_path": "/data/out.mp4"})

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, float64(100), job.Progress)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, "/data/out.mp4", job.Result["output_path"])
	assert.GreaterOrEqual(t, job.ActualDuration, time.Duration(0))
}

func TestJob_MarkFailed_RetryAccounting(t *testing.T) {
	job := NewJob("vid-1", JobTypeTranscode, PriorityNormal, nil)
	job.MaxRetries = 2

	job.MarkFailed("encoder crashed")
	assert.Equal(t, JobStatusRetrying, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "encoder crashed", job.Error)
	assert.WithinDuration(t, time.Now().Add(Backoff(1)), job.ScheduledAt, time.Second)
	assert.Nil(t, job.CompletedAt)

	// Retries exhausted: terminal failure.
	job.MarkFailed("encoder crashed again")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_MarkFailedTerminal(t *testing.T) {
	job := NewJob("vid-1", JobTypeTranscode, PriorityNormal, nil)
	job.MarkFailedTerminal("invalid parameters")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Zero(t, job.RetryCount, "terminal failure consumes no retry")
	require.NotNil(t, job.CompletedAt)
}

func TestJob_MarkCancelled(t *testing.T) {
	job := NewJob("vid-1", JobTypeThumbnail, PriorityNormal, nil)
	job.MarkCancelled()

	assert.Equal(t, JobStatusCancelled, job.Status)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_ResetForRetry(t *testing.T) {
	job := NewJob("vid-1", JobTypeTranscode, PriorityNormal, nil)
	job.MarkProcessing("worker-1")
	job.Progress = 42
	job.MaxRetries = 1
	job.MarkFailed("boom")
	require.Equal(t, JobStatusFailed, job.Status)

	job.ResetForRetry()

	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Zero(t, job.RetryCount)
	assert.Empty(t, job.Error)
	assert.Zero(t, job.Progress)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
	assert.False(t, JobStatusQueued.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.False(t, JobStatusRetrying.IsTerminal())
}

func TestJob_ParamAccessors(t *testing.T) {
	job := NewJob("vid-1", JobTypeTranscode, PriorityNormal, map[string]any{
		"quality": "1080p",
		"count":   float64(5), // JSON decode shape
		"workers": 2,
	})

	assert.Equal(t, "1080p", job.StringParam("quality"))
	assert.Empty(t, job.StringParam("missing"))

	count, ok := job.NumberParam("count")
	assert.True(t, ok)
	assert.Equal(t, float64(5), count)

	workers, ok := job.NumberParam("workers")
	assert.True(t, ok)
	assert.Equal(t, float64(2), workers)

	_, ok = job.NumberParam("quality")
	assert.False(t, ok)
}
