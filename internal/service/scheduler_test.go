package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlagae/vidpipe/internal/adapter/storage/memory"
	"github.com/mlagae/vidpipe/internal/domain"
)

func newSchedulerHarness(t *testing.T) (*Scheduler, *memory.Store, *QueueManager) {
	t.Helper()
	store := memory.NewStore()
	bus := NewEventBus()
	manager := NewQueueManager(store, newFakeExecutor(), NewCancelRegistry(), bus, time.Hour)
	require.NoError(t, manager.Start(context.Background()))
	t.Cleanup(func() {
		manager.Shutdown(context.Background(), 100*time.Millisecond)
	})
	sched := NewScheduler(store, manager, bus, SchedulerConfig{
		StuckInterval:    time.Minute,
		StuckTimeout:     30 * time.Minute,
		RequeueInterval:  time.Minute,
		RequeueBatchSize: 2,
		CleanupInterval:  time.Hour,
		JobRetention:     7 * 24 * time.Hour,
		RollupInterval:   time.Minute,
	})
	return sched, store, manager
}

func saveProcessingJob(t *testing.T, store *memory.Store, videoID string, startedAgo time.Duration) *domain.Job {
	t.Helper()
	job := domain.NewJob(videoID, domain.JobTypeTranscode, domain.PriorityNormal, nil)
	job.MarkProcessing("worker-1")
	started := time.Now().Add(-startedAgo)
	job.StartedAt = &started
	require.NoError(t, store.SaveJob(context.Background(), job))
	return job
}

func TestScheduler_ReclaimStuckJobs(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	stuck := saveProcessingJob(t, store, "vid-1", 31*time.Minute)
	healthy := saveProcessingJob(t, store, "vid-1", 29*time.Minute)

	require.NoError(t, sched.ReclaimStuckJobs(ctx))

	got, err := store.GetJob(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "timed out")
	assert.Zero(t, got.RetryCount, "reclamation is terminal, not a retry")

	got, err = store.GetJob(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
}

func TestScheduler_RequeueDueRetries(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	makeRetrying := func(dueIn time.Duration) *domain.Job {
		job := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityNormal, nil)
		job.Status = domain.JobStatusRetrying
		job.RetryCount = 1
		job.Progress = 37
		job.ScheduledAt = time.Now().Add(dueIn)
		require.NoError(t, store.SaveJob(ctx, job))
		return job
	}

	due := makeRetrying(-time.Minute)
	notDue := makeRetrying(10 * time.Minute)

	require.NoError(t, sched.RequeueDueRetries(ctx))

	got, err := store.GetJob(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Zero(t, got.Progress)
	assert.Equal(t, 1, got.RetryCount, "retry accounting survives the requeue")

	got, err = store.GetJob(ctx, notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRetrying, got.Status)
}

func TestScheduler_RequeueRespectsBatchSize(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityNormal, nil)
		job.Status = domain.JobStatusRetrying
		job.ScheduledAt = time.Now().Add(-time.Hour)
		require.NoError(t, store.SaveJob(ctx, job))
	}

	require.NoError(t, sched.RequeueDueRetries(ctx))

	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	queued := 0
	for _, j := range jobs {
		if j.Status == domain.JobStatusQueued {
			queued++
		}
	}
	assert.Equal(t, 2, queued, "one pass requeues at most the batch size")
}

func TestScheduler_CleanupOldJobs(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	makeTerminal := func(status domain.JobStatus, completedAgo time.Duration) *domain.Job {
		job := domain.NewJob("vid-1", domain.JobTypeTranscode, domain.PriorityNormal, nil)
		job.Status = status
		completed := time.Now().Add(-completedAgo)
		job.CompletedAt = &completed
		require.NoError(t, store.SaveJob(ctx, job))
		return job
	}

	oldCompleted := makeTerminal(domain.JobStatusCompleted, 8*24*time.Hour)
	recentCompleted := makeTerminal(domain.JobStatusCompleted, time.Hour)
	oldFailed := makeTerminal(domain.JobStatusFailed, 30*24*time.Hour)

	require.NoError(t, sched.CleanupOldJobs(ctx))

	_, err := store.GetJob(ctx, oldCompleted.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetJob(ctx, recentCompleted.ID)
	assert.NoError(t, err)

	// Failed jobs are kept for inspection regardless of age.
	_, err = store.GetJob(ctx, oldFailed.ID)
	assert.NoError(t, err)
}

func rollupFixture(t *testing.T, store *memory.Store, statuses []domain.JobStatus, progress []float64) *domain.Video {
	t.Helper()
	ctx := context.Background()
	video := domain.NewVideo("clip", "/data/clip.mov")
	video.Status = domain.VideoStatusProcessing
	require.NoError(t, store.SaveVideo(ctx, video))
	for i, status := range statuses {
		job := domain.NewJob(video.ID, domain.JobTypeTranscode, domain.PriorityNormal, nil)
		job.Status = status
		job.Progress = progress[i]
		require.NoError(t, store.SaveJob(ctx, job))
	}
	return video
}

func TestScheduler_RollupMeanProgress(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	video := rollupFixture(t, store,
		[]domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusProcessing, domain.JobStatusQueued},
		[]float64{100, 50, 0})

	require.NoError(t, sched.RollupVideoProgress(ctx))

	got, err := store.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusProcessing, got.Status)
	assert.InDelta(t, 50.0, got.ProcessingPct, 0.001)
}

func TestScheduler_RollupAllCompleted(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	video := rollupFixture(t, store,
		[]domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusCompleted},
		[]float64{100, 100})

	require.NoError(t, sched.RollupVideoProgress(ctx))

	got, err := store.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusCompleted, got.Status)
	assert.Equal(t, float64(100), got.ProcessingPct)
	assert.Empty(t, got.ProcessingErr)
}

func TestScheduler_RollupAllFailed(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	video := rollupFixture(t, store,
		[]domain.JobStatus{domain.JobStatusFailed, domain.JobStatusFailed, domain.JobStatusFailed},
		[]float64{20, 0, 10})

	require.NoError(t, sched.RollupVideoProgress(ctx))

	got, err := store.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusFailed, got.Status)
	assert.Contains(t, got.ProcessingErr, "all 3 jobs failed")
}

func TestScheduler_RollupMixedOutcomes(t *testing.T) {
	sched, store, _ := newSchedulerHarness(t)
	ctx := context.Background()

	// A cancelled job counts as terminal but neither completed nor failed.
	video := rollupFixture(t, store,
		[]domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled},
		[]float64{100, 10, 0})

	require.NoError(t, sched.RollupVideoProgress(ctx))

	got, err := store.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusCompleted, got.Status, "a servable asset exists despite failures")
	assert.Contains(t, got.ProcessingErr, "1 of 3 jobs failed")
}
