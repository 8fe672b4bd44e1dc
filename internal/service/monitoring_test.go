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

func TestMonitoring_QueueStats(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	manager := NewQueueManager(store, newFakeExecutor(), NewCancelRegistry(), NewEventBus(), time.Hour)
	require.NoError(t, manager.Start(ctx))
	defer manager.Shutdown(ctx, 100*time.Millisecond)

	save := func(status domain.JobStatus, priority domain.Priority, mutate func(*domain.Job)) {
		job := domain.NewJob("vid-1", domain.JobTypeTranscode, priority, nil)
		job.Status = status
		if mutate != nil {
			mutate(job)
		}
		require.NoError(t, store.SaveJob(ctx, job))
	}

	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	save(domain.JobStatusQueued, domain.PriorityNormal, nil)
	save(domain.JobStatusRetrying, domain.PriorityNormal, nil)
	save(domain.JobStatusProcessing, domain.PriorityNormal, nil)
	save(domain.JobStatusFailed, domain.PriorityNormal, nil)
	save(domain.JobStatusCompleted, domain.PriorityNormal, func(j *domain.Job) {
		j.CompletedAt = &recent
		j.ActualDuration = 2 * time.Minute
	})
	save(domain.JobStatusCompleted, domain.PriorityNormal, func(j *domain.Job) {
		j.CompletedAt = &stale
		j.ActualDuration = 4 * time.Minute
	})
	save(domain.JobStatusQueued, domain.PriorityHigh, nil)

	monitoring := NewMonitoring(store, manager)
	stats, err := monitoring.QueueStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 4)

	byName := make(map[string]QueueStats, len(stats))
	for _, st := range stats {
		byName[st.Name] = st
	}

	normal := byName[domain.QueueNormalPriority]
	assert.Equal(t, 6, normal.Total)
	assert.Equal(t, 2, normal.Queued, "retrying counts as queued")
	assert.Equal(t, 1, normal.Processing)
	assert.Equal(t, 2, normal.Completed)
	assert.Equal(t, 1, normal.Failed)
	assert.Equal(t, 3*time.Minute, normal.AvgProcessingTime)
	assert.Equal(t, 1, normal.ThroughputPerHour, "only trailing-hour completions count")

	high := byName[domain.QueueHighPriority]
	assert.Equal(t, 1, high.Total)
	assert.Equal(t, 1, high.Queued)
	assert.Equal(t, 2, high.MaxConcurrent)

	// Lanes are reported in priority order.
	assert.Equal(t, domain.QueueHighPriority, stats[0].Name)
	assert.Equal(t, domain.QueueLowPriority, stats[3].Name)
}

func TestMonitoring_EmptyLanes(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	manager := NewQueueManager(store, newFakeExecutor(), NewCancelRegistry(), NewEventBus(), time.Hour)
	require.NoError(t, manager.Start(ctx))
	defer manager.Shutdown(ctx, 100*time.Millisecond)

	stats, err := NewMonitoring(store, manager).QueueStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	for _, st := range stats {
		assert.Zero(t, st.Total)
		assert.Zero(t, st.AvgProcessingTime)
		assert.Equal(t, string(domain.QueueStatusActive), st.Status)
	}
}
