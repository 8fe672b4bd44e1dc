package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteQueue(t *testing.T) {
	tests := []struct {
		name     string
		jobType  JobType
		priority Priority
		want     string
	}{
		{"urgent transcode", JobTypeTranscode, PriorityUrgent, QueueHighPriority},
		{"high metadata", JobTypeMetadataExtraction, PriorityHigh, QueueHighPriority},
		{"high thumbnail stays high", JobTypeThumbnail, PriorityHigh, QueueHighPriority},
		{"normal transcode", JobTypeTranscode, PriorityNormal, QueueNormalPriority},
		{"normal thumbnail", JobTypeThumbnail, PriorityNormal, QueueThumbnail},
		{"normal preview", JobTypePreview, PriorityNormal, QueueThumbnail},
		{"normal quality analysis", JobTypeQualityAnalysis, PriorityNormal, QueueNormalPriority},
		{"low transcode", JobTypeTranscode, PriorityLow, QueueLowPriority},
		{"low thumbnail", JobTypeThumbnail, PriorityLow, QueueLowPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("vid-1", tt.jobType, tt.priority, nil)
			assert.Equal(t, tt.want, RouteQueue(job))
		})
	}
}

func TestQueue_AvailableSlots(t *testing.T) {
	q := &Queue{MaxConcurrent: 3, Active: 1}
	assert.Equal(t, 2, q.AvailableSlots())

	q.Active = 3
	assert.Equal(t, 0, q.AvailableSlots())

	// Never negative, even from a corrupted count.
	q.Active = 5
	assert.Equal(t, 0, q.AvailableSlots())
}

func TestDefaultQueues(t *testing.T) {
	queues := DefaultQueues()
	assert.Len(t, queues, 4)

	names := make(map[string]bool)
	for _, q := range queues {
		names[q.Name] = true
		assert.Equal(t, QueueStatusActive, q.Status)
		assert.Positive(t, q.MaxConcurrent)
		assert.Zero(t, q.Active)
	}
	assert.True(t, names[QueueHighPriority])
	assert.True(t, names[QueueNormalPriority])
	assert.True(t, names[QueueThumbnail])
	assert.True(t, names[QueueLowPriority])
}
