package service

import (
	"context"
	"time"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/port"
)

// QueueStats is the operational read model for one lane.
type QueueStats struct {
	Name              string        `json:"name"`
	Status            string        `json:"status"`
	MaxConcurrent     int           `json:"max_concurrent"`
	Active            int           `json:"active"`
	Total             int           `json:"total"`
	Queued            int           `json:"queued"`
	Processing        int           `json:"processing"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	// ThroughputPerHour counts completions in the trailing hour.
	ThroughputPerHour int `json:"throughput_per_hour"`
}

// Monitoring aggregates job state per lane. Read-only; lane membership is
// derived with the same routing the queue manager admits with.
type Monitoring struct {
	repo    port.Repository
	manager *QueueManager
}

func NewMonitoring(repo port.Repository, manager *QueueManager) *Monitoring {
	return &Monitoring{repo: repo, manager: manager}
}

func (m *Monitoring) QueueStats(ctx context.Context) ([]QueueStats, error) {
	jobs, err := m.repo.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	lanes := m.manager.Queues()
	stats := make([]QueueStats, len(lanes))
	index := make(map[string]*QueueStats, len(lanes))
	for i, lane := range lanes {
		stats[i] = QueueStats{
			Name:          lane.Name,
			Status:        string(lane.Status),
			MaxConcurrent: lane.MaxConcurrent,
			Active:        lane.Active,
		}
		index[lane.Name] = &stats[i]
	}

	hourAgo := time.Now().Add(-time.Hour)
	durations := make(map[string]time.Duration, len(lanes))
	for _, job := range jobs {
		st, ok := index[domain.RouteQueue(job)]
		if !ok {
			continue
		}
		st.Total++
		switch job.Status {
		case domain.JobStatusQueued, domain.JobStatusRetrying:
			st.Queued++
		case domain.JobStatusProcessing:
			st.Processing++
		case domain.JobStatusCompleted:
			st.Completed++
			durations[st.Name] += job.ActualDuration
			if job.CompletedAt != nil && job.CompletedAt.After(hourAgo) {
				st.ThroughputPerHour++
			}
		case domain.JobStatusFailed:
			st.Failed++
		}
	}
	for name, total := range durations {
		if st := index[name]; st.Completed > 0 {
			st.AvgProcessingTime = total / time.Duration(st.Completed)
		}
	}

	return stats, nil
}
