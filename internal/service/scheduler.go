package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/port"
)

// SchedulerConfig carries the housekeeping intervals and thresholds.
type SchedulerConfig struct {
	StuckInterval    time.Duration
	StuckTimeout     time.Duration
	RequeueInterval  time.Duration
	RequeueBatchSize int
	CleanupInterval  time.Duration
	JobRetention     time.Duration
	RollupInterval   time.Duration
}

// Scheduler performs periodic housekeeping that corrects drift rather than
// making progress: reclaiming stuck jobs, requeueing due retries, pruning
// old completed jobs and rolling job state up into video summaries. Each
// pass is independent; a failure in one never aborts the others.
type Scheduler struct {
	repo    port.Repository
	manager *QueueManager
	bus     *EventBus
	cfg     SchedulerConfig
}

func NewScheduler(repo port.Repository, manager *QueueManager, bus *EventBus, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		repo:    repo,
		manager: manager,
		bus:     bus,
		cfg:     cfg,
	}
}

// Start launches one ticker goroutine per housekeeping task. They stop
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runEvery(ctx, s.cfg.StuckInterval, "stuck-job reclamation", s.ReclaimStuckJobs)
	go s.runEvery(ctx, s.cfg.RequeueInterval, "retry requeue", s.RequeueDueRetries)
	go s.runEvery(ctx, s.cfg.CleanupInterval, "stale cleanup", s.CleanupOldJobs)
	go s.runEvery(ctx, s.cfg.RollupInterval, "progress rollup", s.RollupVideoProgress)
	logger.Infof("scheduler started")
}

func (s *Scheduler) runEvery(ctx context.Context, interval time.Duration, name string, pass func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := pass(ctx); err != nil {
				logger.WithError(err).Errorf("%s pass failed", name)
			}
		case <-ctx.Done():
			return
		}
	}
}

// ReclaimStuckJobs force-fails jobs that have been processing past the
// stuck timeout, presuming their worker crashed without reporting back.
func (s *Scheduler) ReclaimStuckJobs(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.StuckTimeout)
	stuck, err := s.repo.ListProcessingStartedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stuck jobs: %w", err)
	}
	for _, job := range stuck {
		if err := s.manager.ForceFail(ctx, job.ID, domain.ErrJobTimeout); err != nil {
			logger.WithError(err).WithField("job_id", job.ID).Error("failed to reclaim stuck job")
			continue
		}
		logger.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"started_at": job.StartedAt,
		}).Warn("reclaimed stuck job")
	}
	return nil
}

// RequeueDueRetries returns retrying jobs whose backoff has elapsed to the
// queued state, in bounded batches.
func (s *Scheduler) RequeueDueRetries(ctx context.Context) error {
	due, err := s.repo.ListRetryingDue(ctx, time.Now(), s.cfg.RequeueBatchSize)
	if err != nil {
		return fmt.Errorf("list due retries: %w", err)
	}
	for _, job := range due {
		job.Status = domain.JobStatusQueued
		job.Progress = 0
		if err := s.repo.UpdateJob(ctx, job); err != nil {
			logger.WithError(err).WithField("job_id", job.ID).Error("failed to requeue retry")
			continue
		}
		logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"retry":  job.RetryCount,
		}).Info("requeued job for retry")
	}
	return nil
}

// CleanupOldJobs prunes completed jobs older than the retention window.
func (s *Scheduler) CleanupOldJobs(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.JobRetention)
	n, err := s.repo.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete completed jobs: %w", err)
	}
	if n > 0 {
		logger.Infof("pruned %d completed jobs older than %s", n, s.cfg.JobRetention)
	}
	return nil
}

// RollupVideoProgress recomputes each processing video's aggregate
// progress as the mean of its jobs, and settles the video once every job
// is terminal: completed when nothing failed, failed when nothing
// succeeded, and completed with a partial-failure note for mixed
// outcomes. Partial variant failures still yield a servable asset.
func (s *Scheduler) RollupVideoProgress(ctx context.Context) error {
	videos, err := s.repo.ListVideosByStatus(ctx, domain.VideoStatusProcessing)
	if err != nil {
		return fmt.Errorf("list processing videos: %w", err)
	}
	for _, video := range videos {
		if err := s.rollupVideo(ctx, video); err != nil {
			logger.WithError(err).WithField("video_id", video.ID).Error("rollup failed")
		}
	}
	return nil
}

func (s *Scheduler) rollupVideo(ctx context.Context, video *domain.Video) error {
	jobs, err := s.repo.ListJobsByVideo(ctx, video.ID)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	var sum float64
	allTerminal := true
	completed, failed := 0, 0
	for _, job := range jobs {
		sum += job.Progress
		if !job.Status.IsTerminal() {
			allTerminal = false
		}
		switch job.Status {
		case domain.JobStatusCompleted:
			completed++
		case domain.JobStatusFailed:
			failed++
		}
	}
	video.ProcessingPct = sum / float64(len(jobs))

	if allTerminal {
		switch {
		case failed == 0:
			video.Status = domain.VideoStatusCompleted
			video.ProcessingPct = 100
			video.ProcessingErr = ""
		case completed == 0:
			video.Status = domain.VideoStatusFailed
			video.ProcessingErr = fmt.Sprintf("all %d jobs failed", failed)
		default:
			video.Status = domain.VideoStatusCompleted
			video.ProcessingErr = fmt.Sprintf("%d of %d jobs failed", failed, len(jobs))
		}
	}

	if err := s.repo.UpdateVideo(ctx, video); err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	s.bus.Publish(video.ID, Event{
		Type:     "video",
		VideoID:  video.ID,
		Status:   string(video.Status),
		Progress: video.ProcessingPct,
		Message:  video.ProcessingErr,
	})
	return nil
}
