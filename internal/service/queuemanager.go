package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/port"
)

var (
	ErrJobAlreadyQueued = errors.New("job already queued")
	ErrInvalidJobState  = errors.New("invalid job state for operation")
	ErrQueueNotFound    = errors.New("queue not found")
)

// JobExecutor runs one job to completion. Implemented by Worker.
type JobExecutor interface {
	Execute(ctx context.Context, job *domain.Job) (map[string]any, error)
}

// inflightJob tracks one admitted job until its completion callback has
// run. released guards the queue slot so it is given back exactly once
// even when a cancellation races a completion.
type inflightJob struct {
	queueName string
	cancel    context.CancelFunc
	released  bool
}

// QueueManager owns the queue lanes, admits queued jobs into available
// capacity, and performs every job status transition caused by admission,
// completion, failure or cancellation. All slot accounting and transitions
// are serialized behind mu.
type QueueManager struct {
	repo     port.Repository
	executor JobExecutor
	cancels  *CancelRegistry
	bus      *EventBus

	mu       sync.Mutex
	queues   map[string]*domain.Queue
	inflight map[string]*inflightJob
	closed   bool

	baseCtx  context.Context
	baseStop context.CancelFunc
	wg       sync.WaitGroup
	stopTick chan struct{}

	tickInterval time.Duration
}

func NewQueueManager(
	repo port.Repository,
	executor JobExecutor,
	cancels *CancelRegistry,
	bus *EventBus,
	tickInterval time.Duration,
) *QueueManager {
	baseCtx, baseStop := context.WithCancel(context.Background())
	return &QueueManager{
		repo:         repo,
		executor:     executor,
		cancels:      cancels,
		bus:          bus,
		queues:       make(map[string]*domain.Queue),
		inflight:     make(map[string]*inflightJob),
		baseCtx:      baseCtx,
		baseStop:     baseStop,
		stopTick:     make(chan struct{}),
		tickInterval: tickInterval,
	}
}

// Start provisions the default lanes, requeues jobs abandoned by a
// previous run, and begins the admission tick loop.
func (qm *QueueManager) Start(ctx context.Context) error {
	if err := qm.provisionQueues(ctx); err != nil {
		return err
	}
	if err := qm.requeueAbandoned(ctx); err != nil {
		logger.WithError(err).Warn("failed to requeue abandoned jobs")
	}

	go func() {
		ticker := time.NewTicker(qm.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := qm.Tick(qm.baseCtx); err != nil {
					logger.WithError(err).Error("admission tick failed")
				}
			case <-qm.stopTick:
				return
			}
		}
	}()
	logger.Infof("queue manager started, admission interval %s", qm.tickInterval)
	return nil
}

func (qm *QueueManager) provisionQueues(ctx context.Context) error {
	existing, err := qm.repo.ListQueues(ctx)
	if err != nil {
		return fmt.Errorf("list queues: %w", err)
	}
	byName := make(map[string]*domain.Queue, len(existing))
	for _, q := range existing {
		byName[q.Name] = q
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()
	for _, def := range domain.DefaultQueues() {
		q, ok := byName[def.Name]
		if !ok {
			q = def
			if err := qm.repo.SaveQueue(ctx, q); err != nil {
				return fmt.Errorf("provision queue %s: %w", q.Name, err)
			}
		}
		// Active counts never survive a restart; in-flight work did not.
		if q.Active != 0 {
			q.Active = 0
			if err := qm.repo.UpdateQueue(ctx, q); err != nil {
				return fmt.Errorf("reset queue %s: %w", q.Name, err)
			}
		}
		qm.queues[q.Name] = q
	}
	return nil
}

// requeueAbandoned returns jobs left processing by a crashed run to the
// queue so the next tick can pick them up again.
func (qm *QueueManager) requeueAbandoned(ctx context.Context) error {
	stale, err := qm.repo.ListProcessingStartedBefore(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, job := range stale {
		job.Status = domain.JobStatusQueued
		job.StartedAt = nil
		job.WorkerID = ""
		job.Progress = 0
		if err := qm.repo.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		logger.WithField("job_id", job.ID).Info("requeued job abandoned by previous run")
	}
	return nil
}

// AddJob admits a new job into the queued state. Execution happens on a
// later scheduling tick, never inline.
func (qm *QueueManager) AddJob(ctx context.Context, job *domain.Job) error {
	qm.mu.Lock()
	closed := qm.closed
	qm.mu.Unlock()
	if closed {
		return domain.ErrShuttingDown
	}

	if existing, err := qm.repo.GetJob(ctx, job.ID); err == nil && existing != nil {
		return fmt.Errorf("%w: %s", ErrJobAlreadyQueued, job.ID)
	}

	job.Status = domain.JobStatusQueued
	job.ScheduledAt = time.Now()
	if err := qm.repo.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"type":   job.Type,
		"queue":  domain.RouteQueue(job),
	}).Info("job queued")
	return nil
}

// Tick runs one admission pass: for each active lane in descending
// priority order, admit queued jobs into free slots. Lanes are independent;
// a full high-priority lane never blocks admission into lower lanes.
func (qm *QueueManager) Tick(ctx context.Context) error {
	queued, err := qm.repo.ListQueuedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list queued jobs: %w", err)
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.closed {
		return nil
	}

	lanes := make([]*domain.Queue, 0, len(qm.queues))
	for _, q := range qm.queues {
		lanes = append(lanes, q)
	}
	sort.Slice(lanes, func(i, j int) bool { return lanes[i].Priority > lanes[j].Priority })

	for _, lane := range lanes {
		if lane.Status != domain.QueueStatusActive {
			continue
		}
		slots := lane.AvailableSlots()
		if slots <= 0 {
			continue
		}
		for _, job := range queued {
			if slots == 0 {
				break
			}
			if job.Status != domain.JobStatusQueued || domain.RouteQueue(job) != lane.Name {
				continue
			}
			admitted, err := qm.admitLocked(ctx, job, lane)
			if err != nil {
				logger.WithError(err).WithField("job_id", job.ID).Error("admission failed")
				continue
			}
			if admitted {
				slots--
			}
		}
	}
	return nil
}

// admitLocked transitions one queued job to processing and dispatches it
// asynchronously. Caller holds mu.
func (qm *QueueManager) admitLocked(ctx context.Context, job *domain.Job, lane *domain.Queue) (bool, error) {
	// The candidate list was read outside the lock; the job may have been
	// cancelled since.
	fresh, err := qm.repo.GetJob(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("reload job: %w", err)
	}
	if fresh.Status != domain.JobStatusQueued {
		return false, nil
	}
	job = fresh

	job.MarkProcessing(uuid.NewString())
	if err := qm.repo.UpdateJob(ctx, job); err != nil {
		// Dispatch failure: fail immediately without consuming a retry.
		job.MarkFailedTerminal(fmt.Sprintf("dispatch failed: %v", err))
		if uerr := qm.repo.UpdateJob(ctx, job); uerr != nil {
			logger.WithError(uerr).WithField("job_id", job.ID).Error("failed to record dispatch failure")
		}
		return false, err
	}

	lane.Active++
	if err := qm.repo.UpdateQueue(ctx, lane); err != nil {
		logger.WithError(err).WithField("queue", lane.Name).Warn("failed to persist queue counter")
	}

	jobCtx, cancel := context.WithCancel(qm.baseCtx)
	qm.inflight[job.ID] = &inflightJob{queueName: lane.Name, cancel: cancel}

	qm.markVideoProcessing(ctx, job.VideoID)
	qm.publishJob(job, "")

	dispatched := *job
	qm.wg.Add(1)
	go func() {
		defer qm.wg.Done()
		defer cancel()
		result, err := qm.executor.Execute(jobCtx, &dispatched)
		qm.completeJob(dispatched.ID, result, err)
	}()

	logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"queue":  lane.Name,
		"type":   job.Type,
	}).Info("job admitted")
	return true, nil
}

func (qm *QueueManager) markVideoProcessing(ctx context.Context, videoID string) {
	video, err := qm.repo.GetVideo(ctx, videoID)
	if err != nil || video.Status != domain.VideoStatusUploaded {
		return
	}
	video.Status = domain.VideoStatusProcessing
	if err := qm.repo.UpdateVideo(ctx, video); err != nil {
		logger.WithError(err).WithField("video_id", videoID).Warn("failed to mark video processing")
	}
}

// completeJob is the worker completion callback. Safe from any goroutine;
// serializes with ticks, cancellations and reclamation behind mu.
func (qm *QueueManager) completeJob(jobID string, result map[string]any, execErr error) {
	ctx := context.Background()

	qm.mu.Lock()
	defer qm.mu.Unlock()
	defer func() {
		delete(qm.inflight, jobID)
		qm.cancels.Clear(jobID)
	}()

	job, err := qm.repo.GetJob(ctx, jobID)
	if err != nil {
		logger.WithError(err).WithField("job_id", jobID).Error("completion lookup failed")
		qm.releaseSlotLocked(ctx, jobID)
		return
	}

	// The job may have been cancelled or reclaimed while the worker was
	// still running; that transition already settled the outcome.
	if job.Status != domain.JobStatusProcessing {
		qm.releaseSlotLocked(ctx, jobID)
		return
	}

	switch {
	case execErr == nil:
		job.MarkCompleted(result)
	case errors.Is(execErr, domain.ErrJobCancelled):
		job.MarkCancelled()
	case domain.IsDomainError(execErr):
		job.MarkFailedTerminal(execErr.Error())
	default:
		job.MarkFailed(execErr.Error())
	}

	if err := qm.repo.UpdateJob(ctx, job); err != nil {
		logger.WithError(err).WithField("job_id", jobID).Error("failed to persist job outcome")
	}
	qm.releaseSlotLocked(ctx, jobID)
	qm.publishJob(job, job.Error)

	logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"status": job.Status,
		"retry":  job.RetryCount,
	}).Info("job finished")
}

// releaseSlotLocked gives one slot back to the lane that admitted the job.
// Idempotent per job: a cancellation racing a completion releases once.
func (qm *QueueManager) releaseSlotLocked(ctx context.Context, jobID string) {
	inf, ok := qm.inflight[jobID]
	if !ok || inf.released {
		return
	}
	inf.released = true
	lane, ok := qm.queues[inf.queueName]
	if !ok {
		return
	}
	if lane.Active > 0 {
		lane.Active--
	}
	if err := qm.repo.UpdateQueue(ctx, lane); err != nil {
		logger.WithError(err).WithField("queue", lane.Name).Warn("failed to persist queue counter")
	}
}

// CancelJob cooperatively cancels a job. Queued and retrying jobs settle
// immediately; processing jobs are signalled and their slot released now,
// with the worker's eventual return folded into the same outcome.
func (qm *QueueManager) CancelJob(ctx context.Context, jobID string) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	job, err := qm.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case domain.JobStatusQueued, domain.JobStatusRetrying:
		job.MarkCancelled()
	case domain.JobStatusProcessing:
		qm.cancels.Request(jobID)
		if inf, ok := qm.inflight[jobID]; ok {
			inf.cancel()
		}
		job.MarkCancelled()
		qm.releaseSlotLocked(ctx, jobID)
	default:
		return fmt.Errorf("%w: cannot cancel %s job", ErrInvalidJobState, job.Status)
	}

	if err := qm.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}
	qm.publishJob(job, "cancelled by request")
	return nil
}

// RetryJob resets a terminally failed job for a fresh run.
func (qm *QueueManager) RetryJob(ctx context.Context, jobID string) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	job, err := qm.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusFailed {
		return fmt.Errorf("%w: retry requires a failed job, got %s", ErrInvalidJobState, job.Status)
	}
	job.ResetForRetry()
	if err := qm.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist retry: %w", err)
	}
	qm.publishJob(job, "")
	return nil
}

// ForceFail terminally fails a processing job from outside the worker
// path (stuck-job reclamation, shutdown). No-op when the job has already
// settled.
func (qm *QueueManager) ForceFail(ctx context.Context, jobID string, cause error) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	job, err := qm.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusProcessing {
		return nil
	}
	job.MarkFailedTerminal(cause.Error())
	if err := qm.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist forced failure: %w", err)
	}
	if inf, ok := qm.inflight[jobID]; ok {
		inf.cancel()
	}
	qm.releaseSlotLocked(ctx, jobID)
	qm.publishJob(job, cause.Error())
	return nil
}

func (qm *QueueManager) PauseQueue(ctx context.Context, name string) error {
	return qm.setQueueStatus(ctx, name, domain.QueueStatusPaused)
}

func (qm *QueueManager) ResumeQueue(ctx context.Context, name string) error {
	return qm.setQueueStatus(ctx, name, domain.QueueStatusActive)
}

func (qm *QueueManager) setQueueStatus(ctx context.Context, name string, status domain.QueueStatus) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	lane, ok := qm.queues[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	lane.Status = status
	if err := qm.repo.UpdateQueue(ctx, lane); err != nil {
		return fmt.Errorf("persist queue status: %w", err)
	}
	logger.WithFields(logrus.Fields{"queue": name, "status": status}).Info("queue status changed")
	return nil
}

// Queues returns a snapshot of the lane states.
func (qm *QueueManager) Queues() []domain.Queue {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	out := make([]domain.Queue, 0, len(qm.queues))
	for _, q := range qm.queues {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Shutdown stops admissions, waits up to grace for in-flight jobs, then
// force-fails whatever is still processing and releases the slots.
func (qm *QueueManager) Shutdown(ctx context.Context, grace time.Duration) {
	qm.mu.Lock()
	if qm.closed {
		qm.mu.Unlock()
		return
	}
	qm.closed = true
	qm.mu.Unlock()
	close(qm.stopTick)

	done := make(chan struct{})
	go func() {
		qm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warnf("shutdown grace of %s elapsed, force-failing in-flight jobs", grace)
	}

	qm.mu.Lock()
	remaining := make([]string, 0, len(qm.inflight))
	for jobID, inf := range qm.inflight {
		if !inf.released {
			remaining = append(remaining, jobID)
		}
	}
	qm.mu.Unlock()

	for _, jobID := range remaining {
		if err := qm.ForceFail(ctx, jobID, domain.ErrShuttingDown); err != nil {
			logger.WithError(err).WithField("job_id", jobID).Error("failed to settle job during shutdown")
		}
	}

	qm.baseStop()
	logger.Infof("queue manager stopped")
}

func (qm *QueueManager) publishJob(job *domain.Job, message string) {
	qm.bus.Publish(job.VideoID, Event{
		Type:     "job",
		VideoID:  job.VideoID,
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Message:  message,
	})
}
