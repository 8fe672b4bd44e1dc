package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeTranscode          JobType = "transcode"
	JobTypeThumbnail          JobType = "thumbnail_generation"
	JobTypePreview            JobType = "preview_generation"
	JobTypeMetadataExtraction JobType = "metadata_extraction"
	JobTypeQualityAnalysis    JobType = "quality_analysis"
	JobTypeAdaptiveStreaming  JobType = "adaptive_streaming"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusRetrying   JobStatus = "retrying"
)

// IsTerminal reports whether no further transitions are possible.
// Retrying is not terminal: the scheduler moves it back to queued.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Priority is ordinal: higher values are more urgent.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3
)

const DefaultMaxRetries = 3

type Job struct {
	ID       string         `json:"id"`
	VideoID  string         `json:"video_id"`
	Type     JobType        `json:"type"`
	Status   JobStatus      `json:"status"`
	Priority Priority       `json:"priority"`
	Params   map[string]any `json:"params,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Progress float64        `json:"progress"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	CreatedAt   time.Time  `json:"created_at"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	WorkerID string `json:"worker_id,omitempty"`

	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	ActualDuration    time.Duration `json:"actual_duration,omitempty"`
}

func NewJob(videoID string, jobType JobType, priority Priority, params map[string]any) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		VideoID:     videoID,
		Type:        jobType,
		Status:      JobStatusQueued,
		Priority:    priority,
		Params:      params,
		MaxRetries:  DefaultMaxRetries,
		CreatedAt:   now,
		ScheduledAt: now,
	}
}

// StringParam returns a string parameter, or "" when absent or mistyped.
func (j *Job) StringParam(key string) string {
	if v, ok := j.Params[key].(string); ok {
		return v
	}
	return ""
}

// NumberParam returns a numeric parameter. JSON round-trips decode numbers
// as float64, so both int and float64 are accepted.
func (j *Job) NumberParam(key string) (float64, bool) {
	switch v := j.Params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func (j *Job) MarkProcessing(workerID string) {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.WorkerID = workerID
	j.StartedAt = &now
}

func (j *Job) MarkCompleted(result map[string]any) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Result = result
	j.Progress = 100
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.ActualDuration = now.Sub(*j.StartedAt)
	}
}

func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.WorkerID = ""
}

// MarkFailed records a failure outcome: either schedules a retry with
// exponential backoff or, once retries are exhausted, fails terminally.
func (j *Job) MarkFailed(errMsg string) {
	j.Error = errMsg
	j.RetryCount++
	j.WorkerID = ""
	if j.RetryCount < j.MaxRetries {
		j.Status = JobStatusRetrying
		j.ScheduledAt = time.Now().Add(Backoff(j.RetryCount))
		return
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
}

// MarkFailedTerminal fails the job without retry accounting (domain errors,
// dispatch failures, shutdown, stuck-job reclamation).
func (j *Job) MarkFailedTerminal(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.CompletedAt = &now
	j.WorkerID = ""
}

// ResetForRetry prepares a terminally failed job for a fresh run.
func (j *Job) ResetForRetry() {
	j.Status = JobStatusQueued
	j.RetryCount = 0
	j.Error = ""
	j.Progress = 0
	j.StartedAt = nil
	j.CompletedAt = nil
	j.WorkerID = ""
	j.ActualDuration = 0
	j.ScheduledAt = time.Now()
}
