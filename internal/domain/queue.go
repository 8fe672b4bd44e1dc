package domain

type QueueStatus string

const (
	QueueStatusActive      QueueStatus = "active"
	QueueStatusPaused      QueueStatus = "paused"
	QueueStatusMaintenance QueueStatus = "maintenance"
)

// Queue lane names provisioned at startup.
const (
	QueueHighPriority   = "high-priority"
	QueueNormalPriority = "normal-priority"
	QueueThumbnail      = "thumbnail-generation"
	QueueLowPriority    = "low-priority"
)

type Queue struct {
	Name          string      `json:"name"`
	Priority      int         `json:"priority"`
	MaxConcurrent int         `json:"max_concurrent"`
	Active        int         `json:"active"`
	Status        QueueStatus `json:"status"`
}

// AvailableSlots returns free capacity, never negative.
func (q *Queue) AvailableSlots() int {
	slots := q.MaxConcurrent - q.Active
	if slots < 0 {
		return 0
	}
	return slots
}

// DefaultQueues returns the lanes provisioned on first startup.
func DefaultQueues() []*Queue {
	return []*Queue{
		{Name: QueueHighPriority, Priority: 3, MaxConcurrent: 2, Status: QueueStatusActive},
		{Name: QueueNormalPriority, Priority: 2, MaxConcurrent: 3, Status: QueueStatusActive},
		{Name: QueueThumbnail, Priority: 1, MaxConcurrent: 4, Status: QueueStatusActive},
		{Name: QueueLowPriority, Priority: 0, MaxConcurrent: 2, Status: QueueStatusActive},
	}
}

// RouteQueue maps a job to its lane. The routing is pure and deterministic;
// the queue manager, scheduler and monitoring all derive lane membership
// from this single function.
func RouteQueue(job *Job) string {
	switch {
	case job.Priority >= PriorityHigh:
		return QueueHighPriority
	case job.Priority == PriorityNormal &&
		(job.Type == JobTypeThumbnail || job.Type == JobTypePreview):
		return QueueThumbnail
	case job.Priority == PriorityNormal:
		return QueueNormalPriority
	default:
		return QueueLowPriority
	}
}
