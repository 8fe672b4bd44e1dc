package service

import "sync"

// CancelRegistry is the cooperative-cancellation signal set, keyed by job
// id. It has its own lock, separate from job-status locking, so a worker
// polling for cancellation never contends with completion transitions.
type CancelRegistry struct {
	mu        sync.Mutex
	requested map[string]struct{}
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{
		requested: make(map[string]struct{}),
	}
}

// Request marks a job for cancellation. The worker observes it on its next
// check; there is no hard preemption.
func (r *CancelRegistry) Request(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested[jobID] = struct{}{}
}

func (r *CancelRegistry) Cancelled(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.requested[jobID]
	return ok
}

// Clear removes the signal once the job has reached a terminal state.
func (r *CancelRegistry) Clear(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requested, jobID)
}
