// Package memory provides an in-memory Repository used by tests and the
// memory storage mode. Entities are copied on the way in and out so
// callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/port"
)

type Store struct {
	mu       sync.RWMutex
	videos   map[string]*domain.Video
	jobs     map[string]*domain.Job
	variants map[string]*domain.Variant
	queues   map[string]*domain.Queue
}

func NewStore() *Store {
	return &Store{
		videos:   make(map[string]*domain.Video),
		jobs:     make(map[string]*domain.Job),
		variants: make(map[string]*domain.Variant),
		queues:   make(map[string]*domain.Queue),
	}
}

func copyVideo(v *domain.Video) *domain.Video {
	c := *v
	return &c
}

func copyJob(j *domain.Job) *domain.Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Params != nil {
		c.Params = make(map[string]any, len(j.Params))
		for k, v := range j.Params {
			c.Params[k] = v
		}
	}
	if j.Result != nil {
		c.Result = make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			c.Result[k] = v
		}
	}
	return &c
}

func copyVariant(v *domain.Variant) *domain.Variant {
	c := *v
	return &c
}

func copyQueue(q *domain.Queue) *domain.Queue {
	c := *q
	return &c
}

// Videos

func (s *Store) SaveVideo(_ context.Context, v *domain.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = copyVideo(v)
	return nil
}

func (s *Store) GetVideo(_ context.Context, id string) (*domain.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyVideo(v), nil
}

func (s *Store) UpdateVideo(_ context.Context, v *domain.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; !ok {
		return domain.ErrNotFound
	}
	v.UpdatedAt = time.Now()
	s.videos[v.ID] = copyVideo(v)
	return nil
}

func (s *Store) ListVideosByStatus(_ context.Context, status domain.VideoStatus) ([]*domain.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Video
	for _, v := range s.videos {
		if v.Status == status {
			out = append(out, copyVideo(v))
		}
	}
	return out, nil
}

// Jobs

func (s *Store) SaveJob(_ context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

func (s *Store) UpdateJob(_ context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return domain.ErrNotFound
	}
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *Store) UpdateJobProgress(_ context.Context, id string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Progress = progress
	return nil
}

func (s *Store) ListJobs(_ context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, copyJob(j))
	}
	return out, nil
}

func (s *Store) ListJobsByVideo(_ context.Context, videoID string) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.VideoID == videoID {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (s *Store) ListQueuedJobs(_ context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusQueued {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Priority != out[k].Priority {
			return out[i].Priority > out[k].Priority
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListProcessingStartedBefore(_ context.Context, cutoff time.Time) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			out = append(out, copyJob(j))
		}
	}
	return out, nil
}

func (s *Store) ListRetryingDue(_ context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusRetrying && !j.ScheduledAt.After(now) {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledAt.Before(out[k].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.Status == domain.JobStatusCompleted && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// Variants

func (s *Store) SaveVariant(_ context.Context, v *domain.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = copyVariant(v)
	return nil
}

func (s *Store) UpdateVariant(_ context.Context, v *domain.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.variants[v.ID]; !ok {
		return domain.ErrNotFound
	}
	s.variants[v.ID] = copyVariant(v)
	return nil
}

func (s *Store) GetVariantByVideoQualityFormat(_ context.Context, videoID string, quality domain.Quality, format domain.Format) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.variants {
		if v.VideoID == videoID && v.Quality == quality && v.Format == format {
			return copyVariant(v), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListVariantsByVideo(_ context.Context, videoID string) ([]*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Variant
	for _, v := range s.variants {
		if v.VideoID == videoID {
			out = append(out, copyVariant(v))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

// Queues

func (s *Store) SaveQueue(_ context.Context, q *domain.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[q.Name] = copyQueue(q)
	return nil
}

func (s *Store) GetQueue(_ context.Context, name string) (*domain.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyQueue(q), nil
}

func (s *Store) ListQueues(_ context.Context) ([]*domain.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Queue, 0, len(s.queues))
	for _, q := range s.queues {
		out = append(out, copyQueue(q))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Priority > out[k].Priority })
	return out, nil
}

func (s *Store) UpdateQueue(_ context.Context, q *domain.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[q.Name]; !ok {
		return domain.ErrNotFound
	}
	s.queues[q.Name] = copyQueue(q)
	return nil
}

var _ port.Repository = (*Store)(nil)
