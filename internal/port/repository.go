package port

import (
	"context"
	"time"

	"github.com/mlagae/vidpipe/internal/domain"
)

// Repository is the durable store for videos, jobs, variants and queue
// lanes. Implementations must serialize writes to a single row; callers
// never hold references shared with the store.
type Repository interface {
	// Videos
	SaveVideo(ctx context.Context, v *domain.Video) error
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	UpdateVideo(ctx context.Context, v *domain.Video) error
	ListVideosByStatus(ctx context.Context, status domain.VideoStatus) ([]*domain.Video, error)

	// Jobs
	SaveJob(ctx context.Context, j *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	UpdateJob(ctx context.Context, j *domain.Job) error
	UpdateJobProgress(ctx context.Context, id string, progress float64) error
	ListJobs(ctx context.Context) ([]*domain.Job, error)
	ListJobsByVideo(ctx context.Context, videoID string) ([]*domain.Job, error)
	// ListQueuedJobs returns queued jobs ordered by priority descending,
	// creation time ascending.
	ListQueuedJobs(ctx context.Context) ([]*domain.Job, error)
	ListProcessingStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Job, error)
	ListRetryingDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Variants
	SaveVariant(ctx context.Context, v *domain.Variant) error
	UpdateVariant(ctx context.Context, v *domain.Variant) error
	GetVariantByVideoQualityFormat(ctx context.Context, videoID string, quality domain.Quality, format domain.Format) (*domain.Variant, error)
	ListVariantsByVideo(ctx context.Context, videoID string) ([]*domain.Variant, error)

	// Queue lanes
	SaveQueue(ctx context.Context, q *domain.Queue) error
	GetQueue(ctx context.Context, name string) (*domain.Queue, error)
	ListQueues(ctx context.Context) ([]*domain.Queue, error)
	UpdateQueue(ctx context.Context, q *domain.Queue) error
}
