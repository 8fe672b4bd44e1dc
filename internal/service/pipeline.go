package service

import (
	"context"
	"fmt"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/port"
)

// ProcessingOptions selects the work fanned out for one video.
type ProcessingOptions struct {
	Qualities         []domain.Quality `json:"qualities"`
	Formats           []domain.Format  `json:"formats"`
	Priority          domain.Priority  `json:"priority"`
	Thumbnails        bool             `json:"thumbnails"`
	Preview           bool             `json:"preview"`
	AdaptiveStreaming bool             `json:"adaptive_streaming"`
	QualityAnalysis   bool             `json:"quality_analysis"`
}

// DefaultProcessingOptions is the standard ladder for a fresh upload.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		Qualities:  []domain.Quality{domain.Quality480p, domain.Quality720p, domain.Quality1080p},
		Formats:    []domain.Format{domain.FormatMP4},
		Priority:   domain.PriorityNormal,
		Thumbnails: true,
		Preview:    true,
	}
}

// VideoReport is the aggregate status consumed by the HTTP layer.
type VideoReport struct {
	Video    *domain.Video     `json:"video"`
	Jobs     []*domain.Job     `json:"jobs"`
	Variants []*domain.Variant `json:"variants"`
}

// Pipeline is the produced interface of the processing core: fan-out of
// jobs for a video, aggregate status, and video-wide cancellation.
type Pipeline struct {
	repo    port.Repository
	manager *QueueManager
}

func NewPipeline(repo port.Repository, manager *QueueManager) *Pipeline {
	return &Pipeline{repo: repo, manager: manager}
}

// RegisterVideo records a media asset that upload handling (an external
// concern) has already placed on disk.
func (p *Pipeline) RegisterVideo(ctx context.Context, title, originalPath string) (*domain.Video, error) {
	if originalPath == "" {
		return nil, fmt.Errorf("%w: original path is required", domain.ErrInvalidParameters)
	}
	video := domain.NewVideo(title, originalPath)
	if err := p.repo.SaveVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("save video: %w", err)
	}
	return video, nil
}

// EnqueueVideo fans out the processing jobs for a video and pre-creates
// its pending variants. Jobs are queued only; admission happens on the
// next scheduling tick.
func (p *Pipeline) EnqueueVideo(ctx context.Context, videoID string, opts ProcessingOptions) ([]*domain.Job, error) {
	video, err := p.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrVideoNotFound, videoID)
	}

	if len(opts.Qualities) == 0 {
		opts.Qualities = DefaultProcessingOptions().Qualities
	}
	if len(opts.Formats) == 0 {
		opts.Formats = DefaultProcessingOptions().Formats
	}

	var jobs []*domain.Job

	// Metadata first: thumbnails and previews read the stored duration.
	jobs = append(jobs, domain.NewJob(video.ID, domain.JobTypeMetadataExtraction, domain.PriorityHigh, nil))

	for _, quality := range opts.Qualities {
		for _, format := range opts.Formats {
			if _, err := domain.SettingsFor(quality, format); err != nil {
				return nil, err
			}
			if _, err := p.repo.GetVariantByVideoQualityFormat(ctx, video.ID, quality, format); err != nil {
				variant := domain.NewVariant(video.ID, quality, format)
				if err := p.repo.SaveVariant(ctx, variant); err != nil {
					return nil, fmt.Errorf("save variant: %w", err)
				}
			}
			jobs = append(jobs, domain.NewJob(video.ID, domain.JobTypeTranscode, opts.Priority, map[string]any{
				"quality": string(quality),
				"format":  string(format),
			}))
		}
	}

	if opts.Thumbnails {
		jobs = append(jobs, domain.NewJob(video.ID, domain.JobTypeThumbnail, opts.Priority, nil))
	}
	if opts.Preview {
		jobs = append(jobs, domain.NewJob(video.ID, domain.JobTypePreview, opts.Priority, nil))
	}
	if opts.AdaptiveStreaming {
		jobs = append(jobs, domain.NewJob(video.ID, domain.JobTypeAdaptiveStreaming, domain.PriorityLow, nil))
	}
	if opts.QualityAnalysis {
		jobs = append(jobs, domain.NewJob(video.ID, domain.JobTypeQualityAnalysis, domain.PriorityLow, nil))
	}

	for _, job := range jobs {
		if err := p.manager.AddJob(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue %s job: %w", job.Type, err)
		}
	}

	logger.WithField("video_id", video.ID).Infof("enqueued %d jobs", len(jobs))
	return jobs, nil
}

// GetStatus returns the aggregate view of a video with its jobs and
// variants.
func (p *Pipeline) GetStatus(ctx context.Context, videoID string) (*VideoReport, error) {
	video, err := p.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrVideoNotFound, videoID)
	}
	jobs, err := p.repo.ListJobsByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	variants, err := p.repo.ListVariantsByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return &VideoReport{Video: video, Jobs: jobs, Variants: variants}, nil
}

// CancelVideo cancels every non-terminal job belonging to the video.
func (p *Pipeline) CancelVideo(ctx context.Context, videoID string) error {
	jobs, err := p.repo.ListJobsByVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	for _, job := range jobs {
		if job.Status.IsTerminal() {
			continue
		}
		if err := p.manager.CancelJob(ctx, job.ID); err != nil {
			logger.WithError(err).WithField("job_id", job.ID).Warn("failed to cancel job")
		}
	}
	return nil
}
