package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/port"
)

// thumbnailOffsets are percentage-of-duration capture points.
var thumbnailOffsets = []float64{10, 25, 50, 75, 90}

// Progress band reserved for the transcoder itself; head and tail cover
// setup and teardown.
const (
	transcodeBandLow  = 5.0
	transcodeBandHigh = 95.0
)

const previewMaxSeconds = 10.0

// Worker executes exactly one job to completion, dispatching on its type
// to the external media capabilities. Every path resolves to an explicit
// result or error; cancellation surfaces as domain.ErrJobCancelled.
type Worker struct {
	repo       port.Repository
	transcoder port.Transcoder
	thumbs     port.Thumbnailer
	meta       port.MetadataExtractor
	cancels    *CancelRegistry
	bus        *EventBus
	dataDir    string
}

func NewWorker(
	repo port.Repository,
	transcoder port.Transcoder,
	thumbs port.Thumbnailer,
	meta port.MetadataExtractor,
	cancels *CancelRegistry,
	bus *EventBus,
	dataDir string,
) *Worker {
	return &Worker{
		repo:       repo,
		transcoder: transcoder,
		thumbs:     thumbs,
		meta:       meta,
		cancels:    cancels,
		bus:        bus,
		dataDir:    dataDir,
	}
}

func (w *Worker) Execute(ctx context.Context, job *domain.Job) (map[string]any, error) {
	if err := w.checkCancel(ctx, job.ID); err != nil {
		return nil, err
	}

	video, err := w.repo.GetVideo(ctx, job.VideoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrVideoNotFound, job.VideoID)
	}

	switch job.Type {
	case domain.JobTypeTranscode:
		return w.executeTranscode(ctx, job, video)
	case domain.JobTypeThumbnail:
		return w.executeThumbnails(ctx, job, video)
	case domain.JobTypePreview:
		return w.executePreview(ctx, job, video)
	case domain.JobTypeMetadataExtraction:
		return w.executeMetadata(ctx, job, video)
	case domain.JobTypeQualityAnalysis:
		return w.executeQualityAnalysis(ctx, job, video)
	case domain.JobTypeAdaptiveStreaming:
		return w.executeAdaptiveStreaming(ctx, job, video)
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidParameters, job.Type)
	}
}

// checkCancel is polled before and between capability calls.
func (w *Worker) checkCancel(ctx context.Context, jobID string) error {
	if w.cancels.Cancelled(jobID) {
		return domain.ErrJobCancelled
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", domain.ErrJobCancelled, ctx.Err())
	}
	return nil
}

// reportProgress persists job progress and notifies subscribers. Progress
// only moves forward; late or out-of-order reports are dropped.
func (w *Worker) reportProgress(ctx context.Context, job *domain.Job, pct float64) {
	if pct <= job.Progress {
		return
	}
	if pct > 100 {
		pct = 100
	}
	job.Progress = pct
	if err := w.repo.UpdateJobProgress(ctx, job.ID, pct); err != nil {
		logger.WithError(err).WithField("job_id", job.ID).Warn("failed to persist job progress")
	}
	w.bus.Publish(job.VideoID, Event{
		Type:     "job",
		VideoID:  job.VideoID,
		JobID:    job.ID,
		Status:   string(domain.JobStatusProcessing),
		Progress: pct,
	})
}

func (w *Worker) executeTranscode(ctx context.Context, job *domain.Job, video *domain.Video) (map[string]any, error) {
	quality := domain.Quality(job.StringParam("quality"))
	format := domain.Format(job.StringParam("format"))
	if quality == "" || format == "" {
		return nil, fmt.Errorf("%w: transcode requires quality and format", domain.ErrInvalidParameters)
	}
	settings, err := domain.SettingsFor(quality, format)
	if err != nil {
		return nil, err
	}

	variant, err := w.repo.GetVariantByVideoQualityFormat(ctx, video.ID, quality, format)
	if err != nil {
		return nil, fmt.Errorf("load variant %s/%s: %w", quality, format, err)
	}
	variant.Status = domain.VariantStatusProcessing
	if err := w.repo.UpdateVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("mark variant processing: %w", err)
	}

	outDir := filepath.Join(w.dataDir, "variants", video.ID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create variant directory: %w", err)
	}
	outputPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.%s", video.ID, quality, format))

	w.reportProgress(ctx, job, transcodeBandLow)

	result, err := w.transcoder.Transcode(ctx, video.OriginalPath, outputPath, settings, func(pct float64) {
		// Rescale the transcoder's 0-100 into the job's band.
		w.reportProgress(ctx, job, transcodeBandLow+pct*(transcodeBandHigh-transcodeBandLow)/100)
	})
	if cerr := w.checkCancel(ctx, job.ID); cerr != nil {
		w.failVariant(ctx, variant, "cancelled")
		return nil, cerr
	}
	if err != nil {
		w.failVariant(ctx, variant, err.Error())
		return nil, fmt.Errorf("transcode %s/%s: %w", quality, format, err)
	}

	variant.Status = domain.VariantStatusCompleted
	variant.Path = result.OutputPath
	variant.FileSize = result.FileSize
	variant.Width = result.Width
	variant.Height = result.Height
	variant.Bitrate = result.Bitrate
	variant.Progress = 100
	if err := w.repo.UpdateVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("mark variant completed: %w", err)
	}

	w.reportProgress(ctx, job, transcodeBandHigh)

	return map[string]any{
		"output_path": result.OutputPath,
		"file_size":   result.FileSize,
		"width":       result.Width,
		"height":      result.Height,
		"bitrate":     result.Bitrate,
		"codec":       result.Codec,
	}, nil
}

func (w *Worker) failVariant(ctx context.Context, variant *domain.Variant, msg string) {
	variant.Status = domain.VariantStatusFailed
	variant.ErrorMessage = msg
	if err := w.repo.UpdateVariant(ctx, variant); err != nil {
		logger.WithError(err).WithField("variant_id", variant.ID).Warn("failed to mark variant failed")
	}
}

func (w *Worker) executeThumbnails(ctx context.Context, job *domain.Job, video *domain.Video) (map[string]any, error) {
	duration, err := w.videoDuration(ctx, video)
	if err != nil {
		return nil, err
	}

	offsets := make([]float64, len(thumbnailOffsets))
	for i, pct := range thumbnailOffsets {
		offsets[i] = duration * pct / 100
	}

	w.reportProgress(ctx, job, 10)
	if err := w.checkCancel(ctx, job.ID); err != nil {
		return nil, err
	}

	paths, err := w.thumbs.GenerateThumbnails(ctx, video.OriginalPath, video.ID, offsets)
	if err != nil {
		return nil, fmt.Errorf("generate thumbnails: %w", err)
	}

	result := map[string]any{
		"thumbnails": paths,
		"requested":  len(offsets),
		"generated":  len(paths),
	}
	// Partial failures are tolerated; note them without failing the job.
	if len(paths) < len(offsets) {
		result["note"] = fmt.Sprintf("%d of %d thumbnails failed", len(offsets)-len(paths), len(offsets))
	}
	return result, nil
}

func (w *Worker) executePreview(ctx context.Context, job *domain.Job, video *domain.Video) (map[string]any, error) {
	duration, err := w.videoDuration(ctx, video)
	if err != nil {
		return nil, err
	}
	previewSeconds := previewMaxSeconds
	if duration < previewSeconds {
		previewSeconds = duration
	}

	w.reportProgress(ctx, job, 10)
	if err := w.checkCancel(ctx, job.ID); err != nil {
		return nil, err
	}

	path, err := w.thumbs.GeneratePreview(ctx, video.OriginalPath, video.ID, previewSeconds)
	if err != nil {
		return nil, fmt.Errorf("generate preview: %w", err)
	}
	return map[string]any{
		"preview_path":     path,
		"duration_seconds": previewSeconds,
	}, nil
}

// videoDuration prefers the stored summary and falls back to a fresh probe.
func (w *Worker) videoDuration(ctx context.Context, video *domain.Video) (float64, error) {
	if video.DurationSeconds > 0 {
		return video.DurationSeconds, nil
	}
	info, err := w.meta.Extract(ctx, video.OriginalPath)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	return info.DurationSeconds, nil
}

func (w *Worker) executeMetadata(ctx context.Context, job *domain.Job, video *domain.Video) (map[string]any, error) {
	w.reportProgress(ctx, job, 20)

	info, err := w.meta.Extract(ctx, video.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("extract metadata: %w", err)
	}
	if err := w.checkCancel(ctx, job.ID); err != nil {
		return nil, err
	}

	video.ApplyMetadata(*info)
	if err := w.repo.UpdateVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("update video metadata: %w", err)
	}

	return map[string]any{
		"duration_seconds": info.DurationSeconds,
		"width":            info.Width,
		"height":           info.Height,
		"frame_rate":       info.FrameRate,
		"codec":            info.Codec,
		"bitrate":          info.Bitrate,
	}, nil
}

func (w *Worker) executeQualityAnalysis(ctx context.Context, job *domain.Job, video *domain.Video) (map[string]any, error) {
	if video.Width == 0 || video.Height == 0 {
		return nil, fmt.Errorf("%w: quality analysis requires extracted metadata", domain.ErrInvalidParameters)
	}

	w.reportProgress(ctx, job, 50)

	report := domain.AnalyzeQuality(domain.MediaInfo{
		DurationSeconds: video.DurationSeconds,
		Width:           video.Width,
		Height:          video.Height,
		FrameRate:       video.FrameRate,
		Codec:           video.Codec,
		Bitrate:         video.Bitrate,
	})

	return map[string]any{
		"score":           report.Score,
		"recommendations": report.Recommendations,
	}, nil
}

func (w *Worker) executeAdaptiveStreaming(ctx context.Context, job *domain.Job, video *domain.Video) (map[string]any, error) {
	variants, err := w.repo.ListVariantsByVideo(ctx, video.ID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}

	var inputs []string
	for _, v := range variants {
		if v.Status == domain.VariantStatusCompleted && v.Format == domain.FormatMP4 {
			inputs = append(inputs, v.Path)
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: adaptive streaming needs at least one completed mp4 variant", domain.ErrNoEligibleVariants)
	}

	outDir := filepath.Join(w.dataDir, "streaming", video.ID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create streaming directory: %w", err)
	}

	w.reportProgress(ctx, job, 10)
	if err := w.checkCancel(ctx, job.ID); err != nil {
		return nil, err
	}

	hlsDir := filepath.Join(outDir, "hls")
	if err := w.transcoder.GenerateHLS(ctx, inputs, hlsDir); err != nil {
		return nil, fmt.Errorf("generate hls: %w", err)
	}
	w.reportProgress(ctx, job, 50)
	if err := w.checkCancel(ctx, job.ID); err != nil {
		return nil, err
	}

	dashDir := filepath.Join(outDir, "dash")
	if err := w.transcoder.GenerateDASH(ctx, inputs, dashDir); err != nil {
		return nil, fmt.Errorf("generate dash: %w", err)
	}
	w.reportProgress(ctx, job, 95)

	return map[string]any{
		"hls_path":   filepath.Join(hlsDir, "master.m3u8"),
		"dash_path":  filepath.Join(dashDir, "manifest.mpd"),
		"renditions": len(inputs),
	}, nil
}
