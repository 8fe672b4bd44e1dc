package port

import (
	"context"

	"github.com/mlagae/vidpipe/internal/domain"
)

// TranscodeResult describes one finished encode.
type TranscodeResult struct {
	OutputPath string
	FileSize   int64
	Width      int
	Height     int
	Bitrate    int64
	Codec      string
}

// ProgressFunc receives transcoder progress in the 0-100 range.
type ProgressFunc func(pct float64)

type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, settings domain.EncodingSettings, onProgress ProgressFunc) (*TranscodeResult, error)
	GenerateHLS(ctx context.Context, inputPaths []string, outputDir string) error
	GenerateDASH(ctx context.Context, inputPaths []string, outputDir string) error
}

type Thumbnailer interface {
	// GenerateThumbnails captures frames at the given offsets (seconds).
	// It returns the paths that succeeded; the error is non-nil only when
	// every offset failed.
	GenerateThumbnails(ctx context.Context, inputPath, ownerID string, offsets []float64) ([]string, error)
	GeneratePreview(ctx context.Context, inputPath, ownerID string, durationSeconds float64) (string, error)
}

type MetadataExtractor interface {
	Extract(ctx context.Context, inputPath string) (*domain.MediaInfo, error)
}
