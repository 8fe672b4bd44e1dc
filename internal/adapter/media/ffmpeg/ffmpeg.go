// Package ffmpeg implements the media capabilities by shelling out to
// ffmpeg and ffprobe.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/port"
)

type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) Transcode(ctx context.Context, inputPath, outputPath string, settings domain.EncodingSettings, onProgress port.ProgressFunc) (*port.TranscodeResult, error) {
	info, err := c.Extract(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("probe input: %w", err)
	}

	args := []string{
		"-i", inputPath,
		"-c:v", settings.VideoCodec,
		"-vf", fmt.Sprintf("scale=%d:%d", settings.Width, settings.Height),
		"-b:v", settings.VideoBitrate,
		"-crf", strconv.Itoa(settings.CRF),
		"-c:a", settings.AudioCodec,
		"-b:a", settings.AudioBitrate,
	}
	if settings.Container == domain.FormatMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", "-y", outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	parseProgress(stdout, info.DurationSeconds, onProgress)

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	out, err := c.Extract(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("probe output: %w", err)
	}
	var size int64
	if fi, err := os.Stat(outputPath); err == nil {
		size = fi.Size()
	}

	return &port.TranscodeResult{
		OutputPath: outputPath,
		FileSize:   size,
		Width:      out.Width,
		Height:     out.Height,
		Bitrate:    out.Bitrate,
		Codec:      out.Codec,
	}, nil
}

func (c *Client) GenerateHLS(ctx context.Context, inputPaths []string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create hls directory: %w", err)
	}

	// Renditions are stream copies, so packaging them in parallel is cheap.
	entries := make([]string, len(inputPaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, input := range inputPaths {
		g.Go(func() error {
			playlist := fmt.Sprintf("stream_%d.m3u8", i)
			args := []string{
				"-i", input,
				"-c", "copy",
				"-hls_time", "6",
				"-hls_playlist_type", "vod",
				"-hls_segment_filename", filepath.Join(outputDir, fmt.Sprintf("stream_%d_%%03d.ts", i)),
				"-y", filepath.Join(outputDir, playlist),
			}
			if err := exec.CommandContext(gctx, "ffmpeg", args...).Run(); err != nil {
				return fmt.Errorf("hls rendition %d: %w", i, err)
			}

			info, err := c.Extract(gctx, input)
			if err != nil {
				logger.WithError(err).WithField("input", input).Warn("failed to probe hls rendition")
				info = &domain.MediaInfo{}
			}
			entries[i] = fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n%s\n",
				info.Bitrate, info.Width, info.Height, playlist)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	master := "#EXTM3U\n#EXT-X-VERSION:3\n" + strings.Join(entries, "")
	return os.WriteFile(filepath.Join(outputDir, "master.m3u8"), []byte(master), 0644)
}

func (c *Client) GenerateDASH(ctx context.Context, inputPaths []string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create dash directory: %w", err)
	}

	var args []string
	for _, input := range inputPaths {
		args = append(args, "-i", input)
	}
	for i := range inputPaths {
		args = append(args, "-map", strconv.Itoa(i))
	}
	args = append(args,
		"-c", "copy",
		"-f", "dash",
		"-use_template", "1",
		"-use_timeline", "1",
		"-y", filepath.Join(outputDir, "manifest.mpd"),
	)
	if err := exec.CommandContext(ctx, "ffmpeg", args...).Run(); err != nil {
		return fmt.Errorf("dash manifest: %w", err)
	}
	return nil
}

func (c *Client) GenerateThumbnails(ctx context.Context, inputPath, ownerID string, offsets []float64) ([]string, error) {
	dir := filepath.Dir(inputPath)
	var paths []string
	var lastErr error

	for i, offset := range offsets {
		outputPath := filepath.Join(dir, fmt.Sprintf("%s_thumb_%d.jpg", ownerID, i))
		args := []string{
			"-ss", fmt.Sprintf("%.2f", offset),
			"-i", inputPath,
			"-vframes", "1",
			"-q:v", "2",
			"-y", outputPath,
		}
		if err := exec.CommandContext(ctx, "ffmpeg", args...).Run(); err != nil {
			lastErr = fmt.Errorf("thumbnail at %.2fs: %w", offset, err)
			logger.WithError(err).WithField("offset", offset).Warn("thumbnail capture failed")
			continue
		}
		paths = append(paths, outputPath)
	}

	if len(paths) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return paths, nil
}

func (c *Client) GeneratePreview(ctx context.Context, inputPath, ownerID string, durationSeconds float64) (string, error) {
	outputPath := filepath.Join(filepath.Dir(inputPath), ownerID+"_preview.mp4")
	args := []string{
		"-i", inputPath,
		"-t", fmt.Sprintf("%.2f", durationSeconds),
		"-vf", "scale=480:-2",
		"-c:v", "libx264",
		"-crf", "28",
		"-an",
		"-y", outputPath,
	}
	if err := exec.CommandContext(ctx, "ffmpeg", args...).Run(); err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	return outputPath, nil
}

type probeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

func (c *Client) Extract(ctx context.Context, inputPath string) (*domain.MediaInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	out, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &domain.MediaInfo{}
	info.DurationSeconds, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	info.Bitrate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			info.FrameRate = domain.ParseFrameRate(stream.RFrameRate)
			break
		}
	}
	return info, nil
}

var (
	_ port.Transcoder        = (*Client)(nil)
	_ port.Thumbnailer       = (*Client)(nil)
	_ port.MetadataExtractor = (*Client)(nil)
)
