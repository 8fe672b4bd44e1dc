package domain

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusUploaded   VideoStatus = "uploaded"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
	VideoStatusArchived   VideoStatus = "archived"
)

type Video struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	OriginalPath  string      `json:"original_path"`
	Status        VideoStatus `json:"status"`
	ProcessingPct float64     `json:"processing_pct"`
	ProcessingErr string      `json:"processing_error,omitempty"`

	// Summary metadata, filled in by metadata extraction.
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameRate       float64 `json:"frame_rate"`
	Codec           string  `json:"codec"`
	Bitrate         int64   `json:"bitrate"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewVideo(title, originalPath string) *Video {
	now := time.Now()
	return &Video{
		ID:           uuid.NewString(),
		Title:        title,
		OriginalPath: originalPath,
		Status:       VideoStatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (v *Video) ApplyMetadata(info MediaInfo) {
	v.DurationSeconds = info.DurationSeconds
	v.Width = info.Width
	v.Height = info.Height
	v.FrameRate = info.FrameRate
	v.Codec = info.Codec
	v.Bitrate = info.Bitrate
}
