package domain

import (
	"time"

	"github.com/google/uuid"
)

type VariantStatus string

const (
	VariantStatusPending    VariantStatus = "pending"
	VariantStatusProcessing VariantStatus = "processing"
	VariantStatusCompleted  VariantStatus = "completed"
	VariantStatusFailed     VariantStatus = "failed"
)

// Variant is one encoded quality/format output of a video.
type Variant struct {
	ID           string        `json:"id"`
	VideoID      string        `json:"video_id"`
	Quality      Quality       `json:"quality"`
	Format       Format        `json:"format"`
	Status       VariantStatus `json:"status"`
	Path         string        `json:"path,omitempty"`
	FileSize     int64         `json:"file_size"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Bitrate      int64         `json:"bitrate"`
	Progress     float64       `json:"progress"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func NewVariant(videoID string, quality Quality, format Format) *Variant {
	return &Variant{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		Quality:   quality,
		Format:    format,
		Status:    VariantStatusPending,
		CreatedAt: time.Now(),
	}
}
