package domain

import "fmt"

// MediaInfo is the probe summary produced by the metadata extractor.
type MediaInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameRate       float64 `json:"frame_rate"`
	Codec           string  `json:"codec"`
	Bitrate         int64   `json:"bitrate"`
}

// ParseFrameRate converts an ffprobe-style rational ("30000/1001") to fps.
func ParseFrameRate(fraction string) float64 {
	if fraction == "" || fraction == "0/0" {
		return 0
	}
	var num, den int
	if _, err := fmt.Sscanf(fraction, "%d/%d", &num, &den); err == nil && den > 0 {
		return float64(num) / float64(den)
	}
	return 0
}
