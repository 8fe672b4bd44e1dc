package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeQuality_Scoring(t *testing.T) {
	tests := []struct {
		name  string
		info  MediaInfo
		score int
	}{
		{
			name:  "4k high bitrate high fps",
			info:  MediaInfo{Height: 2160, Bitrate: 16_000_000, FrameRate: 60},
			score: 100,
		},
		{
			name:  "1080p 5mbps 30fps",
			info:  MediaInfo{Height: 1080, Bitrate: 5_000_000, FrameRate: 30},
			score: 35 + 30 + 20,
		},
		{
			name:  "720p 2.8mbps 24fps",
			info:  MediaInfo{Height: 720, Bitrate: 2_800_000, FrameRate: 24},
			score: 28 + 22 + 15,
		},
		{
			name:  "480p 1.4mbps 30fps",
			info:  MediaInfo{Height: 480, Bitrate: 1_400_000, FrameRate: 30},
			score: 18 + 14 + 20,
		},
		{
			name:  "low everything",
			info:  MediaInfo{Height: 240, Bitrate: 400_000, FrameRate: 15},
			score: 8 + 6 + 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := AnalyzeQuality(tt.info)
			assert.Equal(t, tt.score, report.Score)
		})
	}
}

func TestAnalyzeQuality_Recommendations(t *testing.T) {
	report := AnalyzeQuality(MediaInfo{Height: 480, Bitrate: 900_000, FrameRate: 15})
	assert.Len(t, report.Recommendations, 3)

	report = AnalyzeQuality(MediaInfo{Height: 1080, Bitrate: 8_000_000, FrameRate: 30})
	assert.Empty(t, report.Recommendations)
}
