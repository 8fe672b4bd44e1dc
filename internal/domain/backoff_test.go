package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 30 * time.Second},
		{2, 120 * time.Second},
		{3, 480 * time.Second},
		{4, 30 * time.Minute},
		{5, 30 * time.Minute},
		{10, 30 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.retryCount), "retryCount=%d", tt.retryCount)
	}
}

func TestBackoff_ClampsBelowOne(t *testing.T) {
	assert.Equal(t, 30*time.Second, Backoff(0))
	assert.Equal(t, 30*time.Second, Backoff(-3))
}
