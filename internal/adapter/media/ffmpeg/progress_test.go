package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgress(t *testing.T) {
	stream := strings.Join([]string{
		"frame=100",
		"fps=30.0",
		"out_time_us=25000000",
		"progress=continue",
		"out_time_us=50000000",
		"progress=continue",
		"out_time_us=100000000",
		"progress=end",
	}, "\n")

	var got []float64
	parseProgress(strings.NewReader(stream), 100, func(pct float64) {
		got = append(got, pct)
	})

	require.Len(t, got, 4)
	assert.InDelta(t, 25, got[0], 0.001)
	assert.InDelta(t, 50, got[1], 0.001)
	assert.InDelta(t, 100, got[2], 0.001)
	assert.Equal(t, float64(100), got[3], "progress=end always reports completion")
}

func TestParseProgress_OutTimeMsIsMicroseconds(t *testing.T) {
	// Despite the name, out_time_ms carries microseconds.
	var got []float64
	parseProgress(strings.NewReader("out_time_ms=30000000\n"), 60, func(pct float64) {
		got = append(got, pct)
	})
	require.Len(t, got, 1)
	assert.InDelta(t, 50, got[0], 0.001)
}

func TestParseProgress_ClampsOvershoot(t *testing.T) {
	var got []float64
	parseProgress(strings.NewReader("out_time_us=120000000\n"), 100, func(pct float64) {
		got = append(got, pct)
	})
	require.Len(t, got, 1)
	assert.Equal(t, float64(100), got[0])
}

func TestParseProgress_IgnoresMalformedLines(t *testing.T) {
	stream := strings.Join([]string{
		"garbage",
		"out_time_us=not-a-number",
		"out_time_us=10000000",
	}, "\n")

	var got []float64
	parseProgress(strings.NewReader(stream), 100, func(pct float64) {
		got = append(got, pct)
	})
	require.Len(t, got, 1)
	assert.InDelta(t, 10, got[0], 0.001)
}

func TestParseProgress_NoDuration(t *testing.T) {
	called := false
	parseProgress(strings.NewReader("out_time_us=10000000\n"), 0, func(float64) {
		called = true
	})
	assert.False(t, called, "without a known duration nothing is reported")
}
