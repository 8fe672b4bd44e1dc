package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mlagae/vidpipe/internal/port"
)

// parseProgress reads ffmpeg's -progress key=value stream and reports
// completion percentages. out_time_us carries the encoded position in
// microseconds; older builds emit only out_time_ms (also microseconds,
// despite the name).
func parseProgress(r io.Reader, totalSeconds float64, onProgress port.ProgressFunc) {
	if onProgress == nil || totalSeconds <= 0 {
		_, _ = io.Copy(io.Discard, r)
		return
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				continue
			}
			pct := float64(us) / 1e6 / totalSeconds * 100
			if pct > 100 {
				pct = 100
			}
			onProgress(pct)
		case "progress":
			if strings.TrimSpace(value) == "end" {
				onProgress(100)
			}
		}
	}
}
