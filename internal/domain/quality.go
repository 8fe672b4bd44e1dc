package domain

// QualityReport is the output of a quality analysis job. The score is a
// deterministic function of already-extracted metadata.
type QualityReport struct {
	Score           int      `json:"score"`
	Recommendations []string `json:"recommendations"`
}

// AnalyzeQuality scores media on a 0-100 scale:
// resolution contributes up to 40 points, bitrate up to 35, frame rate up
// to 25.
func AnalyzeQuality(info MediaInfo) QualityReport {
	score := resolutionScore(info.Height) + bitrateScore(info.Bitrate) + frameRateScore(info.FrameRate)

	var recs []string
	if info.Height < 720 {
		recs = append(recs, "source resolution is below 720p; re-upload at a higher resolution if available")
	}
	if info.Bitrate > 0 && info.Bitrate < 2_000_000 {
		recs = append(recs, "bitrate is below 2 Mbps; visible compression artifacts are likely")
	}
	if info.FrameRate > 0 && info.FrameRate < 24 {
		recs = append(recs, "frame rate is below 24 fps; motion will appear choppy")
	}

	return QualityReport{Score: score, Recommendations: recs}
}

func resolutionScore(height int) int {
	switch {
	case height >= 2160:
		return 40
	case height >= 1080:
		return 35
	case height >= 720:
		return 28
	case height >= 480:
		return 18
	default:
		return 8
	}
}

func bitrateScore(bitrate int64) int {
	switch {
	case bitrate >= 8_000_000:
		return 35
	case bitrate >= 4_000_000:
		return 30
	case bitrate >= 2_000_000:
		return 22
	case bitrate >= 1_000_000:
		return 14
	default:
		return 6
	}
}

func frameRateScore(fps float64) int {
	switch {
	case fps >= 50:
		return 25
	case fps >= 30:
		return 20
	case fps >= 24:
		return 15
	default:
		return 8
	}
}
