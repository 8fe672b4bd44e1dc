package domain

import "fmt"

type Quality string

const (
	Quality360p  Quality = "360p"
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality1440p Quality = "1440p"
	Quality2160p Quality = "2160p"
)

type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMKV  Format = "mkv"
)

// EncodingSettings is the resolved recipe handed to the transcoder.
type EncodingSettings struct {
	Width        int
	Height       int
	VideoBitrate string
	CRF          int
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string
	Container    Format
}

type qualityProfile struct {
	width, height int
	bitrate       string
	crf           int
}

var qualityProfiles = map[Quality]qualityProfile{
	Quality360p:  {640, 360, "800k", 28},
	Quality480p:  {854, 480, "1400k", 26},
	Quality720p:  {1280, 720, "2800k", 24},
	Quality1080p: {1920, 1080, "5000k", 23},
	Quality1440p: {2560, 1440, "9000k", 22},
	Quality2160p: {3840, 2160, "16000k", 21},
}

type formatProfile struct {
	videoCodec string
	audioCodec string
}

var formatProfiles = map[Format]formatProfile{
	FormatMP4:  {"libx264", "aac"},
	FormatWebM: {"libvpx-vp9", "libopus"},
	FormatMKV:  {"libx265", "aac"},
}

// SettingsFor resolves a quality/format pair into concrete encoder settings.
// Unknown values are an ErrInvalidParameters domain error.
func SettingsFor(quality Quality, format Format) (EncodingSettings, error) {
	qp, ok := qualityProfiles[quality]
	if !ok {
		return EncodingSettings{}, fmt.Errorf("%w: unknown quality %q", ErrInvalidParameters, quality)
	}
	fp, ok := formatProfiles[format]
	if !ok {
		return EncodingSettings{}, fmt.Errorf("%w: unknown format %q", ErrInvalidParameters, format)
	}
	return EncodingSettings{
		Width:        qp.width,
		Height:       qp.height,
		VideoBitrate: qp.bitrate,
		CRF:          qp.crf,
		VideoCodec:   fp.videoCodec,
		AudioCodec:   fp.audioCodec,
		AudioBitrate: "128k",
		Container:    format,
	}, nil
}
