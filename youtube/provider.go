// Package youtube abstracts the remote video provider. The task layer only
// needs metadata lookup and a byte fetch with progress callbacks; which
// implementation backs those is chosen once at startup.
package youtube

import (
	"context"
	"regexp"
	"strconv"
)

// VideoFormat describes one available encoding of a remote video. Itag is
// the opaque selector clients pass back when starting a download.
type VideoFormat struct {
	Itag      int    `json:"itag"`
	Quality   string `json:"quality"`
	MimeType  string `json:"mimeType"`
	Container string `json:"container"`
	HasVideo  bool   `json:"hasVideo"`
	HasAudio  bool   `json:"hasAudio"`
	Codecs    string `json:"codecs"`
	Bitrate   int    `json:"bitrate"`
	Size      int64  `json:"size,omitempty"`
}

type VideoInfo struct {
	VideoID      string        `json:"videoId"`
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	ThumbnailURL string        `json:"thumbnailUrl"`
	Duration     int           `json:"duration"`
	Formats      []VideoFormat `json:"formats"`
}

// Provider is the remote video capability: descriptive metadata for a
// locator, and a byte fetch into a local file with incremental progress.
type Provider interface {
	VideoInfo(ctx context.Context, url string) (*VideoInfo, error)
	Download(ctx context.Context, url string, itag int, outputPath string, progress func(int)) error
}

var videoIDPattern = regexp.MustCompile(`^.*((youtu\.be/)|(v/)|(/u/\w/)|(embed/)|(watch\?))\??v?=?([^#&?]*).*`)

// ExtractVideoID pulls the 11-character video id out of the usual YouTube
// URL shapes.
func ExtractVideoID(url string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(url)
	if m == nil || len(m[7]) != 11 {
		return "", false
	}
	return m[7], true
}

var isoDurationPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseISODuration converts an ISO 8601 duration (PT1H2M3S) to seconds.
func ParseISODuration(s string) int {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + sec
}

// DefaultFormats is the static encoding list offered for every video. The
// Data API exposes no per-stream format information, so the common progressive
// encodings are advertised instead.
func DefaultFormats() []VideoFormat {
	return []VideoFormat{
		{
			Itag:      22,
			Quality:   "720p",
			MimeType:  `video/mp4; codecs="avc1.64001F, mp4a.40.2"`,
			Container: "mp4",
			HasVideo:  true,
			HasAudio:  true,
			Codecs:    "H.264, AAC",
			Bitrate:   2000000,
		},
		{
			Itag:      18,
			Quality:   "360p",
			MimeType:  `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
			Container: "mp4",
			HasVideo:  true,
			HasAudio:  true,
			Codecs:    "H.264, AAC",
			Bitrate:   500000,
		},
		{
			Itag:      43,
			Quality:   "360p",
			MimeType:  `video/webm; codecs="vp8.0, vorbis"`,
			Container: "webm",
			HasVideo:  true,
			HasAudio:  true,
			Codecs:    "VP8, Vorbis",
			Bitrate:   500000,
		},
	}
}
