package ffmpeg

import (
	"strconv"
	"strings"
)

// Output options per target container. mkv keeps the matroska muxer name,
// gif carries no audio stream.
func ConvertArgs(format string) []string {
	switch format {
	case "mp4":
		return []string{"-f", "mp4", "-c:v", "libx264", "-c:a", "aac"}
	case "mov":
		return []string{"-f", "mov", "-c:v", "libx264", "-c:a", "aac"}
	case "avi":
		return []string{"-f", "avi", "-c:v", "libxvid", "-c:a", "libmp3lame"}
	case "webm":
		return []string{"-f", "webm", "-c:v", "libvpx", "-c:a", "libvorbis"}
	case "mkv":
		return []string{"-f", "matroska", "-c:v", "libx264", "-c:a", "aac"}
	case "gif":
		return []string{"-f", "gif", "-an"}
	default:
		return []string{"-f", format}
	}
}

// TrimArgs clips [startTime, endTime) with the convert codec table. The gif
// path re-encodes through a fixed 10fps, 320px-wide lanczos filter instead.
func TrimArgs(startTime, endTime float64, format string) []string {
	args := []string{"-ss", formatFloat(startTime), "-t", formatFloat(endTime - startTime)}
	switch format {
	case "mp4", "mov":
		return append(args, "-c:v", "libx264", "-c:a", "aac")
	case "avi":
		return append(args, "-c:v", "libxvid", "-c:a", "libmp3lame")
	case "webm":
		return append(args, "-c:v", "libvpx", "-c:a", "libvorbis")
	case "mkv":
		return append(args, "-f", "matroska", "-c:v", "libx264", "-c:a", "aac")
	case "gif":
		return append(args, "-vf", "fps=10,scale=320:-1:flags=lanczos")
	default:
		return args
	}
}

// ScreenshotArgs extracts a single frame at timestamp. The quality tiers map
// to -q:v values; the scale runs in opposite directions for jpg and png.
func ScreenshotArgs(timestamp float64, format, quality string) []string {
	q := "5"
	switch quality {
	case "low":
		if format == "jpg" {
			q = "10"
		} else {
			q = "2"
		}
	case "medium":
		q = "5"
	case "high":
		if format == "jpg" {
			q = "2"
		} else {
			q = "9"
		}
	}
	return []string{"-ss", formatFloat(timestamp), "-frames:v", "1", "-q:v", q}
}

type compressTier struct {
	videoBitrate string
	audioBitrate string
	preset       string
}

var compressTiers = map[string]compressTier{
	"light":  {videoBitrate: "5000k", audioBitrate: "192k", preset: "medium"},
	"medium": {videoBitrate: "2500k", audioBitrate: "128k", preset: "medium"},
	"high":   {videoBitrate: "1000k", audioBitrate: "96k", preset: "veryslow"},
}

var resolutionHeights = map[string]string{
	"1080p": "1080",
	"720p":  "720",
	"480p":  "480",
}

// CompressArgs targets mp4/H.264/AAC with tier-dependent bitrates and
// preset. Medium and high tiers add denoising, resolutions below "original"
// downscale by height with the width derived to keep the aspect ratio. The
// container is always laid out for web streaming.
func CompressArgs(level, resolution string) []string {
	tier, ok := compressTiers[level]
	if !ok {
		tier = compressTiers["medium"]
	}

	var filters []string
	if h, ok := resolutionHeights[resolution]; ok {
		filters = append(filters, "scale=-2:"+h)
	}
	if level == "medium" || level == "high" {
		filters = append(filters, "hqdn3d")
	}

	args := []string{
		"-c:v", "libx264",
		"-preset", tier.preset,
		"-b:v", tier.videoBitrate,
		"-c:a", "aac",
		"-b:a", tier.audioBitrate,
		"-crf", "23",
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	return append(args, "-movflags", "+faststart", "-f", "mp4")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
