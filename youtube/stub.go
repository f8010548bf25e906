package youtube

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// StubProvider simulates the download capability for development setups
// where fetching real media is disabled. Metadata lookups are delegated to
// Info when present; the download copies a local sample file (or creates
// an empty one) while ticking progress up in steps.
type StubProvider struct {
	Info       Provider
	SamplePath string
	Tick       time.Duration
}

func (s *StubProvider) VideoInfo(ctx context.Context, url string) (*VideoInfo, error) {
	if s.Info != nil {
		return s.Info.VideoInfo(ctx, url)
	}
	videoID, ok := ExtractVideoID(url)
	if !ok {
		return nil, fmt.Errorf("not a valid YouTube URL")
	}
	return &VideoInfo{
		VideoID: videoID,
		Title:   "Sample Video",
		Author:  "Sample Channel",
		Formats: DefaultFormats(),
	}, nil
}

func (s *StubProvider) Download(ctx context.Context, url string, itag int, outputPath string, progress func(int)) error {
	log.Warn().Str("url", url).Int("itag", itag).Msg("simulated download: no real media is fetched")

	if err := s.writeSample(outputPath); err != nil {
		return err
	}

	tick := s.Tick
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	for pct := 10; pct <= 100; pct += 10 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tick):
		}
		if progress != nil {
			progress(pct)
		}
	}
	return nil
}

func (s *StubProvider) writeSample(outputPath string) error {
	if s.SamplePath != "" {
		src, err := os.Open(s.SamplePath)
		if err == nil {
			defer src.Close()
			dst, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer dst.Close()
			if _, err := io.Copy(dst, src); err != nil {
				return fmt.Errorf("copy sample: %w", err)
			}
			return nil
		}
	}
	if err := os.WriteFile(outputPath, nil, 0o644); err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return nil
}
