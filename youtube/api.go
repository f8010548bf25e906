package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrDownloadUnsupported is returned by the API-backed provider: the Data
// API serves metadata only and does not permit fetching media bytes.
var ErrDownloadUnsupported = errors.New("remote media download is not supported by this provider")

const videosEndpoint = "https://www.googleapis.com/youtube/v3/videos"

// APIProvider resolves video metadata through the YouTube Data API v3.
type APIProvider struct {
	apiKey string
	client *http.Client
}

func NewAPIProvider(apiKey string) *APIProvider {
	return &APIProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (p *APIProvider) VideoInfo(ctx context.Context, rawURL string) (*VideoInfo, error) {
	videoID, ok := ExtractVideoID(rawURL)
	if !ok {
		return nil, fmt.Errorf("not a valid YouTube URL")
	}

	q := url.Values{}
	q.Set("part", "snippet,contentDetails")
	q.Set("id", videoID)
	q.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videosEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video lookup failed with status %s", resp.Status)
	}

	var payload videoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("video not found")
	}

	item := payload.Items[0]
	return &VideoInfo{
		VideoID:      item.ID,
		Title:        item.Snippet.Title,
		Author:       item.Snippet.ChannelTitle,
		ThumbnailURL: bestThumbnail(thumbnailURLs(item.Snippet.Thumbnails)),
		Duration:     ParseISODuration(item.ContentDetails.Duration),
		Formats:      DefaultFormats(),
	}, nil
}

// Download always refuses: fetching media bytes is outside what the Data API
// allows. The stub provider covers development setups.
func (p *APIProvider) Download(ctx context.Context, url string, itag int, outputPath string, progress func(int)) error {
	return ErrDownloadUnsupported
}

func thumbnailURLs(m map[string]struct {
	URL string `json:"url"`
}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.URL
	}
	return out
}

// bestThumbnail prefers the highest-resolution variant available.
func bestThumbnail(urls map[string]string) string {
	for _, key := range []string{"maxres", "standard", "high", "medium", "default"} {
		if u, ok := urls[key]; ok && u != "" {
			return u
		}
	}
	return ""
}
