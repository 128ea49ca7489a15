// Package station provides the client for the station's now-playing endpoint.
package station

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/eist-radio/streamd/internal/domain/nowplaying"
)

const maxResponseBytes = 64 * 1024

// Config represents station client configuration.
type Config struct {
	NowPlayingURL string
	Timeout       time.Duration
}

// Client fetches the station's now-playing metadata.
type Client struct {
	url        string
	httpClient *http.Client
}

// nowPlayingResponse represents the now-playing endpoint payload.
type nowPlayingResponse struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artwork"`
}

// New creates a station client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        cfg.NowPlayingURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the current now-playing entry.
func (c *Client) Fetch(ctx context.Context) (nowplaying.NowPlaying, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "now-playing request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nowplaying.NowPlaying{}, errors.Newf("now-playing endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "failed to read response body")
	}

	var payload nowPlayingResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nowplaying.NowPlaying{}, errors.Wrap(err, "failed to parse now-playing response")
	}

	return nowplaying.NowPlaying{
		Title:      payload.Title,
		Artist:     payload.Artist,
		ArtworkURL: payload.ArtworkURL,
	}, nil
}
