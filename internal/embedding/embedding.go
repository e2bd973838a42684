// Package embedding talks to an external image-embedding inference
// endpoint. A nil vector with a nil error means the image was skipped
// on purpose; callers store the row without an embedding.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stylefeed/stylefeed/internal/config"
)

// videoIndicators mark asset URLs that point at video renditions of a
// product rather than a still image.
var videoIndicators = []string{
	".m3u8", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", "video.mp4", "/video",
}

var nonImageExtensions = []string{".html", ".htm", ".json", ".xml", ".txt", ".css", ".js"}

// Client requests embeddings for product images.
type Client struct {
	http   *http.Client
	cfg    config.EmbeddingConfig
	logger *slog.Logger
}

// New creates an embedding client. A zero endpoint disables embedding;
// Embed then always skips.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		cfg:    cfg,
		logger: logger.With("component", "embedding"),
	}
}

type embedRequest struct {
	Model    string `json:"model,omitempty"`
	ImageURL string `json:"image_url"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed fetches the embedding vector for one image URL. Unusable URLs
// (empty, data: placeholders, videos, non-image documents) are skipped
// with nil, nil. Transport failures are retried with exponential
// backoff up to MaxRetries, then reported as an error.
func (c *Client) Embed(ctx context.Context, imageURL string) ([]float32, error) {
	if c.cfg.Endpoint == "" {
		return nil, nil
	}
	url := strings.TrimSpace(imageURL)
	if Skippable(url) {
		c.logger.Debug("image skipped, not embeddable", "url", trim(url))
		return nil, nil
	}
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * time.Second
			c.logger.Debug("retrying embedding", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vec, err := c.request(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vec) != c.cfg.Dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), c.cfg.Dimensions)
		}
		return vec, nil
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) request(ctx context.Context, imageURL string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, ImageURL: imageURL})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("embedding endpoint returned %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	return out.Embedding, nil
}

// Skippable reports whether an image URL should not be sent for
// embedding at all: empty, an inline data: placeholder, a video asset,
// or a non-image document.
func Skippable(url string) bool {
	if url == "" {
		return true
	}
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "data:") {
		return true
	}
	for _, v := range videoIndicators {
		if strings.Contains(lower, v) {
			return true
		}
	}
	for _, ext := range nonImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func trim(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
