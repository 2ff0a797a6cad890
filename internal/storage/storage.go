// Package storage fetches remote media into a job's working directory.
// Jobs may submit media and music as URLs instead of multipart uploads;
// everything here lands as a plain file under the job root so the rest
// of the pipeline never knows where a file came from.
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobarin/montage/internal/models"
)

const (
	// Download timeout per attempt — generous for large video sources
	downloadTimeout = 180 * time.Second

	// Retry configuration
	maxRetries     = 2
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second

	// Sanity bounds on fetched files. Zero-byte responses are treated as
	// failures; anything past the cap is cut off mid-stream.
	maxDownloadBytes = 2 << 30 // 2 GB
)

type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchMedia downloads one media URL as destDir/{index}.{ext}, picking
// the extension from the response content type first and the URL path
// second. Returns the saved path.
func (f *Fetcher) FetchMedia(ctx context.Context, url, destDir string, index int) (string, error) {
	data, contentType, err := f.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	ext := extensionFor(contentType, url)
	if ext == "" {
		return "", fmt.Errorf("cannot determine media type for %s (content-type %q)", url, contentType)
	}
	if _, ok := models.KindForPath("x" + ext); !ok {
		return "", fmt.Errorf("unsupported media type %s for %s", ext, url)
	}

	destPath := filepath.Join(destDir, fmt.Sprintf("%d%s", index, ext))
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return destPath, nil
}

// FetchToFile downloads a URL to an exact path, used for background
// music where the filename is part of the job directory contract.
func (f *Fetcher) FetchToFile(ctx context.Context, url, destPath string) error {
	data, _, err := f.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// fetch downloads a URL with retries and exponential backoff. Returns
// the body and the response content type.
func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			log.Printf("[Storage] Download retry %d/%d for %s (waiting %v)...", attempt, maxRetries, url, delay)

			select {
			case <-ctx.Done():
				return nil, "", fmt.Errorf("download cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)

		req, err := http.NewRequestWithContext(dlCtx, "GET", url, nil)
		if err != nil {
			cancel()
			return nil, "", fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to download: %w", err)
			if isRetryableError(err) {
				log.Printf("[Storage] Download attempt %d failed (retryable): %v", attempt+1, err)
				continue
			}
			return nil, "", lastErr
		}

		if resp.StatusCode == http.StatusOK {
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
			contentType := resp.Header.Get("Content-Type")
			resp.Body.Close()
			cancel()
			if err != nil {
				lastErr = fmt.Errorf("failed to read download body: %w", err)
				log.Printf("[Storage] Download attempt %d read failed: %v", attempt+1, err)
				continue
			}
			if len(data) == 0 {
				return nil, "", fmt.Errorf("download of %s returned an empty body", url)
			}
			if len(data) > maxDownloadBytes {
				return nil, "", fmt.Errorf("download of %s exceeds the %d byte limit", url, maxDownloadBytes)
			}
			return data, contentType, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()

		lastErr = fmt.Errorf("download failed with status %d: %s", resp.StatusCode, string(body))

		if isRetryableStatus(resp.StatusCode) {
			log.Printf("[Storage] Download attempt %d returned status %d (retryable)", attempt+1, resp.StatusCode)
			continue
		}

		return nil, "", lastErr
	}

	return nil, "", fmt.Errorf("download failed after %d attempts: %w", maxRetries+1, lastErr)
}

// extensionFor maps the response content type to a file extension,
// falling back to the URL path's own extension.
func extensionFor(contentType, url string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch mediaType {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/gif":
			return ".gif"
		case "image/webp":
			return ".webp"
		case "image/bmp":
			return ".bmp"
		case "image/tiff":
			return ".tiff"
		case "video/mp4":
			return ".mp4"
		case "video/webm":
			return ".webm"
		case "video/quicktime":
			return ".mov"
		case "video/x-matroska":
			return ".mkv"
		case "audio/mpeg":
			return ".mp3"
		case "audio/mp4", "audio/x-m4a":
			return ".m4a"
		}
	}

	// Strip query strings before looking at the path extension.
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.ToLower(filepath.Ext(path))
}

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}
