package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"staysync/internal/config"
	"staysync/internal/metrics"
	"staysync/internal/models"
	"staysync/internal/retry"
)

// FetchError wraps a download failure and records whether retrying can help.
// Client-side feed problems (dead URL, revoked token) are permanent; network
// hiccups, 429 and server errors are retryable.
type FetchError struct {
	URL        string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads iCal documents over HTTP with bounded retries. Each
// successful download is also written to the download directory as an audit
// copy; failures there never fail the fetch.
type Fetcher struct {
	client      *http.Client
	backoff     retry.Policy
	attempts    int
	downloadDir string
	logger      *zerolog.Logger
}

func NewFetcher(cfg config.SyncConfig, logger *zerolog.Logger) *Fetcher {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = models.DefaultRetryAttempts
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		cfg.FetchTimeoutSeconds = models.DefaultFetchTimeoutSeconds
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		},
		backoff: retry.Policy{
			Base:   time.Duration(cfg.BackoffBaseSeconds) * time.Second,
			Cap:    time.Duration(cfg.BackoffMaxSeconds) * time.Second,
			Factor: 2,
		},
		attempts:    cfg.RetryAttempts,
		downloadDir: cfg.DownloadDir,
		logger:      logger,
	}
}

// Fetch downloads the feed at url, retrying transient failures up to the
// attempt budget. It returns the raw iCal document.
func (f *Fetcher) Fetch(ctx context.Context, url string, platform models.Platform) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			metrics.IncFetchRetry(string(platform))
			delay := f.backoff.Delay(attempt - 1)
			f.logger.Warn().
				Str("platform", string(platform)).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying feed fetch")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			f.saveAuditCopy(platform, body)
			return body, nil
		}

		lastErr = err
		var fe *FetchError
		if errors.As(err, &fe) && !fe.Retryable {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("feed fetch failed after %d attempts: %w", f.attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Retryable: false, Err: err}
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: url, Retryable: true, Err: err}
	}
	return string(body), nil
}

func (f *Fetcher) saveAuditCopy(platform models.Platform, body string) {
	if f.downloadDir == "" {
		return
	}
	if err := os.MkdirAll(f.downloadDir, 0o755); err != nil {
		f.logger.Warn().Err(err).Msg("failed to create download directory")
		return
	}

	name := fmt.Sprintf("%s_%s.ics", platform, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(f.downloadDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("failed to save feed audit copy")
	}
}
