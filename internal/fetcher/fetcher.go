package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrNetwork marks transient download failures. Callers that still hold a
// previous artifact should fall back to it.
var ErrNetwork = errors.New("download failed")

// Downloader streams remote payloads to disk with bounded retries
type Downloader struct {
	logger *logrus.Logger
	client *http.Client
	policy RetryPolicy
	rl     *rate.Limiter
}

// NewDownloader creates a downloader. rps caps the request rate against the
// open-data host; values <= 0 fall back to one request per second.
func NewDownloader(logger *logrus.Logger, policy RetryPolicy, rps int) *Downloader {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if rps <= 0 {
		rps = 1
	}
	return &Downloader{
		logger: logger,
		client: &http.Client{},
		policy: policy,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Download fetches url into destPath, streaming the body in chunks. The file
// is written to a temporary sibling and renamed into place on success so a
// failed attempt never leaves a partial artifact behind.
func (d *Downloader) Download(ctx context.Context, url, destPath string) error {
	err := d.policy.Run(ctx, func(attemptCtx context.Context) error {
		if err := d.rl.Wait(attemptCtx); err != nil {
			return err
		}
		return d.downloadOnce(attemptCtx, url, destPath)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		d.logger.WithError(err).WithField("url", url).Error("Download failed after all retries")
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return nil
}

func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	d.logger.WithField("url", url).Info("Starting download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "RealPrice Market Analyzer/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write body: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"url":     url,
		"size_mb": float64(written) / (1024 * 1024),
	}).Info("Download completed")
	return nil
}
