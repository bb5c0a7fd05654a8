// Package fetch loads source document blobs over HTTP or from the local
// filesystem.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/config"
	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/retry"
)

// maxBlobBytes bounds a single fetched document.
const maxBlobBytes = 100 << 20

// Fetcher retrieves document bytes from http(s) URLs, file:// URLs, or plain
// filesystem paths.
type Fetcher struct {
	client *http.Client
	retry  retry.Config
	logger *zap.Logger
}

// New creates a fetcher from the fetch section of the service config.
func New(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := retry.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = uint64(cfg.MaxAttempts)
	}
	return &Fetcher{
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		retry:  rc,
		logger: logger,
	}
}

// Fetch returns the raw bytes at source. Missing or denied sources map to
// domain.ErrBlobNotFound, exceeded deadlines to domain.ErrBlobFetchTimeout;
// both are terminal and never retried. Transient HTTP failures (429, 5xx,
// connection resets) are retried with backoff.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.fetchHTTP(ctx, source)
	}
	return f.fetchLocal(strings.TrimPrefix(source, "file://"))
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, f.retry, transient, func() error {
		var opErr error
		data, opErr = f.doRequest(ctx, rawURL)
		if opErr != nil {
			f.logger.Warn("blob fetch attempt failed",
				zap.String("url", rawURL),
				zap.Error(opErr),
			)
		}
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobFetchTimeout, rawURL)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrBlobNotFound, rawURL, resp.StatusCode)
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobFetchTimeout, rawURL)
		}
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(data) > maxBlobBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrBlobNotFound, rawURL, maxBlobBytes)
	}
	return data, nil
}

func (f *Fetcher) fetchLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// transient reports whether a fetch error is worth retrying. Not-found and
// timeout classifications are terminal for the document.
func transient(err error) bool {
	return !errors.Is(err, domain.ErrBlobNotFound) &&
		!errors.Is(err, domain.ErrBlobFetchTimeout)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return true
	}
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}
