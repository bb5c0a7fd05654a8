// Package retry provides the single retry-with-backoff policy used at
// network-call boundaries (blob fetch, embedding and completion providers).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxAttempts caps retries at the network boundary.
const DefaultMaxAttempts = 3

// Config parameterizes a retry policy.
type Config struct {
	MaxAttempts  uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns the standard policy: 3 attempts, 250ms base, 5s cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Do runs op with exponential backoff. retryable decides whether an error is
// transient; non-transient errors (e.g. malformed input) abort immediately.
// The context cancels waiting between attempts.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, cfg.MaxAttempts-1), ctx,
	)
	return backoff.Retry(wrapped, policy)
}
