// Package retry re-attempts provider calls that failed with retryable
// taxonomy codes, backing off exponentially between attempts.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/pkg/logging"
)

const maxDelay = 10 * time.Second

// Config controls the retry loop.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultConfig matches the gateway's provider call policy.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Second}
}

// Do runs fn up to cfg.MaxAttempts times. Failures whose taxonomy code is
// non-retryable rethrow immediately; retryable ones wait with doubling delay,
// capped at 10s. Context cancellation aborts the wait.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}

	logger := logging.WithComponent("retry")
	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		code := errors.CodeOf(err)
		if !errors.Retryable(code) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn("retrying after failure",
			slog.Int("attempt", attempt),
			slog.String("code", string(code)),
			slog.Duration("delay", delay))
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(errors.CodeTimeout, "retry aborted", ctx.Err())
	case <-timer.C:
		return nil
	}
}
