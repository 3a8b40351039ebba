package pkg

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Retry calls fn until it succeeds, ctx is done, or maxRetries retries have
// been used. The delay doubles after every failed attempt. Wrap an error with
// backoff.Permanent to stop retrying immediately.
func Retry(ctx context.Context, fn func() error, maxRetries int, delay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(delay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(delay<<10),
		backoff.WithMaxElapsedTime(0),
	)

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return fn()
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx),
		func(err error, next time.Duration) {
			slog.WarnContext(ctx, "retrying after error",
				slog.Int("attempt", attempt),
				slog.Duration("next", next),
				slog.Any("error", err),
			)
		},
	)
}
