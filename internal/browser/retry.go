package browser

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// Retry runs fn until it succeeds, fails with a non-transient error, or has
// failed attempts times. Transient failures that outlast the attempts are
// escalated to *FatalError.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil || attempt >= attempts-1 {
			break
		}

		zap.L().Warn("retrying browser action",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &FatalError{Op: "retry", Err: errors.Join(lastErr, ctx.Err())}
		case <-timer.C:
		}
	}

	var te *TransientError
	if errors.As(lastErr, &te) {
		return &FatalError{Op: te.Op, Err: te.Err}
	}
	return &FatalError{Op: "retry", Err: lastErr}
}
