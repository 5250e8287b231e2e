package sync

import (
	"context"
	"time"
)

// retryBaseDelay is the wait before the first retry; each subsequent
// retry doubles it (1s, 2s, 4s, ...).
const retryBaseDelay = time.Second

// sleepFunc waits out a backoff delay or aborts when the context ends.
// Overridable in tests.
type sleepFunc func(ctx context.Context, d time.Duration) error

// retrySleep is swapped out in tests so retry-heavy paths do not wait
// out real backoff.
var retrySleep sleepFunc = sleepWithContext

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CallWithRetry invokes fn up to maxRetries+1 times with exponential
// backoff between attempts. Every error is retried the same way; after
// the final attempt the last error is returned as-is. attempts reports
// how many calls were made, letting callers count how often a remote
// pushed back.
func CallWithRetry[T any](ctx context.Context, maxRetries int, fn func(ctx context.Context) (T, error)) (T, int, error) {
	return callWithRetry(ctx, maxRetries, fn, retrySleep)
}

func callWithRetry[T any](ctx context.Context, maxRetries int, fn func(ctx context.Context) (T, error), sleep sleepFunc) (T, int, error) {
	var zero T
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			if err := sleep(ctx, delay); err != nil {
				return zero, attempt, err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err
	}
	return zero, maxRetries + 1, lastErr
}
