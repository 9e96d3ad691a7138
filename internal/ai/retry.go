package ai

import (
	"context"
	"fmt"
	"time"
)

const (
	// defaultMaxRetries is the default number of retry attempts
	defaultMaxRetries = 3
)

// sleepFn waits for d or until ctx is done. Replaced in tests.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryWithBackoff executes fn up to maxAttempts times, waiting between
// attempts for the duration getBackoffDuration picks for the last error.
// Permanent errors and a cancelled context stop the retries immediately.
func retryWithBackoff[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if isPermanentError(err) {
			return result, fmt.Errorf("attempt %d failed permanently: %w", attempt, err)
		}
		if attempt < maxAttempts {
			if err := sleepFn(ctx, getBackoffDuration(lastErr, attempt)); err != nil {
				return result, fmt.Errorf("retry aborted after attempt %d: %w", attempt, err)
			}
		}
	}

	return result, fmt.Errorf("all retry attempts failed: %w", lastErr)
}
