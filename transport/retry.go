package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MaxAttempts is the retry cap, per spec.md §4.5 (N=8).
const MaxAttempts = 8

// backoff returns the wait before attempt k (k >= 2): 10*2^(k-2) seconds,
// i.e. 10, 20, 40, 80, 160, 320, 640s for k = 2..8.
func backoff(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	shift := attempt - 2
	return time.Duration(10<<uint(shift)) * time.Second
}

// WithRetry is the explicit outer retry driver spec.md DESIGN NOTES §9
// calls for: it owns the backoff schedule instead of the fetch loop using
// an exception to escape. It calls attemptFn up to MaxAttempts times,
// sleeping the scheduled backoff between attempts via a cancelable timer
// so a context cancellation (process signal) interrupts the wait
// immediately, per spec.md §5. On exhaustion, the last attempt's error is
// returned, matching spec.md §4.5 "the last exception is surfaced".
func WithRetry(ctx context.Context, logger *zap.Logger, attemptFn func(ctx context.Context) (Result, error)) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoff(attempt)
			logger.Warn("retrying fetch after failure",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr))
			if err := sleep(ctx, wait); err != nil {
				return Result{}, fmt.Errorf("transport: retry wait interrupted: %w", err)
			}
		}

		result, err := attemptFn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("transport: aborted: %w", ctx.Err())
		}
	}
	return Result{}, fmt.Errorf("transport: exhausted %d attempts: %w", MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
