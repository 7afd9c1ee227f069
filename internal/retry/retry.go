// Package retry runs an operation a bounded number of times with exponential
// backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64

	// Permanent classifies errors that must not be retried. Nil means every
	// error is retried.
	Permanent func(error) bool

	// Sleep is swapped out in tests. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is three attempts starting at 500ms and doubling.
func Default() Policy {
	return Policy{Attempts: 3, InitialDelay: 500 * time.Millisecond, Multiplier: 2}
}

// Do calls fn until it succeeds, returns a permanent error, the context is
// done, or the attempts run out. The last error is returned.
func Do(ctx context.Context, p Policy, name string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.InitialDelay
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(lastErr) {
			return lastErr
		}

		slog.WarnContext(ctx, "attempt failed", "operation", name, "attempt", i+1, "of", attempts, "error", lastErr)
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return errors.Join(lastErr, err)
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
