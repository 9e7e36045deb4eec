// Package retryx provides a bounded retry-with-backoff wrapper for operations
// against remote services.
package retryx

import (
	"context"
	"time"

	"oceanworks.io/datapipe/pkg/logx"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of attempts, including the first.
	Attempts int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Backoff multiplies the delay after each failed attempt.
	Backoff float64
}

// Do invokes op until it succeeds, the attempts are exhausted, or the context
// is cancelled. The last error is returned when all attempts fail.
func Do(ctx context.Context, p Policy, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Delay
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		logx.As().Warn().
			Err(err).
			Int("attempt", i+1).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Msg("operation failed, retrying")

		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * p.Backoff)
	}

	return err
}

// sleep waits for the given delay, returning false if the context is
// cancelled first.
func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
