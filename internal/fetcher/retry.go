package fetcher

import (
	"context"
	"time"
)

// RetryPolicy bounds an operation: at most MaxAttempts tries, a fixed Delay
// between them and an independent Timeout per attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy matches the upstream host's tolerances
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Delay:       5 * time.Second,
	Timeout:     600 * time.Second,
}

// Run executes op under the policy. Each attempt gets its own deadline.
// Cancellation of ctx stops the loop between attempts and aborts the
// in-flight attempt through the derived context.
func (p RetryPolicy) Run(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		err = op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < p.MaxAttempts && !sleepCtx(ctx, p.Delay) {
			return ctx.Err()
		}
	}
	return err
}

// sleepCtx waits for d and reports false if ctx ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
