package database

import (
	"context"
	"fmt"
	"time"
)

// ConnectionError is returned when a connection could not be acquired
// after every allowed attempt.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database unreachable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a statement that reached the server and failed there.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy runs an operation up to MaxRetries times with a fixed Delay
// between attempts. No delay follows the final attempt.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Sleep      SleepFunc
}

// Do calls fn until it succeeds or attempts run out. Exhaustion and context
// cancellation both yield a *ConnectionError carrying the attempt count.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	max := p.MaxRetries
	if max < 1 {
		max = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return &ConnectionError{Attempts: attempt - 1, Err: err}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == max {
			return &ConnectionError{Attempts: attempt, Err: lastErr}
		}

		logf("connection attempt %d/%d failed: %v (retrying in %s)", attempt, max, lastErr, p.Delay)
		if err := sleep(ctx, p.Delay); err != nil {
			return &ConnectionError{Attempts: attempt, Err: err}
		}
	}
	return &ConnectionError{Attempts: max, Err: lastErr}
}

// Retry is RetryPolicy.Do with the real clock.
func Retry(ctx context.Context, maxRetries int, delay time.Duration, fn func(ctx context.Context) error) error {
	return RetryPolicy{MaxRetries: maxRetries, Delay: delay}.Do(ctx, fn)
}
