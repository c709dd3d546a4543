// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Multiplier grows Delay after each wait. Values <= 1 keep it fixed.
	Multiplier float64
	// MaxDelay caps the grown delay. Zero means uncapped.
	MaxDelay time.Duration
	// Retryable classifies errors; nil treats every error as retryable.
	Retryable func(error) bool

	// sleep is swapped out in tests.
	sleep func(context.Context, time.Duration) error
}

// Fixed returns a policy with attempts total attempts spaced by delay.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay, Multiplier: 1}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// DoValue calls fn until it succeeds, returns a non-retryable error, the
// context is done, or the policy runs out of attempts. accept, when non-nil,
// is the success predicate: a value it rejects counts as a failed attempt.
func DoValue[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error), accept func(T) error) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.Delay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil && accept != nil {
			err = accept(v)
		}
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
