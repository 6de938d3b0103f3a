// Package retry runs an idempotent operation up to a fixed number of
// attempts, each under its own deadline, with a fixed delay between
// attempts.
//
// Failures are classified as timeouts (the attempt's deadline expired) or
// operational errors (anything else). Both are retried; the class picks the
// delay and is reported to the caller so diagnostics can tell them apart.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class distinguishes why an attempt failed.
type Class string

const (
	ClassOperational Class = "operational"
	ClassTimeout     Class = "timeout"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Attempt describes one failed attempt that is about to be retried.
type Attempt struct {
	Number int // 1-based
	Max    int
	Class  Class
	Err    error
	Delay  time.Duration
}

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the attempt ceiling, including the first try.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Timeout bounds each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration

	// Delay is the pause after an operational failure.
	Delay time.Duration

	// TimeoutDelay is the pause after a timed out attempt. Zero means Delay.
	TimeoutDelay time.Duration

	// Sleep performs the pause. Nil means Sleep.
	Sleep SleepFunc

	// OnRetry, if set, is called before each pause.
	OnRetry func(Attempt)
}

// ExhaustedError is returned when every attempt failed.
// Err and Class describe the last attempt.
type ExhaustedError struct {
	Attempts int
	Class    Class
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Class == ClassTimeout {
		return fmt.Sprintf("timed out after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped
// on the attempt that produced it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, the parent
// context is done, or MaxAttempts is reached.
//
// The value from the successful attempt is returned exactly once; results
// of failed attempts are discarded, so op must be idempotent or commit
// nothing when it fails.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, class, err := runAttempt(ctx, p.Timeout, op)
		if err == nil {
			return value, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%w: %v", ctxErr, err)
		}
		if attempt >= maxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Class: class, Err: err}
		}

		delay := p.Delay
		if class == ClassTimeout && p.TimeoutDelay > 0 {
			delay = p.TimeoutDelay
		}
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Number: attempt, Max: maxAttempts, Class: class, Err: err, Delay: delay})
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, Class, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	value, err := op(attemptCtx)
	if err == nil {
		return value, "", nil
	}
	return value, classify(ctx, attemptCtx, err), err
}

func classify(parent, attemptCtx context.Context, err error) Class {
	if parent.Err() != nil {
		return ClassOperational
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	return ClassOperational
}

// Sleep pauses for d or until ctx is done, whichever is first.
func Sleep(ctx context.Context, d time.Duration) error {
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
