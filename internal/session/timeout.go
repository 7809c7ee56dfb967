package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is handed to the fallback when the operation missed its deadline
	ErrTimeout = errors.New("operation timed out")

	// ErrPanicked wraps a panic recovered from the operation
	ErrPanicked = errors.New("operation panicked")
)

// WithTimeout runs op with a child context bounded by d. When op fails or
// misses the deadline, fallback runs with the parent context and the cause.
// A result op produces after the deadline is dropped; its context is already
// cancelled by then. A panic in op is recovered and treated as a failure.
// A nil fallback returns the cause as is.
func WithTimeout[T any](
	ctx context.Context,
	d time.Duration,
	op func(ctx context.Context) (T, error),
	fallback func(ctx context.Context, cause error) (T, error),
) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	// buffered so a late op never blocks on a reader that has gone
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrPanicked, r)}
			}
		}()

		value, err := op(opCtx)
		done <- result{value: value, err: err}
	}()

	var cause error
	select {
	case r := <-done:
		if r.err == nil {
			return r.value, nil
		}
		cause = r.err
	case <-opCtx.Done():
		cause = ErrTimeout
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
	}

	if fallback == nil {
		var zero T
		return zero, cause
	}
	return fallback(ctx, cause)
}
