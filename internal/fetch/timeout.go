package fetch

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds an operation wrapped by WithTimeout when no
// positive duration is given.
const DefaultTimeout = 5 * time.Second

// WithTimeout races fn against a timer of d.
//
// If the timer fires first WithTimeout returns a TIMEOUT error immediately;
// fn's context is cancelled so it can stop. Cancellation of the parent ctx
// is reported as ctx.Err(), not as a timeout.
func WithTimeout[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		d = DefaultTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(tctx)
		ch <- result{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, TimeoutError(op, d)
		}
		return r.val, r.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, TimeoutError(op, d)
	}
}
