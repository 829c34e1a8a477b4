// Package retry provides exponential backoff for fallible reads.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NonRetryableError wraps errors that should not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config provides retry configuration.
type Config struct {
	MaxRetries int           // Retries after the first attempt (0 = run once)
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Cap on any single delay

	// ShouldRetry decides whether an error is transient. Nil retries every
	// error not marked NonRetryable.
	ShouldRetry func(error) bool

	// OnRetry is called before each backoff sleep with the 0-based retry
	// number, the delay and the error that caused it.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep SleepFunc
}

// DefaultConfig returns the read retry policy: 2 retries, 1s base, 30s cap.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based):
// min(BaseDelay * 2^attempt, MaxDelay).
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := c.BaseDelay
	for range attempt {
		// overflow protection
		if d > c.MaxDelay/2 {
			return c.MaxDelay
		}
		d *= 2
	}
	return min(d, c.MaxDelay)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("retry: MaxRetries cannot be negative")
	}
	if c.BaseDelay < 0 {
		return errors.New("retry: BaseDelay cannot be negative")
	}
	if c.MaxDelay < c.BaseDelay {
		return errors.New("retry: MaxDelay must be >= BaseDelay")
	}
	return nil
}

// Do executes fn, retrying transient failures with exponential backoff.
//
// The error of the last attempt is returned unwrapped so callers can keep
// matching on its type.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) || (cfg.ShouldRetry != nil && !cfg.ShouldRetry(err)) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return lastErr
		}

		delay := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+2, serr)
		}
	}
}

// DoWithResult executes fn with retry and returns both result and error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
