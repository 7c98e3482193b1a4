// Package resilience provides patterns for building fault-tolerant calls to
// external services. It includes deterministic exponential-backoff retry and
// a circuit breaker.
package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyforge/speechkit/errors"
)

// RetryConfig configures retry behavior for a single call.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first one.
	// A call is attempted at most MaxRetries+1 times.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	// InitialDelay is the sleep before the first retry. The delay doubles
	// after every failed attempt. No jitter is applied, so the backoff
	// sequence is deterministic: d, 2d, 4d, ...
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	// MaxDelay caps the per-retry delay. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool `yaml:"-" mapstructure:"-"`
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" mapstructure:"-"`
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		RetryIf:      DefaultRetryIf,
	}
}

// DefaultRetryIf retries retryable application errors and all unclassified
// errors, but never context cancellation. A classified AppError is judged by
// its own Retryable flag even when its cause unwraps to a context error, so
// a provider-internal timeout stays retryable.
func DefaultRetryIf(err error) bool {
	if ae, ok := errors.AsAppError(err); ok {
		return ae.Retryable
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return err != nil
}

// ExhaustedError is returned when every attempt of a retried call failed.
// It preserves each attempt's cause in order.
type ExhaustedError struct {
	// Attempts holds the error from each attempt, first to last.
	Attempts []error
}

// Error lists every attempt's cause in attempt order.
func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = fmt.Sprintf("attempt %d: %v", i+1, err)
	}
	return fmt.Sprintf("all %d attempts failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the per-attempt causes to errors.Is/As.
func (e *ExhaustedError) Unwrap() []error { return e.Attempts }

// Retry executes fn with deterministic exponential backoff. The first attempt
// runs immediately; each failure sleeps for the current delay and then doubles
// it. After MaxRetries+1 failed attempts it returns an *ExhaustedError
// aggregating every attempt's cause.
//
// The sleep is context-aware: if ctx is cancelled mid-backoff or between
// attempts, Retry returns ctx.Err() so callers can distinguish a deadline
// from a provider failure.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}

	attemptErrs := make([]error, 0, cfg.MaxRetries+1)
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		attemptErrs = append(attemptErrs, err)

		if !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		sleep := delay
		if cfg.MaxDelay > 0 && sleep > cfg.MaxDelay {
			sleep = cfg.MaxDelay
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}

	return zero, &ExhaustedError{Attempts: attemptErrs}
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
