package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	operation    string
}

// RetryPolicy is the configured backoff for transactional operations.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	JitterFactor float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay, JitterFactor: defaultJitterFactor}
}

func (p RetryPolicy) options(operation string) []RetryOption {
	opts := []RetryOption{WithOperation(operation)}
	if p.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(p.MaxAttempts))
	}
	if p.BaseDelay >= 0 {
		opts = append(opts, WithBaseDelay(p.BaseDelay))
	}
	if p.JitterFactor >= 0 && p.JitterFactor <= 1 {
		opts = append(opts, WithJitterFactor(p.JitterFactor))
	}
	return opts
}

// RetryWithExponentialBackoff runs fn until it succeeds, fails with a
// non-retryable error, or maxAttempts is reached. Only concurrency conflicts
// are retried; capacity shortfalls and validation errors fail fast.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms (with 30% jitter)
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec
			backoff := delay + time.Duration(jitter)

			trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.Int64("backoff_ms", backoff.Milliseconds()),
			))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errors.Join(ctx.Err(), lastErr)
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		logger.WarnContext(ctx, "Concurrency conflict, retrying",
			"operation", config.operation, "attempt", attempt+1, "error", lastErr)
	}

	logger.ErrorContext(ctx, "Retries exhausted", "operation", config.operation, "attempts", config.maxAttempts, "error", lastErr)
	return lastErr
}

type RetryOption func(*retryConfig) error

func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		config.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		config.baseDelay = delay
		return nil
	}
}

func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		config.jitterFactor = factor
		return nil
	}
}

// WithOperation names the retried operation in logs.
func WithOperation(name string) RetryOption {
	return func(config *retryConfig) error {
		config.operation = name
		return nil
	}
}
