// internal/core/resilience/retry.go
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ammerola/household-be/internal/pkg/metrics"
)

// ErrRetriesExhausted is wrapped around the last error once every attempt has failed
var ErrRetriesExhausted = errors.New("retries exhausted")

// BackoffStrategy selects the delay between attempts
type BackoffStrategy string

const (
	BackoffNone        BackoffStrategy = "none"
	BackoffImmediate   BackoffStrategy = "immediate"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// ParseBackoffStrategy accepts the configuration spelling of a strategy
func ParseBackoffStrategy(s string) (BackoffStrategy, error) {
	switch BackoffStrategy(s) {
	case BackoffNone, BackoffImmediate, BackoffLinear, BackoffExponential:
		return BackoffStrategy(s), nil
	}
	return "", fmt.Errorf("unknown backoff strategy %q", s)
}

// Policy is a bounded retry policy
type Policy struct {
	Name        string
	MaxAttempts int
	Strategy    BackoffStrategy
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of the exponential delay randomized in either direction
	Jitter float64
	// Retryable decides whether an error is worth another attempt; defaults to IsTransient
	Retryable func(error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used for secondary writes
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: 4,
		Strategy:    BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

func (p Policy) attempts() int {
	if p.Strategy == BackoffNone || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsTransient(err)
}

// Backoff returns the delay before the given retry (1 for the first retry)
func (p Policy) Backoff(retry int) time.Duration {
	var d time.Duration
	switch p.Strategy {
	case BackoffLinear:
		d = p.BaseDelay * time.Duration(retry)
	case BackoffExponential:
		d = p.BaseDelay * time.Duration(int64(1)<<min(retry, 30))
		if p.Jitter > 0 {
			jitterRange := float64(d) * p.Jitter
			d = time.Duration(float64(d) + (rand.Float64()*2-1)*jitterRange)
		}
	default:
		return 0
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = p.BaseDelay
	}
	return d
}

// Execute runs op until it succeeds, fails with a non-retryable error, or attempts run out
func (p Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry is Execute for operations that return a value
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.RecordRetry(p.Name)
			if err := sleep(ctx, p.Backoff(attempt-1)); err != nil {
				return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt-1, errors.Join(err, lastErr))
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !p.retryable(err) {
			return zero, err
		}
	}

	if attempts == 1 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
