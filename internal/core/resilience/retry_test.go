package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/core/domain"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func TestPolicy_Execute(t *testing.T) {
	transient := fmt.Errorf("upsert: %w", domain.ErrUnavailable)
	permanent := domain.NewValidationError("name", "name is required")

	tests := []struct {
		name          string
		policy        Policy
		failures      int
		err           error
		expectedCalls int
		expectError   bool
		exhausted     bool
	}{
		{
			name:          "exponential_always_failing_makes_max_attempts",
			policy:        Policy{MaxAttempts: 4, Strategy: BackoffExponential, BaseDelay: time.Millisecond, Jitter: 0.2},
			failures:      100,
			err:           transient,
			expectedCalls: 4,
			expectError:   true,
			exhausted:     true,
		},
		{
			name:          "non_retryable_stops_after_first_attempt",
			policy:        Policy{MaxAttempts: 4, Strategy: BackoffExponential, BaseDelay: time.Millisecond},
			failures:      100,
			err:           permanent,
			expectedCalls: 1,
			expectError:   true,
		},
		{
			name:          "none_strategy_is_single_attempt",
			policy:        Policy{MaxAttempts: 4, Strategy: BackoffNone},
			failures:      100,
			err:           transient,
			expectedCalls: 1,
			expectError:   true,
		},
		{
			name:          "immediate_succeeds_on_third_attempt",
			policy:        Policy{MaxAttempts: 4, Strategy: BackoffImmediate},
			failures:      2,
			err:           transient,
			expectedCalls: 3,
		},
		{
			name:          "linear_succeeds_first_time",
			policy:        Policy{MaxAttempts: 3, Strategy: BackoffLinear, BaseDelay: time.Millisecond},
			failures:      0,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.policy.sleep = noSleep
			calls := 0

			err := tt.policy.Execute(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})

			assert.Equal(t, tt.expectedCalls, calls)
			if !tt.expectError {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "last error must be surfaced")
			assert.Equal(t, tt.exhausted, errors.Is(err, ErrRetriesExhausted))
		})
	}
}

func TestPolicy_CustomRetryable(t *testing.T) {
	p := Policy{
		MaxAttempts: 3,
		Strategy:    BackoffImmediate,
		Retryable:   func(error) bool { return true },
		sleep:       noSleep,
	}

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Strategy: BackoffLinear, BaseDelay: time.Hour}

	calls := 0
	err := p.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return domain.ErrUnavailable
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
}

func TestPolicy_Backoff(t *testing.T) {
	t.Run("linear", func(t *testing.T) {
		p := Policy{Strategy: BackoffLinear, BaseDelay: 100 * time.Millisecond}
		assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
		assert.Equal(t, 300*time.Millisecond, p.Backoff(3))
	})

	t.Run("exponential_with_jitter", func(t *testing.T) {
		p := Policy{Strategy: BackoffExponential, BaseDelay: 100 * time.Millisecond, Jitter: 0.2}
		for attempt := 1; attempt <= 4; attempt++ {
			expected := float64(100*time.Millisecond) * float64(int(1)<<attempt)
			for i := 0; i < 50; i++ {
				d := float64(p.Backoff(attempt))
				assert.GreaterOrEqual(t, d, expected*0.8)
				assert.LessOrEqual(t, d, expected*1.2)
			}
		}
	})

	t.Run("capped", func(t *testing.T) {
		p := Policy{Strategy: BackoffExponential, BaseDelay: time.Second, MaxDelay: 3 * time.Second}
		assert.Equal(t, 3*time.Second, p.Backoff(10))
	})

	t.Run("immediate_and_none", func(t *testing.T) {
		assert.Zero(t, Policy{Strategy: BackoffImmediate, BaseDelay: time.Second}.Backoff(2))
		assert.Zero(t, Policy{Strategy: BackoffNone, BaseDelay: time.Second}.Backoff(2))
	})
}

func TestRetry_ReturnsValue(t *testing.T) {
	p := Policy{MaxAttempts: 3, Strategy: BackoffImmediate, sleep: noSleep}
	calls := 0

	v, err := Retry(context.Background(), p, func(ctx context.Context) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, domain.ErrUnavailable
		}
		return []float32{1, 2}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, 2, calls)
}

func TestParseBackoffStrategy(t *testing.T) {
	s, err := ParseBackoffStrategy("exponential")
	require.NoError(t, err)
	assert.Equal(t, BackoffExponential, s)

	_, err = ParseBackoffStrategy("fibonacci")
	require.Error(t, err)
}
