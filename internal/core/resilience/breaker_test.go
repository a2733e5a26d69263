package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	b := NewCircuitBreaker("test-"+t.Name(), BreakerConfig{
		Threshold:          threshold,
		Window:             30 * time.Second,
		Cooldown:           cooldown,
		MaxCooldown:        4 * cooldown,
		CooldownMultiplier: 2,
	}, nil)
	b.now = clock.Now
	return b, clock
}

func failing(calls *atomic.Int32) func(context.Context) error {
	return func(context.Context) error {
		calls.Add(1)
		return domain.ErrUnavailable
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, 3, 10*time.Second)
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		err := b.Call(context.Background(), failing(&calls))
		require.ErrorIs(t, err, domain.ErrUnavailable)
	}
	assert.Equal(t, domain.CircuitOpen, b.State())

	err := b.Call(context.Background(), failing(&calls))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load(), "rejected call must not reach the resource")
}

func TestCircuitBreaker_FailuresOutsideWindowDoNotOpen(t *testing.T) {
	b, clock := newTestBreaker(t, 3, 10*time.Second)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), failing(&calls))
		clock.Advance(20 * time.Second)
	}

	assert.Equal(t, domain.CircuitClosed, b.State())
	assert.Equal(t, int32(5), calls.Load())
}

func TestCircuitBreaker_CanceledCallsAreNotFailures(t *testing.T) {
	b, _ := newTestBreaker(t, 2, 10*time.Second)

	for i := 0; i < 5; i++ {
		err := b.Call(context.Background(), func(context.Context) error { return context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name             string
		trialErr         error
		expectedState    domain.CircuitState
		expectedCooldown time.Duration
	}{
		{
			name:             "trial_success_closes",
			trialErr:         nil,
			expectedState:    domain.CircuitClosed,
			expectedCooldown: 10 * time.Second,
		},
		{
			name:             "trial_failure_reopens_with_longer_cooldown",
			trialErr:         domain.ErrUnavailable,
			expectedState:    domain.CircuitOpen,
			expectedCooldown: 20 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(t, 2, 10*time.Second)
			var calls atomic.Int32
			_ = b.Call(context.Background(), failing(&calls))
			_ = b.Call(context.Background(), failing(&calls))
			require.Equal(t, domain.CircuitOpen, b.State())

			clock.Advance(5 * time.Second)
			require.ErrorIs(t, b.Call(context.Background(), failing(&calls)), ErrCircuitOpen)

			clock.Advance(6 * time.Second)
			err := b.Call(context.Background(), func(context.Context) error { return tt.trialErr })
			assert.Equal(t, tt.trialErr, err)

			snap := b.Snapshot()
			assert.Equal(t, tt.expectedState, snap.State)
			assert.Equal(t, tt.expectedCooldown, snap.Cooldown)
			if tt.expectedState == domain.CircuitClosed {
				assert.Zero(t, snap.Failures)
				assert.Nil(t, snap.NextRetryAt)
			} else {
				require.NotNil(t, snap.NextRetryAt)
				assert.True(t, clock.Now().Add(20*time.Second).Equal(*snap.NextRetryAt))
			}
		})
	}
}

func TestCircuitBreaker_CooldownCappedAtMax(t *testing.T) {
	b, clock := newTestBreaker(t, 1, 10*time.Second)
	var calls atomic.Int32
	_ = b.Call(context.Background(), failing(&calls))

	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		_ = b.Call(context.Background(), failing(&calls))
	}

	assert.Equal(t, 40*time.Second, b.Snapshot().Cooldown)
}

func TestCircuitBreaker_HalfOpenAdmitsExactlyOneTrial(t *testing.T) {
	const callers = 32
	b, clock := newTestBreaker(t, 1, time.Second)
	var calls atomic.Int32
	_ = b.Call(context.Background(), failing(&calls))
	require.Equal(t, domain.CircuitOpen, b.State())
	calls.Store(0)

	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	results := make(chan error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- b.Call(context.Background(), func(context.Context) error {
				calls.Add(1)
				<-release
				return nil
			})
		}()
	}
	close(start)

	rejected := 0
	timeout := time.After(5 * time.Second)
	for rejected < callers-1 {
		select {
		case err := <-results:
			require.ErrorIs(t, err, ErrCircuitOpen)
			rejected++
		case <-timeout:
			t.Fatalf("only %d callers were rejected", rejected)
		}
	}

	close(release)
	wg.Wait()
	require.NoError(t, <-results)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(BreakerConfig{Threshold: 1, Cooldown: time.Minute}, nil)

	a := r.Breaker(ResourceVectorIndex)
	assert.Same(t, a, r.Breaker(ResourceVectorIndex))
	r.Breaker(ResourceEmbedder)

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, ResourceEmbedder, snaps[0].Resource)
	assert.Equal(t, ResourceVectorIndex, snaps[1].Resource)
}

func TestGuard_CountsOneFailurePerExhaustedPolicy(t *testing.T) {
	b, _ := newTestBreaker(t, 2, time.Minute)
	p := Policy{MaxAttempts: 3, Strategy: BackoffImmediate, sleep: noSleep}
	var calls atomic.Int32

	err := Guard(context.Background(), b, p, failing(&calls))
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, domain.CircuitClosed, b.State())

	_ = Guard(context.Background(), b, p, failing(&calls))
	assert.Equal(t, domain.CircuitOpen, b.State())

	err = Guard(context.Background(), b, p, failing(&calls))
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, int32(6), calls.Load())
}

func TestGuardValue(t *testing.T) {
	b, _ := newTestBreaker(t, 2, time.Minute)
	p := Policy{MaxAttempts: 2, Strategy: BackoffImmediate, sleep: noSleep}

	v, err := GuardValue(context.Background(), b, p, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = GuardValue(context.Background(), b, p, func(context.Context) (int, error) {
		return 0, errors.New("unexpected")
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
}

func TestGuard_HalfOpenTrialSkipsRetries(t *testing.T) {
	p := Policy{MaxAttempts: 4, Strategy: BackoffImmediate, sleep: noSleep}

	tests := []struct {
		name  string
		guard func(b *CircuitBreaker, calls *atomic.Int32) error
	}{
		{
			name: "guard",
			guard: func(b *CircuitBreaker, calls *atomic.Int32) error {
				return Guard(context.Background(), b, p, failing(calls))
			},
		},
		{
			name: "guard_value",
			guard: func(b *CircuitBreaker, calls *atomic.Int32) error {
				_, err := GuardValue(context.Background(), b, p, func(ctx context.Context) (int, error) {
					return 0, failing(calls)(ctx)
				})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(t, 1, time.Second)
			var calls atomic.Int32

			require.Error(t, tt.guard(b, &calls))
			require.Equal(t, domain.CircuitOpen, b.State())
			assert.Equal(t, int32(4), calls.Load(), "a closed circuit retries the full policy")
			calls.Store(0)

			clock.Advance(2 * time.Second)
			err := tt.guard(b, &calls)
			require.ErrorIs(t, err, domain.ErrUnavailable)
			assert.False(t, errors.Is(err, ErrRetriesExhausted))
			assert.Equal(t, int32(1), calls.Load(), "the half-open trial reaches the resource once")
			assert.Equal(t, domain.CircuitOpen, b.State())
		})
	}
}
