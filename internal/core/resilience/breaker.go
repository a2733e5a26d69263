// internal/core/resilience/breaker.go
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/pkg/metrics"
)

// ErrCircuitOpen is returned without calling the resource while its circuit is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a circuit breaker
type BreakerConfig struct {
	// Threshold is the number of failures within Window that opens the circuit
	Threshold int
	Window    time.Duration
	// Cooldown is the first open period; later trial failures grow it by CooldownMultiplier
	Cooldown           time.Duration
	MaxCooldown        time.Duration
	CooldownMultiplier float64
	// IsFailure decides whether an error counts against the resource
	IsFailure func(error) bool
}

// DefaultBreakerConfig returns the defaults used for the vector index and embedder
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:          5,
		Window:             30 * time.Second,
		Cooldown:           10 * time.Second,
		MaxCooldown:        5 * time.Minute,
		CooldownMultiplier: 2,
	}
}

func (c *BreakerConfig) applyDefaults() {
	defaults := DefaultBreakerConfig()
	if c.Threshold <= 0 {
		c.Threshold = defaults.Threshold
	}
	if c.Window <= 0 {
		c.Window = defaults.Window
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaults.Cooldown
	}
	if c.MaxCooldown < c.Cooldown {
		c.MaxCooldown = max(defaults.MaxCooldown, c.Cooldown)
	}
	if c.CooldownMultiplier < 1 {
		c.CooldownMultiplier = defaults.CooldownMultiplier
	}
	if c.IsFailure == nil {
		c.IsFailure = defaultIsFailure
	}
}

func defaultIsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	cat, _ := Categorize(err)
	return cat != domain.CategoryValidation
}

// CircuitBreaker gates calls to one unreliable resource.
// Safe for concurrent use; no lock is held while the protected call runs.
type CircuitBreaker struct {
	resource string
	config   BreakerConfig
	logger   *slog.Logger
	now      func() time.Time

	state         atomic.Int32
	trialInFlight atomic.Bool
	nextRetryAt   atomic.Int64 // unix nanos
	cooldown      atomic.Int64 // nanos

	mu          sync.Mutex
	failures    []time.Time // ring buffer of failure timestamps
	failureIdx  int
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed breaker for resource
func NewCircuitBreaker(resource string, config BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	b := &CircuitBreaker{
		resource: resource,
		config:   config,
		logger:   logger.With(slog.String("component", "circuit_breaker"), slog.String("resource", resource)),
		now:      time.Now,
		failures: make([]time.Time, config.Threshold),
	}
	b.cooldown.Store(int64(config.Cooldown))
	metrics.SetCircuitState(resource, int(domain.CircuitClosed))
	return b
}

// Resource returns the name of the protected resource
func (b *CircuitBreaker) Resource() string {
	return b.resource
}

// State returns the current circuit state
func (b *CircuitBreaker) State() domain.CircuitState {
	return domain.CircuitState(b.state.Load())
}

// Call runs fn unless the circuit rejects it
func (b *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.call(ctx, func(ctx context.Context, _ bool) error { return fn(ctx) })
}

// call runs fn unless the circuit rejects it, telling fn whether it is the
// half-open trial
func (b *CircuitBreaker) call(ctx context.Context, fn func(ctx context.Context, trial bool) error) error {
	ctx, span := otel.Tracer("resilience").Start(ctx, "circuit_breaker.Call",
		trace.WithAttributes(
			attribute.String("resource", b.resource),
			attribute.String("state", b.State().String()),
		),
	)
	defer span.End()

	trial, err := b.admit()
	if err != nil {
		metrics.RecordCircuitRejection(b.resource)
		span.SetStatus(codes.Error, "circuit open")
		return err
	}

	callErr := fn(ctx, trial)
	if trial {
		b.finishTrial(callErr)
	} else if b.config.IsFailure(callErr) {
		b.recordFailure()
	}

	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, callErr.Error())
		return callErr
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// admit decides whether a call may proceed and whether it is the half-open trial
func (b *CircuitBreaker) admit() (bool, error) {
	switch b.State() {
	case domain.CircuitClosed:
		return false, nil
	case domain.CircuitOpen:
		if b.now().UnixNano() < b.nextRetryAt.Load() {
			return false, ErrCircuitOpen
		}
		if !b.trialInFlight.CompareAndSwap(false, true) {
			return false, ErrCircuitOpen
		}
		if !b.state.CompareAndSwap(int32(domain.CircuitOpen), int32(domain.CircuitHalfOpen)) {
			b.trialInFlight.Store(false)
			return false, ErrCircuitOpen
		}
		b.logTransition(domain.CircuitOpen, domain.CircuitHalfOpen)
		return true, nil
	default:
		// A half-open circuit always has its trial in flight
		return false, ErrCircuitOpen
	}
}

// finishTrial records the trial outcome before releasing the trial flag
func (b *CircuitBreaker) finishTrial(err error) {
	defer b.trialInFlight.Store(false)

	now := b.now()
	switch {
	case err == nil:
		b.resetFailures()
		b.cooldown.Store(int64(b.config.Cooldown))
		b.state.Store(int32(domain.CircuitClosed))
		b.logTransition(domain.CircuitHalfOpen, domain.CircuitClosed)
	case b.config.IsFailure(err):
		grown := time.Duration(float64(b.cooldown.Load()) * b.config.CooldownMultiplier)
		if grown > b.config.MaxCooldown {
			grown = b.config.MaxCooldown
		}
		b.cooldown.Store(int64(grown))
		b.mu.Lock()
		b.lastFailure = now
		b.mu.Unlock()
		b.nextRetryAt.Store(now.Add(grown).UnixNano())
		b.state.Store(int32(domain.CircuitOpen))
		b.logTransition(domain.CircuitHalfOpen, domain.CircuitOpen, slog.Duration("cooldown", grown))
	default:
		// Inconclusive trial, e.g. canceled by the caller; the next caller may try again
		b.state.Store(int32(domain.CircuitOpen))
		b.logTransition(domain.CircuitHalfOpen, domain.CircuitOpen)
	}
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.lastFailure = now
	b.failures[b.failureIdx] = now
	b.failureIdx = (b.failureIdx + 1) % len(b.failures)

	if b.countLocked(now) < b.config.Threshold || b.State() != domain.CircuitClosed {
		return
	}
	cooldown := time.Duration(b.cooldown.Load())
	b.nextRetryAt.Store(now.Add(cooldown).UnixNano())
	if b.state.CompareAndSwap(int32(domain.CircuitClosed), int32(domain.CircuitOpen)) {
		b.logTransition(domain.CircuitClosed, domain.CircuitOpen,
			slog.Int("failures", b.config.Threshold),
			slog.Duration("window", b.config.Window),
			slog.Duration("cooldown", cooldown))
	}
}

func (b *CircuitBreaker) countLocked(now time.Time) int {
	windowStart := now.Add(-b.config.Window)
	count := 0
	for _, t := range b.failures {
		if !t.IsZero() && t.After(windowStart) {
			count++
		}
	}
	return count
}

func (b *CircuitBreaker) resetFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.failures {
		b.failures[i] = time.Time{}
	}
	b.failureIdx = 0
}

func (b *CircuitBreaker) logTransition(from, to domain.CircuitState, attrs ...any) {
	metrics.SetCircuitState(b.resource, int(to))
	args := append([]any{slog.String("from", from.String()), slog.String("to", to.String())}, attrs...)
	if to == domain.CircuitOpen {
		b.logger.Warn("circuit state transition", args...)
		return
	}
	b.logger.Info("circuit state transition", args...)
}

// Snapshot returns a point-in-time view of the breaker
func (b *CircuitBreaker) Snapshot() domain.CircuitSnapshot {
	b.mu.Lock()
	now := b.now()
	failures := b.countLocked(now)
	lastFailure := b.lastFailure
	b.mu.Unlock()

	snap := domain.CircuitSnapshot{
		Resource: b.resource,
		State:    b.State(),
		Failures: failures,
		Cooldown: time.Duration(b.cooldown.Load()),
	}
	if !lastFailure.IsZero() {
		snap.LastFailure = &lastFailure
	}
	if snap.State != domain.CircuitClosed {
		next := time.Unix(0, b.nextRetryAt.Load()).UTC()
		snap.NextRetryAt = &next
	}
	return snap
}
