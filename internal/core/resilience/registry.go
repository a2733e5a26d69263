// internal/core/resilience/registry.go
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/ammerola/household-be/internal/core/domain"
)

// Resource names used by the sync path
const (
	ResourceEmbedder    = "embedder"
	ResourceVectorIndex = "vector-index"
)

// Registry owns one breaker per external resource
type Registry struct {
	config BreakerConfig
	logger *slog.Logger

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose breakers share config
func NewRegistry(config BreakerConfig, logger *slog.Logger) *Registry {
	return &Registry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Breaker returns the breaker for resource, creating it on first use
func (r *Registry) Breaker(resource string) *CircuitBreaker {
	r.mu.RLock()
	b, ok := r.breakers[resource]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[resource]; ok {
		return b
	}
	b = NewCircuitBreaker(resource, r.config, r.logger)
	r.breakers[resource] = b
	return b
}

// Snapshots returns every breaker's state sorted by resource
func (r *Registry) Snapshots() []domain.CircuitSnapshot {
	r.mu.RLock()
	out := make([]domain.CircuitSnapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// Guard runs op through the resource's breaker with policy retrying inside it.
// A single breaker failure is recorded per exhausted policy run. The half-open
// trial runs op exactly once.
func Guard(ctx context.Context, b *CircuitBreaker, p Policy, op func(ctx context.Context) error) error {
	return b.call(ctx, func(ctx context.Context, trial bool) error {
		if trial {
			return op(ctx)
		}
		return p.Execute(ctx, op)
	})
}

// GuardValue is Guard for operations that return a value
func GuardValue[T any](ctx context.Context, b *CircuitBreaker, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.call(ctx, func(ctx context.Context, trial bool) error {
		var (
			v   T
			err error
		)
		if trial {
			v, err = op(ctx)
		} else {
			v, err = Retry(ctx, p, op)
		}
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// IsCircuitOpen reports whether err is a breaker rejection
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
