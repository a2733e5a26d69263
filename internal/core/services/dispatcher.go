// internal/core/services/dispatcher.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/pkg/metrics"
)

// SyncTicket reports the outcome of an asynchronously dispatched sync
type SyncTicket struct {
	ItemID  uuid.UUID
	done    chan struct{}
	outcome domain.SyncOutcome
}

var _ ports.SyncHandle = (*SyncTicket)(nil)

func newSyncTicket(itemID uuid.UUID) *SyncTicket {
	return &SyncTicket{ItemID: itemID, done: make(chan struct{})}
}

func (t *SyncTicket) finish(outcome domain.SyncOutcome) {
	t.outcome = outcome
	close(t.done)
}

// Wait blocks until the sync finishes or ctx ends
func (t *SyncTicket) Wait(ctx context.Context) (domain.SyncOutcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Outcome returns the result without blocking
func (t *SyncTicket) Outcome() (domain.SyncOutcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return "", false
	}
}

// SyncFunc performs one secondary write
type SyncFunc func(ctx context.Context, itemID uuid.UUID) domain.SyncOutcome

// AsyncDispatcher runs secondary writes off the request path with bounded concurrency
type AsyncDispatcher struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher creates a dispatcher running at most concurrency syncs at once,
// each bounded by timeout including the wait for a slot.
func NewAsyncDispatcher(concurrency int64, timeout time.Duration, logger *slog.Logger) *AsyncDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncDispatcher{
		sem:     semaphore.NewWeighted(concurrency),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "sync_dispatcher")),
	}
}

// Dispatch starts fn detached from ctx cancellation and returns immediately.
// After Close the sync runs inline so no committed change is left unsynced.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, itemID uuid.UUID, fn SyncFunc) *SyncTicket {
	ticket := newSyncTicket(itemID)
	detached := context.WithoutCancel(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.run(detached, ticket, fn)
		return ticket
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.run(detached, ticket, fn)
	}()
	return ticket
}

func (d *AsyncDispatcher) run(ctx context.Context, ticket *SyncTicket, fn SyncFunc) {
	metrics.SyncStarted()
	defer metrics.SyncFinished()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outcome := domain.SyncFailedExhausted
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "sync panicked",
				slog.String("item_id", ticket.ItemID.String()),
				slog.String("panic", fmt.Sprint(r)))
		}
		ticket.finish(outcome)
	}()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.WarnContext(ctx, "sync slot not acquired",
			slog.String("item_id", ticket.ItemID.String()),
			slog.String("error", err.Error()))
		return
	}
	defer d.sem.Release(1)

	outcome = fn(ctx, ticket.ItemID)
}

// Close stops accepting background work and waits for in-flight syncs
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync dispatcher did not drain: %w", ctx.Err())
	}
}
