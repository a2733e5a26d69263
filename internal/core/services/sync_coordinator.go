// internal/core/services/sync_coordinator.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/resilience"
	"github.com/ammerola/household-be/internal/pkg/metrics"
)

// ErrResyncInterrupted is returned when a sweep stops before reaching the end
var ErrResyncInterrupted = errors.New("resync interrupted")

const defaultSearchLimit = 10

// SyncConfig tunes the secondary write path
type SyncConfig struct {
	BatchSize   int
	EmbedPolicy resilience.Policy
	IndexPolicy resilience.Policy
}

// DefaultSyncConfig returns the default batch size and retry policies
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:   100,
		EmbedPolicy: resilience.DefaultPolicy("embed"),
		IndexPolicy: resilience.DefaultPolicy("vector_upsert"),
	}
}

// SyncCoordinator mirrors committed items into the vector index. Every call
// runs through the resource's circuit breaker with retries inside it; failures
// become a recorded outcome instead of an error.
type SyncCoordinator struct {
	store       ports.InventoryStore
	index       ports.VectorStore
	embedder    ports.Embedder
	checkpoints ports.CheckpointStore
	embedCB     *resilience.CircuitBreaker
	indexCB     *resilience.CircuitBreaker
	classifier  *resilience.Classifier
	config      SyncConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewSyncCoordinator wires the coordinator. checkpoints may be nil, in which
// case sweeps cannot resume.
func NewSyncCoordinator(
	store ports.InventoryStore,
	index ports.VectorStore,
	embedder ports.Embedder,
	checkpoints ports.CheckpointStore,
	breakers *resilience.Registry,
	classifier *resilience.Classifier,
	config SyncConfig,
	logger *slog.Logger,
) *SyncCoordinator {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultSyncConfig().BatchSize
	}
	return &SyncCoordinator{
		store:       store,
		index:       index,
		embedder:    embedder,
		checkpoints: checkpoints,
		embedCB:     breakers.Breaker(resilience.ResourceEmbedder),
		indexCB:     breakers.Breaker(resilience.ResourceVectorIndex),
		classifier:  classifier,
		config:      config,
		logger:      logger.With(slog.String("service", "sync")),
		now:         time.Now,
	}
}

// SyncAfterCommit reads the committed item back and mirrors it into the index.
// An item that no longer exists is removed from the index.
func (c *SyncCoordinator) SyncAfterCommit(ctx context.Context, itemID uuid.UUID) domain.SyncOutcome {
	item, err := c.store.GetItem(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.DeleteAfterCommit(ctx, itemID)
	}
	if err != nil {
		c.classifier.Classify(ctx, "sync.read", err, map[string]any{"item_id": itemID.String()})
		return domain.SyncFailedExhausted
	}
	return c.syncItem(ctx, item)
}

// DeleteAfterCommit removes the item from the index
func (c *SyncCoordinator) DeleteAfterCommit(ctx context.Context, itemID uuid.UUID) domain.SyncOutcome {
	ctx, span := otel.Tracer("sync").Start(ctx, "sync.Delete",
		trace.WithAttributes(attribute.String("item_id", itemID.String())))
	defer span.End()

	start := c.now()
	err := resilience.Guard(ctx, c.indexCB, c.config.IndexPolicy, func(ctx context.Context) error {
		return c.index.Delete(ctx, itemID)
	})
	outcome := c.outcome(ctx, "sync.delete", itemID, err)
	c.finish(span, "delete", outcome, start)
	return outcome
}

func (c *SyncCoordinator) syncItem(ctx context.Context, item *domain.Item) domain.SyncOutcome {
	if item.IsDeleted() {
		return c.DeleteAfterCommit(ctx, item.ID)
	}

	ctx, span := otel.Tracer("sync").Start(ctx, "sync.Upsert",
		trace.WithAttributes(attribute.String("item_id", item.ID.String())))
	defer span.End()
	start := c.now()

	paths, err := c.store.ItemLocations(ctx, item.ID)
	if err != nil {
		// location names only enrich the document
		c.logger.WarnContext(ctx, "failed to load item locations for sync",
			slog.String("item_id", item.ID.String()),
			slog.String("error", err.Error()))
	}
	text := CombinedText(item, paths)

	vector, err := resilience.GuardValue(ctx, c.embedCB, c.config.EmbedPolicy, func(ctx context.Context) ([]float32, error) {
		return c.embedder.Embed(ctx, text)
	})
	if err != nil {
		outcome := c.outcome(ctx, "sync.embed", item.ID, err)
		c.finish(span, "upsert", outcome, start)
		return outcome
	}

	props := documentProperties(item, paths)
	err = resilience.Guard(ctx, c.indexCB, c.config.IndexPolicy, func(ctx context.Context) error {
		return c.index.Upsert(ctx, item.ID, vector, props)
	})
	outcome := c.outcome(ctx, "sync.upsert", item.ID, err)
	c.finish(span, "upsert", outcome, start)
	return outcome
}

// outcome maps a guarded call's error to a sync outcome, classifying failures
func (c *SyncCoordinator) outcome(ctx context.Context, operation string, itemID uuid.UUID, err error) domain.SyncOutcome {
	switch {
	case err == nil:
		return domain.SyncSucceeded
	case resilience.IsCircuitOpen(err):
		c.logger.WarnContext(ctx, "sync skipped, circuit open",
			slog.String("operation", operation),
			slog.String("item_id", itemID.String()))
		return domain.SyncSkippedOpen
	default:
		c.classifier.Classify(ctx, operation, err, map[string]any{"item_id": itemID.String()})
		return domain.SyncFailedExhausted
	}
}

func (c *SyncCoordinator) finish(span trace.Span, operation string, outcome domain.SyncOutcome, start time.Time) {
	metrics.RecordSync(operation, string(outcome), c.now().Sub(start))
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome == domain.SyncSucceeded {
		span.SetStatus(codes.Ok, "synced")
	} else {
		span.SetStatus(codes.Error, string(outcome))
	}
}

// Search embeds the query and returns the nearest items. Errors propagate
// because the caller is waiting on the answer.
func (c *SyncCoordinator) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vector, err := resilience.GuardValue(ctx, c.embedCB, c.config.EmbedPolicy, func(ctx context.Context) ([]float32, error) {
		return c.embedder.Embed(ctx, query)
	})
	if err != nil {
		c.classifier.Classify(ctx, "search.embed", err, map[string]any{"query": query})
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	hits, err := resilience.GuardValue(ctx, c.indexCB, c.config.IndexPolicy, func(ctx context.Context) ([]domain.SearchHit, error) {
		return c.index.Query(ctx, vector, limit)
	})
	if err != nil {
		c.classifier.Classify(ctx, "search.query", err, map[string]any{"query": query})
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}
	return hits, nil
}

// ResyncAll re-mirrors every item updated since the given time. The sweep walks
// items in (updated_at, id) order, checkpointing after each batch. An item whose
// retries are exhausted is recorded in the checkpoint and passed over; the next
// sweep retries it. An open circuit or a canceled context stops the sweep so a
// later run resumes at the item that was skipped.
func (c *SyncCoordinator) ResyncAll(ctx context.Context, since time.Time) (*ports.ResyncReport, error) {
	since = since.UTC()
	ctx, span := otel.Tracer("sync").Start(ctx, "sync.ResyncAll",
		trace.WithAttributes(attribute.String("since", since.Format(time.RFC3339))))
	defer span.End()

	report := &ports.ResyncReport{Since: since, Outcomes: make(map[domain.SyncOutcome]int)}
	checkpoint := c.resumeCheckpoint(ctx, since)
	report.Resumed = checkpoint.Processed > 0 || checkpoint.CursorID != uuid.Nil

	var cursor *domain.ItemCursor
	if checkpoint.CursorID != uuid.Nil {
		cursor = &domain.ItemCursor{UpdatedAt: checkpoint.CursorUpdatedAt, ID: checkpoint.CursorID}
	}

	stop := func(err error) (*ports.ResyncReport, error) {
		c.saveCheckpoint(ctx, checkpoint)
		report.Processed = checkpoint.Processed
		report.Failed = checkpoint.Failed
		report.FailedIDs = append([]uuid.UUID(nil), checkpoint.FailedIDs...)
		report.Checkpoint = checkpoint
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "complete")
		}
		return report, err
	}

	c.logger.InfoContext(ctx, "resync started",
		slog.Time("since", since),
		slog.Bool("resumed", report.Resumed))

	for {
		if err := ctx.Err(); err != nil {
			return stop(fmt.Errorf("%w: %w", ErrResyncInterrupted, err))
		}

		items, err := c.store.ListItemsUpdatedSince(ctx, since, cursor, c.config.BatchSize)
		if err != nil {
			c.classifier.Classify(ctx, "resync.list", err, nil)
			return stop(fmt.Errorf("failed to list items for resync: %w", err))
		}

		for i := range items {
			item := &items[i]
			outcome := c.syncItem(ctx, item)
			report.Outcomes[outcome]++
			if err := ctx.Err(); err != nil {
				return stop(fmt.Errorf("%w: %w", ErrResyncInterrupted, err))
			}
			switch outcome {
			case domain.SyncSucceeded:
				checkpoint.Processed++
			case domain.SyncSkippedOpen:
				return stop(fmt.Errorf("%w at item %s: %s", ErrResyncInterrupted, item.ID, outcome))
			default:
				checkpoint.Failed++
				checkpoint.FailedIDs = append(checkpoint.FailedIDs, item.ID)
				c.logger.WarnContext(ctx, "resync passed over item",
					slog.String("item_id", item.ID.String()),
					slog.String("outcome", string(outcome)))
			}
			checkpoint.CursorUpdatedAt = item.UpdatedAt
			checkpoint.CursorID = item.ID
		}

		if len(items) < c.config.BatchSize {
			completed := c.now().UTC()
			checkpoint.CompletedAt = &completed
			report.Complete = true
			c.logger.InfoContext(ctx, "resync complete",
				slog.Int("processed", checkpoint.Processed),
				slog.Int("failed", checkpoint.Failed))
			return stop(nil)
		}

		cursor = &domain.ItemCursor{UpdatedAt: checkpoint.CursorUpdatedAt, ID: checkpoint.CursorID}
		c.saveCheckpoint(ctx, checkpoint)
	}
}

// resumeCheckpoint returns the unfinished checkpoint for since, or a fresh one
func (c *SyncCoordinator) resumeCheckpoint(ctx context.Context, since time.Time) *domain.SyncCheckpoint {
	fresh := &domain.SyncCheckpoint{Since: since, StartedAt: c.now().UTC()}
	if c.checkpoints == nil {
		return fresh
	}

	previous, err := c.checkpoints.LoadCheckpoint(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to load sync checkpoint, starting over",
			slog.String("error", err.Error()))
		return fresh
	}
	if previous == nil || previous.Complete() || !previous.Since.Equal(since) {
		return fresh
	}
	return previous
}

func (c *SyncCoordinator) saveCheckpoint(ctx context.Context, checkpoint *domain.SyncCheckpoint) {
	if c.checkpoints == nil {
		return
	}
	// a canceled sweep still records where it stopped
	if err := c.checkpoints.SaveCheckpoint(context.WithoutCancel(ctx), checkpoint); err != nil {
		c.logger.WarnContext(ctx, "failed to save sync checkpoint",
			slog.String("error", err.Error()))
	}
}

// LastCheckpoint returns the most recent sweep checkpoint, if any
func (c *SyncCoordinator) LastCheckpoint(ctx context.Context) (*domain.SyncCheckpoint, error) {
	if c.checkpoints == nil {
		return nil, nil
	}
	return c.checkpoints.LoadCheckpoint(ctx)
}

// CombinedText is the document embedded for an item
func CombinedText(item *domain.Item, paths []domain.LocationPath) string {
	parts := []string{item.Name}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	if item.CategoryName != "" {
		parts = append(parts, "Category: "+item.CategoryName)
	}
	if len(item.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(item.Tags, ", "))
	}
	for _, path := range paths {
		parts = append(parts, "Location: "+strings.Join(path.Names(), " > "))
	}
	return strings.Join(parts, "\n")
}

func documentProperties(item *domain.Item, paths []domain.LocationPath) map[string]any {
	locations := make([]string, 0, len(paths))
	for _, path := range paths {
		locations = append(locations, strings.Join(path.Names(), " > "))
	}
	return map[string]any{
		"item_id":     item.ID.String(),
		"name":        item.Name,
		"description": item.Description,
		"category":    item.CategoryName,
		"tags":        strings.Join(item.Tags, ", "),
		"locations":   strings.Join(locations, "; "),
		"status":      string(item.Status),
	}
}
