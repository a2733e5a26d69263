// internal/workers/resync_processor.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/services"
	"github.com/ammerola/household-be/internal/pkg/logger"
)

// Resyncer runs a reconciliation sweep
type Resyncer interface {
	ResyncAll(ctx context.Context, since time.Time) (*ports.ResyncReport, error)
}

// ResyncProcessor handles sync:resync tasks
type ResyncProcessor struct {
	service  Resyncer
	lookback time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewResyncProcessor creates a new resync processor. lookback bounds sweeps
// whose payload carries no start time; that start is aligned to the UTC day
// so retries of the same task resume the same checkpoint.
func NewResyncProcessor(service Resyncer, lookback time.Duration, logger *slog.Logger) *ResyncProcessor {
	return &ResyncProcessor{
		service:  service,
		lookback: lookback,
		logger:   logger.With(slog.String("processor", "resync")),
		now:      time.Now,
	}
}

// ProcessResync runs the sweep. An interrupted sweep returns an error so
// asynq retries it; the retry resumes from the saved checkpoint. Items passed
// over by a completed sweep are left to the next scheduled run.
func (p *ResyncProcessor) ProcessResync(ctx context.Context, t *asynq.Task) error {
	var payload ResyncPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, payload.CorrelationID)
	}

	since := payload.Since
	if since.IsZero() {
		since = p.now().UTC().Add(-p.lookback).Truncate(24 * time.Hour)
	}

	p.logger.InfoContext(ctx, "starting resync", slog.Time("since", since))

	report, err := p.service.ResyncAll(ctx, since)
	if err != nil {
		if errors.Is(err, services.ErrResyncInterrupted) {
			p.logger.WarnContext(ctx, "resync interrupted, will resume",
				slog.String("error", err.Error()))
		}
		return fmt.Errorf("resync failed: %w", err)
	}

	if report.Failed > 0 {
		ids := make([]string, len(report.FailedIDs))
		for i, id := range report.FailedIDs {
			ids[i] = id.String()
		}
		p.logger.WarnContext(ctx, "resync passed over items that did not sync",
			slog.Int("failed", report.Failed),
			slog.Any("item_ids", ids))
	}

	p.logger.InfoContext(ctx, "resync completed",
		slog.Bool("resumed", report.Resumed),
		slog.Int("processed", report.Processed),
		slog.Int("failed", report.Failed),
		slog.Any("outcomes", report.Outcomes))

	return nil
}
