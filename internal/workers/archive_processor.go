// internal/workers/archive_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/pkg/export"
	"github.com/ammerola/household-be/internal/pkg/logger"
)

// ArchiveProcessor writes one workbook per day of movement log to the archive store
type ArchiveProcessor struct {
	movements export.MovementLister
	store     ports.ArchiveStore
	prefix    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiveProcessor creates a new archive processor
func NewArchiveProcessor(movements export.MovementLister, store ports.ArchiveStore, prefix string, logger *slog.Logger) *ArchiveProcessor {
	return &ArchiveProcessor{
		movements: movements,
		store:     store,
		prefix:    prefix,
		logger:    logger.With(slog.String("processor", "archive")),
		now:       time.Now,
	}
}

// ProcessArchive handles audit:archive tasks. Days without movements are
// skipped, as are days already archived unless the payload asks to overwrite.
func (p *ArchiveProcessor) ProcessArchive(ctx context.Context, t *asynq.Task) error {
	var payload ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, payload.CorrelationID)
	}
	payload.Resolve(p.now())

	keys, err := p.Archive(ctx, payload.From, payload.To, payload.Overwrite)
	if err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "movement log archived",
		slog.Time("from", payload.From),
		slog.Time("to", payload.To),
		slog.Int("files", len(keys)))
	return nil
}

// Archive uploads the days in [from, to) and returns the keys written
func (p *ArchiveProcessor) Archive(ctx context.Context, from, to time.Time, overwrite bool) ([]string, error) {
	var keys []string
	for day := from.UTC().Truncate(24 * time.Hour); day.Before(to); day = day.Add(24 * time.Hour) {
		if err := ctx.Err(); err != nil {
			return keys, err
		}

		key := export.ArchiveKey(p.prefix, day)
		if !overwrite {
			exists, err := p.store.Exists(ctx, key)
			if err != nil {
				return keys, fmt.Errorf("failed to check archive %s: %w", key, err)
			}
			if exists {
				p.logger.DebugContext(ctx, "day already archived", slog.String("key", key))
				continue
			}
		}

		end := day.Add(24*time.Hour - time.Nanosecond)
		entries, err := export.CollectMovements(ctx, p.movements, domain.MovementFilter{From: &day, To: &end}, 0)
		if err != nil {
			return keys, fmt.Errorf("failed to read movements for %s: %w", day.Format(time.DateOnly), err)
		}
		if len(entries) == 0 {
			p.logger.DebugContext(ctx, "no movements to archive", slog.String("day", day.Format(time.DateOnly)))
			continue
		}

		data, err := export.MovementWorkbook(entries, day.Format(time.DateOnly))
		if err != nil {
			return keys, fmt.Errorf("failed to render archive for %s: %w", day.Format(time.DateOnly), err)
		}

		location, err := p.store.Upload(ctx, key, bytes.NewReader(data), export.ContentTypeXLSX)
		if err != nil {
			return keys, fmt.Errorf("failed to upload archive %s: %w", key, err)
		}

		p.logger.InfoContext(ctx, "archived movement log",
			slog.String("key", key),
			slog.String("location", location),
			slog.Int("rows", len(entries)))
		keys = append(keys, key)
	}
	return keys, nil
}
