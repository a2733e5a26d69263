// internal/handlers/movements.go
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/pkg/export"
	"github.com/ammerola/household-be/internal/pkg/logger"
)

const (
	defaultSyncWait    = 2 * time.Second
	defaultListLimit   = 100
	maxListLimit       = 1000
	maxExportMovements = 50000
)

// SyncStatus reports the state of the secondary write behind a response
type SyncStatus struct {
	State   string             `json:"state"`
	Outcome domain.SyncOutcome `json:"outcome,omitempty"`
}

// syncStatus waits up to d for the handle when wait is set
func syncStatus(ctx context.Context, handle ports.SyncHandle, wait bool, d time.Duration) SyncStatus {
	if handle == nil {
		return SyncStatus{State: "none"}
	}
	if wait {
		waitCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		if outcome, err := handle.Wait(waitCtx); err == nil {
			return SyncStatus{State: "done", Outcome: outcome}
		}
	}
	if outcome, ok := handle.Outcome(); ok {
		return SyncStatus{State: "done", Outcome: outcome}
	}
	return SyncStatus{State: "pending"}
}

// MovementHandler handles movement validation, execution and the audit log
type MovementHandler struct {
	responder
	service  ports.InventoryMutationService
	syncWait time.Duration
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(service ports.InventoryMutationService, logger *slog.Logger) *MovementHandler {
	return &MovementHandler{
		responder: newResponder(logger, "movements"),
		service:   service,
		syncWait:  defaultSyncWait,
	}
}

// MovementRequest is the body of movement validation and execution
type MovementRequest struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Type          string     `json:"type,omitempty"`
	SourceID      *uuid.UUID `json:"source_id,omitempty"`
	DestinationID *uuid.UUID `json:"destination_id,omitempty"`
	Quantity      int64      `json:"quantity"`
}

// Validate checks the shape of the request; business rules run in the service
func (r *MovementRequest) Validate() error {
	if r.ItemID == uuid.Nil {
		return domain.NewValidationError("item_id", "item_id is required")
	}
	if r.Type != "" && !domain.MovementType(r.Type).Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown movement type %q", r.Type))
	}
	return nil
}

// ToDomain converts the request, stamping the request's correlation ID
func (r *MovementRequest) ToDomain(ctx context.Context) *domain.MovementRequest {
	return &domain.MovementRequest{
		ItemID:        r.ItemID,
		Type:          domain.MovementType(r.Type),
		SourceID:      r.SourceID,
		DestinationID: r.DestinationID,
		Quantity:      r.Quantity,
		CorrelationID: logger.CorrelationID(ctx),
	}
}

// ValidationResponse is the result of a dry run
type ValidationResponse struct {
	Overall  domain.Verdict    `json:"overall"`
	Verdicts domain.VerdictSet `json:"verdicts"`
}

// ExecutionResponse is the result of an executed movement
type ExecutionResponse struct {
	*ports.MovementResult
	Sync SyncStatus `json:"sync"`
}

func (h *MovementHandler) decodeMovement(w http.ResponseWriter, r *http.Request) (*domain.MovementRequest, bool) {
	var req MovementRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondServiceError(w, r, "movement.decode", err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		h.respondServiceError(w, r, "movement.decode", err)
		return nil, false
	}
	return req.ToDomain(r.Context()), true
}

// ValidateMovement handles POST /api/v1/movements/validate
func (h *MovementHandler) ValidateMovement(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}

	verdicts, err := h.service.ValidateMovement(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, "movement.validate", err)
		return
	}

	h.respondJSON(w, http.StatusOK, ValidationResponse{
		Overall:  verdicts.Overall(),
		Verdicts: *verdicts,
	})
}

// ExecuteMovement handles POST /api/v1/movements.
// With ?wait=true the response includes the sync outcome when it lands in time.
func (h *MovementHandler) ExecuteMovement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}

	result, err := h.service.ExecuteMovement(ctx, req)
	if err != nil {
		h.respondServiceError(w, r, "movement.execute", err)
		return
	}

	h.logger.InfoContext(ctx, "movement executed",
		slog.String("movement_id", result.Entry.ID.String()),
		slog.String("item_id", result.Entry.ItemID.String()),
		slog.String("type", string(result.Entry.Type)),
		slog.Int64("quantity", result.Entry.Quantity))

	h.respondJSON(w, http.StatusCreated, ExecutionResponse{
		MovementResult: result,
		Sync:           syncStatus(ctx, result.Sync, queryBool(r, "wait"), h.syncWait),
	})
}

func parseMovementFilter(r *http.Request) (domain.MovementFilter, error) {
	var filter domain.MovementFilter
	var err error
	if filter.ItemID, err = queryUUID(r, "item_id"); err != nil {
		return filter, err
	}
	if filter.From, err = queryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// ListMovements handles GET /api/v1/movements
func (h *MovementHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		h.respondServiceError(w, r, "movement.list", err)
		return
	}
	filter.Limit = queryLimit(r, defaultListLimit, maxListLimit)

	entries, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, "movement.list", err)
		return
	}
	if entries == nil {
		entries = []domain.MovementLogEntry{}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"movements": entries,
		"count":     len(entries),
	})
}

// ExportMovements handles GET /api/v1/movements/export
func (h *MovementHandler) ExportMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseMovementFilter(r)
	if err != nil {
		h.respondServiceError(w, r, "movement.export", err)
		return
	}

	entries, err := export.CollectMovements(ctx, h.service, filter, maxExportMovements)
	if err != nil {
		h.respondServiceError(w, r, "movement.export", err)
		return
	}

	data, err := export.MovementWorkbook(entries, "Movements")
	if err != nil {
		h.respondServiceError(w, r, "movement.export", err)
		return
	}

	filename := fmt.Sprintf("movements_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "movement export completed",
		slog.Int("rows", len(entries)),
		slog.String("filename", filename))
}
