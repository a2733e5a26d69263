// internal/handlers/items.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// ItemHandler handles item HTTP requests
type ItemHandler struct {
	responder
	service  ports.InventoryMutationService
	syncWait time.Duration
}

// NewItemHandler creates a new item handler
func NewItemHandler(service ports.InventoryMutationService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		responder: newResponder(logger, "items"),
		service:   service,
		syncWait:  defaultSyncWait,
	}
}

// ItemRequest is the body of item creation and replacement
type ItemRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Status      string          `json:"status,omitempty"`
	UnitValue   decimal.Decimal `json:"unit_value"`
}

// ToDomain converts the request to a domain model
func (r *ItemRequest) ToDomain(id uuid.UUID) *domain.Item {
	return &domain.Item{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		Tags:        r.Tags,
		Status:      domain.ItemStatus(r.Status),
		UnitValue:   r.UnitValue,
	}
}

// ItemResponse is an item with its stock and the state of its index sync
type ItemResponse struct {
	*domain.Item
	Stock []domain.InventoryRecord `json:"stock,omitempty"`
	Sync  *SyncStatus              `json:"sync,omitempty"`
}

// CreateItem handles POST /api/v1/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ItemRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondServiceError(w, r, "item.create", err)
		return
	}

	item := req.ToDomain(uuid.Nil)
	handle, err := h.service.SaveItem(ctx, item)
	if err != nil {
		h.respondServiceError(w, r, "item.create", err)
		return
	}

	h.logger.InfoContext(ctx, "item created",
		slog.String("item_id", item.ID.String()),
		slog.String("name", item.Name))

	status := syncStatus(ctx, handle, queryBool(r, "wait"), h.syncWait)
	h.respondJSON(w, http.StatusCreated, ItemResponse{Item: item, Sync: &status})
}

// GetItem handles GET /api/v1/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathUUID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, "item.get", err)
		return
	}

	item, err := h.service.GetItem(ctx, id)
	if err != nil {
		h.respondServiceError(w, r, "item.get", err)
		return
	}

	stock, err := h.service.GetItemStock(ctx, id)
	if err != nil {
		h.respondServiceError(w, r, "item.get", err)
		return
	}

	h.respondJSON(w, http.StatusOK, ItemResponse{Item: item, Stock: stock})
}

// UpdateItem handles PUT /api/v1/items/{id}. The item must exist.
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathUUID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, "item.update", err)
		return
	}

	var req ItemRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondServiceError(w, r, "item.update", err)
		return
	}

	existing, err := h.service.GetItem(ctx, id)
	if err != nil {
		h.respondServiceError(w, r, "item.update", err)
		return
	}

	item := req.ToDomain(id)
	item.CreatedAt = existing.CreatedAt
	handle, err := h.service.SaveItem(ctx, item)
	if err != nil {
		h.respondServiceError(w, r, "item.update", err)
		return
	}

	h.logger.InfoContext(ctx, "item updated", slog.String("item_id", id.String()))

	status := syncStatus(ctx, handle, queryBool(r, "wait"), h.syncWait)
	h.respondJSON(w, http.StatusOK, ItemResponse{Item: item, Sync: &status})
}

// DeleteItem handles DELETE /api/v1/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathUUID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, "item.delete", err)
		return
	}

	handle, err := h.service.DeleteItem(ctx, id)
	if err != nil {
		h.respondServiceError(w, r, "item.delete", err)
		return
	}

	h.logger.InfoContext(ctx, "item deleted", slog.String("item_id", id.String()))

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Item deleted successfully",
		"item_id": id.String(),
		"sync":    syncStatus(ctx, handle, queryBool(r, "wait"), h.syncWait),
	})
}

// SearchItems handles GET /api/v1/items/search?q=
func (h *ItemHandler) SearchItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := queryLimit(r, defaultSearchLimit, maxSearchLimit)

	hits, err := h.service.SearchItems(r.Context(), query, limit)
	if err != nil {
		h.respondServiceError(w, r, "item.search", err)
		return
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"hits":  hits,
	})
}
