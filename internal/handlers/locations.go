// internal/handlers/locations.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

// LocationHandler handles storage location HTTP requests
type LocationHandler struct {
	responder
	service ports.InventoryMutationService
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(service ports.InventoryMutationService, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{
		responder: newResponder(logger, "locations"),
		service:   service,
	}
}

// LocationRequest is the body of location creation
type LocationRequest struct {
	ID       *uuid.UUID          `json:"id,omitempty"`
	ParentID *uuid.UUID          `json:"parent_id,omitempty"`
	Name     string              `json:"name"`
	Tier     domain.LocationTier `json:"tier"`
	Capacity *int64              `json:"capacity,omitempty"`
}

// ToDomain converts the request to a domain model
func (r *LocationRequest) ToDomain() *domain.Location {
	loc := &domain.Location{
		ParentID: r.ParentID,
		Name:     r.Name,
		Tier:     r.Tier,
		Capacity: r.Capacity,
	}
	if r.ID != nil {
		loc.ID = *r.ID
	}
	return loc
}

// LocationResponse is a location with its path from the root
type LocationResponse struct {
	*domain.Location
	Path      []string          `json:"path"`
	Ancestors []domain.Location `json:"ancestors"`
}

func newLocationResponse(path domain.LocationPath) LocationResponse {
	ancestors := []domain.Location{}
	if len(path) > 1 {
		ancestors = path[1:]
	}
	return LocationResponse{
		Location:  path.Leaf(),
		Path:      path.Names(),
		Ancestors: ancestors,
	}
}

// CreateLocation handles POST /api/v1/locations
func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LocationRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondServiceError(w, r, "location.create", err)
		return
	}

	loc := req.ToDomain()
	if err := h.service.SaveLocation(ctx, loc); err != nil {
		h.respondServiceError(w, r, "location.create", err)
		return
	}

	h.logger.InfoContext(ctx, "location created",
		slog.String("location_id", loc.ID.String()),
		slog.String("tier", loc.Tier.String()))

	path, err := h.service.GetLocation(ctx, loc.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load created location path",
			slog.String("location_id", loc.ID.String()),
			slog.String("error", err.Error()))
		h.respondJSON(w, http.StatusCreated, loc)
		return
	}
	h.respondJSON(w, http.StatusCreated, newLocationResponse(path))
}

// GetLocation handles GET /api/v1/locations/{id}
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, "location.get", err)
		return
	}

	path, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "location.get", err)
		return
	}
	if len(path) == 0 {
		h.respondServiceError(w, r, "location.get", domain.NotFoundError("location", id))
		return
	}

	h.respondJSON(w, http.StatusOK, newLocationResponse(path))
}
