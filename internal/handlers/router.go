// internal/handlers/router.go
package handlers

import (
	"net/http"
)

// Routes groups the handlers mounted on the API mux
type Routes struct {
	Movements *MovementHandler
	Items     *ItemHandler
	Locations *LocationHandler
	Admin     *AdminHandler
	Health    *HealthHandler
	// Metrics is mounted on /metrics when set
	Metrics http.Handler
}

// Register mounts every route on mux. adminMW guards the /api/v1/admin routes
// and may be nil.
func (rt *Routes) Register(mux *http.ServeMux, adminMW func(http.Handler) http.Handler) {
	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health.Health)
		mux.HandleFunc("GET /health/live", rt.Health.Liveness)
		mux.HandleFunc("GET /health/ready", rt.Health.Readiness)
	}
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	mux.HandleFunc("POST /api/v1/movements/validate", rt.Movements.ValidateMovement)
	mux.HandleFunc("POST /api/v1/movements", rt.Movements.ExecuteMovement)
	mux.HandleFunc("GET /api/v1/movements", rt.Movements.ListMovements)
	mux.HandleFunc("GET /api/v1/movements/export", rt.Movements.ExportMovements)

	mux.HandleFunc("POST /api/v1/items", rt.Items.CreateItem)
	mux.HandleFunc("GET /api/v1/items/search", rt.Items.SearchItems)
	mux.HandleFunc("GET /api/v1/items/{id}", rt.Items.GetItem)
	mux.HandleFunc("PUT /api/v1/items/{id}", rt.Items.UpdateItem)
	mux.HandleFunc("DELETE /api/v1/items/{id}", rt.Items.DeleteItem)

	mux.HandleFunc("POST /api/v1/locations", rt.Locations.CreateLocation)
	mux.HandleFunc("GET /api/v1/locations/{id}", rt.Locations.GetLocation)

	if rt.Admin == nil {
		return
	}
	guard := func(h http.HandlerFunc) http.Handler {
		if adminMW == nil {
			return h
		}
		return adminMW(h)
	}
	mux.Handle("GET /api/v1/admin/validation", guard(rt.Admin.GetValidationReport))
	mux.Handle("PUT /api/v1/admin/rules/{name}", guard(rt.Admin.OverrideRule))
	mux.Handle("GET /api/v1/admin/errors", guard(rt.Admin.GetErrorSummary))
	mux.Handle("POST /api/v1/admin/resync", guard(rt.Admin.Resync))
	mux.Handle("POST /api/v1/admin/archive", guard(rt.Admin.Archive))
	mux.Handle("GET /api/v1/admin/archives", guard(rt.Admin.ListArchives))
}
