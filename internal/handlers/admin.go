// internal/handlers/admin.go
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/validation"
	"github.com/ammerola/household-be/internal/pkg/logger"
	"github.com/ammerola/household-be/internal/workers"
)

const (
	maxArchiveDays = 366

	defaultArchiveURLExpiry = 15 * time.Minute
	// S3 rejects presigned URLs valid for longer than a week
	maxArchiveURLExpiry = 7 * 24 * time.Hour
)

// AdminHandler exposes rule configuration, error reporting and background jobs
type AdminHandler struct {
	responder
	service  ports.InventoryMutationService
	enqueuer workers.Enqueuer
	archives ports.ArchiveStore
	jobOpts  []asynq.Option
	now      func() time.Time
}

// NewAdminHandler creates a new admin handler. A nil enqueuer disables the
// job endpoints and a nil archive store the archive listing. A positive
// maxRetry overrides the retry count of enqueued jobs.
func NewAdminHandler(service ports.InventoryMutationService, enqueuer workers.Enqueuer, archives ports.ArchiveStore, maxRetry int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		responder: newResponder(logger, "admin"),
		service:   service,
		enqueuer:  enqueuer,
		archives:  archives,
		jobOpts:   workers.JobOptions(maxRetry),
		now:       time.Now,
	}
}

// RuleOverrideRequest is the body of PUT /api/v1/admin/rules/{name}
type RuleOverrideRequest struct {
	Enabled *bool             `json:"enabled,omitempty"`
	Params  validation.Params `json:"params,omitempty"`
}

// ResyncRequest is the optional body of POST /api/v1/admin/resync
type ResyncRequest struct {
	Since *time.Time `json:"since,omitempty"`
}

// ArchiveRequest is the optional body of POST /api/v1/admin/archive
type ArchiveRequest struct {
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Overwrite bool       `json:"overwrite,omitempty"`
}

// ArchiveEntry is one stored archive with a time-limited download link
type ArchiveEntry struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ArchiveListResponse is the body of GET /api/v1/admin/archives
type ArchiveListResponse struct {
	Archives  []ArchiveEntry `json:"archives"`
	Count     int            `json:"count"`
	ExpiresIn string         `json:"expires_in"`
}

// JobResponse acknowledges an enqueued background job
type JobResponse struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type"`
	Queue  string `json:"queue"`
}

// GetValidationReport handles GET /api/v1/admin/validation
func (h *AdminHandler) GetValidationReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetValidationReport(r.Context())
	if err != nil {
		h.respondServiceError(w, r, "admin.validation_report", err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

// OverrideRule handles PUT /api/v1/admin/rules/{name}
func (h *AdminHandler) OverrideRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")

	var req RuleOverrideRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondServiceError(w, r, "admin.override_rule", err)
		return
	}
	if req.Enabled == nil && len(req.Params) == 0 {
		h.respondServiceError(w, r, "admin.override_rule",
			domain.NewValidationError("", "enabled or params is required"))
		return
	}

	cfg, err := h.service.OverrideRule(ctx, name, req.Enabled, req.Params)
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"rule": cfg, "persisted": true})
	case cfg.Name != "":
		// applied in process, not persisted
		h.logger.WarnContext(ctx, "rule override not persisted",
			slog.String("rule", name),
			slog.String("error", err.Error()))
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"rule": cfg, "persisted": false})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrMalformedInput):
		h.respondServiceError(w, r, "admin.override_rule", err)
	default:
		h.respondServiceError(w, r, "admin.override_rule", domain.NewValidationError("params", err.Error()))
	}
}

// GetErrorSummary handles GET /api/v1/admin/errors?window=
func (h *AdminHandler) GetErrorSummary(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			h.respondServiceError(w, r, "admin.errors", domain.NewValidationError("window", "window must be a non-negative duration such as 15m"))
			return
		}
		window = d
	}
	h.respondJSON(w, http.StatusOK, h.service.GetErrorSummary(window))
}

// Resync handles POST /api/v1/admin/resync
func (h *AdminHandler) Resync(w http.ResponseWriter, r *http.Request) {
	var req ResyncRequest
	if r.ContentLength != 0 {
		if err := h.decodeJSON(w, r, &req); err != nil {
			h.respondServiceError(w, r, "admin.resync", err)
			return
		}
	}

	payload := workers.ResyncPayload{CorrelationID: logger.CorrelationID(r.Context())}
	if req.Since != nil {
		if req.Since.After(h.now()) {
			h.respondServiceError(w, r, "admin.resync", domain.NewValidationError("since", "since must not be in the future"))
			return
		}
		payload.Since = req.Since.UTC()
	}

	task, err := workers.NewResyncTask(payload)
	if err != nil {
		h.respondServiceError(w, r, "admin.resync", err)
		return
	}
	h.enqueue(w, r, task)
}

// Archive handles POST /api/v1/admin/archive. Without a body the previous
// UTC day is archived.
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if r.ContentLength != 0 {
		if err := h.decodeJSON(w, r, &req); err != nil {
			h.respondServiceError(w, r, "admin.archive", err)
			return
		}
	}

	payload := workers.ArchivePayload{
		Overwrite:     req.Overwrite,
		CorrelationID: logger.CorrelationID(r.Context()),
	}
	switch {
	case req.From == nil && req.To == nil:
	case req.From == nil || req.To == nil:
		h.respondServiceError(w, r, "admin.archive", domain.NewValidationError("", "from and to must be given together"))
		return
	default:
		if req.To.Before(*req.From) {
			h.respondServiceError(w, r, "admin.archive", domain.NewValidationError("to", "to must not be before from"))
			return
		}
		payload.From, payload.To = workers.DayRange(*req.From, *req.To)
		if days := int(payload.To.Sub(payload.From) / (24 * time.Hour)); days > maxArchiveDays {
			h.respondServiceError(w, r, "admin.archive",
				domain.NewValidationError("", fmt.Sprintf("archive range is limited to %d days", maxArchiveDays)))
			return
		}
	}

	task, err := workers.NewArchiveTask(payload)
	if err != nil {
		h.respondServiceError(w, r, "admin.archive", domain.NewValidationError("", err.Error()))
		return
	}
	h.enqueue(w, r, task)
}

// ListArchives handles GET /api/v1/admin/archives?prefix=&expires=
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.archives == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	expiry := defaultArchiveURLExpiry
	if raw := r.URL.Query().Get("expires"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxArchiveURLExpiry {
			h.respondServiceError(w, r, "admin.list_archives",
				domain.NewValidationError("expires", "expires must be a positive duration of at most 168h"))
			return
		}
		expiry = d
	}

	prefix := r.URL.Query().Get("prefix")
	keys, err := h.archives.List(ctx, prefix)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list archives",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusServiceUnavailable, "archive storage unavailable")
		return
	}

	resp := ArchiveListResponse{
		Archives:  make([]ArchiveEntry, 0, len(keys)),
		ExpiresIn: expiry.String(),
	}
	for _, key := range keys {
		url, err := h.archives.GetPresignedURL(ctx, key, expiry)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to sign archive url",
				slog.String("key", key),
				slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusServiceUnavailable, "archive storage unavailable")
			return
		}
		resp.Archives = append(resp.Archives, ArchiveEntry{Key: key, URL: url})
	}
	resp.Count = len(resp.Archives)
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) enqueue(w http.ResponseWriter, r *http.Request, task *asynq.Task) {
	ctx := r.Context()
	if h.enqueuer == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "background jobs are not configured")
		return
	}

	info, err := h.enqueuer.Enqueue(task, h.jobOpts...)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		h.respondError(w, r, http.StatusConflict, "an identical job is already queued")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue job",
			slog.String("type", task.Type()),
			slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}

	h.logger.InfoContext(ctx, "job enqueued",
		slog.String("task_id", info.ID),
		slog.String("type", task.Type()),
		slog.String("queue", info.Queue))

	h.respondJSON(w, http.StatusAccepted, JobResponse{
		TaskID: info.ID,
		Type:   task.Type(),
		Queue:  info.Queue,
	})
}
