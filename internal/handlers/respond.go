// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/resilience"
	"github.com/ammerola/household-be/internal/pkg/logger"
)

const defaultMaxBodyBytes int64 = 1 << 20

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error         string             `json:"error"`
	Field         string             `json:"field,omitempty"`
	Verdicts      *domain.VerdictSet `json:"verdicts,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// responder holds the response helpers shared by every handler
type responder struct {
	logger       *slog.Logger
	maxBodyBytes int64
}

func newResponder(logger *slog.Logger, handler string) responder {
	return responder{
		logger:       logger.With(slog.String("handler", handler)),
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:         message,
		CorrelationID: logger.CorrelationID(r.Context()),
	})
}

// respondServiceError maps a service error onto a status code and body.
// Server side failures are logged; their message is not echoed.
func (h responder) respondServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	ctx := r.Context()
	body := ErrorResponse{
		Error:         err.Error(),
		CorrelationID: logger.CorrelationID(ctx),
	}

	var rejection *domain.RejectionError
	var invalid *domain.ValidationError
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &rejection):
		status = http.StatusUnprocessableEntity
		body.Verdicts = &rejection.Verdicts
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
		body.Error = invalid.Error()
		body.Field = invalid.Field
	case errors.Is(err, domain.ErrMalformedInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDataConflict):
		status = http.StatusConflict
	case resilience.IsTransient(err):
		status = http.StatusServiceUnavailable
		body.Error = "service temporarily unavailable"
		w.Header().Set("Retry-After", "5")
	default:
		body.Error = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			slog.String("operation", operation),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	} else {
		h.logger.DebugContext(ctx, "request refused",
			slog.String("operation", operation),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}

	h.respondJSON(w, status, body)
}

// decodeJSON reads a size limited body, refusing unknown fields
func (h responder) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.NewValidationError("", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			return domain.NewValidationError("", "request body is required")
		default:
			return domain.NewValidationError("", "invalid request body: "+err.Error())
		}
	}
	if dec.More() {
		return domain.NewValidationError("", "request body must contain a single JSON object")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(name, "invalid "+name+" format")
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "invalid "+name+" format")
	}
	return &id, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "expected an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	return &t, nil
}

func queryLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
