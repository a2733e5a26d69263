package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/handlers"
	"github.com/ammerola/household-be/internal/pkg/export"
	"github.com/ammerola/household-be/internal/pkg/logger"
	"github.com/ammerola/household-be/test/helpers"
	"github.com/ammerola/household-be/test/mocks"
)

func decodeError(t *testing.T, body []byte) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestMovementHandler_ValidateMovement(t *testing.T) {
	itemID := uuid.New()
	dest := uuid.New()

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockInventoryMutationService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name: "clean_movement",
			body: fmt.Sprintf(`{"item_id":%q,"destination_id":%q,"quantity":2}`, itemID, dest),
			setupMocks: func(m *mocks.MockInventoryMutationService) {
				m.EXPECT().
					ValidateMovement(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ any, req *domain.MovementRequest) (*domain.VerdictSet, error) {
						assert.Equal(t, itemID, req.ItemID)
						assert.Equal(t, int64(2), req.Quantity)
						return &domain.VerdictSet{Evaluated: []string{"quantity_positive"}}, nil
					})
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp handlers.ValidationResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, domain.VerdictPass, resp.Overall)
				assert.Empty(t, resp.Verdicts.Findings)
			},
		},
		{
			name: "rejection_is_reported_not_failed",
			body: fmt.Sprintf(`{"item_id":%q,"destination_id":%q,"quantity":0}`, itemID, dest),
			setupMocks: func(m *mocks.MockInventoryMutationService) {
				vs := domain.VerdictSet{}
				vs.Add(domain.Reject("quantity_positive", "quantity must be positive"))
				m.EXPECT().ValidateMovement(gomock.Any(), gomock.Any()).Return(&vs, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp handlers.ValidationResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, domain.VerdictReject, resp.Overall)
				require.Len(t, resp.Verdicts.Findings, 1)
			},
		},
		{
			name:           "missing_item_id",
			body:           `{"quantity":1}`,
			setupMocks:     func(m *mocks.MockInventoryMutationService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "item_id", decodeError(t, body).Field)
			},
		},
		{
			name:           "unknown_type",
			body:           fmt.Sprintf(`{"item_id":%q,"type":"teleport","quantity":1}`, itemID),
			setupMocks:     func(m *mocks.MockInventoryMutationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_field",
			body:           fmt.Sprintf(`{"item_id":%q,"qty":1}`, itemID),
			setupMocks:     func(m *mocks.MockInventoryMutationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty_body",
			body:           "",
			setupMocks:     func(m *mocks.MockInventoryMutationService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Contains(t, decodeError(t, body).Error, "request body is required")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockInventoryMutationService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewMovementHandler(mockService, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/movements/validate", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ValidateMovement(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestMovementHandler_ExecuteMovement(t *testing.T) {
	itemID := uuid.New()
	src, dest := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{"item_id":%q,"source_id":%q,"destination_id":%q,"quantity":5}`, itemID, src, dest)

	entry := &domain.MovementLogEntry{
		ID:            uuid.New(),
		ItemID:        itemID,
		Type:          domain.MovementTransfer,
		SourceID:      &src,
		DestinationID: &dest,
		Quantity:      5,
		CreatedAt:     time.Now().UTC(),
	}

	tests := []struct {
		name           string
		query          string
		setupMocks     func(*gomock.Controller, *mocks.MockInventoryMutationService)
		expectedStatus int
		validateBody   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:  "committed_with_sync_pending",
			query: "",
			setupMocks: func(ctrl *gomock.Controller, m *mocks.MockInventoryMutationService) {
				handle := mocks.NewMockSyncHandle(ctrl)
				handle.EXPECT().Outcome().Return(domain.SyncOutcome(""), false)
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(&ports.MovementResult{Entry: entry, Sync: handle}, nil)
			},
			expectedStatus: http.StatusCreated,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]json.RawMessage
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.JSONEq(t, `{"state":"pending"}`, string(resp["sync"]))
				assert.Contains(t, string(resp["entry"]), entry.ID.String())
			},
		},
		{
			name:  "wait_reports_sync_outcome",
			query: "?wait=true",
			setupMocks: func(ctrl *gomock.Controller, m *mocks.MockInventoryMutationService) {
				handle := mocks.NewMockSyncHandle(ctrl)
				handle.EXPECT().Wait(gomock.Any()).Return(domain.SyncSucceeded, nil)
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(&ports.MovementResult{Entry: entry, Sync: handle}, nil)
			},
			expectedStatus: http.StatusCreated,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp struct {
					Sync handlers.SyncStatus `json:"sync"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "done", resp.Sync.State)
				assert.Equal(t, domain.SyncSucceeded, resp.Sync.Outcome)
			},
		},
		{
			name: "rejected_by_rules",
			setupMocks: func(_ *gomock.Controller, m *mocks.MockInventoryMutationService) {
				vs := domain.VerdictSet{}
				vs.Add(domain.Reject("capacity", "destination holds 8 of 10"))
				vs.Add(domain.Warn("high_value", "item is valuable"))
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(nil, &domain.RejectionError{Verdicts: vs})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				resp := decodeError(t, w.Body.Bytes())
				require.NotNil(t, resp.Verdicts)
				assert.Len(t, resp.Verdicts.Findings, 2, "every finding is returned")
				assert.Equal(t, "corr-7", resp.CorrelationID)
			},
		},
		{
			name: "missing_item",
			setupMocks: func(_ *gomock.Controller, m *mocks.MockInventoryMutationService) {
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(nil, domain.NotFoundError("item", itemID))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "conflict",
			setupMocks: func(_ *gomock.Controller, m *mocks.MockInventoryMutationService) {
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("failed to commit movement: %w", domain.ErrDataConflict))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "store_unavailable",
			setupMocks: func(_ *gomock.Controller, m *mocks.MockInventoryMutationService) {
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("failed to begin transaction: %w", domain.ErrUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "5", w.Header().Get("Retry-After"))
			},
		},
		{
			name: "unexpected_failure_hides_details",
			setupMocks: func(_ *gomock.Controller, m *mocks.MockInventoryMutationService) {
				m.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("pq: relation does not exist"))
			},
			expectedStatus: http.StatusInternalServerError,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "internal server error", decodeError(t, w.Body.Bytes()).Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockInventoryMutationService(ctrl)
			tt.setupMocks(ctrl, mockService)
			handler := handlers.NewMovementHandler(mockService, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/movements"+tt.query, strings.NewReader(body))
			req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-7"))
			w := httptest.NewRecorder()

			handler.ExecuteMovement(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w)
			}
		})
	}
}

func TestMovementHandler_ExecuteMovement_StampsCorrelationID(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockInventoryMutationService(ctrl)
	mockService.EXPECT().ExecuteMovement(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req *domain.MovementRequest) (*ports.MovementResult, error) {
			assert.Equal(t, "op-99", req.CorrelationID)
			return &ports.MovementResult{Entry: &domain.MovementLogEntry{ID: uuid.New(), ItemID: req.ItemID}}, nil
		})

	handler := handlers.NewMovementHandler(mockService, helpers.TestLogger())
	body := fmt.Sprintf(`{"item_id":%q,"destination_id":%q,"quantity":1}`, uuid.New(), uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/movements", strings.NewReader(body))
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "op-99"))
	w := httptest.NewRecorder()

	handler.ExecuteMovement(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"sync":{"state":"none"}`)
}

func TestMovementHandler_ListMovements(t *testing.T) {
	itemID := uuid.New()

	tests := []struct {
		name           string
		query          string
		setupMocks     func(*mocks.MockInventoryMutationService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name:  "filters_are_passed_through",
			query: fmt.Sprintf("?item_id=%s&from=2026-03-01&to=2026-03-02T12:00:00Z&limit=5000", itemID),
			setupMocks: func(m *mocks.MockInventoryMutationService) {
				m.EXPECT().ListMovements(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ any, f domain.MovementFilter) ([]domain.MovementLogEntry, error) {
						require.NotNil(t, f.ItemID)
						assert.Equal(t, itemID, *f.ItemID)
						assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *f.From)
						assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), *f.To)
						assert.Equal(t, 1000, f.Limit, "limit is capped")
						return []domain.MovementLogEntry{{ID: uuid.New(), ItemID: itemID}}, nil
					})
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp struct {
					Movements []domain.MovementLogEntry `json:"movements"`
					Count     int                       `json:"count"`
				}
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, 1, resp.Count)
			},
		},
		{
			name:  "empty_log_is_an_empty_list",
			query: "",
			setupMocks: func(m *mocks.MockInventoryMutationService) {
				m.EXPECT().ListMovements(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"movements":[],"count":0}`, string(body))
			},
		},
		{
			name:           "bad_item_id",
			query:          "?item_id=nope",
			setupMocks:     func(m *mocks.MockInventoryMutationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad_from",
			query:          "?from=yesterday",
			setupMocks:     func(m *mocks.MockInventoryMutationService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "from", decodeError(t, body).Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockInventoryMutationService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewMovementHandler(mockService, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/movements"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.ListMovements(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestMovementHandler_ExportMovements(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockInventoryMutationService(ctrl)

	dest := uuid.New()
	entries := []domain.MovementLogEntry{
		{ID: uuid.New(), ItemID: uuid.New(), Type: domain.MovementPlace, DestinationID: &dest, Quantity: 3, CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), ItemID: uuid.New(), Type: domain.MovementPlace, DestinationID: &dest, Quantity: 1, CreatedAt: time.Now().UTC().Add(-time.Hour)},
	}
	mockService.EXPECT().ListMovements(gomock.Any(), gomock.Any()).Return(entries, nil)

	handler := handlers.NewMovementHandler(mockService, helpers.TestLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/movements/export", nil)
	w := httptest.NewRecorder()

	handler.ExportMovements(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"movements_")

	file, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Equal(t, "Movements", file.Sheets[0].Name)
	assert.Equal(t, 3, file.Sheets[0].MaxRow)
}

func TestMovementHandler_ExportMovements_ListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockInventoryMutationService(ctrl)
	mockService.EXPECT().ListMovements(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("failed to list movements: %w", domain.ErrUnavailable))

	handler := handlers.NewMovementHandler(mockService, helpers.TestLogger())
	w := httptest.NewRecorder()
	handler.ExportMovements(w, httptest.NewRequest(http.MethodGet, "/api/v1/movements/export", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMovementHandler_BodyTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := handlers.NewMovementHandler(mocks.NewMockInventoryMutationService(ctrl), helpers.TestLogger())

	big := bytes.Repeat([]byte(" "), 2<<20)
	body := append(big, []byte(`{"item_id":"`+uuid.NewString()+`"}`)...)
	w := httptest.NewRecorder()
	handler.ValidateMovement(w, httptest.NewRequest(http.MethodPost, "/api/v1/movements/validate", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w.Body.Bytes()).Error, "exceeds")
}
