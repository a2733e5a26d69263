package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/adapters/embedding"
	"github.com/ammerola/household-be/internal/adapters/memstore"
	"github.com/ammerola/household-be/internal/core/resilience"
	"github.com/ammerola/household-be/internal/core/services"
	"github.com/ammerola/household-be/internal/core/validation"
	"github.com/ammerola/household-be/internal/handlers"
	"github.com/ammerola/household-be/internal/handlers/middleware"
	"github.com/ammerola/household-be/test/helpers"
)

func newTestServer(t *testing.T, adminToken string) *httptest.Server {
	t.Helper()
	log := helpers.TestLogger()

	store := memstore.New()
	settings := memstore.NewSettings()
	breakers := resilience.NewRegistry(resilience.BreakerConfig{Threshold: 5, Window: time.Minute, Cooldown: time.Minute}, log)
	classifier := resilience.NewClassifier(resilience.ClassifierConfig{}, log)

	syncer := services.NewSyncCoordinator(store, memstore.NewVectorIndex(), embedding.NewHashEmbedder(32), settings,
		breakers, classifier, services.SyncConfig{
			BatchSize:   50,
			EmbedPolicy: resilience.DefaultPolicy("embed"),
			IndexPolicy: resilience.DefaultPolicy("vector_upsert"),
		}, log)

	svc := services.NewInventoryMutationService(services.Dependencies{
		Store:      store,
		Engine:     validation.NewEngine(validation.NewDefaultRegistry(), log),
		Sync:       syncer,
		Dispatcher: services.NewAsyncDispatcher(2, 5*time.Second, log),
		Breakers:   breakers,
		Classifier: classifier,
		Rules:      settings,
	}, log)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	routes := &handlers.Routes{
		Movements: handlers.NewMovementHandler(svc, log),
		Items:     handlers.NewItemHandler(svc, log),
		Locations: handlers.NewLocationHandler(svc, log),
		Admin:     handlers.NewAdminHandler(svc, nil, nil, 0, log),
		Health:    handlers.NewHealthHandler(nil, nil, breakers.Snapshots, helpers.LoadTestConfig(), log),
	}
	mux := http.NewServeMux()
	routes.Register(mux, middleware.AdminToken(adminToken))

	srv := httptest.NewServer(middleware.Chain(mux, middleware.Recovery(log), middleware.RequestID("")))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type createdID struct {
	ID uuid.UUID `json:"id"`
}

func TestRoutes_MovementFlow(t *testing.T) {
	srv := newTestServer(t, "")

	var house, shelf createdID
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/v1/locations",
		map[string]any{"name": "House", "tier": "building"}, &house))
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/v1/locations",
		map[string]any{"name": "Pantry", "tier": "room", "parent_id": house.ID}, &shelf))

	var item createdID
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/v1/items?wait=true",
		map[string]any{"name": "Rice", "unit_value": "2.50"}, &item))
	require.NotEqual(t, uuid.Nil, item.ID)

	var placed struct {
		Entry struct {
			ID uuid.UUID `json:"id"`
		} `json:"entry"`
		Sync handlers.SyncStatus `json:"sync"`
	}
	status := doJSON(t, srv, http.MethodPost, "/api/v1/movements?wait=true",
		map[string]any{"item_id": item.ID, "destination_id": shelf.ID, "quantity": 4}, &placed)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEqual(t, uuid.Nil, placed.Entry.ID)
	assert.Equal(t, "done", placed.Sync.State)

	status = doJSON(t, srv, http.MethodPost, "/api/v1/movements",
		map[string]any{"item_id": item.ID, "source_id": shelf.ID, "quantity": 10}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	var listed struct {
		Movements []json.RawMessage `json:"movements"`
		Count     int               `json:"count"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/v1/movements?item_id=%s", item.ID), nil, &listed))
	assert.Len(t, listed.Movements, 1)
	assert.Equal(t, 1, listed.Count)

	var stock struct {
		Stock []struct {
			LocationID uuid.UUID `json:"location_id"`
			Quantity   int64     `json:"quantity"`
		} `json:"stock"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/api/v1/items/"+item.ID.String(), nil, &stock))
	require.Len(t, stock.Stock, 1)
	assert.Equal(t, shelf.ID, stock.Stock[0].LocationID)
	assert.Equal(t, int64(4), stock.Stock[0].Quantity)
}

func TestRoutes_AdminGuard(t *testing.T) {
	srv := newTestServer(t, "s3cret")

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{name: "missing_token", expectedStatus: http.StatusUnauthorized},
		{name: "wrong_token", token: "nope", expectedStatus: http.StatusUnauthorized},
		{name: "valid_token", token: "s3cret", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/admin/validation", nil)
			require.NoError(t, err)
			if tt.token != "" {
				req.Header.Set(middleware.HeaderAdminToken, tt.token)
			}
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}

	t.Run("health_is_open", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/health/live")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
