package vector

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/resilience"
)

func TestParseHits(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name          string
		resp          *models.GraphQLResponse
		expectedLen   int
		expectedError bool
	}{
		{
			name: "single_hit",
			resp: &models.GraphQLResponse{Data: map[string]models.JSONObject{
				"Get": map[string]interface{}{
					DefaultClass: []interface{}{
						map[string]interface{}{
							"name":        "Drill",
							"_additional": map[string]interface{}{"id": id.String(), "certainty": 0.91},
						},
					},
				},
			}},
			expectedLen: 1,
		},
		{
			name: "invalid_id_skipped",
			resp: &models.GraphQLResponse{Data: map[string]models.JSONObject{
				"Get": map[string]interface{}{
					DefaultClass: []interface{}{
						map[string]interface{}{"name": "x", "_additional": map[string]interface{}{"id": "nope"}},
					},
				},
			}},
			expectedLen: 0,
		},
		{
			name:        "empty_result",
			resp:        &models.GraphQLResponse{Data: map[string]models.JSONObject{"Get": map[string]interface{}{}}},
			expectedLen: 0,
		},
		{
			name:          "graphql_errors",
			resp:          &models.GraphQLResponse{Errors: []*models.GraphQLError{{Message: "class not found"}}},
			expectedError: true,
		},
		{
			name:          "nil_response",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := parseHits(tt.resp, DefaultClass)
			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, hits, tt.expectedLen)
			if tt.expectedLen == 1 {
				assert.Equal(t, id, hits[0].ItemID)
				assert.Equal(t, "Drill", hits[0].Name)
				assert.InDelta(t, 0.91, hits[0].Certainty, 1e-9)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedCategory domain.ErrorCategory
	}{
		{name: "server_error", err: &fault.WeaviateClientError{IsUnexpectedStatusCode: true, StatusCode: http.StatusInternalServerError}, expectedCategory: domain.CategoryNetwork},
		{name: "bad_request", err: &fault.WeaviateClientError{IsUnexpectedStatusCode: true, StatusCode: http.StatusUnprocessableEntity}, expectedCategory: domain.CategoryValidation},
		{name: "connection_failure", err: &fault.WeaviateClientError{DerivedFromError: errors.New("dial tcp: refused")}, expectedCategory: domain.CategoryNetwork},
		{name: "other", err: errors.New("odd"), expectedCategory: domain.CategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, _ := resilience.Categorize(translate(tt.err))
			assert.Equal(t, tt.expectedCategory, category)
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(&fault.WeaviateClientError{StatusCode: http.StatusNotFound}))
	assert.Zero(t, statusOf(errors.New("plain")))
}
