package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/resilience"
	"github.com/ammerola/household-be/test/helpers"
)

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "red cordless drill")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "red cordless drill")
	require.NoError(t, err)
	assert.Equal(t, a, b, "embedding is deterministic")
	assert.Len(t, a, 64)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Embed(canceled, "anything")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedCategory domain.ErrorCategory
	}{
		{name: "rate_limited", err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, expectedCategory: domain.CategoryNetwork},
		{name: "server_error", err: &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, expectedCategory: domain.CategoryNetwork},
		{name: "bad_request", err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, expectedCategory: domain.CategoryValidation},
		{name: "plain_error", err: errors.New("weird"), expectedCategory: domain.CategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, _ := resilience.Categorize(statusError(tt.err))
			assert.Equal(t, tt.expectedCategory, category)
		})
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"test-embed"}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL, APIKey: "test", Model: "test-embed"}, helpers.TestLogger())
	require.NoError(t, err)

	vector, err := e.Embed(context.Background(), "drill")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL, APIKey: "test", Model: "test-embed"}, helpers.TestLogger())
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "drill")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
