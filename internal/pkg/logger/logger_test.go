package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_String(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{name: "api_key_assignment", input: "calling with api_key=sk-123456", contains: "api_key=***REDACTED***", absent: "sk-123456"},
		{name: "email", input: "owner is jane@example.com", contains: "***REDACTED***", absent: "jane@example.com"},
		{name: "plain_text_untouched", input: "moved 5 units to garage", contains: "moved 5 units to garage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.String(tt.input)
			assert.Contains(t, out, tt.contains)
			if tt.absent != "" {
				assert.NotContains(t, out, tt.absent)
			}
		})
	}
}

func TestSanitizer_Map(t *testing.T) {
	s := NewSanitizer()

	out := s.Map(map[string]any{
		"password": "hunter2",
		"item":     "drill",
		"nested":   map[string]any{"auth_token": "abc"},
		"quantity": 3,
	})

	assert.Equal(t, "***REDACTED***", out["password"])
	assert.Equal(t, "drill", out["item"])
	assert.Equal(t, 3, out["quantity"])
	assert.Equal(t, "***REDACTED***", out["nested"].(map[string]any)["auth_token"])
	assert.Nil(t, s.Map(nil))
}

func TestSanitizationHandler_RedactsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewSanitizationHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("connecting", slog.String("secret", "s3cr3t"), slog.String("host", "db"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "***REDACTED***", entry["secret"])
	assert.Equal(t, "db", entry["host"])
}

func TestContextHandler_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil), nil))

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = WithCorrelationID(ctx, "corr-1")
	log.InfoContext(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, CorrelationID(context.Background()))

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	assert.Equal(t, "req-1", CorrelationID(ctx))

	ctx = WithCorrelationID(ctx, "corr-1")
	assert.Equal(t, "corr-1", CorrelationID(ctx))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
