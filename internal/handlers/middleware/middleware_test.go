package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/handlers/middleware"
	"github.com/ammerola/household-be/internal/pkg/logger"
	"github.com/ammerola/household-be/internal/pkg/metrics"
	"github.com/ammerola/household-be/test/helpers"
)

func TestRequestID(t *testing.T) {
	var seenRequestID, seenCorrelationID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRequestID, _ = r.Context().Value(logger.ContextKeyRequestID).(string)
		seenCorrelationID = logger.CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrapped := middleware.RequestID("")(handler)

	tests := []struct {
		name             string
		requestID        string
		correlationID    string
		validateResponse func(*testing.T, *http.Response)
	}{
		{
			name: "generates_new_request_id",
			validateResponse: func(t *testing.T, resp *http.Response) {
				requestID := resp.Header.Get("X-Request-ID")
				assert.Len(t, requestID, 36)
				assert.Equal(t, requestID, seenRequestID)
				assert.Equal(t, requestID, seenCorrelationID, "correlation defaults to the request id")
			},
		},
		{
			name:      "uses_existing_request_id",
			requestID: "existing-id-123",
			validateResponse: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, "existing-id-123", resp.Header.Get("X-Request-ID"))
				assert.Equal(t, "existing-id-123", seenRequestID)
			},
		},
		{
			name:          "propagates_correlation_id",
			requestID:     "req-1",
			correlationID: "op-42",
			validateResponse: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, "op-42", resp.Header.Get("X-Correlation-ID"))
				assert.Equal(t, "op-42", seenCorrelationID)
				assert.Equal(t, "req-1", seenRequestID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.requestID != "" {
				req.Header.Set("X-Request-ID", tt.requestID)
			}
			if tt.correlationID != "" {
				req.Header.Set("X-Correlation-ID", tt.correlationID)
			}
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			tt.validateResponse(t, w.Result())
		})
	}
}

func TestRequestID_CustomHeader(t *testing.T) {
	wrapped := middleware.RequestID("X-Trace")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Trace", "abc")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get("X-Trace"))
}

func TestLogger(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10.0.0.9", r.Context().Value(logger.ContextKeyClientIP))
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	wrapped := middleware.Chain(handler,
		middleware.RequestID(""),
		middleware.Logger(helpers.TestLogger(), nil),
	)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "short and stout", w.Body.String())
}

func TestRecovery(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	wrapped := middleware.Chain(handler,
		middleware.RequestID(""),
		middleware.Recovery(helpers.TestLogger()),
	)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "panic-req")
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		wrapped.ServeHTTP(w, req)
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
	assert.Contains(t, w.Body.String(), "panic-req")
}

func TestMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	route := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}
	wrapped := middleware.Metrics(route)(mux)

	for _, path := range []string{"/widgets/1", "/widgets/2", "/nowhere"} {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `household_http_requests_total{method="GET",route="GET /widgets/{id}",status="404"} 2`)
	assert.Contains(t, body, `route="unmatched"`)
}

func TestRateLimit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	limiter := middleware.NewRateLimiter(2, time.Minute, nil)
	wrapped := limiter.Middleware(handler)

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, send("192.168.1.1:1234").Code)

	limited := send("192.168.1.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("192.168.1.2:1234").Code, "other clients keep their own budget")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		xff     string
		proxies []string
		want    string
	}{
		{name: "direct_peer", remote: "203.0.113.7:4000", want: "203.0.113.7"},
		{name: "untrusted_forwarded_header_ignored", remote: "203.0.113.7:4000", xff: "1.2.3.4", want: "203.0.113.7"},
		{name: "trusted_proxy_by_address", remote: "10.0.0.2:4000", xff: "1.2.3.4, 10.0.0.2", proxies: []string{"10.0.0.2"}, want: "1.2.3.4"},
		{name: "trusted_proxy_by_cidr", remote: "10.1.2.3:4000", xff: "5.6.7.8", proxies: []string{"10.0.0.0/8"}, want: "5.6.7.8"},
		{name: "trusted_proxy_without_header", remote: "10.1.2.3:4000", proxies: []string{"10.0.0.0/8"}, want: "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, middleware.ClientIP(req, tt.proxies))
		})
	}
}

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		method         string
		expectedStatus int
		expectHeaders  bool
	}{
		{
			name:           "allowed_origin",
			allowedOrigins: []string{"http://localhost:3000"},
			requestOrigin:  "http://localhost:3000",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHeaders:  true,
		},
		{
			name:           "disallowed_origin",
			allowedOrigins: []string{"http://localhost:3000"},
			requestOrigin:  "http://evil.com",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHeaders:  false,
		},
		{
			name:           "wildcard_origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "http://any-origin.com",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHeaders:  true,
		},
		{
			name:           "preflight_request",
			allowedOrigins: []string{"http://localhost:3000"},
			requestOrigin:  "http://localhost:3000",
			method:         http.MethodOptions,
			expectedStatus: http.StatusNoContent,
			expectHeaders:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := middleware.CORS(tt.allowedOrigins)(handler)

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectHeaders {
				assert.Equal(t, tt.requestOrigin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	wrapped := middleware.SecureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "plain http gets no HSTS")
}

func TestAdminToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	tests := []struct {
		name       string
		token      string
		header     string
		value      string
		wantStatus int
	}{
		{name: "open_when_unset", token: "", wantStatus: http.StatusOK},
		{name: "missing_token", token: "s3cret", wantStatus: http.StatusUnauthorized},
		{name: "wrong_token", token: "s3cret", header: "X-Admin-Token", value: "nope", wantStatus: http.StatusUnauthorized},
		{name: "header_token", token: "s3cret", header: "X-Admin-Token", value: "s3cret", wantStatus: http.StatusOK},
		{name: "bearer_token", token: "s3cret", header: "Authorization", value: "Bearer s3cret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := middleware.AdminToken(tt.token)(handler)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/resync", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.True(t, strings.Contains(w.Body.String(), "admin token"))
			}
		})
	}
}
