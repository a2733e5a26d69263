// internal/handlers/health.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/pkg/config"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name string
	// Required checks gate readiness; the others only degrade /health
	Required bool
	Check    func(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks    []HealthCheck
	asynq     *asynq.Inspector
	breakers  func() []domain.CircuitSnapshot
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. inspector and breakers may be nil.
func NewHealthHandler(
	checks []HealthCheck,
	inspector *asynq.Inspector,
	breakers func() []domain.CircuitSnapshot,
	cfg *config.Config,
	logger *slog.Logger,
) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		asynq:     inspector,
		breakers:  breakers,
		config:    cfg,
		logger:    logger.With(slog.String("handler", "health")),
		startTime: time.Now(),
	}
}

// HealthStatus represents the health status of the application
type HealthStatus struct {
	Status      string                   `json:"status"`
	Version     string                   `json:"version"`
	Environment string                   `json:"environment"`
	Uptime      string                   `json:"uptime"`
	Timestamp   time.Time                `json:"timestamp"`
	Services    map[string]ServiceInfo   `json:"services"`
	Breakers    []domain.CircuitSnapshot `json:"breakers,omitempty"`
	System      SystemInfo               `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string                 `json:"status"`
	Required     bool                   `json:"required"`
	Message      string                 `json:"message,omitempty"`
	ResponseTime string                 `json:"response_time,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	GoVersion      string `json:"go_version"`
	NumGoroutines  int    `json:"num_goroutines"`
	NumCPU         int    `json:"num_cpu"`
	MemoryAllocMB  uint64 `json:"memory_alloc_mb"`
	MemorySysMB    uint64 `json:"memory_sys_mb"`
	GCPauseTotalMs uint64 `json:"gc_pause_total_ms"`
	NumGC          uint32 `json:"num_gc"`
}

// Health handles the /health endpoint. A failing required dependency makes
// the service unhealthy; optional dependencies and open circuits degrade it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:      "healthy",
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Services:    h.runChecks(ctx, false),
		System:      h.getSystemInfo(),
	}

	if h.asynq != nil {
		health.Services["asynq"] = h.checkAsynq(ctx)
	}

	for _, info := range health.Services {
		if info.Status == "healthy" {
			continue
		}
		if info.Required {
			health.Status = "unhealthy"
			break
		}
		health.Status = "degraded"
	}

	if h.breakers != nil {
		health.Breakers = h.breakers()
		for _, b := range health.Breakers {
			if b.State != domain.CircuitClosed && health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	h.write(ctx, w, statusCode, health)
}

// Liveness handles the /health/live endpoint
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.write(r.Context(), w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Readiness handles the /health/ready endpoint
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)
	for name, info := range h.runChecks(ctx, true) {
		if info.Status == "healthy" {
			details[name] = "ready"
			continue
		}
		ready = false
		details[name] = "not ready"
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	h.write(ctx, w, statusCode, map[string]interface{}{
		"ready":   ready,
		"details": details,
	})
}

// runChecks probes dependencies concurrently
func (h *HealthHandler) runChecks(ctx context.Context, requiredOnly bool) map[string]ServiceInfo {
	var mu sync.Mutex
	results := make(map[string]ServiceInfo, len(h.checks))

	g, gctx := errgroup.WithContext(ctx)
	for _, check := range h.checks {
		if requiredOnly && !check.Required {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			info := ServiceInfo{Status: "healthy", Required: check.Required}
			if err := check.Check(gctx); err != nil {
				info.Status = "unhealthy"
				info.Message = err.Error()
				h.logger.WarnContext(ctx, "health check failed",
					slog.String("service", check.Name),
					slog.String("error", err.Error()))
			}
			info.ResponseTime = time.Since(start).String()

			mu.Lock()
			results[check.Name] = info
			mu.Unlock()
			// reported, not propagated
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// checkAsynq checks the health of the Asynq queue system
func (h *HealthHandler) checkAsynq(ctx context.Context) ServiceInfo {
	start := time.Now()
	info := ServiceInfo{
		Status:  "healthy",
		Details: make(map[string]interface{}),
	}

	queues, err := h.asynq.Queues()
	if err != nil {
		info.Status = "unhealthy"
		info.Message = err.Error()
		h.logger.ErrorContext(ctx, "asynq health check failed",
			slog.String("error", err.Error()))
		return info
	}
	sort.Strings(queues)

	queueStats := make(map[string]interface{})
	for _, queue := range queues {
		qInfo, err := h.asynq.GetQueueInfo(queue)
		if err == nil {
			queueStats[queue] = map[string]interface{}{
				"size":      qInfo.Size,
				"active":    qInfo.Active,
				"pending":   qInfo.Pending,
				"scheduled": qInfo.Scheduled,
				"retry":     qInfo.Retry,
				"archived":  qInfo.Archived,
				"completed": qInfo.Completed,
			}
		}
	}
	info.Details["queues"] = queueStats

	servers, err := h.asynq.Servers()
	if err == nil {
		info.Details["servers"] = len(servers)
	}

	info.ResponseTime = time.Since(start).String()
	return info
}

func (h *HealthHandler) write(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode health response",
			slog.String("error", err.Error()))
	}
}

// getSystemInfo returns system-level information
func (h *HealthHandler) getSystemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		GoVersion:      runtime.Version(),
		NumGoroutines:  runtime.NumGoroutine(),
		NumCPU:         runtime.NumCPU(),
		MemoryAllocMB:  memStats.Alloc / 1024 / 1024,
		MemorySysMB:    memStats.Sys / 1024 / 1024,
		GCPauseTotalMs: memStats.PauseTotalNs / 1000 / 1000,
		NumGC:          memStats.NumGC,
	}
}
