// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "household"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	movementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "movements_total",
		Help:      "Movement executions by type and overall verdict",
	}, []string{"type", "verdict"})

	ruleViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "rule_violations_total",
		Help:      "Non-passing rule findings by rule and verdict",
	}, []string{"rule", "verdict"})

	syncOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "outcomes_total",
		Help:      "Secondary index sync outcomes by operation",
	}, []string{"operation", "outcome"})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Secondary index sync latency",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"operation"})

	syncInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "in_flight",
		Help:      "Asynchronous syncs currently running",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "errors",
		Name:      "classified_total",
		Help:      "Classified error records by category and severity",
	}, []string{"category", "severity"})

	retryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resilience",
		Name:      "retry_attempts_total",
		Help:      "Retry attempts beyond the first by operation",
	}, []string{"operation"})

	circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "resilience",
		Name:      "circuit_state",
		Help:      "Circuit breaker state per resource (0 closed, 1 open, 2 half open)",
	}, []string{"resource"})

	circuitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resilience",
		Name:      "circuit_rejections_total",
		Help:      "Calls rejected by an open circuit",
	}, []string{"resource"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordMovement(movementType, verdict string) {
	movementsTotal.WithLabelValues(movementType, verdict).Inc()
}

func RecordRuleViolation(rule, verdict string) {
	ruleViolationsTotal.WithLabelValues(rule, verdict).Inc()
}

func RecordSync(operation, outcome string, elapsed time.Duration) {
	syncOutcomesTotal.WithLabelValues(operation, outcome).Inc()
	syncDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func SyncStarted() {
	syncInFlight.Inc()
}

func SyncFinished() {
	syncInFlight.Dec()
}

func RecordError(category, severity string) {
	errorsTotal.WithLabelValues(category, severity).Inc()
}

func RecordRetry(operation string) {
	retryAttemptsTotal.WithLabelValues(operation).Inc()
}

func SetCircuitState(resource string, state int) {
	circuitState.WithLabelValues(resource).Set(float64(state))
}

func RecordCircuitRejection(resource string) {
	circuitRejectionsTotal.WithLabelValues(resource).Inc()
}
