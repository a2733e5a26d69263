// internal/core/domain/reporting.go
package domain

import (
	"time"
)

// Severity ranks an error record
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return "unknown"
	}
	return severityNames[s]
}

// Escalate returns the next severity, capped at critical
func (s Severity) Escalate() Severity {
	if s >= SeverityCritical {
		return SeverityCritical
	}
	return s + 1
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorCategory groups error records by cause
type ErrorCategory string

const (
	CategoryNetwork    ErrorCategory = "network"
	CategoryData       ErrorCategory = "data"
	CategoryValidation ErrorCategory = "validation"
	CategorySystem     ErrorCategory = "system"
)

// ErrorRecord is a classified, correlated failure kept for operational visibility
type ErrorRecord struct {
	CorrelationID string         `json:"correlation_id"`
	Severity      Severity       `json:"severity"`
	Category      ErrorCategory  `json:"category"`
	Operation     string         `json:"operation"`
	Message       string         `json:"message"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload,omitempty"`
	Fingerprint   string         `json:"fingerprint"`
	Repeated      bool           `json:"repeated"`
}

// ErrorSummary aggregates error records over a reporting window
type ErrorSummary struct {
	Window     time.Duration         `json:"window"`
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	BySeverity map[string]int        `json:"by_severity"`
	Repeated   map[string]int        `json:"repeated"`
	Recent     []ErrorRecord         `json:"recent,omitempty"`
}

// CircuitState is the state of a circuit breaker
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitSnapshot is a point-in-time view of one breaker
type CircuitSnapshot struct {
	Resource    string        `json:"resource"`
	State       CircuitState  `json:"state"`
	Failures    int           `json:"failures"`
	LastFailure *time.Time    `json:"last_failure,omitempty"`
	NextRetryAt *time.Time    `json:"next_retry_at,omitempty"`
	Cooldown    time.Duration `json:"cooldown"`
}
