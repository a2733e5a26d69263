// internal/core/resilience/classifier.go
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/pkg/logger"
	"github.com/ammerola/household-be/internal/pkg/metrics"
)

const (
	DefaultBufferSize      = 100
	DefaultRepeatThreshold = 3
)

// StatusCoder is implemented by client errors that carry an upstream HTTP status
type StatusCoder interface {
	StatusCode() int
}

// StatusError wraps an upstream failure with its HTTP status code
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) StatusCode() int { return e.Status }

// ClassifierConfig configures the error classifier
type ClassifierConfig struct {
	BufferSize      int
	RepeatThreshold int
}

// Classifier turns raw failures into error records and keeps the most recent in a ring
type Classifier struct {
	config    ClassifierConfig
	logger    *slog.Logger
	sanitizer *logger.Sanitizer
	now       func() time.Time

	mu      sync.Mutex
	records []domain.ErrorRecord
	next    int
	size    int
}

// NewClassifier creates a classifier with a bounded record buffer
func NewClassifier(config ClassifierConfig, log *slog.Logger) *Classifier {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.RepeatThreshold <= 0 {
		config.RepeatThreshold = DefaultRepeatThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		config:    config,
		logger:    log.With(slog.String("component", "error_classifier")),
		sanitizer: logger.DefaultSanitizer(),
		now:       time.Now,
		records:   make([]domain.ErrorRecord, config.BufferSize),
	}
}

// Categorize maps an error to its category and base severity
func Categorize(err error) (domain.ErrorCategory, domain.Severity) {
	switch {
	case isValidation(err):
		return domain.CategoryValidation, domain.SeverityLow
	case isTransient(err):
		return domain.CategoryNetwork, domain.SeverityMedium
	case isDataConflict(err):
		return domain.CategoryData, domain.SeverityMedium
	default:
		return domain.CategorySystem, domain.SeverityHigh
	}
}

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	cat, _ := Categorize(err)
	return cat == domain.CategoryNetwork
}

func isValidation(err error) bool {
	var verr *domain.ValidationError
	var rerr *domain.RejectionError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &verr) || errors.As(err, &rerr) ||
		errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}
	if errors.Is(err, domain.ErrMalformedInput) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code >= 400 && code < 500 && code != 408 && code != 429
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrUnavailable) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code >= 500 || code == 408 || code == 429
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection exceptions and operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57")
	}
	return false
}

func isDataConflict(err error) bool {
	if errors.Is(err, domain.ErrDataConflict) || errors.Is(err, domain.ErrNotFound) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// integrity constraint violations
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}

// Classify builds an error record for err, stores it in the ring and returns it
func (c *Classifier) Classify(ctx context.Context, operation string, err error, payload map[string]any) domain.ErrorRecord {
	category, severity := Categorize(err)

	correlationID := logger.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	msg := c.sanitizer.String(err.Error())
	record := domain.ErrorRecord{
		CorrelationID: correlationID,
		Severity:      severity,
		Category:      category,
		Operation:     operation,
		Message:       msg,
		Timestamp:     c.now().UTC(),
		Payload:       c.sanitizer.Map(payload),
		Fingerprint:   fingerprint(category, operation, msg),
	}

	c.mu.Lock()
	if c.countFingerprintLocked(record.Fingerprint)+1 >= c.config.RepeatThreshold {
		record.Repeated = true
		record.Severity = record.Severity.Escalate()
	}
	c.records[c.next] = record
	c.next = (c.next + 1) % len(c.records)
	if c.size < len(c.records) {
		c.size++
	}
	c.mu.Unlock()

	metrics.RecordError(string(record.Category), record.Severity.String())

	level := slog.LevelWarn
	if record.Severity >= domain.SeverityHigh {
		level = slog.LevelError
	}
	c.logger.Log(ctx, level, "classified error",
		slog.String("correlation_id", record.CorrelationID),
		slog.String("operation", operation),
		slog.String("category", string(record.Category)),
		slog.String("severity", record.Severity.String()),
		slog.Bool("repeated", record.Repeated),
		slog.String("error", msg),
	)

	return record
}

func (c *Classifier) countFingerprintLocked(fp string) int {
	n := 0
	for i := 0; i < c.size; i++ {
		if c.records[i].Fingerprint == fp {
			n++
		}
	}
	return n
}

// Recent returns up to n records, newest first
func (c *Classifier) Recent(n int) []domain.ErrorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > c.size {
		n = c.size
	}
	out := make([]domain.ErrorRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.next - i + len(c.records)) % len(c.records)
		out = append(out, c.records[idx])
	}
	return out
}

// Summary aggregates the buffered records newer than window. A zero window covers the whole buffer.
func (c *Classifier) Summary(window time.Duration) domain.ErrorSummary {
	summary := domain.ErrorSummary{
		Window:     window,
		ByCategory: make(map[domain.ErrorCategory]int),
		BySeverity: make(map[string]int),
		Repeated:   make(map[string]int),
	}

	cutoff := time.Time{}
	if window > 0 {
		cutoff = c.now().UTC().Add(-window)
	}

	fingerprints := make(map[string]int)
	for _, r := range c.Recent(0) {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		summary.Total++
		summary.ByCategory[r.Category]++
		summary.BySeverity[r.Severity.String()]++
		fingerprints[r.Fingerprint]++
		if len(summary.Recent) < 10 {
			summary.Recent = append(summary.Recent, r)
		}
	}
	for fp, n := range fingerprints {
		if n >= c.config.RepeatThreshold {
			summary.Repeated[fp] = n
		}
	}

	return summary
}

var volatile = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|\d+`)

// fingerprint groups errors that differ only in ids and numbers
func fingerprint(category domain.ErrorCategory, operation, msg string) string {
	return fmt.Sprintf("%s|%s|%s", category, operation, volatile.ReplaceAllString(msg, "#"))
}
