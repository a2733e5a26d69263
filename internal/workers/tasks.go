// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeResync       = "sync:resync"
	TypeArchiveAudit = "audit:archive"
)

// Queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Enqueuer is the part of asynq.Client used to schedule work
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*asynq.Client)(nil)

// ResyncPayload asks for a reconciliation sweep over items updated since
// Since. A zero Since falls back to the worker's configured lookback.
type ResyncPayload struct {
	Since         time.Time `json:"since"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// ArchivePayload asks for the movement log of [From, To) days to be
// archived. An empty range means the previous UTC day. Days already in the
// store are kept unless Overwrite is set.
type ArchivePayload struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Overwrite     bool      `json:"overwrite,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Resolve fills an empty range with the day before now
func (p *ArchivePayload) Resolve(now time.Time) {
	if p.From.IsZero() && p.To.IsZero() {
		p.To = now.UTC().Truncate(24 * time.Hour)
		p.From = p.To.Add(-24 * time.Hour)
	}
}

// Validate checks the day range
func (p *ArchivePayload) Validate() error {
	if p.From.IsZero() && p.To.IsZero() {
		return nil
	}
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("archive range requires from and to")
	}
	if !p.To.After(p.From) {
		return fmt.Errorf("archive range must end after it starts")
	}
	return nil
}

// NewResyncTask builds a resync task. Only one sweep is queued at a time.
func NewResyncTask(payload ResyncPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resync payload: %w", err)
	}
	return asynq.NewTask(TypeResync, b,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(time.Hour),
		asynq.Timeout(time.Hour),
		asynq.Retention(24*time.Hour)), nil
}

// NewArchiveTask builds an archive task for the days in payload
func NewArchiveTask(payload ArchivePayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archive payload: %w", err)
	}
	return asynq.NewTask(TypeArchiveAudit, b,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(7*24*time.Hour)), nil
}

// JobOptions returns the enqueue options shared by every job. A positive
// maxRetry replaces the per-task retry default.
func JobOptions(maxRetry int) []asynq.Option {
	if maxRetry <= 0 {
		return nil
	}
	return []asynq.Option{asynq.MaxRetry(maxRetry)}
}

// DayRange returns [start of from's day, start of the day after to's day) in UTC
func DayRange(from, to time.Time) (time.Time, time.Time) {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return start, end
}
