// internal/core/ports/mutation_service.go
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/validation"
)

// SyncHandle tracks a secondary write dispatched after a commit
type SyncHandle interface {
	// Wait blocks until the sync finishes or ctx ends
	Wait(ctx context.Context) (domain.SyncOutcome, error)
	// Outcome returns the result if the sync already finished
	Outcome() (domain.SyncOutcome, bool)
}

// MovementResult is the primary outcome of an executed movement
type MovementResult struct {
	Entry    *domain.MovementLogEntry `json:"entry"`
	Records  []domain.InventoryRecord `json:"records"`
	Verdicts domain.VerdictSet        `json:"verdicts"`
	Sync     SyncHandle               `json:"-"`
}

// HealthReport summarizes the resilience layer
type HealthReport struct {
	Breakers   []domain.CircuitSnapshot `json:"breakers"`
	Checkpoint *domain.SyncCheckpoint   `json:"checkpoint,omitempty"`
	Errors     domain.ErrorSummary      `json:"errors"`
}

// ValidationReport is the operator view of the rule engine
type ValidationReport struct {
	Rules           []validation.RuleConfig     `json:"rules"`
	ViolationCounts []validation.ViolationCount `json:"violation_counts"`
	Health          HealthReport                `json:"health"`
}

// ResyncReport describes one reconciliation sweep
type ResyncReport struct {
	Since      time.Time                  `json:"since"`
	Resumed    bool                       `json:"resumed"`
	Complete   bool                       `json:"complete"`
	Processed  int                        `json:"processed"`
	Failed     int                        `json:"failed"`
	FailedIDs  []uuid.UUID                `json:"failed_ids,omitempty"`
	Outcomes   map[domain.SyncOutcome]int `json:"outcomes"`
	Checkpoint *domain.SyncCheckpoint     `json:"checkpoint,omitempty"`
}

// InventoryMutationService is the application surface used by handlers and workers
type InventoryMutationService interface {
	ValidateMovement(ctx context.Context, req *domain.MovementRequest) (*domain.VerdictSet, error)
	ExecuteMovement(ctx context.Context, req *domain.MovementRequest) (*MovementResult, error)
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementLogEntry, error)

	SaveItem(ctx context.Context, item *domain.Item) (SyncHandle, error)
	GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	GetItemStock(ctx context.Context, id uuid.UUID) ([]domain.InventoryRecord, error)
	DeleteItem(ctx context.Context, id uuid.UUID) (SyncHandle, error)
	SearchItems(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)

	SaveLocation(ctx context.Context, loc *domain.Location) error
	GetLocation(ctx context.Context, id uuid.UUID) (domain.LocationPath, error)

	GetValidationReport(ctx context.Context) (*ValidationReport, error)
	OverrideRule(ctx context.Context, name string, enabled *bool, params validation.Params) (validation.RuleConfig, error)
	ResyncAll(ctx context.Context, since time.Time) (*ResyncReport, error)
	GetErrorSummary(window time.Duration) domain.ErrorSummary
}
