// internal/core/ports/stores.go
package ports

import (
	"context"
	"io"
	"time"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/validation"
)

// CheckpointStore persists reconciliation progress
type CheckpointStore interface {
	// LoadCheckpoint returns nil when no sweep has been recorded
	LoadCheckpoint(ctx context.Context) (*domain.SyncCheckpoint, error)
	SaveCheckpoint(ctx context.Context, checkpoint *domain.SyncCheckpoint) error
}

// RuleConfigStore persists validation rule overrides
type RuleConfigStore interface {
	LoadRuleConfigs(ctx context.Context) ([]validation.RuleConfig, error)
	SaveRuleConfig(ctx context.Context, cfg validation.RuleConfig) error
}

// ArchiveStore holds exported audit files
type ArchiveStore interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys starting with prefix
	List(ctx context.Context, prefix string) ([]string, error)
	GetPresignedURL(ctx context.Context, key string, duration time.Duration) (string, error)
}
