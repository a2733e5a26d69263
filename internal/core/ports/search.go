// internal/core/ports/search.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
)

// VectorStore is the secondary search index keyed by item ID
type VectorStore interface {
	// Upsert writes the object, replacing any existing one with the same ID
	Upsert(ctx context.Context, id uuid.UUID, vector []float32, properties map[string]any) error
	// Delete removes the object; deleting a missing object succeeds
	Delete(ctx context.Context, id uuid.UUID) error
	Query(ctx context.Context, vector []float32, limit int) ([]domain.SearchHit, error)
	Ready(ctx context.Context) error
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
