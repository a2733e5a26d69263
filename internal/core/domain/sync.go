// internal/core/domain/sync.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncOutcome is the result of a best-effort secondary write
type SyncOutcome string

const (
	SyncSucceeded       SyncOutcome = "SUCCEEDED"
	SyncSkippedOpen     SyncOutcome = "SKIPPED_CIRCUIT_OPEN"
	SyncFailedExhausted SyncOutcome = "FAILED_RETRIES_EXHAUSTED"
)

// SyncCheckpoint tracks the progress of a reconciliation sweep
type SyncCheckpoint struct {
	Since           time.Time `json:"since"`
	CursorUpdatedAt time.Time `json:"cursor_updated_at"`
	CursorID        uuid.UUID `json:"cursor_id"`
	Processed       int       `json:"processed"`
	Failed          int       `json:"failed"`
	// FailedIDs are items passed over with retries exhausted
	FailedIDs   []uuid.UUID `json:"failed_ids,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Complete reports whether the sweep reached the end
func (c *SyncCheckpoint) Complete() bool {
	return c.CompletedAt != nil
}

// ItemCursor is a keyset position in (updated_at, id) order
type ItemCursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

// SearchHit is one semantic search result
type SearchHit struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Certainty float64   `json:"certainty"`
}

// InventoryState is the snapshot a movement is validated against
type InventoryState struct {
	Item        *Item
	Source      LocationPath
	Destination LocationPath
	// Quantities holds the item's quantity per location
	Quantities map[uuid.UUID]int64
	// Rollups holds the total quantity of all items under each destination ancestor
	Rollups     map[uuid.UUID]int64
	RecentMoves []MovementLogEntry
	Now         time.Time
}

// QuantityAt returns the item's quantity at loc
func (s *InventoryState) QuantityAt(loc uuid.UUID) int64 {
	if s.Quantities == nil {
		return 0
	}
	return s.Quantities[loc]
}
