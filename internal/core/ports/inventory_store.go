// internal/core/ports/inventory_store.go
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
)

// InventoryReader exposes the reads a movement is validated against.
// Missing entities are reported with domain.ErrNotFound.
type InventoryReader interface {
	GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error)
	// LocationPath returns the location followed by its ancestors up to the root
	LocationPath(ctx context.Context, id uuid.UUID) (domain.LocationPath, error)
	// ItemQuantities returns the item's quantity per location
	ItemQuantities(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]int64, error)
	// SubtreeTotals returns the quantity of every item under each location, inclusive
	SubtreeTotals(ctx context.Context, locationIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	RecentMovements(ctx context.Context, itemID uuid.UUID, since time.Time) ([]domain.MovementLogEntry, error)
}

// InventoryTx is a unit of work on the system of record
type InventoryTx interface {
	InventoryReader
	// LockItem loads the item and holds a row lock until the transaction ends
	LockItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error)
	// AdjustQuantity applies delta to the (item, location) record, creating it
	// when needed. A result below zero fails with domain.ErrDataConflict.
	AdjustQuantity(ctx context.Context, itemID, locationID uuid.UUID, delta int64) (*domain.InventoryRecord, error)
	AppendMovement(ctx context.Context, entry *domain.MovementLogEntry) error
	// TouchItem bumps updated_at so reconciliation sweeps pick the item up
	TouchItem(ctx context.Context, itemID uuid.UUID, at time.Time) error
}

// InventoryStore is the system of record for items, locations and stock
type InventoryStore interface {
	InventoryReader

	// InTx runs fn in a transaction, committing when it returns nil
	InTx(ctx context.Context, fn func(tx InventoryTx) error) error

	SaveItem(ctx context.Context, item *domain.Item) error
	// DeleteItem soft deletes the item
	DeleteItem(ctx context.Context, id uuid.UUID, at time.Time) error
	SaveLocation(ctx context.Context, loc *domain.Location) error

	ItemRecords(ctx context.Context, itemID uuid.UUID) ([]domain.InventoryRecord, error)
	// ItemLocations returns the path of every location holding a positive quantity of the item
	ItemLocations(ctx context.Context, itemID uuid.UUID) ([]domain.LocationPath, error)

	// ListItemsUpdatedSince pages through items, soft deleted ones included,
	// in (updated_at, id) order starting after the cursor.
	ListItemsUpdatedSince(ctx context.Context, since time.Time, after *domain.ItemCursor, limit int) ([]domain.Item, error)
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementLogEntry, error)
}
