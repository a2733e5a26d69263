// internal/core/domain/inventory.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus represents the lifecycle status of an item
type ItemStatus string

// Status constants
const (
	StatusAvailable ItemStatus = "available"
	StatusInUse     ItemStatus = "in_use"
	StatusLent      ItemStatus = "lent"
	StatusDisposed  ItemStatus = "disposed"
	StatusSold      ItemStatus = "sold"
)

// Valid reports whether s is a known status
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusLent, StatusDisposed, StatusSold:
		return true
	}
	return false
}

// Category groups items for browsing and search
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Item represents a single household item
type Item struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	CategoryID   *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Status       ItemStatus      `json:"status"`
	UnitValue    decimal.Decimal `json:"unit_value"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

// Validate performs domain validation on the item
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if i.Status == "" {
		i.Status = StatusAvailable
	}
	if !i.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", i.Status))
	}
	if i.UnitValue.IsNegative() {
		return NewValidationError("unit_value", "unit_value cannot be negative")
	}
	return nil
}

// PrepareForStorage sets identity and timestamps before a write
func (i *Item) PrepareForStorage() {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}

	now := time.Now().UTC()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now

	tags := i.Tags[:0]
	for _, tag := range i.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	i.Tags = tags
}

// IsDeleted reports whether the item has been soft deleted
func (i *Item) IsDeleted() bool {
	return i.DeletedAt != nil
}

// LocationTier orders location types from the outermost inward
type LocationTier int

const (
	TierBuilding LocationTier = iota
	TierRoom
	TierContainer
	TierShelf
)

var tierNames = map[LocationTier]string{
	TierBuilding:  "building",
	TierRoom:      "room",
	TierContainer: "container",
	TierShelf:     "shelf",
}

func (t LocationTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is a known tier
func (t LocationTier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseLocationTier converts a tier name into a LocationTier
func ParseLocationTier(s string) (LocationTier, error) {
	for tier, name := range tierNames {
		if strings.EqualFold(name, s) {
			return tier, nil
		}
	}
	return 0, NewValidationError("tier", fmt.Sprintf("unknown location tier %q", s))
}

// MarshalText encodes the tier by name
func (t LocationTier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid location tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name
func (t *LocationTier) UnmarshalText(b []byte) error {
	tier, err := ParseLocationTier(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// Location is a node in the storage hierarchy
type Location struct {
	ID        uuid.UUID    `json:"id"`
	ParentID  *uuid.UUID   `json:"parent_id,omitempty"`
	Name      string       `json:"name"`
	Tier      LocationTier `json:"tier"`
	Capacity  *int64       `json:"capacity,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate checks the location fields that can be checked in isolation
func (l *Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if !l.Tier.Valid() {
		return NewValidationError("tier", "unknown location tier")
	}
	if l.Capacity != nil && *l.Capacity < 0 {
		return NewValidationError("capacity", "capacity cannot be negative")
	}
	if l.ParentID != nil && *l.ParentID == l.ID && l.ID != uuid.Nil {
		return NewValidationError("parent_id", "location cannot be its own parent")
	}
	return nil
}

// TierFollows reports whether child may sit directly under parent
func TierFollows(parent, child LocationTier, allowSkip bool) bool {
	if allowSkip {
		return child > parent
	}
	return child == parent+1
}

// InventoryRecord is the quantity of an item held at a location
type InventoryRecord struct {
	ItemID     uuid.UUID `json:"item_id"`
	LocationID uuid.UUID `json:"location_id"`
	Quantity   int64     `json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LocationPath is a location followed by its ancestors up to the root
type LocationPath []Location

// Contains reports whether id is on the path
func (p LocationPath) Contains(id uuid.UUID) bool {
	for _, l := range p {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Leaf returns the first location of the path
func (p LocationPath) Leaf() *Location {
	if len(p) == 0 {
		return nil
	}
	return &p[0]
}

// Names returns the location names from root to leaf
func (p LocationPath) Names() []string {
	names := make([]string, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		names = append(names, p[i].Name)
	}
	return names
}
