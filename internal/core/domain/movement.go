// internal/core/domain/movement.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementType selects which endpoints of a movement are set
type MovementType string

const (
	// MovementTransfer moves units between two locations
	MovementTransfer MovementType = "transfer"
	// MovementPlace creates stock at a destination
	MovementPlace MovementType = "place"
	// MovementRemove takes stock away from a source
	MovementRemove MovementType = "remove"
	// MovementSplit moves part of a holding to another location
	MovementSplit MovementType = "split"
	// MovementMerge moves a whole holding into another location
	MovementMerge MovementType = "merge"
)

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	switch t {
	case MovementTransfer, MovementPlace, MovementRemove, MovementSplit, MovementMerge:
		return true
	}
	return false
}

// NeedsSource reports whether the type draws units from a source
func (t MovementType) NeedsSource() bool {
	return t != MovementPlace
}

// NeedsDestination reports whether the type adds units to a destination
func (t MovementType) NeedsDestination() bool {
	return t != MovementRemove
}

// MovementRequest is a proposed quantity change for one item
type MovementRequest struct {
	ItemID        uuid.UUID    `json:"item_id"`
	Type          MovementType `json:"type"`
	SourceID      *uuid.UUID   `json:"source_id,omitempty"`
	DestinationID *uuid.UUID   `json:"destination_id,omitempty"`
	Quantity      int64        `json:"quantity"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

// Normalize fills in a movement type when the caller left it empty
func (r *MovementRequest) Normalize() {
	if r.Type != "" {
		return
	}
	switch {
	case r.SourceID == nil && r.DestinationID != nil:
		r.Type = MovementPlace
	case r.SourceID != nil && r.DestinationID == nil:
		r.Type = MovementRemove
	default:
		r.Type = MovementTransfer
	}
}

// SameEndpoints reports whether source and destination are the same location
func (r *MovementRequest) SameEndpoints() bool {
	return r.SourceID != nil && r.DestinationID != nil && *r.SourceID == *r.DestinationID
}

// Deltas returns the quantity change per location
func (r *MovementRequest) Deltas() map[uuid.UUID]int64 {
	deltas := make(map[uuid.UUID]int64, 2)
	if r.SourceID != nil {
		deltas[*r.SourceID] -= r.Quantity
	}
	if r.DestinationID != nil {
		deltas[*r.DestinationID] += r.Quantity
	}
	return deltas
}

// MovementLogEntry is the immutable audit record of an executed movement
type MovementLogEntry struct {
	ID             uuid.UUID    `json:"id"`
	ItemID         uuid.UUID    `json:"item_id"`
	Type           MovementType `json:"type"`
	SourceID       *uuid.UUID   `json:"source_id,omitempty"`
	DestinationID  *uuid.UUID   `json:"destination_id,omitempty"`
	Quantity       int64        `json:"quantity"`
	RulesEvaluated []string     `json:"rules_evaluated"`
	Warnings       []string     `json:"warnings,omitempty"`
	CorrelationID  string       `json:"correlation_id"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewMovementLogEntry builds the audit entry for a request that passed validation
func NewMovementLogEntry(req *MovementRequest, verdicts VerdictSet, now time.Time) *MovementLogEntry {
	warnings := make([]string, 0)
	for _, f := range verdicts.Findings {
		if f.Verdict == VerdictWarn {
			warnings = append(warnings, f.Rule+": "+f.Message)
		}
	}
	return &MovementLogEntry{
		ID:             uuid.New(),
		ItemID:         req.ItemID,
		Type:           req.Type,
		SourceID:       req.SourceID,
		DestinationID:  req.DestinationID,
		Quantity:       req.Quantity,
		RulesEvaluated: append([]string(nil), verdicts.Evaluated...),
		Warnings:       warnings,
		CorrelationID:  req.CorrelationID,
		CreatedAt:      now,
	}
}

// SameMovement reports whether the entry moved the same units between the same endpoints
func (e *MovementLogEntry) SameMovement(req *MovementRequest) bool {
	return e.ItemID == req.ItemID &&
		e.Quantity == req.Quantity &&
		equalIDPtr(e.SourceID, req.SourceID) &&
		equalIDPtr(e.DestinationID, req.DestinationID)
}

func equalIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MovementFilter narrows a movement log listing
type MovementFilter struct {
	ItemID *uuid.UUID
	From   *time.Time
	To     *time.Time
	Limit  int
}
