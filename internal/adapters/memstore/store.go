// internal/adapters/memstore/store.go
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

// maxDepth bounds ancestor walks so a corrupted parent chain cannot loop
const maxDepth = 64

type recordKey struct {
	item     uuid.UUID
	location uuid.UUID
}

type state struct {
	items     map[uuid.UUID]domain.Item
	locations map[uuid.UUID]domain.Location
	records   map[recordKey]domain.InventoryRecord
	movements []domain.MovementLogEntry
}

func newState() state {
	return state{
		items:     map[uuid.UUID]domain.Item{},
		locations: map[uuid.UUID]domain.Location{},
		records:   map[recordKey]domain.InventoryRecord{},
	}
}

func (s state) clone() state {
	out := state{
		items:     make(map[uuid.UUID]domain.Item, len(s.items)),
		locations: make(map[uuid.UUID]domain.Location, len(s.locations)),
		records:   make(map[recordKey]domain.InventoryRecord, len(s.records)),
		movements: slices.Clone(s.movements),
	}
	for k, v := range s.items {
		out.items[k] = cloneItem(v)
	}
	for k, v := range s.locations {
		out.locations[k] = v
	}
	for k, v := range s.records {
		out.records[k] = v
	}
	return out
}

func cloneItem(i domain.Item) domain.Item {
	i.Tags = slices.Clone(i.Tags)
	if i.CategoryID != nil {
		id := *i.CategoryID
		i.CategoryID = &id
	}
	if i.DeletedAt != nil {
		at := *i.DeletedAt
		i.DeletedAt = &at
	}
	return i
}

// Store is an in-memory InventoryStore. Transactions work on a copy of the
// state that replaces the live state on commit.
type Store struct {
	mu    sync.RWMutex
	state state
}

var _ ports.InventoryStore = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

// view answers reads against one state value
type view struct {
	st *state
}

func (v view) GetItem(_ context.Context, id uuid.UUID) (*domain.Item, error) {
	item, ok := v.st.items[id]
	if !ok || item.IsDeleted() {
		return nil, domain.NotFoundError("item", id)
	}
	out := cloneItem(item)
	return &out, nil
}

func (v view) GetLocation(_ context.Context, id uuid.UUID) (*domain.Location, error) {
	loc, ok := v.st.locations[id]
	if !ok {
		return nil, domain.NotFoundError("location", id)
	}
	return &loc, nil
}

func (v view) LocationPath(_ context.Context, id uuid.UUID) (domain.LocationPath, error) {
	var path domain.LocationPath
	next := &id
	for next != nil {
		loc, ok := v.st.locations[*next]
		if !ok {
			return nil, domain.NotFoundError("location", *next)
		}
		path = append(path, loc)
		if len(path) > maxDepth {
			return nil, fmt.Errorf("location %s: ancestor chain too deep: %w", id, domain.ErrDataConflict)
		}
		next = loc.ParentID
	}
	return path, nil
}

func (v view) ItemQuantities(_ context.Context, itemID uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64)
	for k, rec := range v.st.records {
		if k.item == itemID {
			out[k.location] = rec.Quantity
		}
	}
	return out, nil
}

func (v view) SubtreeTotals(_ context.Context, locationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(locationIDs))
	wanted := make(map[uuid.UUID]bool, len(locationIDs))
	for _, id := range locationIDs {
		out[id] = 0
		wanted[id] = true
	}

	for k, rec := range v.st.records {
		if rec.Quantity == 0 {
			continue
		}
		next := &k.location
		for depth := 0; next != nil && depth <= maxDepth; depth++ {
			if wanted[*next] {
				out[*next] += rec.Quantity
			}
			loc, ok := v.st.locations[*next]
			if !ok {
				break
			}
			next = loc.ParentID
		}
	}
	return out, nil
}

func (v view) RecentMovements(_ context.Context, itemID uuid.UUID, since time.Time) ([]domain.MovementLogEntry, error) {
	var out []domain.MovementLogEntry
	for _, m := range v.st.movements {
		if m.ItemID == itemID && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

type tx struct {
	view
}

var _ ports.InventoryTx = (*tx)(nil)

// LockItem needs no row lock because the store holds its write lock for the
// whole transaction
func (t *tx) LockItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error) {
	return t.GetItem(ctx, itemID)
}

func (t *tx) AdjustQuantity(_ context.Context, itemID, locationID uuid.UUID, delta int64) (*domain.InventoryRecord, error) {
	if _, ok := t.st.locations[locationID]; !ok {
		return nil, domain.NotFoundError("location", locationID)
	}
	key := recordKey{item: itemID, location: locationID}
	rec, ok := t.st.records[key]
	if !ok {
		rec = domain.InventoryRecord{ItemID: itemID, LocationID: locationID}
	}
	if rec.Quantity+delta < 0 {
		return nil, fmt.Errorf("quantity of item %s at %s would become %d: %w",
			itemID, locationID, rec.Quantity+delta, domain.ErrDataConflict)
	}
	rec.Quantity += delta
	rec.UpdatedAt = time.Now().UTC()
	t.st.records[key] = rec
	return &rec, nil
}

func (t *tx) AppendMovement(_ context.Context, entry *domain.MovementLogEntry) error {
	t.st.movements = append(t.st.movements, *entry)
	return nil
}

func (t *tx) TouchItem(_ context.Context, itemID uuid.UUID, at time.Time) error {
	item, ok := t.st.items[itemID]
	if !ok {
		return domain.NotFoundError("item", itemID)
	}
	item.UpdatedAt = at
	t.st.items[itemID] = item
	return nil
}

// InTx runs fn against a copy of the state, publishing it only on success
func (s *Store) InTx(ctx context.Context, fn func(tx ports.InventoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.state.clone()
	if err := fn(&tx{view{st: &working}}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) read() (view, func()) {
	s.mu.RLock()
	return view{st: &s.state}, s.mu.RUnlock
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	v, done := s.read()
	defer done()
	return v.GetItem(ctx, id)
}

func (s *Store) GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	v, done := s.read()
	defer done()
	return v.GetLocation(ctx, id)
}

func (s *Store) LocationPath(ctx context.Context, id uuid.UUID) (domain.LocationPath, error) {
	v, done := s.read()
	defer done()
	return v.LocationPath(ctx, id)
}

func (s *Store) ItemQuantities(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]int64, error) {
	v, done := s.read()
	defer done()
	return v.ItemQuantities(ctx, itemID)
}

func (s *Store) SubtreeTotals(ctx context.Context, locationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	v, done := s.read()
	defer done()
	return v.SubtreeTotals(ctx, locationIDs)
}

func (s *Store) RecentMovements(ctx context.Context, itemID uuid.UUID, since time.Time) ([]domain.MovementLogEntry, error) {
	v, done := s.read()
	defer done()
	return v.RecentMovements(ctx, itemID, since)
}

// SaveItem upserts the item, keeping the original creation time
func (s *Store) SaveItem(_ context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneItem(*item)
	if existing, ok := s.state.items[item.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	s.state.items[item.ID] = stored
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.state.items[id]
	if !ok || item.IsDeleted() {
		return domain.NotFoundError("item", id)
	}
	item.DeletedAt = &at
	item.UpdatedAt = at
	s.state.items[id] = item
	return nil
}

func (s *Store) SaveLocation(_ context.Context, loc *domain.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.ParentID != nil {
		if _, ok := s.state.locations[*loc.ParentID]; !ok {
			return domain.NotFoundError("location", *loc.ParentID)
		}
	}
	s.state.locations[loc.ID] = *loc
	return nil
}

func (s *Store) ItemRecords(_ context.Context, itemID uuid.UUID) ([]domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.InventoryRecord
	for k, rec := range s.state.records {
		if k.item == itemID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LocationID.String() < out[j].LocationID.String()
	})
	return out, nil
}

func (s *Store) ItemLocations(ctx context.Context, itemID uuid.UUID) ([]domain.LocationPath, error) {
	records, err := s.ItemRecords(ctx, itemID)
	if err != nil {
		return nil, err
	}

	v, done := s.read()
	defer done()
	var out []domain.LocationPath
	for _, rec := range records {
		if rec.Quantity == 0 {
			continue
		}
		path, err := v.LocationPath(ctx, rec.LocationID)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

func cursorLess(a, b domain.ItemCursor) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

func (s *Store) ListItemsUpdatedSince(_ context.Context, since time.Time, after *domain.ItemCursor, limit int) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Item
	for _, item := range s.state.items {
		if item.UpdatedAt.Before(since) {
			continue
		}
		if after != nil && !cursorLess(*after, domain.ItemCursor{UpdatedAt: item.UpdatedAt, ID: item.ID}) {
			continue
		}
		out = append(out, cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool {
		return cursorLess(
			domain.ItemCursor{UpdatedAt: out[i].UpdatedAt, ID: out[i].ID},
			domain.ItemCursor{UpdatedAt: out[j].UpdatedAt, ID: out[j].ID},
		)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.MovementLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MovementLogEntry
	for i := len(s.state.movements) - 1; i >= 0; i-- {
		m := s.state.movements[i]
		if filter.ItemID != nil && m.ItemID != *filter.ItemID {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
