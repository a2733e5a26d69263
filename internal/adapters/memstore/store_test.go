package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

func seedLocations(t *testing.T, s *Store) (house, room, box domain.Location) {
	t.Helper()
	ctx := context.Background()
	house = domain.Location{ID: uuid.New(), Name: "House", Tier: domain.TierBuilding}
	room = domain.Location{ID: uuid.New(), ParentID: &house.ID, Name: "Garage", Tier: domain.TierRoom}
	box = domain.Location{ID: uuid.New(), ParentID: &room.ID, Name: "Box", Tier: domain.TierContainer}
	for _, loc := range []domain.Location{house, room, box} {
		require.NoError(t, s.SaveLocation(ctx, &loc))
	}
	return house, room, box
}

func seedItem(t *testing.T, s *Store, name string, updated time.Time) domain.Item {
	t.Helper()
	item := domain.Item{ID: uuid.New(), Name: name, Status: domain.StatusAvailable, CreatedAt: updated, UpdatedAt: updated}
	require.NoError(t, s.SaveItem(context.Background(), &item))
	return item
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _, box := seedLocations(t, s)
	item := seedItem(t, s, "Drill", time.Now())

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx ports.InventoryTx) error {
		_, err := tx.AdjustQuantity(ctx, item.ID, box.ID, 5)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	quantities, err := s.ItemQuantities(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, quantities)
}

func TestStore_AdjustQuantity(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _, box := seedLocations(t, s)
	item := seedItem(t, s, "Drill", time.Now())

	tests := []struct {
		name        string
		delta       int64
		expectedQty int64
		expectedErr error
	}{
		{name: "create_record", delta: 3, expectedQty: 3},
		{name: "decrement", delta: -2, expectedQty: 1},
		{name: "to_zero_is_retained", delta: -1, expectedQty: 0},
		{name: "negative_conflicts", delta: -1, expectedErr: domain.ErrDataConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.InTx(ctx, func(tx ports.InventoryTx) error {
				rec, err := tx.AdjustQuantity(ctx, item.ID, box.ID, tt.delta)
				if err != nil {
					return err
				}
				assert.Equal(t, tt.expectedQty, rec.Quantity)
				return nil
			})
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
		})
	}

	records, err := s.ItemRecords(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Quantity)
}

func TestStore_SubtreeTotalsAndPaths(t *testing.T) {
	s := New()
	ctx := context.Background()
	house, room, box := seedLocations(t, s)
	drill := seedItem(t, s, "Drill", time.Now())
	saw := seedItem(t, s, "Saw", time.Now())

	require.NoError(t, s.InTx(ctx, func(tx ports.InventoryTx) error {
		if _, err := tx.AdjustQuantity(ctx, drill.ID, box.ID, 4); err != nil {
			return err
		}
		_, err := tx.AdjustQuantity(ctx, saw.ID, room.ID, 2)
		return err
	}))

	totals, err := s.SubtreeTotals(ctx, []uuid.UUID{box.ID, room.ID, house.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals[box.ID])
	assert.Equal(t, int64(6), totals[room.ID])
	assert.Equal(t, int64(6), totals[house.ID])

	path, err := s.LocationPath(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"House", "Garage", "Box"}, path.Names())

	paths, err := s.ItemLocations(ctx, drill.ID)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, box.ID, paths[0].Leaf().ID)

	_, err = s.LocationPath(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListItemsUpdatedSince(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := seedItem(t, s, "Old", base.Add(-time.Hour))
	var recent []domain.Item
	for i := 0; i < 5; i++ {
		recent = append(recent, seedItem(t, s, "Recent", base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, s.DeleteItem(ctx, recent[2].ID, base.Add(10*time.Minute)))

	var seen []uuid.UUID
	var cursor *domain.ItemCursor
	for {
		page, err := s.ListItemsUpdatedSince(ctx, base, cursor, 2)
		require.NoError(t, err)
		for _, item := range page {
			seen = append(seen, item.ID)
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		cursor = &domain.ItemCursor{UpdatedAt: last.UpdatedAt, ID: last.ID}
	}

	require.Len(t, seen, 5, "soft deleted items are included")
	assert.NotContains(t, seen, old.ID)
	assert.Equal(t, recent[2].ID, seen[4], "deletion bumps updated_at")
}

func TestStore_DeletedItemIsHidden(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := seedItem(t, s, "Lamp", time.Now())

	require.NoError(t, s.DeleteItem(ctx, item.ID, time.Now()))

	_, err := s.GetItem(ctx, item.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, s.DeleteItem(ctx, item.ID, time.Now()), domain.ErrNotFound)
}

func TestVectorIndex_Query(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	near, far := uuid.New(), uuid.New()

	require.NoError(t, idx.Upsert(ctx, near, []float32{1, 0}, map[string]any{"name": "near"}))
	require.NoError(t, idx.Upsert(ctx, far, []float32{0, 1}, map[string]any{"name": "far"}))

	hits, err := idx.Query(ctx, []float32{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, near, hits[0].ItemID)
	assert.Equal(t, "near", hits[0].Name)

	require.NoError(t, idx.Delete(ctx, near))
	require.NoError(t, idx.Delete(ctx, near), "deleting a missing object succeeds")
	assert.False(t, idx.Has(near))
	assert.Equal(t, 1, idx.Len())
}
