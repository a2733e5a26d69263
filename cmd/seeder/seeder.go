// cmd/seeder/seeder.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

// seedService is the part of the mutation service the seeder writes through
type seedService interface {
	SaveLocation(ctx context.Context, loc *domain.Location) error
	SaveItem(ctx context.Context, item *domain.Item) (ports.SyncHandle, error)
	GetItemStock(ctx context.Context, id uuid.UUID) ([]domain.InventoryRecord, error)
	ExecuteMovement(ctx context.Context, req *domain.MovementRequest) (*ports.MovementResult, error)
}

// Summary counts what a run wrote
type Summary struct {
	Locations int
	Items     int
	Placed    int
	Skipped   int
}

// Seeder applies a plan. Reruns update locations and items in place and only
// place stock for items that hold none.
type Seeder struct {
	service  seedService
	logger   *slog.Logger
	syncWait time.Duration
}

func NewSeeder(service seedService, logger *slog.Logger) *Seeder {
	return &Seeder{service: service, logger: logger, syncWait: 5 * time.Second}
}

func (s *Seeder) Run(ctx context.Context, plan Plan) (Summary, error) {
	var summary Summary

	ids, err := s.seedLocations(ctx, plan.Locations)
	if err != nil {
		return summary, err
	}
	summary.Locations = len(ids)

	for _, seed := range plan.Items {
		item := &domain.Item{
			ID:          seedID("item", seed.Name),
			Name:        seed.Name,
			Description: seed.Description,
			Status:      seed.Status,
			UnitValue:   seed.UnitValue,
			Tags:        seed.Tags,
		}
		handle, err := s.service.SaveItem(ctx, item)
		if err != nil {
			return summary, fmt.Errorf("item %q: %w", seed.Name, err)
		}
		s.waitSync(ctx, handle, item.ID)
		summary.Items++

		if seed.Quantity == 0 || seed.Location == "" {
			continue
		}
		dest, ok := ids[seed.Location]
		if !ok {
			return summary, fmt.Errorf("item %q: unknown location %q", seed.Name, seed.Location)
		}

		stock, err := s.service.GetItemStock(ctx, item.ID)
		if err != nil {
			return summary, fmt.Errorf("item %q: %w", seed.Name, err)
		}
		if len(stock) > 0 {
			summary.Skipped++
			continue
		}

		result, err := s.service.ExecuteMovement(ctx, &domain.MovementRequest{
			ItemID:        item.ID,
			Type:          domain.MovementPlace,
			DestinationID: &dest,
			Quantity:      seed.Quantity,
			CorrelationID: "seeder",
		})
		if err != nil {
			return summary, fmt.Errorf("placing %q in %q: %w", seed.Name, seed.Location, err)
		}
		s.waitSync(ctx, result.Sync, item.ID)
		summary.Placed++
	}

	return summary, nil
}

// seedLocations saves parents before children regardless of plan order
func (s *Seeder) seedLocations(ctx context.Context, seeds []LocationSeed) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(seeds))
	pending := seeds

	for len(pending) > 0 {
		var next []LocationSeed
		for _, seed := range pending {
			loc := &domain.Location{
				ID:       seedID("location", seed.Name),
				Name:     seed.Name,
				Tier:     seed.Tier,
				Capacity: seed.Capacity,
			}
			if seed.Parent != "" {
				parentID, ok := ids[seed.Parent]
				if !ok {
					next = append(next, seed)
					continue
				}
				loc.ParentID = &parentID
			}
			if err := s.service.SaveLocation(ctx, loc); err != nil {
				return nil, fmt.Errorf("location %q: %w", seed.Name, err)
			}
			ids[seed.Name] = loc.ID
		}

		if len(next) == len(pending) {
			return nil, fmt.Errorf("location %q has unknown parent %q", next[0].Name, next[0].Parent)
		}
		pending = next
	}
	return ids, nil
}

func (s *Seeder) waitSync(ctx context.Context, handle ports.SyncHandle, itemID uuid.UUID) {
	if handle == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.syncWait)
	defer cancel()

	outcome, err := handle.Wait(waitCtx)
	if err != nil {
		s.logger.Warn("index sync still pending",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()))
		return
	}
	if outcome != domain.SyncSucceeded {
		s.logger.Warn("index sync did not succeed; resync will retry",
			slog.String("item_id", itemID.String()),
			slog.String("outcome", string(outcome)))
	}
}
