// internal/core/services/mutation.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/resilience"
	"github.com/ammerola/household-be/internal/core/validation"
	"github.com/ammerola/household-be/internal/pkg/logger"
	"github.com/ammerola/household-be/internal/pkg/metrics"
)

const (
	itemCacheTTL        = 5 * time.Minute
	locationCacheTTL    = 15 * time.Minute
	defaultMovementList = 100
	maxMovementList     = 1000
)

// Dependencies are the collaborators of InventoryMutationService.
// Rules and Cache are optional.
type Dependencies struct {
	Store      ports.InventoryStore
	Engine     *validation.Engine
	Sync       *SyncCoordinator
	Dispatcher *AsyncDispatcher
	Breakers   *resilience.Registry
	Classifier *resilience.Classifier
	Rules      ports.RuleConfigStore
	Cache      ports.CacheRepository
}

// InventoryMutationService validates and commits inventory changes, then
// hands the secondary write to the dispatcher
type InventoryMutationService struct {
	store      ports.InventoryStore
	engine     *validation.Engine
	sync       *SyncCoordinator
	dispatcher *AsyncDispatcher
	breakers   *resilience.Registry
	classifier *resilience.Classifier
	rules      ports.RuleConfigStore
	cache      ports.CacheRepository
	locks      *KeyedMutex
	logger     *slog.Logger
	now        func() time.Time
}

// Statically assert that *InventoryMutationService implements the port.
var _ ports.InventoryMutationService = (*InventoryMutationService)(nil)

func NewInventoryMutationService(deps Dependencies, logger *slog.Logger) *InventoryMutationService {
	return &InventoryMutationService{
		store:      deps.Store,
		engine:     deps.Engine,
		sync:       deps.Sync,
		dispatcher: deps.Dispatcher,
		breakers:   deps.Breakers,
		classifier: deps.Classifier,
		rules:      deps.Rules,
		cache:      deps.Cache,
		locks:      NewKeyedMutex(),
		logger:     logger.With(slog.String("service", "inventory")),
		now:        time.Now,
	}
}

func (s *InventoryMutationService) prepareRequest(ctx context.Context, req *domain.MovementRequest) error {
	if req == nil {
		return domain.NewValidationError("movement", "request body is required")
	}
	if req.ItemID == uuid.Nil {
		return domain.NewValidationError("item_id", "item_id is required")
	}
	req.Normalize()
	if req.CorrelationID == "" {
		req.CorrelationID = logger.CorrelationID(ctx)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	return nil
}

// loadState gathers everything the rules read for req
func (s *InventoryMutationService) loadState(ctx context.Context, r ports.InventoryReader, req *domain.MovementRequest, item *domain.Item) (*domain.InventoryState, error) {
	state := &domain.InventoryState{Item: item, Now: s.now().UTC()}

	var err error
	if req.SourceID != nil {
		if state.Source, err = r.LocationPath(ctx, *req.SourceID); err != nil {
			return nil, fmt.Errorf("failed to load source location: %w", err)
		}
	}
	if req.DestinationID != nil {
		if state.Destination, err = r.LocationPath(ctx, *req.DestinationID); err != nil {
			return nil, fmt.Errorf("failed to load destination location: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(state.Destination))
		for _, loc := range state.Destination {
			ids = append(ids, loc.ID)
		}
		if state.Rollups, err = r.SubtreeTotals(ctx, ids); err != nil {
			return nil, fmt.Errorf("failed to load location totals: %w", err)
		}
	}

	if state.Quantities, err = r.ItemQuantities(ctx, req.ItemID); err != nil {
		return nil, fmt.Errorf("failed to load item quantities: %w", err)
	}

	if lookback := s.engine.Lookback(); lookback > 0 {
		if state.RecentMoves, err = r.RecentMovements(ctx, req.ItemID, state.Now.Add(-lookback)); err != nil {
			return nil, fmt.Errorf("failed to load recent movements: %w", err)
		}
	}
	return state, nil
}

// ValidateMovement evaluates req without locking or writing anything
func (s *InventoryMutationService) ValidateMovement(ctx context.Context, req *domain.MovementRequest) (*domain.VerdictSet, error) {
	if err := s.prepareRequest(ctx, req); err != nil {
		return nil, err
	}

	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, s.fail(ctx, "movement.validate", req, fmt.Errorf("failed to load item: %w", err))
	}
	state, err := s.loadState(ctx, s.store, req, item)
	if err != nil {
		return nil, s.fail(ctx, "movement.validate", req, err)
	}

	verdicts := s.engine.Evaluate(ctx, req, state)
	return &verdicts, nil
}

// ExecuteMovement validates and applies req in one transaction. The item is
// locked in process and by row lock so concurrent movements never overdraw.
func (s *InventoryMutationService) ExecuteMovement(ctx context.Context, req *domain.MovementRequest) (*ports.MovementResult, error) {
	if err := s.prepareRequest(ctx, req); err != nil {
		return nil, err
	}
	ctx = logger.WithCorrelationID(ctx, req.CorrelationID)

	unlock, err := s.locks.Lock(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire item lock: %w", err)
	}
	defer unlock()

	result := &ports.MovementResult{}
	err = s.store.InTx(ctx, func(tx ports.InventoryTx) error {
		item, err := tx.LockItem(ctx, req.ItemID)
		if err != nil {
			return fmt.Errorf("failed to lock item: %w", err)
		}

		state, err := s.loadState(ctx, tx, req, item)
		if err != nil {
			return err
		}

		result.Verdicts = s.engine.Evaluate(ctx, req, state)
		if result.Verdicts.Rejected() {
			return &domain.RejectionError{Verdicts: result.Verdicts}
		}

		if req.SourceID != nil {
			record, err := tx.AdjustQuantity(ctx, req.ItemID, *req.SourceID, -req.Quantity)
			if err != nil {
				return fmt.Errorf("failed to debit source: %w", err)
			}
			result.Records = append(result.Records, *record)
		}
		if req.DestinationID != nil {
			record, err := tx.AdjustQuantity(ctx, req.ItemID, *req.DestinationID, req.Quantity)
			if err != nil {
				return fmt.Errorf("failed to credit destination: %w", err)
			}
			result.Records = append(result.Records, *record)
		}

		result.Entry = domain.NewMovementLogEntry(req, result.Verdicts, state.Now)
		if err := tx.AppendMovement(ctx, result.Entry); err != nil {
			return fmt.Errorf("failed to append movement log: %w", err)
		}
		if err := tx.TouchItem(ctx, req.ItemID, state.Now); err != nil {
			return fmt.Errorf("failed to touch item: %w", err)
		}
		return nil
	})
	if err != nil {
		var rejection *domain.RejectionError
		if errors.As(err, &rejection) {
			metrics.RecordMovement(string(req.Type), string(domain.VerdictReject))
			s.logger.InfoContext(ctx, "movement rejected",
				slog.String("item_id", req.ItemID.String()),
				slog.String("type", string(req.Type)),
				slog.String("reason", rejection.Error()))
		}
		return nil, s.fail(ctx, "movement.execute", req, err)
	}

	metrics.RecordMovement(string(req.Type), string(result.Verdicts.Overall()))
	s.invalidateItem(ctx, req.ItemID)

	s.logger.InfoContext(ctx, "movement executed",
		slog.String("movement_id", result.Entry.ID.String()),
		slog.String("item_id", req.ItemID.String()),
		slog.String("type", string(req.Type)),
		slog.Int64("quantity", req.Quantity),
		slog.Int("warnings", len(result.Entry.Warnings)))

	result.Sync = s.dispatcher.Dispatch(ctx, req.ItemID, s.sync.SyncAfterCommit)
	return result, nil
}

// fail classifies a primary failure and returns it unchanged
func (s *InventoryMutationService) fail(ctx context.Context, operation string, req *domain.MovementRequest, err error) error {
	payload := map[string]any{
		"item_id":  req.ItemID.String(),
		"type":     string(req.Type),
		"quantity": req.Quantity,
	}
	s.classifier.Classify(ctx, operation, err, payload)
	return err
}

// ListMovements returns the movement log, newest first
func (s *InventoryMutationService) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementLogEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultMovementList
	}
	if filter.Limit > maxMovementList {
		filter.Limit = maxMovementList
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, domain.NewValidationError("to", "to must not be before from")
	}

	entries, err := s.store.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return entries, nil
}

// SaveItem creates or updates an item and syncs it to the index
func (s *InventoryMutationService) SaveItem(ctx context.Context, item *domain.Item) (ports.SyncHandle, error) {
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	item.PrepareForStorage()

	unlock, err := s.locks.Lock(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire item lock: %w", err)
	}
	defer unlock()

	if err := s.store.SaveItem(ctx, item); err != nil {
		s.classifier.Classify(ctx, "item.save", err, map[string]any{"item_id": item.ID.String()})
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	s.invalidateItem(ctx, item.ID)

	s.logger.InfoContext(ctx, "saved item",
		slog.String("item_id", item.ID.String()),
		slog.String("name", item.Name))

	return s.dispatcher.Dispatch(ctx, item.ID, s.sync.SyncAfterCommit), nil
}

// GetItem returns a live item, read through the cache when one is configured
func (s *InventoryMutationService) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	if s.cache == nil {
		return s.store.GetItem(ctx, id)
	}

	var item domain.Item
	err := s.cache.GetOrSet(ctx, ports.BuildKey(ports.PrefixItem, id.String()), &item, func() (interface{}, error) {
		return s.store.GetItem(ctx, id)
	}, itemCacheTTL)
	if err == nil {
		return &item, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	s.logger.WarnContext(ctx, "item cache unavailable, reading store",
		slog.String("item_id", id.String()),
		slog.String("error", err.Error()))
	return s.store.GetItem(ctx, id)
}

// GetItemStock returns the item's inventory records
func (s *InventoryMutationService) GetItemStock(ctx context.Context, id uuid.UUID) ([]domain.InventoryRecord, error) {
	if _, err := s.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.store.ItemRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load item stock: %w", err)
	}
	return records, nil
}

// DeleteItem soft deletes the item and removes it from the index
func (s *InventoryMutationService) DeleteItem(ctx context.Context, id uuid.UUID) (ports.SyncHandle, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire item lock: %w", err)
	}
	defer unlock()

	if err := s.store.DeleteItem(ctx, id, s.now().UTC()); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.classifier.Classify(ctx, "item.delete", err, map[string]any{"item_id": id.String()})
		}
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}
	s.invalidateItem(ctx, id)

	s.logger.InfoContext(ctx, "deleted item", slog.String("item_id", id.String()))

	return s.dispatcher.Dispatch(ctx, id, s.sync.DeleteAfterCommit), nil
}

// SearchItems runs a semantic search over the index
func (s *InventoryMutationService) SearchItems(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("q", "search query is required")
	}
	return s.sync.Search(ctx, query, limit)
}

// SaveLocation creates or updates a location, enforcing the tier ordering
// against its parent and refusing cycles
func (s *InventoryMutationService) SaveLocation(ctx context.Context, loc *domain.Location) error {
	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = s.now().UTC()
	}

	allowSkip := s.allowTierSkip()
	if loc.ParentID == nil {
		if loc.Tier != domain.TierBuilding && !allowSkip {
			return domain.NewValidationError("tier", fmt.Sprintf("a top level location must be a %s", domain.TierBuilding))
		}
	} else {
		parents, err := s.store.LocationPath(ctx, *loc.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load parent location: %w", err)
		}
		if parents.Contains(loc.ID) {
			return domain.NewValidationError("parent_id", "location cannot be placed inside itself")
		}
		parent := parents.Leaf()
		if !domain.TierFollows(parent.Tier, loc.Tier, allowSkip) {
			return domain.NewValidationError("tier",
				fmt.Sprintf("a %s cannot sit directly under a %s", loc.Tier, parent.Tier))
		}
	}

	if err := s.store.SaveLocation(ctx, loc); err != nil {
		s.classifier.Classify(ctx, "location.save", err, map[string]any{"location_id": loc.ID.String()})
		return fmt.Errorf("failed to save location: %w", err)
	}

	s.invalidateLocations(ctx)

	s.logger.InfoContext(ctx, "saved location",
		slog.String("location_id", loc.ID.String()),
		slog.String("tier", loc.Tier.String()))
	return nil
}

func (s *InventoryMutationService) allowTierSkip() bool {
	cfg, ok := s.engine.Registry().Config(validation.RuleLocationHierarchy)
	if !ok || !cfg.Enabled {
		return true
	}
	allow, err := cfg.Params.Bool("allow_tier_skip", false)
	return err == nil && allow
}

// GetLocation returns the location with its ancestors, read through the cache
// when one is configured
func (s *InventoryMutationService) GetLocation(ctx context.Context, id uuid.UUID) (domain.LocationPath, error) {
	if s.cache == nil {
		return s.store.LocationPath(ctx, id)
	}

	var path domain.LocationPath
	err := s.cache.GetOrSet(ctx, ports.BuildKey(ports.PrefixLocation, id.String()), &path, func() (interface{}, error) {
		return s.store.LocationPath(ctx, id)
	}, locationCacheTTL)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	s.logger.WarnContext(ctx, "location cache unavailable, reading store",
		slog.String("location_id", id.String()),
		slog.String("error", err.Error()))
	return s.store.LocationPath(ctx, id)
}

// ResyncAll reconciles the vector index with the store
func (s *InventoryMutationService) ResyncAll(ctx context.Context, since time.Time) (*ports.ResyncReport, error) {
	return s.sync.ResyncAll(ctx, since)
}

// Close waits for dispatched syncs to finish
func (s *InventoryMutationService) Close(ctx context.Context) error {
	return s.dispatcher.Close(ctx)
}

func (s *InventoryMutationService) invalidateItem(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ports.BuildKey(ports.PrefixItem, id.String())); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate item cache",
			slog.String("item_id", id.String()),
			slog.String("error", err.Error()))
	}
}

// invalidateLocations drops every cached path, since a saved location can be
// an ancestor of any of them
func (s *InventoryMutationService) invalidateLocations(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, ports.BuildKey(ports.PrefixLocation, "*")); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate location cache",
			slog.String("error", err.Error()))
	}
}
