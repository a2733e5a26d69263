// internal/core/validation/rules.go
package validation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/household-be/internal/core/domain"
)

type rateLimitRule struct {
	limit  int64
	window time.Duration
}

func newRateLimitRule(p Params) (Rule, error) {
	limit, err := p.Int("max_movements", 20)
	if err != nil {
		return nil, err
	}
	window, err := p.Duration("window", time.Hour)
	if err != nil {
		return nil, err
	}
	if limit < 1 || window <= 0 {
		return nil, domain.NewValidationError(RuleRateLimit, "max_movements and window must be positive")
	}
	return &rateLimitRule{limit: limit, window: window}, nil
}

func (r *rateLimitRule) Name() string            { return RuleRateLimit }
func (r *rateLimitRule) Lookback() time.Duration { return r.window }

func (r *rateLimitRule) Evaluate(_ context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	since := state.Now.Add(-r.window)
	var count int64
	for _, m := range state.RecentMoves {
		if m.ItemID == req.ItemID && m.CreatedAt.After(since) {
			count++
		}
	}
	if count > r.limit {
		return domain.Reject(RuleRateLimit,
			fmt.Sprintf("item moved %d times in the last %s, more than the limit of %d", count, r.window, r.limit))
	}
	return domain.Pass(RuleRateLimit)
}

type locationCapacityRule struct{}

func newLocationCapacityRule(Params) (Rule, error) {
	return locationCapacityRule{}, nil
}

func (locationCapacityRule) Name() string { return RuleLocationCapacity }

// Evaluate checks the destination and every ancestor that sets a capacity.
// Units moving within one subtree do not change that subtree's total.
func (locationCapacityRule) Evaluate(_ context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	if req.DestinationID == nil {
		return domain.Pass(RuleLocationCapacity)
	}

	var violations []string
	for _, loc := range state.Destination {
		if loc.Capacity == nil {
			continue
		}
		incoming := req.Quantity
		if req.SourceID != nil && state.Source.Contains(loc.ID) {
			incoming = 0
		}
		total := state.Rollups[loc.ID] + incoming
		if total > *loc.Capacity {
			violations = append(violations,
				fmt.Sprintf("%s would hold %d units, capacity %d", loc.Name, total, *loc.Capacity))
		}
	}
	if len(violations) > 0 {
		return domain.Reject(RuleLocationCapacity, strings.Join(violations, "; "))
	}
	return domain.Pass(RuleLocationCapacity)
}

type locationHierarchyRule struct {
	allowSkip bool
}

func newLocationHierarchyRule(p Params) (Rule, error) {
	allowSkip, err := p.Bool("allow_tier_skip", false)
	if err != nil {
		return nil, err
	}
	return &locationHierarchyRule{allowSkip: allowSkip}, nil
}

func (r *locationHierarchyRule) Name() string { return RuleLocationHierarchy }

func (r *locationHierarchyRule) Evaluate(_ context.Context, _ *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	path := state.Destination
	for i := 0; i+1 < len(path); i++ {
		child, parent := path[i], path[i+1]
		if !domain.TierFollows(parent.Tier, child.Tier, r.allowSkip) {
			return domain.Reject(RuleLocationHierarchy,
				fmt.Sprintf("%s %q cannot sit directly under %s %q", child.Tier, child.Name, parent.Tier, parent.Name))
		}
	}
	return domain.Pass(RuleLocationHierarchy)
}

type itemStatusRule struct {
	blocked []domain.ItemStatus
}

func newItemStatusRule(p Params) (Rule, error) {
	list, err := p.Strings("blocked_statuses", []string{string(domain.StatusDisposed), string(domain.StatusSold)})
	if err != nil {
		return nil, err
	}
	blocked := make([]domain.ItemStatus, 0, len(list))
	for _, s := range list {
		status := domain.ItemStatus(s)
		if !status.Valid() {
			return nil, domain.NewValidationError("blocked_statuses", fmt.Sprintf("unknown status %q", s))
		}
		blocked = append(blocked, status)
	}
	return &itemStatusRule{blocked: blocked}, nil
}

func (r *itemStatusRule) Name() string { return RuleItemStatus }

func (r *itemStatusRule) Evaluate(_ context.Context, _ *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	if state.Item == nil {
		return domain.Reject(RuleItemStatus, "item does not exist")
	}
	if slices.Contains(r.blocked, state.Item.Status) {
		return domain.Reject(RuleItemStatus, fmt.Sprintf("items with status %s cannot be moved", state.Item.Status))
	}
	return domain.Pass(RuleItemStatus)
}

type quantityConsistencyRule struct{}

func newQuantityConsistencyRule(Params) (Rule, error) {
	return quantityConsistencyRule{}, nil
}

func (quantityConsistencyRule) Name() string { return RuleQuantityConsistency }

func (quantityConsistencyRule) Evaluate(_ context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	for loc, delta := range req.Deltas() {
		if after := state.QuantityAt(loc) + delta; after < 0 {
			return domain.Reject(RuleQuantityConsistency,
				fmt.Sprintf("requested %d units but only %d available at source", req.Quantity, state.QuantityAt(loc)))
		}
	}

	if req.SourceID == nil {
		return domain.Pass(RuleQuantityConsistency)
	}
	available := state.QuantityAt(*req.SourceID)
	switch req.Type {
	case domain.MovementMerge:
		if req.Quantity != available {
			return domain.Reject(RuleQuantityConsistency,
				fmt.Sprintf("merge must move the whole holding of %d units", available))
		}
	case domain.MovementSplit:
		if req.Quantity >= available {
			return domain.Reject(RuleQuantityConsistency,
				fmt.Sprintf("split must leave units behind, holding is %d", available))
		}
	}
	return domain.Pass(RuleQuantityConsistency)
}

type duplicateMovementRule struct {
	window time.Duration
}

func newDuplicateMovementRule(p Params) (Rule, error) {
	window, err := p.Duration("window", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		return nil, domain.NewValidationError(RuleDuplicateMovement, "window must be positive")
	}
	return &duplicateMovementRule{window: window}, nil
}

func (r *duplicateMovementRule) Name() string            { return RuleDuplicateMovement }
func (r *duplicateMovementRule) Lookback() time.Duration { return r.window }

func (r *duplicateMovementRule) Evaluate(_ context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	since := state.Now.Add(-r.window)
	for _, m := range state.RecentMoves {
		if m.CreatedAt.After(since) && m.SameMovement(req) {
			ago := state.Now.Sub(m.CreatedAt).Round(time.Second)
			return domain.Warn(RuleDuplicateMovement,
				fmt.Sprintf("identical movement logged %s ago, possible double submit", ago))
		}
	}
	return domain.Pass(RuleDuplicateMovement)
}

type highValueRule struct {
	threshold decimal.Decimal
}

func newHighValueRule(p Params) (Rule, error) {
	threshold, err := p.Decimal("threshold", decimal.NewFromInt(1000))
	if err != nil {
		return nil, err
	}
	if threshold.IsNegative() {
		return nil, domain.NewValidationError(RuleHighValue, "threshold cannot be negative")
	}
	return &highValueRule{threshold: threshold}, nil
}

func (r *highValueRule) Name() string { return RuleHighValue }

func (r *highValueRule) Evaluate(_ context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.Finding {
	if state.Item == nil {
		return domain.Pass(RuleHighValue)
	}
	value := state.Item.UnitValue.Mul(decimal.NewFromInt(req.Quantity))
	if value.GreaterThan(r.threshold) {
		return domain.Warn(RuleHighValue,
			fmt.Sprintf("movement value %s exceeds audit threshold %s", value.StringFixed(2), r.threshold.StringFixed(2)))
	}
	return domain.Pass(RuleHighValue)
}
