// internal/core/validation/rule.go
package validation

import (
	"context"
	"time"

	"github.com/ammerola/household-be/internal/core/domain"
)

// Built-in rule names
const (
	RuleRateLimit           = "rate_limit"
	RuleLocationCapacity    = "location_capacity"
	RuleLocationHierarchy   = "location_hierarchy"
	RuleItemStatus          = "item_status"
	RuleQuantityConsistency = "quantity_consistency"
	RuleDuplicateMovement   = "duplicate_movement"
	RuleHighValue           = "high_value"
)

// Names of the checks that run regardless of rule configuration
const (
	CheckQuantityPositive  = "quantity_positive"
	CheckDistinctEndpoints = "distinct_endpoints"
	CheckMovementShape     = "movement_shape"
)

// Rule is one business predicate over a proposed movement
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.Finding
}

// HistoryRule is implemented by rules that read recent movements
type HistoryRule interface {
	Rule
	// Lookback is how far back the rule needs movement history
	Lookback() time.Duration
}

// Factory builds a rule from its parameters, rejecting invalid ones
type Factory func(params Params) (Rule, error)

// RuleConfig is the persisted configuration of one rule
type RuleConfig struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Params  Params `json:"params"`
}

// Definition pairs a factory with its default configuration
type Definition struct {
	Name     string
	Factory  Factory
	Defaults Params
}

// DefaultDefinitions returns the built-in rule set in evaluation order
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: RuleRateLimit, Factory: newRateLimitRule, Defaults: Params{"max_movements": 20, "window": "1h"}},
		{Name: RuleLocationCapacity, Factory: newLocationCapacityRule, Defaults: Params{}},
		{Name: RuleLocationHierarchy, Factory: newLocationHierarchyRule, Defaults: Params{"allow_tier_skip": false}},
		{Name: RuleItemStatus, Factory: newItemStatusRule, Defaults: Params{"blocked_statuses": []string{string(domain.StatusDisposed), string(domain.StatusSold)}}},
		{Name: RuleQuantityConsistency, Factory: newQuantityConsistencyRule, Defaults: Params{}},
		{Name: RuleDuplicateMovement, Factory: newDuplicateMovementRule, Defaults: Params{"window": "5m"}},
		{Name: RuleHighValue, Factory: newHighValueRule, Defaults: Params{"threshold": "1000"}},
	}
}
