package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/core/domain"
)

type panicRule struct{}

func (panicRule) Name() string { return "exploding" }
func (panicRule) Evaluate(context.Context, *domain.MovementRequest, *domain.InventoryState) domain.Finding {
	panic("boom")
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine := NewEngine(NewDefaultRegistry(), nil)
	engine.now = func() time.Time { return testNow }
	return engine
}

func TestEngine_Evaluate(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(f *fixture) *domain.MovementRequest
		expected      domain.Verdict
		expectedRules []string
	}{
		{
			name: "clean_transfer_has_no_findings",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 10
				return f.transfer(f.boxA.ID, f.boxB.ID, 6)
			},
			expected: domain.VerdictPass,
		},
		{
			name: "overdraw_rejected",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 5
				return f.transfer(f.boxA.ID, f.boxB.ID, 6)
			},
			expected:      domain.VerdictReject,
			expectedRules: []string{RuleQuantityConsistency},
		},
		{
			name: "capacity_rejected",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 5
				f.rollups[f.boxB.ID] = 8
				return f.transfer(f.boxA.ID, f.boxB.ID, 5)
			},
			expected:      domain.VerdictReject,
			expectedRules: []string{RuleLocationCapacity},
		},
		{
			name: "disposed_item_rejected",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 5
				f.item.Status = domain.StatusDisposed
				return f.transfer(f.boxA.ID, f.boxB.ID, 1)
			},
			expected:      domain.VerdictReject,
			expectedRules: []string{RuleItemStatus},
		},
		{
			name: "zero_quantity_rejected",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 5
				return f.transfer(f.boxA.ID, f.boxB.ID, 0)
			},
			expected:      domain.VerdictReject,
			expectedRules: []string{CheckQuantityPositive},
		},
		{
			name: "same_endpoints_rejected",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 5
				return f.transfer(f.boxA.ID, f.boxA.ID, 1)
			},
			expected:      domain.VerdictReject,
			expectedRules: []string{CheckDistinctEndpoints},
		},
		{
			name: "high_value_warns",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 10
				f.item.UnitValue = f.item.UnitValue.Mul(f.item.UnitValue)
				return f.transfer(f.boxA.ID, f.boxB.ID, 2)
			},
			expected:      domain.VerdictWarn,
			expectedRules: []string{RuleHighValue},
		},
		{
			name: "place_with_source_is_malformed",
			setup: func(f *fixture) *domain.MovementRequest {
				f.quantity[f.boxA.ID] = 5
				req := f.transfer(f.boxA.ID, f.boxB.ID, 1)
				req.Type = domain.MovementPlace
				return req
			},
			expected:      domain.VerdictReject,
			expectedRules: []string{CheckMovementShape},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)
			f := newFixture()
			req := tt.setup(f)

			set := engine.Evaluate(context.Background(), req, f.state(req))

			assert.Equal(t, tt.expected, set.Overall())
			assert.Len(t, set.Evaluated, 10, "structural checks plus every default rule")
			for _, rule := range tt.expectedRules {
				assert.True(t, set.Has(rule, tt.expected), "expected %s finding from %s, got %+v", tt.expected, rule, set.Findings)
			}
			if tt.expected == domain.VerdictPass {
				assert.Empty(t, set.Findings)
			}
		})
	}
}

func TestEngine_ReportsEveryRejection(t *testing.T) {
	engine := newTestEngine(t)
	f := newFixture()
	f.quantity[f.boxA.ID] = 2
	f.item.Status = domain.StatusSold
	req := f.transfer(f.boxA.ID, f.boxB.ID, 3)

	set := engine.Evaluate(context.Background(), req, f.state(req))

	require.True(t, set.Rejected())
	assert.Len(t, set.Rejections(), 2)
	assert.True(t, set.Has(RuleItemStatus, domain.VerdictReject))
	assert.True(t, set.Has(RuleQuantityConsistency, domain.VerdictReject))
}

func TestEngine_DisabledRuleSkipped(t *testing.T) {
	engine := newTestEngine(t)
	disabled := false
	_, err := engine.Registry().Override(RuleItemStatus, &disabled, nil)
	require.NoError(t, err)

	f := newFixture()
	f.quantity[f.boxA.ID] = 2
	f.item.Status = domain.StatusDisposed
	req := f.transfer(f.boxA.ID, f.boxB.ID, 1)

	set := engine.Evaluate(context.Background(), req, f.state(req))

	assert.Equal(t, domain.VerdictPass, set.Overall())
	assert.NotContains(t, set.Evaluated, RuleItemStatus)
}

func TestEngine_PanickingRuleRejects(t *testing.T) {
	registry, err := NewRegistry([]Definition{{
		Name:    "exploding",
		Factory: func(Params) (Rule, error) { return panicRule{}, nil },
	}})
	require.NoError(t, err)
	engine := NewEngine(registry, nil)

	f := newFixture()
	f.quantity[f.boxA.ID] = 2
	req := f.transfer(f.boxA.ID, f.boxB.ID, 1)

	set := engine.Evaluate(context.Background(), req, f.state(req))

	assert.True(t, set.Has("exploding", domain.VerdictReject))
}

func TestEngine_Lookback(t *testing.T) {
	engine := newTestEngine(t)
	assert.Equal(t, time.Hour, engine.Lookback())

	_, err := engine.Registry().Override(RuleDuplicateMovement, nil, Params{"window": "3h"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, engine.Lookback())
}

func TestEngine_ViolationCounts(t *testing.T) {
	engine := newTestEngine(t)
	clock := testNow
	engine.now = func() time.Time { return clock }

	f := newFixture()
	f.quantity[f.boxA.ID] = 1
	overdraw := f.transfer(f.boxA.ID, f.boxB.ID, 4)

	engine.Evaluate(context.Background(), overdraw, f.state(overdraw))
	clock = clock.Add(2 * time.Hour)
	engine.Evaluate(context.Background(), overdraw, f.state(overdraw))

	counts := map[string]ViolationCount{}
	for _, c := range engine.ViolationCounts(time.Hour) {
		counts[c.Rule] = c
	}
	assert.Equal(t, 1, counts[RuleQuantityConsistency].Reject)
	assert.Zero(t, counts[RuleItemStatus].Reject)
	assert.True(t, counts[RuleItemStatus].Enabled)
	assert.Contains(t, counts, CheckQuantityPositive)

	var total int
	for _, c := range engine.ViolationCounts(0) {
		total += c.Reject
	}
	assert.Equal(t, 2, total)
}
