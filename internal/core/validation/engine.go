// internal/core/validation/engine.go
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/pkg/metrics"
)

const violationBufferSize = 500

type violation struct {
	rule    string
	verdict domain.Verdict
	at      time.Time
}

// ViolationCount is the number of non-pass findings one rule produced
type ViolationCount struct {
	Rule    string `json:"rule"`
	Warn    int    `json:"warn"`
	Reject  int    `json:"reject"`
	Enabled bool   `json:"enabled"`
}

// Engine evaluates movement requests against the registry's active rules
type Engine struct {
	registry *Registry
	logger   *slog.Logger

	mu         sync.Mutex
	violations []violation
	next       int
	filled     bool
	now        func() time.Time
}

func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:   registry,
		logger:     logger,
		violations: make([]violation, violationBufferSize),
		now:        time.Now,
	}
}

// Registry returns the rule registry the engine reads from
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Lookback returns the longest movement history any active rule needs
func (e *Engine) Lookback() time.Duration {
	var longest time.Duration
	for _, rule := range e.registry.Active() {
		if h, ok := rule.(HistoryRule); ok && h.Lookback() > longest {
			longest = h.Lookback()
		}
	}
	return longest
}

// Evaluate runs the structural checks and every active rule. All rules run
// even after a rejection so the caller sees every problem at once.
func (e *Engine) Evaluate(ctx context.Context, req *domain.MovementRequest, state *domain.InventoryState) domain.VerdictSet {
	var set domain.VerdictSet

	for _, f := range structuralChecks(req) {
		set.Add(f)
	}

	for _, rule := range e.registry.Active() {
		set.Add(e.evaluateRule(ctx, rule, req, state))
	}

	e.recordViolations(set)
	return set
}

func (e *Engine) evaluateRule(ctx context.Context, rule Rule, req *domain.MovementRequest, state *domain.InventoryState) (finding domain.Finding) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "rule panicked",
				slog.String("rule", rule.Name()),
				slog.Any("panic", r),
			)
			finding = domain.Reject(rule.Name(), fmt.Sprintf("rule failed to evaluate: %v", r))
		}
	}()
	finding = rule.Evaluate(ctx, req, state)
	finding.Rule = rule.Name()
	return finding
}

func structuralChecks(req *domain.MovementRequest) []domain.Finding {
	findings := make([]domain.Finding, 0, 3)

	if req.Quantity <= 0 {
		findings = append(findings, domain.Reject(CheckQuantityPositive,
			fmt.Sprintf("quantity must be positive, got %d", req.Quantity)))
	} else {
		findings = append(findings, domain.Pass(CheckQuantityPositive))
	}

	if req.SameEndpoints() {
		findings = append(findings, domain.Reject(CheckDistinctEndpoints, "source and destination are the same location"))
	} else {
		findings = append(findings, domain.Pass(CheckDistinctEndpoints))
	}

	findings = append(findings, movementShape(req))
	return findings
}

func movementShape(req *domain.MovementRequest) domain.Finding {
	if !req.Type.Valid() {
		return domain.Reject(CheckMovementShape, fmt.Sprintf("unknown movement type %q", req.Type))
	}
	switch {
	case req.Type.NeedsSource() && req.SourceID == nil:
		return domain.Reject(CheckMovementShape, fmt.Sprintf("%s requires a source location", req.Type))
	case !req.Type.NeedsSource() && req.SourceID != nil:
		return domain.Reject(CheckMovementShape, fmt.Sprintf("%s cannot have a source location", req.Type))
	case req.Type.NeedsDestination() && req.DestinationID == nil:
		return domain.Reject(CheckMovementShape, fmt.Sprintf("%s requires a destination location", req.Type))
	case !req.Type.NeedsDestination() && req.DestinationID != nil:
		return domain.Reject(CheckMovementShape, fmt.Sprintf("%s cannot have a destination location", req.Type))
	}
	return domain.Pass(CheckMovementShape)
}

func (e *Engine) recordViolations(set domain.VerdictSet) {
	if len(set.Findings) == 0 {
		return
	}
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range set.Findings {
		metrics.RecordRuleViolation(f.Rule, string(f.Verdict))
		e.violations[e.next] = violation{rule: f.Rule, verdict: f.Verdict, at: now}
		e.next = (e.next + 1) % len(e.violations)
		if e.next == 0 {
			e.filled = true
		}
	}
}

// ViolationCounts returns per-rule warn and reject counts within window.
// Every configured rule is listed, including those with no violations.
func (e *Engine) ViolationCounts(window time.Duration) []ViolationCount {
	configs := e.registry.Configs()
	counts := make(map[string]*ViolationCount, len(configs))
	out := make([]ViolationCount, 0, len(configs)+3)

	for _, name := range []string{CheckQuantityPositive, CheckDistinctEndpoints, CheckMovementShape} {
		out = append(out, ViolationCount{Rule: name, Enabled: true})
	}
	for _, cfg := range configs {
		out = append(out, ViolationCount{Rule: cfg.Name, Enabled: cfg.Enabled})
	}
	for i := range out {
		counts[out[i].Rule] = &out[i]
	}

	var since time.Time
	if window > 0 {
		since = e.now().Add(-window)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.next
	if e.filled {
		n = len(e.violations)
	}
	for i := 0; i < n; i++ {
		v := e.violations[i]
		if v.at.Before(since) {
			continue
		}
		c, ok := counts[v.rule]
		if !ok {
			continue
		}
		switch v.verdict {
		case domain.VerdictWarn:
			c.Warn++
		case domain.VerdictReject:
			c.Reject++
		}
	}
	return out
}
