// internal/core/services/report.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/validation"
)

// ReportErrorWindow is the error summary window of the validation report
const ReportErrorWindow = time.Hour

// GetValidationReport returns rule configuration, recent violations and the
// health of the resilience layer
func (s *InventoryMutationService) GetValidationReport(ctx context.Context) (*ports.ValidationReport, error) {
	checkpoint, err := s.sync.LastCheckpoint(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load sync checkpoint for report",
			slog.String("error", err.Error()))
		checkpoint = nil
	}

	return &ports.ValidationReport{
		Rules:           s.engine.Registry().Configs(),
		ViolationCounts: s.engine.ViolationCounts(0),
		Health: ports.HealthReport{
			Breakers:   s.breakers.Snapshots(),
			Checkpoint: checkpoint,
			Errors:     s.classifier.Summary(ReportErrorWindow),
		},
	}, nil
}

// GetErrorSummary aggregates classified errors within window, zero meaning all
func (s *InventoryMutationService) GetErrorSummary(window time.Duration) domain.ErrorSummary {
	return s.classifier.Summary(window)
}

// OverrideRule reconfigures a rule and persists the new configuration. The
// override takes effect in process even when persisting fails.
func (s *InventoryMutationService) OverrideRule(ctx context.Context, name string, enabled *bool, params validation.Params) (validation.RuleConfig, error) {
	cfg, err := s.engine.Registry().Override(name, enabled, params)
	if err != nil {
		return validation.RuleConfig{}, err
	}

	s.logger.InfoContext(ctx, "rule overridden",
		slog.String("rule", cfg.Name),
		slog.Bool("enabled", cfg.Enabled),
		slog.Any("params", cfg.Params))

	if s.rules == nil {
		return cfg, nil
	}
	if err := s.rules.SaveRuleConfig(ctx, cfg); err != nil {
		s.classifier.Classify(ctx, "rules.persist", err, map[string]any{"rule": name})
		return cfg, fmt.Errorf("rule updated but not persisted: %w", err)
	}
	return cfg, nil
}

// LoadRuleOverrides applies persisted overrides, skipping entries that no
// longer match a registered rule or carry invalid parameters
func (s *InventoryMutationService) LoadRuleOverrides(ctx context.Context) error {
	if s.rules == nil {
		return nil
	}
	configs, err := s.rules.LoadRuleConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rule overrides: %w", err)
	}

	applied := 0
	for _, cfg := range configs {
		enabled := cfg.Enabled
		if _, err := s.engine.Registry().Override(cfg.Name, &enabled, cfg.Params); err != nil {
			s.logger.WarnContext(ctx, "skipping persisted rule override",
				slog.String("rule", cfg.Name),
				slog.String("error", err.Error()))
			continue
		}
		applied++
	}

	s.logger.InfoContext(ctx, "rule overrides loaded", slog.Int("count", applied))
	return nil
}
