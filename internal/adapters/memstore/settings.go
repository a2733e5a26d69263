// internal/adapters/memstore/settings.go
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/validation"
)

// Settings keeps sync checkpoints and rule overrides in memory
type Settings struct {
	mu         sync.Mutex
	checkpoint *domain.SyncCheckpoint
	rules      map[string]validation.RuleConfig
	order      []string
}

var (
	_ ports.CheckpointStore = (*Settings)(nil)
	_ ports.RuleConfigStore = (*Settings)(nil)
)

func NewSettings() *Settings {
	return &Settings{rules: make(map[string]validation.RuleConfig)}
}

func (s *Settings) LoadCheckpoint(context.Context) (*domain.SyncCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		return nil, nil
	}
	cp := *s.checkpoint
	cp.FailedIDs = slices.Clone(cp.FailedIDs)
	return &cp, nil
}

func (s *Settings) SaveCheckpoint(_ context.Context, checkpoint *domain.SyncCheckpoint) error {
	cp := *checkpoint
	cp.FailedIDs = slices.Clone(cp.FailedIDs)
	s.mu.Lock()
	s.checkpoint = &cp
	s.mu.Unlock()
	return nil
}

func (s *Settings) LoadRuleConfigs(context.Context) ([]validation.RuleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]validation.RuleConfig, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.rules[name])
	}
	return out, nil
}

func (s *Settings) SaveRuleConfig(_ context.Context, cfg validation.RuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[cfg.Name]; !ok {
		s.order = append(s.order, cfg.Name)
	}
	cfg.Params = cfg.Params.Clone()
	s.rules[cfg.Name] = cfg
	return nil
}
