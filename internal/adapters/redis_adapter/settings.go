// internal/adapters/redis_adapter/settings.go
package redis_a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/validation"
)

// Settings persists reconciliation checkpoints and rule overrides in Redis.
// Neither key expires.
type Settings struct {
	client        redis.UniversalClient
	checkpointKey string
	rulesKey      string
	logger        *slog.Logger
}

var (
	_ ports.CheckpointStore = (*Settings)(nil)
	_ ports.RuleConfigStore = (*Settings)(nil)
)

// NewSettings creates the store; namespace separates deployments sharing a Redis
func NewSettings(client redis.UniversalClient, namespace string, logger *slog.Logger) *Settings {
	key := func(p ports.CacheKeyPrefix, rest ...string) string {
		if namespace == "" {
			return ports.BuildKey(p, rest...)
		}
		return namespace + ":" + ports.BuildKey(p, rest...)
	}
	return &Settings{
		client:        client,
		checkpointKey: key(ports.PrefixCheckpoint, "checkpoint"),
		rulesKey:      key(ports.PrefixRules, "config"),
		logger:        logger.With(slog.String("component", "settings")),
	}
}

// LoadCheckpoint returns the last recorded sweep, nil when none exists
func (s *Settings) LoadCheckpoint(ctx context.Context) (*domain.SyncCheckpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var checkpoint domain.SyncCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *Settings) SaveCheckpoint(ctx context.Context, checkpoint *domain.SyncCheckpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.checkpointKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadRuleConfigs returns every persisted override ordered by rule name.
// Undecodable entries are logged and skipped.
func (s *Settings) LoadRuleConfigs(ctx context.Context) ([]validation.RuleConfig, error) {
	fields, err := s.client.HGetAll(ctx, s.rulesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule configs: %w", err)
	}

	configs := make([]validation.RuleConfig, 0, len(fields))
	for name, raw := range fields {
		var cfg validation.RuleConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable rule config",
				slog.String("rule", name),
				slog.String("error", err.Error()))
			continue
		}
		cfg.Name = name
		configs = append(configs, cfg)
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

func (s *Settings) SaveRuleConfig(ctx context.Context, cfg validation.RuleConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode rule config: %w", err)
	}
	if err := s.client.HSet(ctx, s.rulesKey, cfg.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to save rule config: %w", err)
	}
	return nil
}
