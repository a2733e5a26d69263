package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/adapters/memstore"
	redis_a "github.com/ammerola/household-be/internal/adapters/redis_adapter"
	"github.com/ammerola/household-be/internal/adapters/storage"
	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/validation"
	"github.com/ammerola/household-be/internal/pkg/config"
	"github.com/ammerola/household-be/test/helpers"
)

func memoryConfig(t *testing.T) *config.Config {
	cfg := helpers.LoadTestConfig()
	cfg.Redis.Host = ""
	cfg.AWS.LocalArchiveDir = t.TempDir()
	return cfg
}

func TestNew_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, memoryConfig(t), helpers.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })

	assert.Nil(t, c.Database)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Cache)
	assert.IsType(t, &memstore.Store{}, c.Store)
	assert.IsType(t, &memstore.VectorIndex{}, c.Index)
	assert.IsType(t, &memstore.Settings{}, c.Settings)
	assert.IsType(t, &storage.LocalStorage{}, c.Archive)
	require.NotNil(t, c.Service)

	names := make([]string, 0)
	for _, check := range c.HealthChecks() {
		names = append(names, check.Name)
		assert.NoError(t, check.Check(ctx), check.Name)
	}
	assert.Equal(t, []string{"store", "vector_index"}, names)
	assert.Error(t, c.PingRedis(ctx))

	t.Run("service_is_usable", func(t *testing.T) {
		house := &domain.Location{Name: "House", Tier: domain.TierBuilding}
		require.NoError(t, c.Service.SaveLocation(ctx, house))

		path, err := c.Service.GetLocation(ctx, house.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"House"}, path.Names())
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "unknown_secrets_provider",
			mutate: func(c *config.Config) { c.Secrets.Provider = "vault" },
		},
		{
			name:   "unknown_retry_strategy",
			mutate: func(c *config.Config) { c.Resilience.RetryStrategy = "fibonacci" },
		},
		{
			name:   "unknown_disabled_rule",
			mutate: func(c *config.Config) { c.Validation.DisabledRules = []string{"no_such_rule"} },
		},
		{
			name:   "redis_unreachable",
			mutate: func(c *config.Config) { c.Redis.Host, c.Redis.Port = "127.0.0.1", "1" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			cfg.Redis.DialTimeout = 100 * time.Millisecond
			cfg.Redis.MaxRetries = -1
			tt.mutate(cfg)

			_, err := New(context.Background(), cfg, helpers.TestLogger())
			assert.Error(t, err)
		})
	}
}

func TestNew_RuleOverridesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	redis := helpers.SetupTestRedis(t)

	cfg := memoryConfig(t)
	cfg.Redis.Host = redis.Server.Host()
	cfg.Redis.Port = redis.Server.Port()

	first, err := New(ctx, cfg, helpers.TestLogger())
	require.NoError(t, err)
	assert.IsType(t, &redis_a.Settings{}, first.Settings)
	require.NotNil(t, first.Cache)
	require.NotNil(t, first.Redis)

	disabled := false
	_, err = first.Service.OverrideRule(ctx, validation.RuleHighValue, &disabled, nil)
	require.NoError(t, err)
	first.Close(ctx)

	second, err := New(ctx, cfg, helpers.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { second.Close(context.Background()) })

	rule, ok := second.Engine.Registry().Config(validation.RuleHighValue)
	require.True(t, ok)
	assert.False(t, rule.Enabled)

	names := make([]string, 0)
	for _, check := range second.HealthChecks() {
		names = append(names, check.Name)
	}
	assert.Contains(t, names, "redis")
	assert.NoError(t, second.PingRedis(ctx))
}

func TestNewEngine_Defaults(t *testing.T) {
	engine, err := newEngine(config.ValidationConfig{
		RateLimitMax:       5,
		RateLimitWindow:    10 * time.Minute,
		DuplicateWindow:    time.Minute,
		HighValueThreshold: "250",
		AllowTierSkip:      true,
		DisabledRules:      []string{validation.RuleDuplicateMovement},
	}, helpers.TestLogger())
	require.NoError(t, err)
	registry := engine.Registry()

	rate, ok := registry.Config(validation.RuleRateLimit)
	require.True(t, ok)
	limit, err := rate.Params.Int("max_movements", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), limit)
	window, err := rate.Params.Duration("window", 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, window)

	hierarchy, ok := registry.Config(validation.RuleLocationHierarchy)
	require.True(t, ok)
	skip, err := hierarchy.Params.Bool("allow_tier_skip", false)
	require.NoError(t, err)
	assert.True(t, skip)

	dup, ok := registry.Config(validation.RuleDuplicateMovement)
	require.True(t, ok)
	assert.False(t, dup.Enabled)

	t.Run("invalid_threshold", func(t *testing.T) {
		_, err := newEngine(config.ValidationConfig{HighValueThreshold: "lots"}, helpers.TestLogger())
		assert.Error(t, err)
	})

	t.Run("unknown_rule", func(t *testing.T) {
		_, err := newEngine(config.ValidationConfig{DisabledRules: []string{"nope"}}, helpers.TestLogger())
		require.Error(t, err)
		assert.True(t, errors.Is(err, validation.ErrUnknownRule))
	})
}

func TestRetryPolicy(t *testing.T) {
	policy, err := retryPolicy("embed", config.ResilienceConfig{
		RetryAttempts:  7,
		RetryStrategy:  "linear",
		RetryBaseDelay: 5 * time.Millisecond,
		RetryMaxDelay:  time.Second,
		RetryJitter:    0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "embed", policy.Name)
	assert.Equal(t, 7, policy.MaxAttempts)
	assert.Equal(t, 5*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, time.Second, policy.MaxDelay)
	assert.InDelta(t, 0.1, policy.Jitter, 1e-9)

	defaults, err := retryPolicy("vector_upsert", config.ResilienceConfig{})
	require.NoError(t, err)
	assert.Equal(t, "vector_upsert", defaults.Name)
	assert.Positive(t, defaults.MaxAttempts)
}
