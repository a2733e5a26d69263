package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/household-be/internal/adapters/redis_adapter"
	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/validation"
	"github.com/ammerola/household-be/test/helpers"
)

func TestSettings_Checkpoint(t *testing.T) {
	ctx := context.Background()
	rd := helpers.SetupTestRedis(t)
	settings := redis_a.NewSettings(rd.Client, "household", helpers.TestLogger())

	checkpoint, err := settings.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, checkpoint, "no sweep recorded yet")

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	saved := &domain.SyncCheckpoint{
		Since:           started.Add(-24 * time.Hour),
		CursorUpdatedAt: started.Add(-time.Hour),
		CursorID:        uuid.New(),
		Processed:       42,
		Failed:          1,
		StartedAt:       started,
	}
	require.NoError(t, settings.SaveCheckpoint(ctx, saved))
	assert.True(t, rd.Server.Exists("household:sync:checkpoint"))

	loaded, err := settings.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.CursorID, loaded.CursorID)
	assert.Equal(t, 42, loaded.Processed)
	assert.True(t, saved.CursorUpdatedAt.Equal(loaded.CursorUpdatedAt))
	assert.False(t, loaded.Complete())

	rd.Server.FastForward(30 * 24 * time.Hour)
	loaded, err = settings.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.NotNil(t, loaded, "checkpoints do not expire")
}

func TestSettings_CorruptCheckpoint(t *testing.T) {
	rd := helpers.SetupTestRedis(t)
	settings := redis_a.NewSettings(rd.Client, "", helpers.TestLogger())
	require.NoError(t, rd.Server.Set("sync:checkpoint", "{not json"))

	_, err := settings.LoadCheckpoint(context.Background())
	require.Error(t, err)
}

func TestSettings_RuleConfigs(t *testing.T) {
	ctx := context.Background()
	rd := helpers.SetupTestRedis(t)
	settings := redis_a.NewSettings(rd.Client, "household", helpers.TestLogger())

	configs, err := settings.LoadRuleConfigs(ctx)
	require.NoError(t, err)
	assert.Empty(t, configs)

	require.NoError(t, settings.SaveRuleConfig(ctx, validation.RuleConfig{
		Name: validation.RuleRateLimit, Enabled: true,
		Params: validation.Params{"max_movements": 3, "window": "30m"},
	}))
	require.NoError(t, settings.SaveRuleConfig(ctx, validation.RuleConfig{
		Name: validation.RuleHighValue, Enabled: false,
		Params: validation.Params{"threshold": "250.00"},
	}))
	require.NoError(t, settings.SaveRuleConfig(ctx, validation.RuleConfig{
		Name: validation.RuleRateLimit, Enabled: true,
		Params: validation.Params{"max_movements": 5, "window": "30m"},
	}))
	rd.Server.HSet("household:rules:config", "broken", "{")

	configs, err = settings.LoadRuleConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 2, "undecodable entries are skipped")

	assert.Equal(t, validation.RuleHighValue, configs[0].Name)
	assert.False(t, configs[0].Enabled)
	assert.Equal(t, validation.RuleRateLimit, configs[1].Name)

	maxMovements, err := configs[1].Params.Int("max_movements", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), maxMovements, "later saves replace earlier ones")

	window, err := configs[1].Params.Duration("window", 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, window)
}

func TestSettings_RedisDown(t *testing.T) {
	ctx := context.Background()
	rd := helpers.SetupTestRedis(t)
	settings := redis_a.NewSettings(rd.Client, "household", helpers.TestLogger())
	rd.Server.Close()

	_, err := settings.LoadCheckpoint(ctx)
	require.Error(t, err)
	require.Error(t, settings.SaveRuleConfig(ctx, validation.RuleConfig{Name: validation.RuleHighValue}))
}
