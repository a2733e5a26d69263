package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	cfg, err := Load(discardLogger())
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadTestConfig(t)

	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, BackendPostgres, cfg.App.StoreBackend)
	assert.Equal(t, "household_inventory", cfg.Database.Name)
	assert.Empty(t, cfg.Database.MigrationPath)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Asynq.Queues)
	assert.Zero(t, cfg.Asynq.RetryMax, "tasks keep their own retry counts")
	assert.Equal(t, 4, cfg.Resilience.RetryAttempts)
	assert.Equal(t, "exponential", cfg.Resilience.RetryStrategy)
	assert.Equal(t, 5*time.Minute, cfg.Validation.DuplicateWindow)
	assert.Equal(t, "HouseholdItem", cfg.Vector.Class)
	assert.Equal(t, EmbeddingHash, cfg.Embedding.Provider)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("BREAKER_THRESHOLD", "2")
	t.Setenv("BREAKER_COOLDOWN_MULTIPLIER", "1.5")
	t.Setenv("RULES_DISABLED", "high_value, duplicate_movement,")
	t.Setenv("SYNC_RESYNC_CRON", "*/15 * * * *")
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg := loadTestConfig(t)

	assert.Equal(t, BackendMemory, cfg.App.StoreBackend)
	assert.Equal(t, 2, cfg.Resilience.BreakerThreshold)
	assert.InDelta(t, 1.5, cfg.Resilience.BreakerCooldownMultiplier, 0.0001)
	assert.Equal(t, []string{"high_value", "duplicate_movement"}, cfg.Validation.DisabledRules)
	assert.Equal(t, "*/15 * * * *", cfg.Sync.ResyncCron)
	assert.Equal(t, "cache.internal:6379", cfg.Asynq.RedisAddr)
	assert.Equal(t, "cache.internal:6379", cfg.GetRedisAddress())
}

func TestLoad_InvalidSettingFails(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("VECTOR_BACKEND", "pinecone")

	_, err := Load(discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vector backend")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectedErr string
		isMissing   bool
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "missing_database_host",
			mutate:      func(c *Config) { c.Database.Host = "" },
			expectedErr: "Database.Host",
			isMissing:   true,
		},
		{
			name:        "connection_bounds",
			mutate:      func(c *Config) { c.Database.MinConnections = 50 },
			expectedErr: "max_connections",
		},
		{
			name:        "unknown_retry_strategy",
			mutate:      func(c *Config) { c.Resilience.RetryStrategy = "fibonacci" },
			expectedErr: "retry strategy",
		},
		{
			name:        "zero_breaker_threshold",
			mutate:      func(c *Config) { c.Resilience.BreakerThreshold = 0 },
			expectedErr: "breaker threshold",
		},
		{
			name:        "bad_high_value_threshold",
			mutate:      func(c *Config) { c.Validation.HighValueThreshold = "lots" },
			expectedErr: "high value threshold",
		},
		{
			name:        "bad_cron",
			mutate:      func(c *Config) { c.Sync.ResyncCron = "every day" },
			expectedErr: "resync cron",
		},
		{
			name:        "bad_archive_cron",
			mutate:      func(c *Config) { c.Sync.ArchiveCron = "61 * * * *" },
			expectedErr: "archive cron",
		},
		{
			name:        "negative_job_retries",
			mutate:      func(c *Config) { c.Asynq.RetryMax = -1 },
			expectedErr: "retry max",
		},
		{
			name:        "short_admin_token",
			mutate:      func(c *Config) { c.Security.AdminToken = "short" },
			expectedErr: "admin token",
		},
		{
			name: "production_wildcard_origin",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			expectedErr: "wildcard origin",
		},
		{
			name: "production_default_password",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Security.AllowedOrigins = []string{"https://home.example"}
			},
			expectedErr: "database password",
			isMissing:   true,
		},
		{
			name: "production_ready",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Security.AllowedOrigins = []string{"https://home.example"}
				c.Security.SecureHeaders = true
				c.Security.AdminToken = "0123456789abcdef0123"
				c.Database.Password = "s3cret-from-vault"
				c.Database.SSLMode = "require"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectedErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
			assert.Equal(t, tt.isMissing, errors.Is(err, ErrMissingRequiredConfig))
		})
	}
}

func TestParseQueues(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]int
	}{
		{name: "weighted", input: "critical:6, low:1", expected: map[string]int{"critical": 6, "low": 1}},
		{name: "invalid_pairs_skipped", input: "critical:x,default:2,bad", expected: map[string]int{"default": 2}},
		{name: "empty_falls_back", input: "", expected: map[string]int{"default": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseQueues(tt.input))
		})
	}
}

type fakeSecretClient struct {
	value string
	err   error
	calls int
}

func (f *fakeSecretClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestAWSSecretsManager_CachesAndApplies(t *testing.T) {
	client := &fakeSecretClient{value: `{"DB_PASSWORD":"from-aws","EMBEDDING_API_KEY":"sk-test"}`}
	sm := newAWSSecretsManager(client, SecretsConfig{SecretName: "household-be", CacheTTL: time.Minute}, discardLogger())

	cfg := loadTestConfig(t)
	cfg.Redis.Password = "kept"
	require.NoError(t, ApplySecrets(context.Background(), cfg, sm))

	assert.Equal(t, "from-aws", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "kept", cfg.Redis.Password)

	val, err := sm.GetSecret(context.Background(), SecretDatabasePassword)
	require.NoError(t, err)
	assert.Equal(t, "from-aws", val)
	assert.Equal(t, 1, client.calls, "second read is served from cache")

	_, err = sm.GetSecret(context.Background(), "UNKNOWN")
	require.Error(t, err)
}

func TestAWSSecretsManager_FetchError(t *testing.T) {
	client := &fakeSecretClient{err: errors.New("access denied")}
	sm := newAWSSecretsManager(client, SecretsConfig{SecretName: "household-be"}, discardLogger())

	err := ApplySecrets(context.Background(), loadTestConfig(t), sm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestEnvSecretsManager(t *testing.T) {
	t.Setenv(SecretAdminToken, "env-admin-token-0123")
	sm := NewEnvSecretsManager()

	cfg := loadTestConfig(t)
	require.NoError(t, ApplySecrets(context.Background(), cfg, sm))
	assert.Equal(t, "env-admin-token-0123", cfg.Security.AdminToken)

	_, err := sm.GetSecret(context.Background(), "NOT_SET_ANYWHERE")
	require.Error(t, err)
}
