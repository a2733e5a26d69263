// test/helpers/helpers.go
package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/household-be/internal/adapters/db"
	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/pkg/config"
)

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// SetupTestDB creates a PostgreSQL container with the embedded schema applied
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_household",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_household",
		SSLMode:            "disable",
		MaxConnections:     10,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		StatementCacheMode: "describe",
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")
	t.Cleanup(database.Close)

	migrationConfig := &db.MigrationConfig{
		DatabaseURL: dbConfig.URL(),
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}
	err = db.RunMigrationsWithRetry(context.Background(), migrationConfig, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates an in-process Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// LoadTestConfig returns a test configuration running on the in-memory backends
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:         "test-api",
			Environment:  "test",
			Version:      "test",
			LogLevel:     "debug",
			LogFormat:    "text",
			Debug:        true,
			StoreBackend: config.BackendMemory,
		},
		Database: config.DatabaseConfig{
			Host:               "localhost",
			Port:               "5432",
			User:               "test",
			Password:           "test",
			Name:               "test_household",
			SSLMode:            "disable",
			MaxConnections:     10,
			MinConnections:     2,
			EnableQueryLogging: true,
		},
		Redis: config.RedisConfig{
			Host:      "localhost",
			Port:      "6379",
			DB:        0,
			TTL:       time.Hour,
			PoolSize:  10,
			KeyPrefix: "household-test",
		},
		Asynq: config.AsynqConfig{
			RedisAddr:   "localhost:6379",
			Concurrency: 2,
			Queues:      map[string]int{"critical": 6, "default": 3, "low": 1},
			RetryMax:    1,
		},
		Secrets: config.SecretsConfig{
			Provider: config.SecretsEnv,
		},
		Vector: config.VectorConfig{
			Backend: config.BackendMemory,
			Class:   "HouseholdItem",
		},
		Embedding: config.EmbeddingConfig{
			Provider:   config.EmbeddingHash,
			Dimensions: 64,
		},
		Resilience: config.ResilienceConfig{
			RetryAttempts:             2,
			RetryStrategy:             "none",
			RetryMaxDelay:             time.Millisecond,
			BreakerThreshold:          5,
			BreakerWindow:             time.Minute,
			BreakerCooldown:           time.Minute,
			BreakerMaxCooldown:        time.Minute,
			BreakerCooldownMultiplier: 2,
			ErrorBufferSize:           100,
			ErrorRepeatThreshold:      3,
		},
		Validation: config.ValidationConfig{
			RateLimitMax:       20,
			RateLimitWindow:    time.Hour,
			DuplicateWindow:    5 * time.Minute,
			HighValueThreshold: "1000",
		},
		Sync: config.SyncConfig{
			Concurrency: 4,
			Timeout:     5 * time.Second,
			BatchSize:   50,
			ResyncSince: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			SecureHeaders:     false,
			RequestIDHeader:   "X-Request-ID",
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
	}
}

// CreateTestItem creates a test household item
func CreateTestItem(overrides ...func(*domain.Item)) *domain.Item {
	now := time.Now().UTC().Truncate(time.Microsecond)
	item := &domain.Item{
		ID:          uuid.New(),
		Name:        "Cordless Drill",
		Description: "18V drill with two batteries",
		Tags:        []string{"tools", "power"},
		Status:      domain.StatusAvailable,
		UnitValue:   decimal.NewFromFloat(129.99),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(item)
	}

	return item
}

// CreateTestLocation creates a test location under parent, or a building when parent is nil
func CreateTestLocation(name string, tier domain.LocationTier, parent *domain.Location, overrides ...func(*domain.Location)) *domain.Location {
	loc := &domain.Location{
		ID:        uuid.New(),
		Name:      name,
		Tier:      tier,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if parent != nil {
		loc.ParentID = &parent.ID
	}

	for _, override := range overrides {
		override(loc)
	}

	return loc
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// TruncateAllTables truncates all tables in the test database
func TruncateAllTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	tables := []string{
		"movement_log",
		"inventory_records",
		"items",
		"locations",
		"categories",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "Failed to truncate table: %s", table)
	}
}
