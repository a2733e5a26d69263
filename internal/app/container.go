// internal/app/container.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/household-be/internal/adapters/db"
	"github.com/ammerola/household-be/internal/adapters/embedding"
	"github.com/ammerola/household-be/internal/adapters/memstore"
	redis_a "github.com/ammerola/household-be/internal/adapters/redis_adapter"
	"github.com/ammerola/household-be/internal/adapters/storage"
	"github.com/ammerola/household-be/internal/adapters/vector"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/resilience"
	"github.com/ammerola/household-be/internal/core/services"
	"github.com/ammerola/household-be/internal/core/validation"
	"github.com/ammerola/household-be/internal/handlers"
	"github.com/ammerola/household-be/internal/pkg/config"
)

// SettingsStore keeps sweep checkpoints and rule overrides
type SettingsStore interface {
	ports.CheckpointStore
	ports.RuleConfigStore
}

// Container holds the dependencies shared by the api, worker and seeder
// binaries. Database and Redis are nil when the in-memory backends are used.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Database *db.Database
	Redis    *redis.Client

	Store    ports.InventoryStore
	Index    ports.VectorStore
	Embedder ports.Embedder
	Settings SettingsStore
	Cache    ports.CacheRepository
	Archive  ports.ArchiveStore

	Breakers   *resilience.Registry
	Classifier *resilience.Classifier
	Engine     *validation.Engine
	Service    *services.InventoryMutationService

	closers []func()
}

// New resolves secrets, connects the configured backends and assembles the
// mutation service
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close(context.Background())
		}
	}()

	sm, err := config.NewSecretsManager(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	if err := config.ApplySecrets(ctx, cfg, sm); err != nil {
		return nil, err
	}

	if err := c.initStore(ctx); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		return nil, err
	}
	if err := c.initSearch(ctx); err != nil {
		return nil, err
	}
	if err := c.initArchive(ctx); err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg.Validation, logger)
	if err != nil {
		return nil, err
	}
	c.Engine = engine

	breakerCfg := resilience.BreakerConfig{
		Threshold:          cfg.Resilience.BreakerThreshold,
		Window:             cfg.Resilience.BreakerWindow,
		Cooldown:           cfg.Resilience.BreakerCooldown,
		MaxCooldown:        cfg.Resilience.BreakerMaxCooldown,
		CooldownMultiplier: cfg.Resilience.BreakerCooldownMultiplier,
	}
	c.Breakers = resilience.NewRegistry(breakerCfg, logger)
	c.Classifier = resilience.NewClassifier(resilience.ClassifierConfig{
		BufferSize:      cfg.Resilience.ErrorBufferSize,
		RepeatThreshold: cfg.Resilience.ErrorRepeatThreshold,
	}, logger)

	embedPolicy, err := retryPolicy("embed", cfg.Resilience)
	if err != nil {
		return nil, err
	}
	indexPolicy, err := retryPolicy("vector_upsert", cfg.Resilience)
	if err != nil {
		return nil, err
	}

	syncer := services.NewSyncCoordinator(c.Store, c.Index, c.Embedder, c.Settings, c.Breakers, c.Classifier,
		services.SyncConfig{
			BatchSize:   cfg.Sync.BatchSize,
			EmbedPolicy: embedPolicy,
			IndexPolicy: indexPolicy,
		}, logger)

	c.Service = services.NewInventoryMutationService(services.Dependencies{
		Store:      c.Store,
		Engine:     c.Engine,
		Sync:       syncer,
		Dispatcher: services.NewAsyncDispatcher(int64(cfg.Sync.Concurrency), cfg.Sync.Timeout, logger),
		Breakers:   c.Breakers,
		Classifier: c.Classifier,
		Rules:      c.Settings,
		Cache:      c.Cache,
	}, logger)

	if err := c.Service.LoadRuleOverrides(ctx); err != nil {
		logger.WarnContext(ctx, "starting with default rule configuration",
			slog.String("error", err.Error()))
	}

	logger.Info("all dependencies initialized successfully",
		slog.String("store", cfg.App.StoreBackend),
		slog.String("vector_index", cfg.Vector.Backend),
		slog.String("embedder", cfg.Embedding.Provider),
		slog.Bool("redis", c.Redis != nil))

	ok = true
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	cfg := c.Config
	if cfg.App.StoreBackend == config.BackendMemory {
		c.Logger.Warn("using the in-memory inventory store; data is lost on exit")
		c.Store = memstore.New()
		return nil
	}

	c.Logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.Database = database
	c.closers = append(c.closers, database.Close)

	if cfg.Database.AutoMigrate {
		if err := c.Migrate(ctx); err != nil {
			return err
		}
	}

	c.Store = db.NewInventoryStore(database, c.Logger)
	return nil
}

// Migrate applies pending schema migrations
func (c *Container) Migrate(ctx context.Context) error {
	if c.Database == nil {
		return nil
	}
	c.Logger.Info("running database migrations")

	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL: c.Config.GetDatabaseURL(),
		SourcePath:  c.Config.Database.MigrationPath,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}, c.Logger, 3)
}

func (c *Container) initRedis(ctx context.Context) error {
	cfg := c.Config
	if cfg.Redis.Host == "" {
		c.Logger.Warn("redis not configured; checkpoints and rule overrides are kept in memory")
		c.Settings = memstore.NewSettings()
		return nil
	}

	c.Logger.Info("connecting to Redis",
		slog.String("host", cfg.Redis.Host),
		slog.String("port", cfg.Redis.Port),
	)

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.GetRedisAddress(),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		ConnMaxLifetime: cfg.Redis.MaxConnAge,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		ConnMaxIdleTime: cfg.Redis.IdleTimeout,
	})
	c.closers = append(c.closers, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.Redis = client
	c.Cache = redis_a.NewCache(client, cfg.Redis.TTL, c.Logger)
	c.Settings = redis_a.NewSettings(client, cfg.Redis.KeyPrefix, c.Logger)
	return nil
}

func (c *Container) initSearch(ctx context.Context) error {
	cfg := c.Config

	switch cfg.Embedding.Provider {
	case config.EmbeddingOpenAI:
		embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize embedder: %w", err)
		}
		c.Embedder = embedder
	default:
		c.Embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}

	if cfg.Vector.Backend != config.BackendWeaviate {
		c.Index = memstore.NewVectorIndex()
		return nil
	}

	index, err := vector.NewWeaviateStore(vector.Config{URL: cfg.Vector.URL, Class: cfg.Vector.Class}, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}
	schemaCtx, cancel := context.WithTimeout(ctx, cfg.Vector.Timeout)
	defer cancel()
	if err := index.EnsureSchema(schemaCtx); err != nil {
		// the index is secondary; writes commit and resync catches up
		c.Logger.WarnContext(ctx, "vector index schema not ensured",
			slog.String("class", cfg.Vector.Class),
			slog.String("error", err.Error()))
	}
	c.Index = index
	return nil
}

func (c *Container) initArchive(ctx context.Context) error {
	cfg := c.Config
	if cfg.AWS.S3Bucket == "" {
		local, err := storage.NewLocalStorage(cfg.AWS.LocalArchiveDir, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize local archive: %w", err)
		}
		c.Archive = local
		return nil
	}

	s3, err := storage.NewS3Storage(ctx, &storage.S3Config{
		Region:          cfg.AWS.Region,
		Bucket:          cfg.AWS.S3Bucket,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.S3Endpoint,
		UsePathStyle:    cfg.AWS.UsePathStyle,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize archive bucket: %w", err)
	}
	c.Archive = s3
	return nil
}

// AsynqRedisOpt returns the connection used by the task queue
func (c *Container) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Asynq.RedisAddr,
		Password: c.Config.Asynq.RedisPassword,
		DB:       c.Config.Asynq.RedisDB,
	}
}

// Ping reports whether the primary store answers
func (c *Container) Ping(ctx context.Context) error {
	if c.Database == nil {
		return nil
	}
	return c.Database.Ping(ctx)
}

// PingRedis reports whether Redis answers
func (c *Container) PingRedis(ctx context.Context) error {
	if c.Redis == nil {
		return errors.New("redis not configured")
	}
	return c.Redis.Ping(ctx).Err()
}

// HealthChecks lists the probes served by /health. Only the primary store
// gates readiness.
func (c *Container) HealthChecks() []handlers.HealthCheck {
	checks := []handlers.HealthCheck{
		{Name: "store", Required: true, Check: c.Ping},
		{Name: "vector_index", Check: c.Index.Ready},
	}
	if c.Redis != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: c.PingRedis})
	}
	return checks
}

// Close drains in-flight syncs, then releases connections in reverse order
func (c *Container) Close(ctx context.Context) {
	if c.Service != nil {
		drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := c.Service.Close(drainCtx); err != nil {
			c.Logger.Warn("sync dispatcher did not drain", slog.String("error", err.Error()))
		}
		cancel()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func retryPolicy(name string, cfg config.ResilienceConfig) (resilience.Policy, error) {
	policy := resilience.DefaultPolicy(name)
	if cfg.RetryStrategy != "" {
		strategy, err := resilience.ParseBackoffStrategy(cfg.RetryStrategy)
		if err != nil {
			return policy, err
		}
		policy.Strategy = strategy
	}
	if cfg.RetryAttempts > 0 {
		policy.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryMaxDelay > 0 {
		policy.MaxDelay = cfg.RetryMaxDelay
	}
	if cfg.RetryJitter > 0 {
		policy.Jitter = cfg.RetryJitter
	}
	return policy, nil
}

// newEngine builds the rule engine with configured defaults applied on top
// of the built-in parameters
func newEngine(cfg config.ValidationConfig, logger *slog.Logger) (*validation.Engine, error) {
	registry := validation.NewDefaultRegistry()

	defaults := map[string]validation.Params{}
	if cfg.RateLimitMax > 0 {
		defaults[validation.RuleRateLimit] = validation.Params{"max_movements": cfg.RateLimitMax}
	}
	if cfg.RateLimitWindow > 0 {
		p := defaults[validation.RuleRateLimit]
		if p == nil {
			p = validation.Params{}
		}
		p["window"] = cfg.RateLimitWindow.String()
		defaults[validation.RuleRateLimit] = p
	}
	if cfg.DuplicateWindow > 0 {
		defaults[validation.RuleDuplicateMovement] = validation.Params{"window": cfg.DuplicateWindow.String()}
	}
	if cfg.HighValueThreshold != "" {
		defaults[validation.RuleHighValue] = validation.Params{"threshold": cfg.HighValueThreshold}
	}
	if cfg.AllowTierSkip {
		defaults[validation.RuleLocationHierarchy] = validation.Params{"allow_tier_skip": true}
	}

	for name, params := range defaults {
		if _, err := registry.Override(name, nil, params); err != nil {
			return nil, fmt.Errorf("invalid default for rule %s: %w", name, err)
		}
	}

	disabled := false
	for _, name := range cfg.DisabledRules {
		if _, err := registry.Override(name, &disabled, nil); err != nil {
			return nil, fmt.Errorf("cannot disable rule %s: %w", name, err)
		}
	}

	return validation.NewEngine(registry, logger), nil
}
