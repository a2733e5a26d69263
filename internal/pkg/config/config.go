// internal/pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequiredConfig marks a required setting that is empty or still a placeholder
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// Backends selectable through configuration
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendWeaviate = "weaviate"

	EmbeddingOpenAI = "openai"
	EmbeddingHash   = "hash"

	SecretsEnv = "env"
	SecretsAWS = "aws"
)

// Config holds all application configuration
type Config struct {
	// Application
	App AppConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Asynq
	Asynq AsynqConfig

	// AWS
	AWS AWSConfig

	// Secrets
	Secrets SecretsConfig

	// Vector index
	Vector VectorConfig

	// Embedding model
	Embedding EmbeddingConfig

	// Retry policy, circuit breakers and error classification
	Resilience ResilienceConfig

	// Rule defaults
	Validation ValidationConfig

	// Secondary write path
	Sync SyncConfig

	// Security
	Security SecurityConfig

	// Server
	Server ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name         string `required:"true"`
	Environment  string // development, staging, production
	Version      string
	LogLevel     string
	LogFormat    string // json, text
	Debug        bool
	StoreBackend string // postgres, memory
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string `required:"true"`
	Port               string `required:"true"`
	User               string
	Password           string
	Name               string `required:"true"`
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	StatementCacheMode string
	EnableQueryLogging bool
	MigrationPath      string // empty uses the embedded migrations
	AutoMigrate        bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host            string
	Port            string
	Password        string
	DB              int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	MaxConnAge      time.Duration
	PoolTimeout     time.Duration
	IdleTimeout     time.Duration
	TTL             time.Duration
	KeyPrefix       string
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	Concurrency          int
	Queues               map[string]int // queue name -> priority
	StrictPriority       bool
	RetryMax             int // overrides the per-task retry count when positive
	ShutdownTimeout      time.Duration
	HealthCheckInterval  time.Duration
	DelayedTaskCheckTime time.Duration
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool   // For MinIO compatibility
	ArchivePrefix   string
	LocalArchiveDir string // used when no bucket is configured
}

// SecretsConfig selects where credentials are resolved from
type SecretsConfig struct {
	Provider   string // env, aws
	SecretName string
	CacheTTL   time.Duration
}

// VectorConfig holds the vector index settings
type VectorConfig struct {
	Backend string // weaviate, memory
	URL     string
	Class   string
	Timeout time.Duration
}

// EmbeddingConfig holds the embedding model settings
type EmbeddingConfig struct {
	Provider   string // openai, hash
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// ResilienceConfig tunes retries, breakers and the error classifier
type ResilienceConfig struct {
	RetryAttempts             int
	RetryStrategy             string
	RetryBaseDelay            time.Duration
	RetryMaxDelay             time.Duration
	RetryJitter               float64
	BreakerThreshold          int
	BreakerWindow             time.Duration
	BreakerCooldown           time.Duration
	BreakerMaxCooldown        time.Duration
	BreakerCooldownMultiplier float64
	ErrorBufferSize           int
	ErrorRepeatThreshold      int
}

// ValidationConfig holds the defaults of the built-in rules
type ValidationConfig struct {
	RateLimitMax       int
	RateLimitWindow    time.Duration
	DuplicateWindow    time.Duration
	HighValueThreshold string
	AllowTierSkip      bool
	DisabledRules      []string
}

// SyncConfig tunes the asynchronous secondary write and the resync sweep
type SyncConfig struct {
	Concurrency int
	Timeout     time.Duration
	BatchSize   int
	ResyncCron  string
	ResyncSince time.Duration
	ArchiveCron string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	TrustedProxies    []string
	SecureHeaders     bool
	RequestIDHeader   string
	AdminToken        string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string
	Port              string `required:"true"`
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	GracefulTimeout   time.Duration
	EnablePprof       bool
	EnableMetrics     bool
	EnableHealthCheck bool
	TLSEnabled        bool
	TLSCertFile       string
	TLSKeyFile        string
}

// Load loads configuration from environment variables
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file in development
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetTypeByDefaultValue(true)

	setDefaults()

	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := &Config{
		App: AppConfig{
			Name:         getEnv("APP_NAME", viper.GetString("app.name")),
			Environment:  env,
			Version:      getEnv("APP_VERSION", "dev"),
			LogLevel:     getEnv("LOG_LEVEL", viper.GetString("log.level")),
			LogFormat:    getEnv("LOG_FORMAT", viper.GetString("log.format")),
			Debug:        getBoolEnv("APP_DEBUG", env == "development"),
			StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", "household"),
			Password:           getEnv("DB_PASSWORD", "household_dev"),
			Name:               getEnv("DB_NAME", "household_inventory"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:     int32(getIntEnv("DB_MAX_CONNECTIONS", 25)),
			MinConnections:     int32(getIntEnv("DB_MIN_CONNECTIONS", 5)),
			MaxConnLifetime:    getDurationEnv("DB_CONNECTION_LIFETIME", time.Hour),
			MaxConnIdleTime:    getDurationEnv("DB_IDLE_TIME", 30*time.Minute),
			HealthCheckPeriod:  getDurationEnv("DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:     getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
			StatementCacheMode: getEnv("DB_STATEMENT_CACHE_MODE", "describe"),
			EnableQueryLogging: getBoolEnv("DB_QUERY_LOGGING", env == "development"),
			MigrationPath:      getEnv("DB_MIGRATION_PATH", ""),
			AutoMigrate:        getBoolEnv("DB_AUTO_MIGRATE", env != "production"),
		},
		Redis: RedisConfig{
			Host:            redisHost,
			Port:            redisPort,
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getIntEnv("REDIS_DB", 0),
			MaxRetries:      getIntEnv("REDIS_MAX_RETRIES", 3),
			MinRetryBackoff: getDurationEnv("REDIS_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: getDurationEnv("REDIS_MAX_RETRY_BACKOFF", 512*time.Millisecond),
			DialTimeout:     getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:     getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:    getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:        getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns:    getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			MaxConnAge:      getDurationEnv("REDIS_MAX_CONN_AGE", 0),
			PoolTimeout:     getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:     getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			TTL:             getDurationEnv("REDIS_TTL", time.Hour),
			KeyPrefix:       getEnv("REDIS_KEY_PREFIX", "household"),
		},
		Asynq: AsynqConfig{
			RedisAddr:            net.JoinHostPort(redisHost, redisPort),
			RedisPassword:        getEnv("REDIS_PASSWORD", ""),
			RedisDB:              getIntEnv("ASYNQ_REDIS_DB", 0),
			Concurrency:          getIntEnv("ASYNQ_CONCURRENCY", 10),
			Queues:               parseQueues(getEnv("ASYNQ_QUEUES", "critical:6,default:3,low:1")),
			StrictPriority:       getBoolEnv("ASYNQ_STRICT_PRIORITY", false),
			RetryMax:             getIntEnv("ASYNQ_RETRY_MAX", 0),
			ShutdownTimeout:      getDurationEnv("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthCheckInterval:  getDurationEnv("ASYNQ_HEALTH_CHECK_INTERVAL", 30*time.Second),
			DelayedTaskCheckTime: getDurationEnv("ASYNQ_DELAYED_TASK_CHECK", 5*time.Second),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			S3Endpoint:      getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    getBoolEnv("AWS_S3_PATH_STYLE", env == "development"),
			ArchivePrefix:   getEnv("ARCHIVE_PREFIX", "movement-log"),
			LocalArchiveDir: getEnv("ARCHIVE_LOCAL_DIR", "./archive"),
		},
		Secrets: SecretsConfig{
			Provider:   strings.ToLower(getEnv("SECRETS_PROVIDER", SecretsEnv)),
			SecretName: getEnv("SECRETS_NAME", "household-be"),
			CacheTTL:   getDurationEnv("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Vector: VectorConfig{
			Backend: strings.ToLower(getEnv("VECTOR_BACKEND", BackendWeaviate)),
			URL:     getEnv("WEAVIATE_URL", "http://localhost:8081"),
			Class:   getEnv("WEAVIATE_CLASS", "HouseholdItem"),
			Timeout: getDurationEnv("WEAVIATE_TIMEOUT", 5*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingHash)),
			BaseURL:    getEnv("EMBEDDING_BASE_URL", ""),
			APIKey:     getEnv("EMBEDDING_API_KEY", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getIntEnv("EMBEDDING_DIMENSIONS", 256),
			Timeout:    getDurationEnv("EMBEDDING_TIMEOUT", 10*time.Second),
		},
		Resilience: ResilienceConfig{
			RetryAttempts:             getIntEnv("RETRY_MAX_ATTEMPTS", 4),
			RetryStrategy:             getEnv("RETRY_STRATEGY", "exponential"),
			RetryBaseDelay:            getDurationEnv("RETRY_BASE_DELAY", 100*time.Millisecond),
			RetryMaxDelay:             getDurationEnv("RETRY_MAX_DELAY", 5*time.Second),
			RetryJitter:               getFloatEnv("RETRY_JITTER", 0.1),
			BreakerThreshold:          getIntEnv("BREAKER_THRESHOLD", 5),
			BreakerWindow:             getDurationEnv("BREAKER_WINDOW", time.Minute),
			BreakerCooldown:           getDurationEnv("BREAKER_COOLDOWN", 30*time.Second),
			BreakerMaxCooldown:        getDurationEnv("BREAKER_MAX_COOLDOWN", 5*time.Minute),
			BreakerCooldownMultiplier: getFloatEnv("BREAKER_COOLDOWN_MULTIPLIER", 2),
			ErrorBufferSize:           getIntEnv("ERROR_BUFFER_SIZE", 100),
			ErrorRepeatThreshold:      getIntEnv("ERROR_REPEAT_THRESHOLD", 3),
		},
		Validation: ValidationConfig{
			RateLimitMax:       getIntEnv("RULE_RATE_LIMIT_MAX", 20),
			RateLimitWindow:    getDurationEnv("RULE_RATE_LIMIT_WINDOW", time.Hour),
			DuplicateWindow:    getDurationEnv("RULE_DUPLICATE_WINDOW", 5*time.Minute),
			HighValueThreshold: getEnv("RULE_HIGH_VALUE_THRESHOLD", "1000"),
			AllowTierSkip:      getBoolEnv("RULE_ALLOW_TIER_SKIP", false),
			DisabledRules:      getSliceEnv("RULES_DISABLED", []string{}),
		},
		Sync: SyncConfig{
			Concurrency: getIntEnv("SYNC_CONCURRENCY", 8),
			Timeout:     getDurationEnv("SYNC_TIMEOUT", 30*time.Second),
			BatchSize:   getIntEnv("SYNC_BATCH_SIZE", 100),
			ResyncCron:  getEnv("SYNC_RESYNC_CRON", "@every 6h"),
			ResyncSince: getDurationEnv("SYNC_RESYNC_SINCE", 7*24*time.Hour),
			ArchiveCron: getEnv("ARCHIVE_CRON", "15 0 * * *"),
		},
		Security: SecurityConfig{
			RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: getDurationEnv("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    getSliceEnv("ALLOWED_ORIGINS", []string{"*"}),
			TrustedProxies:    getSliceEnv("TRUSTED_PROXIES", []string{}),
			SecureHeaders:     getBoolEnv("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   getEnv("REQUEST_ID_HEADER", "X-Request-ID"),
			AdminToken:        getEnv("ADMIN_TOKEN", ""),
		},
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnv("SERVER_PORT", "8080"),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:    getIntEnv("SERVER_MAX_HEADER_BYTES", 1<<20), // 1 MB
			MaxBodyBytes:      int64(getIntEnv("SERVER_MAX_BODY_BYTES", 1<<20)),
			GracefulTimeout:   getDurationEnv("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
			EnablePprof:       getBoolEnv("ENABLE_PPROF", env == "development"),
			EnableMetrics:     getBoolEnv("ENABLE_METRICS", true),
			EnableHealthCheck: getBoolEnv("ENABLE_HEALTH_CHECK", true),
			TLSEnabled:        getBoolEnv("TLS_ENABLED", false),
			TLSCertFile:       getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:        getEnv("TLS_KEY_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs the validators that apply to the configured environment
func (c *Config) Validate() error {
	validators := []Validator{&BasicValidator{}, &SecurityValidator{}}
	if c.IsProduction() {
		validators = append(validators, &ProductionValidator{})
	}
	for _, v := range validators {
		if err := v.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// GetDatabaseURL returns the formatted database connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		net.JoinHostPort(c.Database.Host, c.Database.Port),
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns host:port of the Redis server
func (c *Config) GetRedisAddress() string {
	return net.JoinHostPort(c.Redis.Host, c.Redis.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

// Helper functions

func setDefaults() {
	viper.SetDefault("app.name", "household-api")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	pairs := strings.Split(queuesStr, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				queues[name] = priority
			}
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
