// internal/pkg/config/validators.go
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Validator checks one aspect of a loaded configuration
type Validator interface {
	Validate(cfg *Config) error
}

var retryStrategies = map[string]bool{
	"none":        true,
	"immediate":   true,
	"linear":      true,
	"exponential": true,
}

// BasicValidator performs basic configuration validation
type BasicValidator struct{}

// Validate performs basic validation
func (v *BasicValidator) Validate(cfg *Config) error {
	if err := validateRequiredFields(cfg); err != nil {
		return err
	}

	if cfg.Database.MaxConnections < cfg.Database.MinConnections {
		return fmt.Errorf("database max_connections must be >= min_connections")
	}

	if cfg.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool_size must be positive")
	}

	if cfg.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate_limit_requests must be positive")
	}

	switch cfg.App.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.App.StoreBackend)
	}

	switch cfg.Vector.Backend {
	case BackendWeaviate, BackendMemory:
	default:
		return fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}

	switch cfg.Embedding.Provider {
	case EmbeddingOpenAI, EmbeddingHash:
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	switch cfg.Secrets.Provider {
	case SecretsEnv, SecretsAWS:
	default:
		return fmt.Errorf("unknown secrets provider %q", cfg.Secrets.Provider)
	}

	return validateTuning(cfg)
}

func validateTuning(cfg *Config) error {
	r := cfg.Resilience
	if r.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if !retryStrategies[strings.ToLower(r.RetryStrategy)] {
		return fmt.Errorf("unknown retry strategy %q", r.RetryStrategy)
	}
	if r.RetryMaxDelay < r.RetryBaseDelay {
		return fmt.Errorf("retry max delay must be >= base delay")
	}
	if r.RetryJitter < 0 || r.RetryJitter > 1 {
		return fmt.Errorf("retry jitter must be within [0, 1]")
	}
	if r.BreakerThreshold < 1 {
		return fmt.Errorf("breaker threshold must be at least 1")
	}
	if r.BreakerMaxCooldown < r.BreakerCooldown {
		return fmt.Errorf("breaker max cooldown must be >= cooldown")
	}

	if cfg.Validation.RateLimitMax < 1 {
		return fmt.Errorf("rule rate limit must be at least 1")
	}
	if _, err := decimal.NewFromString(cfg.Validation.HighValueThreshold); err != nil {
		return fmt.Errorf("invalid high value threshold %q: %w", cfg.Validation.HighValueThreshold, err)
	}

	if cfg.Asynq.RetryMax < 0 {
		return fmt.Errorf("asynq retry max must not be negative")
	}

	if cfg.Sync.Concurrency < 1 {
		return fmt.Errorf("sync concurrency must be at least 1")
	}
	if cfg.Sync.BatchSize < 1 {
		return fmt.Errorf("sync batch size must be at least 1")
	}
	for name, spec := range map[string]string{"resync": cfg.Sync.ResyncCron, "archive": cfg.Sync.ArchiveCron} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s cron spec %q: %w", name, spec, err)
		}
	}
	return nil
}

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if strings.Contains(cfg.Database.Password, "MISSING_") || cfg.Database.Password == "household_dev" {
		if cfg.Secrets.Provider != SecretsAWS {
			return fmt.Errorf("%w: database password", ErrMissingRequiredConfig)
		}
	}

	if cfg.App.StoreBackend != BackendPostgres {
		return fmt.Errorf("the postgres store backend is required in production")
	}

	if cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production")
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("secure headers must be enabled in production")
	}

	if len(cfg.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed origins must be configured in production")
	}

	if cfg.Security.AdminToken == "" {
		return fmt.Errorf("%w: admin token", ErrMissingRequiredConfig)
	}

	if cfg.Embedding.Provider == EmbeddingOpenAI && cfg.Embedding.APIKey == "" && cfg.Secrets.Provider != SecretsAWS {
		return fmt.Errorf("%w: embedding API key", ErrMissingRequiredConfig)
	}

	if cfg.Server.TLSEnabled {
		if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
			return fmt.Errorf("TLS cert and key files must be provided when TLS is enabled")
		}
	}

	return nil
}

// SecurityValidator validates security-related configuration
type SecurityValidator struct{}

// Validate performs security validation
func (v *SecurityValidator) Validate(cfg *Config) error {
	if cfg.Security.AdminToken != "" && len(cfg.Security.AdminToken) < 16 {
		return fmt.Errorf("admin token must be at least 16 characters")
	}

	if cfg.Security.RateLimitDuration <= 0 {
		return fmt.Errorf("rate limit duration must be positive")
	}

	for _, origin := range cfg.Security.AllowedOrigins {
		if origin == "*" && cfg.IsProduction() {
			return fmt.Errorf("wildcard origin (*) not allowed in production")
		}
	}

	return nil
}

// validateRequiredFields uses reflection to check required struct tags
func validateRequiredFields(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	return validateStruct(v, "")
}

func validateStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		fieldName := fieldType.Name

		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if required := fieldType.Tag.Get("required"); required == "true" {
			if isZeroValue(field) {
				return fmt.Errorf("%w: %s", ErrMissingRequiredConfig, fieldName)
			}
		}

		if field.Kind() == reflect.Struct {
			if err := validateStruct(field, fieldName); err != nil {
				return err
			}
		}
	}

	return nil
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == "" || strings.HasPrefix(v.String(), "MISSING_")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
