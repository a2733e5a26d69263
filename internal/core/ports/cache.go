// internal/core/ports/cache.go
package ports

import (
	"context"
	"errors"
	"time"
)

// CacheRepository is the read-through cache in front of the store
type CacheRepository interface {
	// GetOrSet decodes the cached value into dest, or calls fetch and caches its result
	GetOrSet(ctx context.Context, key string, dest interface{},
		fetch func() (interface{}, error), ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
}

// ErrCacheMiss is returned when a key is not cached
var ErrCacheMiss = errors.New("cache miss")

// CacheKeyPrefix defines prefixes for different key families
type CacheKeyPrefix string

const (
	PrefixItem       CacheKeyPrefix = "item"
	PrefixLocation   CacheKeyPrefix = "loc"
	PrefixCheckpoint CacheKeyPrefix = "sync"
	PrefixRules      CacheKeyPrefix = "rules"
)

// BuildKey creates a cache key with prefix
func BuildKey(prefix CacheKeyPrefix, parts ...string) string {
	key := string(prefix)
	for _, part := range parts {
		key += ":" + part
	}
	return key
}
