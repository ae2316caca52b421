// Package analytics derives trend, fatigue and creative-pattern signals
// from the warehouse's daily aggregates. Results are ephemeral: computed on
// demand, cached with a TTL, never persisted.
package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a TTL result cache. Entries are never invalidated early;
// staleness inside the TTL window is accepted.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// CacheKey derives a cache key from the result kind, the account partition
// and the full query parameter set.
func CacheKey(kind, accountID string, params any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%+v", params))
	}
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("insights:%s:%s:%s", kind, accountID, hex.EncodeToString(sum[:]))
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	c.client.Set(ctx, key, payload, ttl)
}

// MemoryCache implements Cache in process memory, with expiry checked on
// read. Used in tests and Redis-less runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: c.now().Add(ttl)}
}

// cached wraps a computation with a cache lookup and store.
func cached[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func() (*T, error)) (*T, bool, error) {
	if c != nil {
		if payload, ok := c.Get(ctx, key); ok {
			var out T
			if err := json.Unmarshal(payload, &out); err == nil {
				return &out, true, nil
			}
		}
	}

	out, err := compute()
	if err != nil {
		return nil, false, err
	}

	if c != nil {
		if payload, err := json.Marshal(out); err == nil {
			c.Set(ctx, key, payload, ttl)
		}
	}
	return out, false, nil
}
