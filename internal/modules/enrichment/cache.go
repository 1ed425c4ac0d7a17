// README: Age-estimate caches keyed by registration number (bounded LRU and Redis).
package enrichment

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache memoizes age estimates by registration number.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// DefaultCacheSize bounds the in-process cache.
const DefaultCacheSize = 4096

type LRUCache struct {
	lru *lru.Cache[string, string]
}

// NewLRUCache returns a cache holding at most size entries (DefaultCacheSize
// when size <= 0).
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{lru: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *LRUCache) Set(_ context.Context, key, value string) error {
	c.lru.Add(key, value)
	return nil
}

const ageKeyPrefix = "enrichment:age:"

// RedisCache shares estimates across processes. A zero ttl keeps entries
// until evicted by Redis.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.redis.Get(ctx, ageKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.redis.Set(ctx, ageKeyPrefix+key, value, c.ttl).Err()
}
