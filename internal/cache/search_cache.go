// Package cache provides the read-through search result cache backed by
// Redis. Entries are immutable once written; the only mutations are
// explicit deletes and TTL expiry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached search may get before it self-heals.
const DefaultTTL = 900 * time.Second

// scanPageSize keeps pattern enumeration incremental so a bulk
// invalidation never stalls the cache under load.
const scanPageSize = 100

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// SearchKey builds the canonical cache key for one listing's search.
func SearchKey(listingType, listingID string) string {
	return fmt.Sprintf("search:%s:%s", listingType, listingID)
}

// SearchPattern matches every cached search of one listing type.
func SearchPattern(listingType string) string {
	return fmt.Sprintf("search:%s:*", listingType)
}

// SearchCache is the cache contract the orchestrator depends on.
type SearchCache interface {
	Get(ctx context.Context, key string) (value string, remainingTTL time.Duration, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) (deleted int, err error)
}

type redisSearchCache struct {
	rdb *redis.Client
}

func NewRedisSearchCache(rdb *redis.Client) SearchCache {
	return &redisSearchCache{rdb: rdb}
}

func (c *redisSearchCache) Get(ctx context.Context, key string) (string, time.Duration, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, ErrMiss
	}
	if err != nil {
		return "", 0, fmt.Errorf("cache get %s: %w", key, err)
	}

	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return "", 0, fmt.Errorf("cache ttl %s: %w", key, err)
	}
	return value, ttl, nil
}

func (c *redisSearchCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *redisSearchCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern enumerates matching keys with an incremental SCAN
// (never KEYS) and deletes them page by page.
func (c *redisSearchCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache del batch: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
