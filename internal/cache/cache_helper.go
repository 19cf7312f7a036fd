package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// Per-concern TTLs. Exam rows change rarely once published and question
// content is effectively frozen while an exam window is open, so both
// tolerate generous lifetimes. Stats back expensive aggregates and go
// stale quickly as submissions land.
const (
	ExamTTL     = 5 * time.Minute
	QuestionTTL = 10 * time.Minute
	StatsTTL    = time.Minute

	writeBackTimeout = 5 * time.Second
	scanPageSize     = 100
)

// CacheHelper is a prefix-scoped wrapper around a shared Redis client.
// A nil client degrades every read to a miss and every write to a
// no-op, so the service runs fine without Redis.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{client: client, prefix: prefix}
}

// GetCacheKey returns the fully qualified key for a scoped key.
func (c *CacheHelper) GetCacheKey(key string) string {
	return c.prefix + key
}

// Get reads a key and unmarshals it into dest.
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	raw, err := c.client.Get(ctx, c.GetCacheKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheNotFound
	case err != nil:
		return fmt.Errorf("cache read: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}

// Set marshals value and stores it under key for ttl.
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, c.GetCacheKey(key), raw, ttl).Err()
}

// Delete removes one or more scoped keys.
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = c.GetCacheKey(key)
	}
	return c.client.Del(ctx, scoped...).Err()
}

// Exists reports whether a scoped key is present.
func (c *CacheHelper) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, ErrCacheNotAvailable
	}

	n, err := c.client.Exists(ctx, c.GetCacheKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return n > 0, nil
}

// InvalidatePattern deletes every key matching the scoped glob pattern.
// Keys are removed page by page as the SCAN cursor advances, so a large
// keyspace never gets buffered in memory.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	scoped := c.GetCacheKey(pattern)
	var cursor uint64
	for {
		page, next, err := c.client.Scan(ctx, cursor, scoped, scanPageSize).Result()
		if err != nil {
			return fmt.Errorf("cache scan %q: %w", scoped, err)
		}
		if len(page) > 0 {
			if err := c.client.Del(ctx, page...).Err(); err != nil {
				return fmt.Errorf("cache invalidate %q: %w", scoped, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// CacheOrExecute implements the cache-aside pattern. A hit fills dest
// directly. On a miss the fetch result is returned to the caller
// immediately and written back on a detached goroutine, so callers are
// never blocked on Redis.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.InfoContext(ctx, "cache read failed, falling through to fetch", "key", key, "error", err)
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	// One marshal serves both the write-back and filling dest, which
	// keeps dest identical to what a later cache hit would produce.
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	if c.client != nil {
		go func(parent context.Context) {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(parent), writeBackTimeout)
			defer cancel()
			if err := c.client.Set(wctx, c.GetCacheKey(key), raw, ttl).Err(); err != nil {
				slog.Error("cache write-back failed", "key", key, "error", err)
			}
		}(ctx)
	}

	return json.Unmarshal(raw, dest)
}

// CacheManager holds the prefix-scoped helpers the repositories share.
type CacheManager struct {
	client *redis.Client

	Exam     *CacheHelper
	Question *CacheHelper
	Stats    *CacheHelper
}

func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client:   client,
		Exam:     NewCacheHelper(client, "exam:"),
		Question: NewCacheHelper(client, "question:"),
		Stats:    NewCacheHelper(client, "stats:"),
	}
}

// HealthCheck pings Redis. Without a configured client the cache is
// reported unavailable rather than unhealthy.
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check: %w", err)
	}
	return nil
}
