package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetricsCache is an optional cache in front of the expensive bibliometric
// index computation in the REST façade's /rest/metrics handler. Absent a
// configured Redis address, callers simply don't construct one and the
// handler recomputes every request.
type MetricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetricsCache opens a client against addr (e.g. "localhost:6379").
func NewMetricsCache(addr string, ttl time.Duration) *MetricsCache {
	return &MetricsCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// newMetricsCacheWithClient wires an already-constructed client, used by
// tests against miniredis.
func newMetricsCacheWithClient(client *redis.Client, ttl time.Duration) *MetricsCache {
	return &MetricsCache{client: client, ttl: ttl}
}

func cacheKey(owner string) string {
	return "citewatch:metrics:" + owner
}

// Get returns the cached metrics payload for owner, or ok=false on a miss.
func (c *MetricsCache) Get(ctx context.Context, owner string, out any) (bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(owner)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db: metrics cache get: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("db: metrics cache decode: %w", err)
	}
	return true, nil
}

// Set stores value for owner, expiring after the cache's configured ttl.
func (c *MetricsCache) Set(ctx context.Context, owner string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("db: metrics cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(owner), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("db: metrics cache set: %w", err)
	}
	return nil
}

// Invalidate drops owner's cached metrics, called whenever new crawler
// data or merges land for that owner.
func (c *MetricsCache) Invalidate(ctx context.Context, owner string) error {
	if err := c.client.Del(ctx, cacheKey(owner)).Err(); err != nil {
		return fmt.Errorf("db: metrics cache invalidate: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *MetricsCache) Close() error {
	return c.client.Close()
}
