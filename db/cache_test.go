package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *MetricsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newMetricsCacheWithClient(client, time.Minute)
}

func TestMetricsCacheMissThenHit(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var out map[string]int
	ok, err := cache.Get(ctx, "alice", &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "alice", map[string]int{"h_index": 7}))

	ok, err = cache.Get(ctx, "alice", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, out["h_index"])
}

func TestMetricsCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "bob", map[string]int{"h_index": 3}))
	require.NoError(t, cache.Invalidate(ctx, "bob"))

	var out map[string]int
	ok, err := cache.Get(ctx, "bob", &out)
	require.NoError(t, err)
	require.False(t, ok)
}
