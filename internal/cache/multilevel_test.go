package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedItem struct {
	ID    string   `json:"id"`
	Items []string `json:"items"`
}

func setupMultiLevel(t *testing.T) (*MultiLevelCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	redisCache := NewRedisCache(&CacheConfig{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	c := NewMultiLevelCache(redisCache, &MultiLevelConfig{
		L1TTL:        time.Minute,
		L1MaxEntries: 100,
		Breaker:      &CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour, HalfOpenMaxCalls: 1},
	})
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestMultiLevelCache_SetWritesBothLevels(t *testing.T) {
	c, mr := setupMultiLevel(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", cachedItem{ID: "1", Items: []string{"a"}}, time.Minute))
	assert.True(t, mr.Exists("k"))

	var got cachedItem
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, int64(1), c.Metrics().L1Hits)
}

func TestMultiLevelCache_PromotesFromL2(t *testing.T) {
	c, mr := setupMultiLevel(t)
	ctx := context.Background()

	mr.Set("k", `{"id":"2","items":["x","y"]}`)

	var got cachedItem
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, []string{"x", "y"}, got.Items)
	assert.Equal(t, int64(1), c.Metrics().L2Hits)

	mr.Del("k")
	var again cachedItem
	require.NoError(t, c.Get(ctx, "k", &again))
	assert.Equal(t, "2", again.ID)
	assert.Equal(t, int64(1), c.Metrics().L1Hits)
}

func TestMultiLevelCache_Miss(t *testing.T) {
	c, _ := setupMultiLevel(t)

	var got cachedItem
	err := c.Get(context.Background(), "absent", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, int64(1), c.Metrics().Misses)
}

func TestMultiLevelCache_DeleteClearsBothLevels(t *testing.T) {
	c, mr := setupMultiLevel(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", cachedItem{ID: "1"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))

	var got cachedItem
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMultiLevelCache_CallersDoNotShareState(t *testing.T) {
	c, _ := setupMultiLevel(t)
	ctx := context.Background()

	item := cachedItem{ID: "1", Items: []string{"a"}}
	require.NoError(t, c.Set(ctx, "k", item, time.Minute))
	item.Items[0] = "changed"

	var got cachedItem
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "a", got.Items[0])
}

func TestMultiLevelCache_RedisDownOpensBreaker(t *testing.T) {
	c, mr := setupMultiLevel(t)
	ctx := context.Background()
	mr.Close()

	var got cachedItem
	err := c.Get(ctx, "k", &got)
	assert.ErrorIs(t, err, ErrCacheDown)

	err = c.Set(ctx, "k", cachedItem{ID: "1"}, time.Minute)
	assert.ErrorIs(t, err, ErrCacheDown)
	assert.Equal(t, CircuitBreakerOpen, c.breaker.GetState())

	// L1 still answers while Redis is unreachable.
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "1", got.ID)

	err = c.Delete(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheDown)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheDown)
	assert.Error(t, c.Health(ctx))
}

func TestMultiLevelCache_MemoryOnly(t *testing.T) {
	c := NewMultiLevelCache(nil, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", cachedItem{ID: "1"}, time.Minute))

	var got cachedItem
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "1", got.ID)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
	assert.NoError(t, c.Health(ctx))
	assert.NotContains(t, c.Stats(), "l2")
	assert.NoError(t, c.Close())
}

func TestMultiLevelCache_L1TTLCappedByEntryTTL(t *testing.T) {
	c := NewMultiLevelCache(nil, &MultiLevelConfig{L1TTL: time.Minute, L1MaxEntries: 10})
	assert.Equal(t, time.Second, c.l1Expiry(time.Second))
	assert.Equal(t, time.Minute, c.l1Expiry(time.Hour))
	assert.Equal(t, time.Minute, c.l1Expiry(0))
}

func TestMultiLevelCache_CountersLiveInRedis(t *testing.T) {
	c, mr := setupMultiLevel(t)
	ctx := context.Background()

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A bump from another instance is seen immediately.
	_, err = mr.Incr("gen", 5)
	require.NoError(t, err)
	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	mr.Close()
	_, err = c.Incr(ctx, "gen")
	assert.ErrorIs(t, err, ErrCacheDown)
	_, err = c.Counter(ctx, "gen")
	assert.ErrorIs(t, err, ErrCacheDown)
}

func TestMultiLevelCache_MemoryOnlyCounters(t *testing.T) {
	c := NewMultiLevelCache(nil, nil)
	ctx := context.Background()

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for i := 1; i <= 3; i++ {
		n, err = c.Incr(ctx, "gen")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
