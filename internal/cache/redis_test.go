package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestDefaultCacheConfig(t *testing.T) {
	config := DefaultCacheConfig()

	if config.Addr != "localhost:6379" {
		t.Errorf("Expected Addr to be localhost:6379, got %s", config.Addr)
	}
	if config.PoolSize != 10 {
		t.Errorf("Expected PoolSize to be 10, got %d", config.PoolSize)
	}
	if config.MinIdleConns != 5 {
		t.Errorf("Expected MinIdleConns to be 5, got %d", config.MinIdleConns)
	}
	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries to be 3, got %d", config.MaxRetries)
	}
	if config.DialTimeout != 5*time.Second {
		t.Errorf("Expected DialTimeout to be 5s, got %v", config.DialTimeout)
	}
	if config.ReadTimeout != 3*time.Second {
		t.Errorf("Expected ReadTimeout to be 3s, got %v", config.ReadTimeout)
	}
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cache := NewRedisCache(&CacheConfig{
		Addr:        mr.Addr(),
		PoolSize:    10,
		MaxRetries:  1,
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
	})
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestNewRedisCache_WithNilConfig(t *testing.T) {
	cache := NewRedisCache(nil)
	defer cache.Close()

	if cache.Client() == nil {
		t.Error("Expected Redis client to be initialized")
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	type testData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	original := testData{Name: "test", Value: 42}
	if err := cache.Set(ctx, "test:key", original, time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	var retrieved testData
	if err := cache.Get(ctx, "test:key", &retrieved); err != nil {
		t.Fatalf("Failed to get from cache: %v", err)
	}
	if retrieved != original {
		t.Errorf("Expected %+v, got %+v", original, retrieved)
	}
}

func TestRedisCache_SetHonoursTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "test:ttl", "data", time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	var result string
	if err := cache.Get(ctx, "test:ttl", &result); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestRedisCache_Get_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	var result string
	err := cache.Get(context.Background(), "non-existent-key", &result)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisCache_Set_InvalidData(t *testing.T) {
	cache, _ := setupTestRedis(t)

	err := cache.Set(context.Background(), "test:key", make(chan int), time.Minute)
	if err == nil {
		t.Error("Expected error when setting unmarshalable data")
	}
}

func TestRedisCache_Get_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Set("test:invalid", "invalid-json")

	var result map[string]interface{}
	if err := cache.Get(context.Background(), "test:invalid", &result); err == nil {
		t.Error("Expected error when getting invalid JSON")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"test:a", "test:b"} {
		if err := cache.Set(ctx, key, "data", time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
	}

	if err := cache.Delete(ctx, "test:a", "test:b"); err != nil {
		t.Fatalf("Failed to delete from cache: %v", err)
	}
	if err := cache.Delete(ctx); err != nil {
		t.Errorf("Expected no-op delete to succeed, got %v", err)
	}

	var retrieved string
	for _, key := range []string{"test:a", "test:b"} {
		if err := cache.Get(ctx, key, &retrieved); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after delete of %s, got %v", key, err)
		}
	}
}

func TestRedisCache_Exists(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if exists {
		t.Error("Expected key to not exist")
	}

	cache.Set(ctx, "test:exists", "data", time.Minute)

	exists, err = cache.Exists(ctx, "test:exists")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if !exists {
		t.Error("Expected key to exist")
	}
}

func TestRedisCache_IncrAndCounter(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	n, err := cache.Counter(ctx, "test:gen")
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected missing counter to read 0, got %d", n)
	}

	for want := int64(1); want <= 2; want++ {
		n, err = cache.Incr(ctx, "test:gen")
		if err != nil {
			t.Fatalf("Failed to increment counter: %v", err)
		}
		if n != want {
			t.Errorf("Expected %d, got %d", want, n)
		}
	}

	mr.Set("test:notanumber", "abc")
	if _, err := cache.Counter(ctx, "test:notanumber"); err == nil {
		t.Error("Expected error reading a non-numeric counter")
	}
}

func TestRedisCache_Health(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Health(ctx); err != nil {
		t.Errorf("Expected healthy cache, got error: %v", err)
	}

	mr.Close()

	if err := cache.Health(ctx); err == nil {
		t.Error("Expected unhealthy cache after closing Redis")
	}
}

func TestRedisCache_Stats(t *testing.T) {
	cache, _ := setupTestRedis(t)

	stats := cache.Stats()
	if _, ok := stats["pool_total"]; !ok {
		t.Errorf("Expected pool_total in stats, got %v", stats)
	}
}

func TestRedisCache_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(&CacheConfig{Addr: mr.Addr()})

	if err := cache.Close(); err != nil {
		t.Errorf("Failed to close cache: %v", err)
	}
	if err := cache.Set(context.Background(), "test", "data", time.Minute); err == nil {
		t.Error("Expected error when using cache after close")
	}
}

func BenchmarkRedisCache_Get(b *testing.B) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewRedisCache(&CacheConfig{Addr: mr.Addr()})
	defer cache.Close()
	ctx := context.Background()

	data := map[string]string{"key": "value"}
	if err := cache.Set(ctx, "benchmark:key", data, time.Minute); err != nil {
		b.Fatalf("Failed to set cache: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var result map[string]string
		if err := cache.Get(ctx, "benchmark:key", &result); err != nil {
			b.Fatalf("Failed to get cache: %v", err)
		}
	}
}

func TestErrCacheMiss(t *testing.T) {
	if ErrCacheMiss.Error() != "cache miss" {
		t.Errorf("Expected ErrCacheMiss message to be 'cache miss', got '%s'", ErrCacheMiss.Error())
	}
}
