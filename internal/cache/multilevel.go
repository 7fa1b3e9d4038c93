package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Cache is what the task service needs from a cache.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
	Stats() map[string]interface{}
	Health(ctx context.Context) error
	Close() error
}

type MultiLevelConfig struct {
	L1TTL        time.Duration
	L1MaxEntries int
	Breaker      *CircuitBreakerConfig
}

func DefaultMultiLevelConfig() *MultiLevelConfig {
	return &MultiLevelConfig{
		L1TTL:        30 * time.Second,
		L1MaxEntries: 1000,
		Breaker:      DefaultCircuitBreakerConfig(),
	}
}

// MultiLevelCache keeps a short-lived in-process copy in front of Redis.
// Redis calls go through a circuit breaker; with no Redis it is L1 only.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	l1TTL   time.Duration
	breaker *CircuitBreaker
	metrics *CacheMetrics

	// counters backs Incr and Counter when there is no Redis.
	mu       sync.Mutex
	counters map[string]int64
}

func NewMultiLevelCache(redisCache *RedisCache, config *MultiLevelConfig) *MultiLevelCache {
	if config == nil {
		config = DefaultMultiLevelConfig()
	}
	return &MultiLevelCache{
		l1:       NewMemoryCache(config.L1MaxEntries),
		l2:       redisCache,
		l1TTL:    config.L1TTL,
		breaker:  NewCircuitBreaker(config.Breaker),
		metrics:  NewCacheMetrics(),
		counters: make(map[string]int64),
	}
}

func (c *MultiLevelCache) l1Expiry(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.l1.Set(key, data, c.l1Expiry(ttl))
	c.metrics.RecordSet()

	if c.l2 == nil {
		return nil
	}
	err = c.breaker.Execute(func() error {
		return c.l2.Set(ctx, key, json.RawMessage(data), ttl)
	})
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, found := c.l1.Get(key); found {
		c.metrics.RecordL1Hit()
		return decode(data, dest)
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.l2.GetBytes(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	if data == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	c.metrics.RecordL2Hit()
	c.l1.Set(key, data, c.l1TTL)
	return decode(data, dest)
}

// Delete always clears L1 even when Redis cannot be reached.
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.l1.Delete(key)
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(func() error {
		return c.l2.Delete(ctx, key)
	})
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return nil
}

// Incr bumps a counter shared by every instance using the same Redis.
// Counters never live in L1, so a stale local value cannot hide a bump.
func (c *MultiLevelCache) Incr(ctx context.Context, key string) (int64, error) {
	if c.l2 == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.counters[key]++
		return c.counters[key], nil
	}

	var n int64
	err := c.breaker.Execute(func() error {
		var err error
		n, err = c.l2.Incr(ctx, key)
		return err
	})
	if err != nil {
		c.metrics.RecordError()
		return 0, fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return n, nil
}

func (c *MultiLevelCache) Counter(ctx context.Context, key string) (int64, error) {
	if c.l2 == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.counters[key], nil
	}

	var n int64
	err := c.breaker.Execute(func() error {
		var err error
		n, err = c.l2.Counter(ctx, key)
		return err
	})
	if err != nil {
		c.metrics.RecordError()
		return 0, fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return n, nil
}

func (c *MultiLevelCache) Metrics() CacheMetrics {
	return c.metrics.GetStats()
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":       c.l1.Stats(),
		"metrics":  c.metrics.GetStats(),
		"hit_rate": c.metrics.HitRate(),
		"breaker":  c.breaker.GetStats(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}
	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}
	return nil
}

func (c *MultiLevelCache) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

func decode(data []byte, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return nil
}
