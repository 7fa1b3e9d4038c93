package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMemoryCache(max int) (*MemoryCache, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryCache(max)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestMemoryCacheSetGet(t *testing.T) {
	m, _ := newTestMemoryCache(10)

	m.Set("k", []byte(`"v"`), time.Minute)
	data, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, `"v"`, string(data))

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemoryCacheCopiesInput(t *testing.T) {
	m, _ := newTestMemoryCache(10)

	buf := []byte("abc")
	m.Set("k", buf, time.Minute)
	buf[0] = 'z'

	data, _ := m.Get("k")
	assert.Equal(t, "abc", string(data))
}

func TestMemoryCacheExpiry(t *testing.T) {
	m, clock := newTestMemoryCache(10)

	m.Set("k", []byte("1"), time.Second)
	*clock = clock.Add(2 * time.Second)

	_, ok := m.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryCacheEvictsWhenFull(t *testing.T) {
	m, _ := newTestMemoryCache(2)

	m.Set("short", []byte("1"), time.Second)
	m.Set("long", []byte("2"), time.Hour)
	m.Set("new", []byte("3"), time.Minute)

	assert.Equal(t, 2, m.Len())
	_, ok := m.Get("short")
	assert.False(t, ok)
	_, ok = m.Get("long")
	assert.True(t, ok)
	_, ok = m.Get("new")
	assert.True(t, ok)
}

func TestMemoryCacheOverwriteDoesNotEvict(t *testing.T) {
	m, _ := newTestMemoryCache(1)

	m.Set("k", []byte("1"), time.Minute)
	m.Set("k", []byte("2"), time.Minute)

	data, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "2", string(data))
}

func TestMemoryCacheDelete(t *testing.T) {
	m, _ := newTestMemoryCache(10)
	m.Set("k", []byte("1"), time.Minute)
	m.Delete("k")

	_, ok := m.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1000, NewMemoryCache(0).maxEntries)
}
