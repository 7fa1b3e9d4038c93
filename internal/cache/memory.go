package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the in-process L1. Values are stored encoded so callers
// never share mutable state through the cache.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Set(key string, data []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.entries[key] = memoryEntry{data: buf, expiresAt: m.now().Add(ttl)}
}

func (m *MemoryCache) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		m.Delete(key)
		return nil, false
	}
	return entry.data, true
}

func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictLocked drops expired entries, or the one closest to expiry when
// nothing has expired yet.
func (m *MemoryCache) evictLocked() {
	now := m.now()
	var oldestKey string
	var oldest time.Time
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			continue
		}
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if len(m.entries) >= m.maxEntries && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"entries":     m.Len(),
		"max_entries": m.maxEntries,
	}
}
