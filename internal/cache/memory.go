// Package cache implements the second and third cache tiers above the
// sidecar file: an in-process LRU (this file) and a SQLite-backed
// persistent cache (persistent.go), both keyed by track identity rather
// than track_id so a cache entry survives a track being re-imported
// under a different ID.
package cache

import (
	"container/list"
	"sync"

	"github.com/matiaszanolli/auralis/internal/metrics"
	"github.com/matiaszanolli/auralis/internal/models"
)

// DefaultMemoryCapacity is the default number of fingerprints the
// in-process cache holds before evicting the least recently used entry.
const DefaultMemoryCapacity = 1000

// MemoryKey identifies a cached fingerprint by the audio file's size and
// modification time - cheap to compute on every lookup, unlike a
// content hash.
type MemoryKey struct {
	Size         int64
	ModTimeNanos int64
}

type memoryEntry struct {
	key MemoryKey
	fp  models.Fingerprint
}

// Memory is a fixed-capacity, thread-safe LRU cache of fingerprints held
// in process memory. It is always checked before the persistent cache
// and never persists across process restarts.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	order    *list.List // front = most recently used
	items    map[MemoryKey]*list.Element
}

// NewMemory creates a Memory cache with the given capacity. A capacity
// <= 0 falls back to DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[MemoryKey]*list.Element),
	}
}

// Get returns the cached fingerprint for key, if present and current,
// promoting it to most-recently-used. An entry written under an older
// FingerprintVersion is treated as a miss and evicted, so a schema bump
// invalidates the cache instead of silently serving stale dimensions.
func (m *Memory) Get(key MemoryKey) (models.Fingerprint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		metrics.Get().CacheMissesTotal.WithLabelValues("memory").Inc()
		return models.Fingerprint{}, false
	}

	fp := elem.Value.(*memoryEntry).fp
	if fp.FingerprintVersion != models.SchemaVersion {
		m.order.Remove(elem)
		delete(m.items, key)
		metrics.Get().CacheMissesTotal.WithLabelValues("memory").Inc()
		return models.Fingerprint{}, false
	}

	m.order.MoveToFront(elem)
	metrics.Get().CacheHitsTotal.WithLabelValues("memory").Inc()
	return fp, true
}

// Put inserts or updates key's fingerprint, evicting the least recently
// used entry if the cache is at capacity.
func (m *Memory) Put(key MemoryKey, fp models.Fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		elem.Value.(*memoryEntry).fp = fp
		m.order.MoveToFront(elem)
		return
	}

	elem := m.order.PushFront(&memoryEntry{key: key, fp: fp})
	m.items[key] = elem

	if m.order.Len() > m.capacity {
		m.evictOldest()
	}
}

// Invalidate removes key from the cache, if present.
func (m *Memory) Invalidate(key MemoryKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return
	}
	m.order.Remove(elem)
	delete(m.items, key)
}

// Len returns the current number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order.Len()
}

func (m *Memory) evictOldest() {
	oldest := m.order.Back()
	if oldest == nil {
		return
	}
	m.order.Remove(oldest)
	delete(m.items, oldest.Value.(*memoryEntry).key)
	metrics.Get().CacheEvictionsTotal.WithLabelValues("memory").Inc()
}
