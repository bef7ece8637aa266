package cache

import (
	"testing"

	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fpWithVersion(v int) models.Fingerprint {
	f := models.Fingerprint{}
	f.FingerprintVersion = v
	return f
}

func TestMemoryGetMiss(t *testing.T) {
	m := NewMemory(10)
	_, ok := m.Get(MemoryKey{Size: 1, ModTimeNanos: 1})
	assert.False(t, ok)
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory(10)
	key := MemoryKey{Size: 100, ModTimeNanos: 200}
	m.Put(key, fpWithVersion(1))

	got, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, 1, got.FingerprintVersion)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemory(2)
	k1 := MemoryKey{Size: 1}
	k2 := MemoryKey{Size: 2}
	k3 := MemoryKey{Size: 3}

	m.Put(k1, fpWithVersion(models.SchemaVersion))
	m.Put(k2, fpWithVersion(models.SchemaVersion))

	// Touch k1 so it's more recently used than k2.
	_, _ = m.Get(k1)

	m.Put(k3, fpWithVersion(models.SchemaVersion))

	_, ok := m.Get(k2)
	assert.False(t, ok, "k2 should have been evicted as least recently used")

	_, ok = m.Get(k1)
	assert.True(t, ok)
	_, ok = m.Get(k3)
	assert.True(t, ok)

	assert.Equal(t, 2, m.Len())
}

func TestMemoryInvalidate(t *testing.T) {
	m := NewMemory(10)
	key := MemoryKey{Size: 5}
	m.Put(key, fpWithVersion(1))

	m.Invalidate(key)

	_, ok := m.Get(key)
	assert.False(t, ok)
}

func TestMemoryGetMissesAndEvictsStaleVersion(t *testing.T) {
	m := NewMemory(10)
	key := MemoryKey{Size: 5}
	m.Put(key, fpWithVersion(models.SchemaVersion-1))

	_, ok := m.Get(key)
	assert.False(t, ok, "entry written under an old schema version must report a miss")
	assert.Equal(t, 0, m.Len(), "stale entry should be evicted on the miss, not retried forever")
}

func TestMemoryPutUpdatesExisting(t *testing.T) {
	m := NewMemory(10)
	key := MemoryKey{Size: 5}
	first := fpWithVersion(models.SchemaVersion)
	first.LUFS = -20
	second := fpWithVersion(models.SchemaVersion)
	second.LUFS = -10
	m.Put(key, first)
	m.Put(key, second)

	got, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, -10.0, got.LUFS)
	assert.Equal(t, 1, m.Len())
}
