package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func TestPersistentPutGetBySizeAndMtime(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistent(db, 0, 0)
	require.NoError(t, p.Migrate())

	key := PersistentKey{Size: 1024, ModTimeNanos: 555}
	require.NoError(t, p.Put(key, fpWithVersion(1)))

	got, ok := p.Get(key)
	require.True(t, ok)
	require.Equal(t, 1, got.FingerprintVersion)
}

func TestPersistentGetMiss(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistent(db, 0, 0)
	require.NoError(t, p.Migrate())

	_, ok := p.Get(PersistentKey{Size: 1, ModTimeNanos: 2})
	require.False(t, ok)
}

func TestPersistentUpgradeKeyThenGetBySHA(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistent(db, 0, 0)
	require.NoError(t, p.Migrate())

	key := PersistentKey{Size: 2048, ModTimeNanos: 777}
	require.NoError(t, p.Put(key, fpWithVersion(1)))

	require.NoError(t, p.UpgradeKey(key, "deadbeef"))

	got, ok := p.Get(PersistentKey{SHA256: "deadbeef"})
	require.True(t, ok)
	require.Equal(t, 1, got.FingerprintVersion)
}

func TestPersistentGetMissesAndDeletesStaleVersion(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistent(db, 0, 0)
	require.NoError(t, p.Migrate())

	key := PersistentKey{Size: 4096, ModTimeNanos: 111}
	require.NoError(t, p.Put(key, fpWithVersion(0)))

	_, ok := p.Get(key)
	require.False(t, ok, "entry written under an old schema version must report a miss")

	count, err := p.Count()
	require.NoError(t, err)
	require.Equal(t, int64(0), count, "stale entry should be deleted on the miss")
}

func TestPersistentEnforcesEntryLimit(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistent(db, 2, 0)
	require.NoError(t, p.Migrate())

	require.NoError(t, p.Put(PersistentKey{Size: 1, ModTimeNanos: 1}, fpWithVersion(1)))
	require.NoError(t, p.Put(PersistentKey{Size: 2, ModTimeNanos: 2}, fpWithVersion(2)))
	require.NoError(t, p.Put(PersistentKey{Size: 3, ModTimeNanos: 3}, fpWithVersion(3)))

	count, err := p.Count()
	require.NoError(t, err)
	require.LessOrEqual(t, count, int64(2))

	// The first entry should have been evicted as least recently accessed.
	_, ok := p.Get(PersistentKey{Size: 1, ModTimeNanos: 1})
	require.False(t, ok)
}

func TestPersistentInvalidate(t *testing.T) {
	db := newTestDB(t)
	p := NewPersistent(db, 0, 0)
	require.NoError(t, p.Migrate())

	key := PersistentKey{Size: 99, ModTimeNanos: 99}
	require.NoError(t, p.Put(key, fpWithVersion(1)))
	require.NoError(t, p.Invalidate(key))

	_, ok := p.Get(key)
	require.False(t, ok)
}
