package cache

import (
	"encoding/hex"
	"time"

	"gorm.io/gorm"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/metrics"
	"github.com/matiaszanolli/auralis/internal/models"
)

// DefaultPersistentMaxEntries and DefaultPersistentMaxBytes bound the
// persistent cache so a library of millions of tracks can't grow it
// without limit; both bounds are enforced on every write.
const (
	DefaultPersistentMaxEntries = 100_000
	DefaultPersistentMaxBytes   = 1 << 30 // 1GiB

	// entryByteCost approximates the on-disk footprint of one row: the
	// 25 float64 dimensions, the identity columns, and row overhead.
	// Used only for the byte budget, not persisted anywhere.
	entryByteCost = 300
)

// PersistentEntry is the SQLite-backed row behind the second cache tier.
// Identity starts as (size_bytes, mod_time_ns) - the same cheap key the
// sidecar uses - and is upgraded to a content hash by UpgradeKey once a
// background pass has time to read the file.
type PersistentEntry struct {
	ID                 uint   `gorm:"primaryKey"`
	SizeBytes          int64  `gorm:"index:idx_identity,priority:1"`
	ModTimeNanos       int64  `gorm:"index:idx_identity,priority:2"`
	SHA256Hex          string `gorm:"index"`
	models.Fingerprint `gorm:"embedded"`
	LastAccessedAt     time.Time `gorm:"index"`
	CreatedAt          time.Time
}

// TableName pins the table name rather than relying on pluralization.
func (PersistentEntry) TableName() string {
	return "persistent_cache_entries"
}

// PersistentKey identifies a cache entry. SHA256 is empty until the
// entry has been upgraded; lookups fall back to (Size, ModTimeNanos)
// whenever it is.
type PersistentKey struct {
	Size         int64
	ModTimeNanos int64
	SHA256       string // hex-encoded, empty if not yet known
}

// Persistent is the SQLite+GORM-backed second cache tier: bounded by
// both entry count and total bytes, evicting the least-recently-accessed
// entry first.
type Persistent struct {
	db         *gorm.DB
	maxEntries int
	maxBytes   int64
}

// NewPersistent wraps an already-migrated *gorm.DB. maxEntries/maxBytes
// <= 0 fall back to the package defaults.
func NewPersistent(db *gorm.DB, maxEntries int, maxBytes int64) *Persistent {
	if maxEntries <= 0 {
		maxEntries = DefaultPersistentMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultPersistentMaxBytes
	}
	return &Persistent{db: db, maxEntries: maxEntries, maxBytes: maxBytes}
}

// Migrate creates the persistent_cache_entries table.
func (p *Persistent) Migrate() error {
	if err := p.db.AutoMigrate(&PersistentEntry{}); err != nil {
		return apierrors.Cache("failed to migrate persistent cache: " + err.Error())
	}
	return nil
}

// Get looks up key by its SHA256 when the key carries one, otherwise by
// (Size, ModTimeNanos); a key with a SHA256 that matches no row is a miss,
// with no second lookup by size and mtime. Touches last_accessed_at on hit. An entry whose
// FingerprintVersion lags models.SchemaVersion is a miss, not a hit - it
// is deleted so a schema bump drains stale rows instead of serving them
// forever.
func (p *Persistent) Get(key PersistentKey) (models.Fingerprint, bool) {
	var entry PersistentEntry
	query := p.db

	if key.SHA256 != "" {
		query = query.Where("sha256_hex = ?", key.SHA256)
	} else {
		query = query.Where("size_bytes = ? AND mod_time_nanos = ?", key.Size, key.ModTimeNanos)
	}

	if err := query.First(&entry).Error; err != nil {
		metrics.Get().CacheMissesTotal.WithLabelValues("persistent").Inc()
		return models.Fingerprint{}, false
	}

	if entry.Fingerprint.FingerprintVersion != models.SchemaVersion {
		p.db.Delete(&entry)
		metrics.Get().CacheMissesTotal.WithLabelValues("persistent").Inc()
		return models.Fingerprint{}, false
	}

	p.db.Model(&entry).Update("last_accessed_at", time.Now())
	metrics.Get().CacheHitsTotal.WithLabelValues("persistent").Inc()
	return entry.Fingerprint, true
}

// Put inserts or updates the entry for key, then enforces the entry-count
// and byte-count bounds by evicting least-recently-accessed rows.
func (p *Persistent) Put(key PersistentKey, fp models.Fingerprint) error {
	now := time.Now()
	entry := PersistentEntry{
		SizeBytes:      key.Size,
		ModTimeNanos:   key.ModTimeNanos,
		SHA256Hex:      key.SHA256,
		Fingerprint:    fp,
		LastAccessedAt: now,
		CreatedAt:      now,
	}

	var existing PersistentEntry
	query := p.db
	if key.SHA256 != "" {
		query = query.Where("sha256_hex = ?", key.SHA256)
	} else {
		query = query.Where("size_bytes = ? AND mod_time_nanos = ?", key.Size, key.ModTimeNanos)
	}

	err := query.First(&existing).Error
	switch {
	case err == nil:
		entry.ID = existing.ID
		if err := p.db.Save(&entry).Error; err != nil {
			return apierrors.Cache("failed to update persistent cache entry: " + err.Error())
		}
	case err == gorm.ErrRecordNotFound:
		if err := p.db.Create(&entry).Error; err != nil {
			return apierrors.Cache("failed to create persistent cache entry: " + err.Error())
		}
	default:
		return apierrors.Cache("failed to look up persistent cache entry: " + err.Error())
	}

	return p.enforceLimits()
}

// UpgradeKey fills in the SHA256 identity for an entry previously keyed
// only by (size, mtime). Run from a background pass, never on the
// extraction hot path.
func (p *Persistent) UpgradeKey(oldKey PersistentKey, sha256Hex string) error {
	res := p.db.Model(&PersistentEntry{}).
		Where("size_bytes = ? AND mod_time_nanos = ?", oldKey.Size, oldKey.ModTimeNanos).
		Update("sha256_hex", sha256Hex)
	if res.Error != nil {
		return apierrors.Cache("failed to upgrade persistent cache key: " + res.Error.Error())
	}
	return nil
}

// Invalidate removes the entry for key, if any.
func (p *Persistent) Invalidate(key PersistentKey) error {
	query := p.db
	if key.SHA256 != "" {
		query = query.Where("sha256_hex = ?", key.SHA256)
	} else {
		query = query.Where("size_bytes = ? AND mod_time_nanos = ?", key.Size, key.ModTimeNanos)
	}
	if err := query.Delete(&PersistentEntry{}).Error; err != nil {
		return apierrors.Cache("failed to invalidate persistent cache entry: " + err.Error())
	}
	return nil
}

// Count returns the current number of entries.
func (p *Persistent) Count() (int64, error) {
	var count int64
	if err := p.db.Model(&PersistentEntry{}).Count(&count).Error; err != nil {
		return 0, apierrors.Cache("failed to count persistent cache entries: " + err.Error())
	}
	return count, nil
}

// enforceLimits evicts the least-recently-accessed rows until the cache
// is within both the entry-count and byte-count bounds.
func (p *Persistent) enforceLimits() error {
	count, err := p.Count()
	if err != nil {
		return err
	}

	maxByCount := int64(p.maxEntries)
	maxByBytes := p.maxBytes / entryByteCost

	limit := maxByCount
	if maxByBytes < limit {
		limit = maxByBytes
	}

	overage := count - limit
	if overage <= 0 {
		return nil
	}

	var toEvict []PersistentEntry
	if err := p.db.Order("last_accessed_at ASC").Limit(int(overage)).Find(&toEvict).Error; err != nil {
		return apierrors.Cache("failed to select persistent cache entries to evict: " + err.Error())
	}

	for _, e := range toEvict {
		if err := p.db.Delete(&e).Error; err != nil {
			return apierrors.Cache("failed to evict persistent cache entry: " + err.Error())
		}
		metrics.Get().CacheEvictionsTotal.WithLabelValues("persistent").Inc()
	}

	return nil
}

// hexEncode is a small helper so callers computing a SHA256 sum don't
// each need to import encoding/hex.
func hexEncode(sum []byte) string {
	return hex.EncodeToString(sum)
}
