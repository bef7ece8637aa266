package repository

import (
	"testing"

	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.FingerprintRecord{}))
	return db
}

func TestUpsertRejectsZeroVersion(t *testing.T) {
	repo := New(newTestDB(t))

	err := repo.Upsert(1, models.Fingerprint{})
	require.Error(t, err)
}

func TestUpsertThenGet(t *testing.T) {
	repo := New(newTestDB(t))

	fp := models.Fingerprint{FingerprintVersion: models.SchemaVersion, LUFS: -14}
	require.NoError(t, repo.Upsert(42, fp))

	got, err := repo.Get(42)
	require.NoError(t, err)
	assert.Equal(t, -14.0, got.LUFS)
	assert.Equal(t, models.SchemaVersion, got.FingerprintVersion)
}

func TestUpsertReplacesExisting(t *testing.T) {
	repo := New(newTestDB(t))

	require.NoError(t, repo.Upsert(7, models.Fingerprint{FingerprintVersion: 1, LUFS: -20}))
	require.NoError(t, repo.Upsert(7, models.Fingerprint{FingerprintVersion: 1, LUFS: -10}))

	got, err := repo.Get(7)
	require.NoError(t, err)
	assert.Equal(t, -10.0, got.LUFS)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	repo := New(newTestDB(t))

	_, err := repo.Get(999)
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	repo := New(newTestDB(t))

	require.NoError(t, repo.Upsert(5, models.Fingerprint{FingerprintVersion: 1}))
	require.NoError(t, repo.Delete(5))

	_, err := repo.Get(5)
	require.Error(t, err)
}
