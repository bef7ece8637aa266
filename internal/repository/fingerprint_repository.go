// Package repository persists Fingerprints to the Postgres-backed
// fingerprints table, upserting by track_id.
package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/models"
)

// FingerprintRepository is the persistence boundary for Fingerprints.
// Every write goes through Upsert, which is the one place that enforces
// the "fingerprint_version is never zero" invariant - callers further up
// the stack (the pipeline, the CLI) never need to repeat that check.
type FingerprintRepository struct {
	db *gorm.DB
}

// New wraps an already-migrated *gorm.DB.
func New(db *gorm.DB) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

// Upsert writes fp for trackID, replacing any existing row. Returns a
// permanent apierrors.Invariant if fp.FingerprintVersion is zero - a
// fingerprint that never went through the analyzer's sanitize step must
// never reach the database.
func (r *FingerprintRepository) Upsert(trackID uint64, fp models.Fingerprint) error {
	if fp.FingerprintVersion == 0 {
		return apierrors.Invariant(fmt.Sprintf("fingerprint for track %d has zero fingerprint_version", trackID))
	}

	record := models.FingerprintRecord{
		TrackID:     trackID,
		Fingerprint: fp,
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "track_id"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return apierrors.Persist(fmt.Sprintf("failed to upsert fingerprint for track %d: %v", trackID, err))
	}
	return nil
}

// Get returns the fingerprint stored for trackID. Returns apierrors.NotFound
// if no row exists.
func (r *FingerprintRepository) Get(trackID uint64) (models.Fingerprint, error) {
	var record models.FingerprintRecord
	err := r.db.Where("track_id = ?", trackID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return models.Fingerprint{}, apierrors.NotFound(fmt.Sprintf("fingerprint for track %d", trackID))
	}
	if err != nil {
		return models.Fingerprint{}, apierrors.Persist(fmt.Sprintf("failed to load fingerprint for track %d: %v", trackID, err))
	}
	return record.Fingerprint, nil
}

// Delete removes the fingerprint row for trackID, if any.
func (r *FingerprintRepository) Delete(trackID uint64) error {
	err := r.db.Where("track_id = ?", trackID).Delete(&models.FingerprintRecord{}).Error
	if err != nil {
		return apierrors.Persist(fmt.Sprintf("failed to delete fingerprint for track %d: %v", trackID, err))
	}
	return nil
}
