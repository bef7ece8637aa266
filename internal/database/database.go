// Package database opens the two GORM connections the daemon depends
// on: the Postgres repository database and the SQLite persistent cache.
// Only the Postgres connection is migrated here. Both get the same tracing plugin so a query against
// either shows up the same way in a trace.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/logger"
	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/matiaszanolli/auralis/internal/telemetry"
)

// Postgres connection pool tuning. These mirror the values the rest of
// the stack has run in production; a fingerprint write is small and
// short-lived, so the pool favors more idle connections over large
// per-connection lifetimes.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Postgres opens and migrates the fingerprint repository database.
func Postgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, apierrors.Persist(fmt.Sprintf("failed to open postgres connection: %v", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apierrors.Persist(fmt.Sprintf("failed to get underlying sql.DB: %v", err))
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
		return nil, apierrors.Persist(fmt.Sprintf("failed to install tracing plugin: %v", err))
	}

	if err := db.AutoMigrate(&models.FingerprintRecord{}); err != nil {
		return nil, apierrors.Persist(fmt.Sprintf("failed to migrate fingerprints table: %v", err))
	}

	logger.Log.Info("connected to postgres repository database")
	return db, nil
}

// SQLite opens the persistent cache database at path, creating it if it
// doesn't exist. Migration of its table is the cache package's job, not
// this one's - this just hands back a ready connection.
func SQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, apierrors.Cache(fmt.Sprintf("failed to open sqlite cache at %s: %v", path, err))
	}

	if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
		return nil, apierrors.Cache(fmt.Sprintf("failed to install tracing plugin: %v", err))
	}

	logger.Log.Info("opened persistent cache database", zap.String("path", path))
	return db, nil
}
