package db

import (
	"errors"

	"paneherd/cli/internal/db/migration"

	"gorm.io/gorm"
)

// SyncSchema creates or updates tables and indexes from the models. Schema
// is declarative; only data rewrites go through versioned migration steps.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&Session{},
		&MonitorEvent{},
		&NotificationRecord{},
		&Config{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_monitor_events_session_created_at ON monitor_events(session_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_notification_log_session_created_at ON notification_log(session_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateUp syncs schema then runs data migrations. Kept separate so tests
// can sync schema without the one-shots.
func MigrateUp(db *gorm.DB) error {
	if err := SyncSchema(db); err != nil {
		return err
	}
	migration.Init()
	return migration.RunAll(db)
}
