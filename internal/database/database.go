package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflictExists is returned when inserting a conflict that violates
	// the (booking_id_1, booking_id_2, conflict_type) uniqueness constraint.
	// Callers recover by re-reading the surviving row.
	ErrConflictExists = errors.New("conflict already exists for booking pair")
)

// DB wraps the SQLite connection and implements the repository interfaces.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS calendar_sources (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            property_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            platform TEXT NOT NULL,
            feed_url TEXT NOT NULL UNIQUE,
            sync_enabled BOOLEAN NOT NULL DEFAULT 1,
            sync_interval_minutes INTEGER NOT NULL DEFAULT 30,
            last_sync_at DATETIME,
            last_sync_status TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            property_id INTEGER NOT NULL,
            calendar_source_id INTEGER REFERENCES calendar_sources(id) ON DELETE SET NULL,
            external_id TEXT,
            platform TEXT NOT NULL DEFAULT 'manual',
            status TEXT NOT NULL DEFAULT 'confirmed',
            check_in DATE NOT NULL,
            check_out DATE NOT NULL,
            nights INTEGER NOT NULL,
            guest_name TEXT NOT NULL,
            guest_email TEXT,
            guest_phone TEXT,
            guest_count INTEGER NOT NULL DEFAULT 1,
            total_price REAL,
            currency TEXT NOT NULL DEFAULT 'EUR',
            raw_feed_data TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS booking_conflicts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id_1 INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            booking_id_2 INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            conflict_type TEXT NOT NULL,
            overlap_start DATE,
            overlap_end DATE,
            resolved BOOLEAN NOT NULL DEFAULT 0,
            resolution_notes TEXT,
            detected_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            resolved_at DATETIME,
            UNIQUE(booking_id_1, booking_id_2, conflict_type)
        )`,

		`CREATE TABLE IF NOT EXISTS sync_actions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            property_id INTEGER NOT NULL,
            conflict_id INTEGER REFERENCES booking_conflicts(id) ON DELETE SET NULL,
            trigger_booking_id INTEGER REFERENCES bookings(id) ON DELETE SET NULL,
            action_type TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            target_platform TEXT NOT NULL,
            start_date DATE,
            end_date DATE,
            reason TEXT NOT NULL,
            priority TEXT NOT NULL DEFAULT 'medium',
            expire_after_hours INTEGER,
            user_notes TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            completed_at DATETIME,
            dismissed_at DATETIME
        )`,

		`CREATE TABLE IF NOT EXISTS sync_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            calendar_source_id INTEGER NOT NULL REFERENCES calendar_sources(id) ON DELETE CASCADE,
            run_id TEXT NOT NULL,
            status TEXT NOT NULL,
            bookings_added INTEGER NOT NULL DEFAULT 0,
            bookings_updated INTEGER NOT NULL DEFAULT 0,
            bookings_cancelled INTEGER NOT NULL DEFAULT 0,
            conflicts_detected INTEGER NOT NULL DEFAULT 0,
            error_message TEXT,
            duration_ms INTEGER,
            started_at DATETIME NOT NULL,
            completed_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_merge_key ON bookings(external_id, platform, property_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_property_status_checkin ON bookings(property_id, status, check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_property_dates ON bookings(property_id, check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_resolved ON booking_conflicts(resolved)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_status ON sync_actions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_conflict ON sync_actions(conflict_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_logs_source ON sync_logs(calendar_source_id, started_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (db *DB) Close() error {
	return db.DB.Close()
}
