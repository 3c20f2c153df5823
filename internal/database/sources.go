package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"
)

const sourceColumns = `id, property_id, name, platform, feed_url, sync_enabled,
               sync_interval_minutes, last_sync_at, last_sync_status, created_at, updated_at`

func (db *DB) GetSource(ctx context.Context, id int64) (*models.CalendarSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM calendar_sources WHERE id = ?`
	source, err := scanSource(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return source, err
}

// UpsertSource creates the source or, when the feed URL is already registered,
// refreshes its name, platform and sync settings. The feed URL is the natural
// key so config reloads do not spawn duplicate sources.
func (db *DB) UpsertSource(ctx context.Context, source *models.CalendarSource) error {
	query := `INSERT INTO calendar_sources (
                property_id, name, platform, feed_url, sync_enabled, sync_interval_minutes,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(feed_url) DO UPDATE SET
                name = excluded.name,
                platform = excluded.platform,
                sync_enabled = excluded.sync_enabled,
                sync_interval_minutes = excluded.sync_interval_minutes,
                updated_at = excluded.updated_at`

	now := time.Now().UTC()
	if source.SyncInterval <= 0 {
		source.SyncInterval = models.DefaultSyncIntervalMinutes
	}

	if _, err := db.ExecContext(ctx, query,
		source.PropertyID,
		source.Name,
		source.Platform,
		source.FeedURL,
		source.SyncEnabled,
		source.SyncInterval,
		now,
		now,
	); err != nil {
		return fmt.Errorf("failed to upsert calendar source %q: %w", source.Name, err)
	}

	// LastInsertId is unreliable on the update path, read the row back.
	row := db.QueryRowContext(ctx,
		`SELECT id, created_at FROM calendar_sources WHERE feed_url = ?`, source.FeedURL)
	if err := row.Scan(&source.ID, &source.CreatedAt); err != nil {
		return fmt.Errorf("failed to read back calendar source: %w", err)
	}
	source.UpdatedAt = now
	return nil
}

func (db *DB) GetEnabledSources(ctx context.Context, propertyID int64) ([]*models.CalendarSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM calendar_sources
        WHERE property_id = ? AND sync_enabled = 1
        ORDER BY id`

	rows, err := db.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.CalendarSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (db *DB) UpdateSourceSyncState(ctx context.Context, id int64, at time.Time, status models.SyncStatus) error {
	query := `UPDATE calendar_sources SET last_sync_at = ?, last_sync_status = ?, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, at, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update sync state for source %d: %w", id, err)
	}
	return nil
}

func scanSource(row rowScanner) (*models.CalendarSource, error) {
	var (
		source     models.CalendarSource
		lastSyncAt sql.NullTime
		lastStatus sql.NullString
	)

	err := row.Scan(
		&source.ID,
		&source.PropertyID,
		&source.Name,
		&source.Platform,
		&source.FeedURL,
		&source.SyncEnabled,
		&source.SyncInterval,
		&lastSyncAt,
		&lastStatus,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncAt.Valid {
		source.LastSyncAt = &lastSyncAt.Time
	}
	source.LastSyncStatus = models.SyncStatus(lastStatus.String)
	return &source, nil
}
