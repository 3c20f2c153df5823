package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"
)

const syncLogColumns = `id, calendar_source_id, run_id, status, bookings_added, bookings_updated,
               bookings_cancelled, conflicts_detected, error_message, duration_ms,
               started_at, completed_at`

func (db *DB) CreateSyncLog(ctx context.Context, log *models.SyncLog) error {
	query := `INSERT INTO sync_logs (
                calendar_source_id, run_id, status, started_at
            ) VALUES (?, ?, ?, ?)`

	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now().UTC()
	}

	result, err := db.ExecContext(ctx, query,
		log.CalendarSourceID, log.RunID, log.Status, log.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read sync log id: %w", err)
	}
	log.ID = id
	return nil
}

func (db *DB) FinalizeSyncLog(ctx context.Context, log *models.SyncLog) error {
	query := `UPDATE sync_logs SET
                status = ?, bookings_added = ?, bookings_updated = ?, bookings_cancelled = ?,
                conflicts_detected = ?, error_message = ?, duration_ms = ?, completed_at = ?
            WHERE id = ?`

	completedAt := time.Now().UTC()
	if log.CompletedAt != nil {
		completedAt = *log.CompletedAt
	}

	if _, err := db.ExecContext(ctx, query,
		log.Status,
		log.BookingsAdded,
		log.BookingsUpdated,
		log.BookingsCancelled,
		log.ConflictsDetected,
		nullString(log.ErrorMessage),
		log.DurationMs,
		completedAt,
		log.ID,
	); err != nil {
		return fmt.Errorf("failed to finalize sync log %d: %w", log.ID, err)
	}
	log.CompletedAt = &completedAt
	return nil
}

func (db *DB) GetSyncLogs(ctx context.Context, calendarSourceID int64, limit int) ([]*models.SyncLog, error) {
	query := `SELECT ` + syncLogColumns + ` FROM sync_logs`
	args := []interface{}{}

	if calendarSourceID > 0 {
		query += ` WHERE calendar_source_id = ?`
		args = append(args, calendarSourceID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SyncLog
	for rows.Next() {
		log, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (db *DB) GetLastSyncLog(ctx context.Context, calendarSourceID int64) (*models.SyncLog, error) {
	query := `SELECT ` + syncLogColumns + ` FROM sync_logs
        WHERE calendar_source_id = ?
        ORDER BY started_at DESC LIMIT 1`
	log, err := scanSyncLog(db.QueryRowContext(ctx, query, calendarSourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return log, err
}

func scanSyncLog(row rowScanner) (*models.SyncLog, error) {
	var (
		log         models.SyncLog
		errorMsg    sql.NullString
		durationMs  sql.NullInt64
		completedAt sql.NullTime
	)

	err := row.Scan(
		&log.ID,
		&log.CalendarSourceID,
		&log.RunID,
		&log.Status,
		&log.BookingsAdded,
		&log.BookingsUpdated,
		&log.BookingsCancelled,
		&log.ConflictsDetected,
		&errorMsg,
		&durationMs,
		&log.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	log.ErrorMessage = errorMsg.String
	log.DurationMs = durationMs.Int64
	if completedAt.Valid {
		log.CompletedAt = &completedAt.Time
	}
	return &log, nil
}
