package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"
)

const actionColumns = `id, property_id, conflict_id, trigger_booking_id, action_type, status,
               target_platform, start_date, end_date, reason, priority, expire_after_hours,
               user_notes, created_at, completed_at, dismissed_at`

func (db *DB) GetAction(ctx context.Context, id int64) (*models.SyncAction, error) {
	query := `SELECT ` + actionColumns + ` FROM sync_actions WHERE id = ?`
	action, err := scanAction(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return action, err
}

func (db *DB) CreateAction(ctx context.Context, action *models.SyncAction) error {
	query := `INSERT INTO sync_actions (
                property_id, conflict_id, trigger_booking_id, action_type, status,
                target_platform, start_date, end_date, reason, priority,
                expire_after_hours, user_notes, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if action.Status == "" {
		action.Status = models.ActionPending
	}

	result, err := db.ExecContext(ctx, query,
		action.PropertyID,
		nullInt64(action.ConflictID),
		nullInt64(action.TriggerBookingID),
		action.Type,
		action.Status,
		action.TargetPlatform,
		nullDate(action.StartDate),
		nullDate(action.EndDate),
		action.Reason,
		action.Priority,
		action.ExpireAfterHours,
		nullString(action.UserNotes),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read action id: %w", err)
	}
	action.ID = id
	action.CreatedAt = now
	return nil
}

func (db *DB) GetPendingActionForConflict(ctx context.Context, conflictID int64) (*models.SyncAction, error) {
	query := `SELECT ` + actionColumns + ` FROM sync_actions
        WHERE conflict_id = ? AND status = ? LIMIT 1`
	action, err := scanAction(db.QueryRowContext(ctx, query, conflictID, models.ActionPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return action, err
}

func (db *DB) GetActions(ctx context.Context, propertyID int64, status models.ActionStatus, limit int) ([]*models.SyncAction, error) {
	query := `SELECT ` + actionColumns + ` FROM sync_actions WHERE property_id = ?`
	args := []interface{}{propertyID}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.SyncAction
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (db *DB) UpdateActionStatus(ctx context.Context, id int64, status models.ActionStatus, notes string) error {
	now := time.Now().UTC()

	query := `UPDATE sync_actions SET status = ?, user_notes = COALESCE(NULLIF(?, ''), user_notes)`
	args := []interface{}{status, notes}

	switch status {
	case models.ActionCompleted:
		query += `, completed_at = ?`
		args = append(args, now)
	case models.ActionDismissed:
		query += `, dismissed_at = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireStaleActions flips pending actions past their expiry horizon to
// expired and returns how many changed.
func (db *DB) ExpireStaleActions(ctx context.Context, now time.Time) (int, error) {
	query := `UPDATE sync_actions SET status = ?
        WHERE status = ? AND expire_after_hours > 0
          AND created_at <= datetime(?, '-' || expire_after_hours || ' hours')`

	result, err := db.ExecContext(ctx, query,
		models.ActionExpired, models.ActionPending, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale actions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func scanAction(row rowScanner) (*models.SyncAction, error) {
	var (
		action      models.SyncAction
		conflictID  sql.NullInt64
		bookingID   sql.NullInt64
		startDate   sql.NullTime
		endDate     sql.NullTime
		expireHours sql.NullInt64
		userNotes   sql.NullString
		completedAt sql.NullTime
		dismissedAt sql.NullTime
	)

	err := row.Scan(
		&action.ID,
		&action.PropertyID,
		&conflictID,
		&bookingID,
		&action.Type,
		&action.Status,
		&action.TargetPlatform,
		&startDate,
		&endDate,
		&action.Reason,
		&action.Priority,
		&expireHours,
		&userNotes,
		&action.CreatedAt,
		&completedAt,
		&dismissedAt,
	)
	if err != nil {
		return nil, err
	}

	action.ConflictID = conflictID.Int64
	action.TriggerBookingID = bookingID.Int64
	action.StartDate = startDate.Time
	action.EndDate = endDate.Time
	action.ExpireAfterHours = int(expireHours.Int64)
	action.UserNotes = userNotes.String
	if completedAt.Valid {
		action.CompletedAt = &completedAt.Time
	}
	if dismissedAt.Valid {
		action.DismissedAt = &dismissedAt.Time
	}
	return &action, nil
}
