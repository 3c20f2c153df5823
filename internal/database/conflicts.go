package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"
)

const conflictColumns = `id, booking_id_1, booking_id_2, conflict_type, overlap_start,
               overlap_end, resolved, resolution_notes, detected_at, resolved_at`

func (db *DB) GetConflict(ctx context.Context, id int64) (*models.BookingConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM booking_conflicts WHERE id = ?`
	conflict, err := scanConflict(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return conflict, err
}

// CreateConflict inserts the conflict with the booking pair in canonical
// order. A unique-constraint violation means a concurrent pass already
// recorded the same pair and type; it is surfaced as ErrConflictExists.
func (db *DB) CreateConflict(ctx context.Context, conflict *models.BookingConflict) error {
	conflict.BookingID1, conflict.BookingID2 = models.CanonicalPair(conflict.BookingID1, conflict.BookingID2)

	query := `INSERT INTO booking_conflicts (
                booking_id_1, booking_id_2, conflict_type, overlap_start, overlap_end,
                resolved, resolution_notes, detected_at
            ) VALUES (?, ?, ?, ?, ?, 0, NULL, ?)`

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		conflict.BookingID1,
		conflict.BookingID2,
		conflict.Type,
		nullDate(conflict.OverlapStart),
		nullDate(conflict.OverlapEnd),
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflictExists
		}
		return fmt.Errorf("failed to create conflict: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read conflict id: %w", err)
	}
	conflict.ID = id
	conflict.DetectedAt = now
	return nil
}

func (db *DB) GetUnresolvedConflict(ctx context.Context, bookingID1, bookingID2 int64, conflictType models.ConflictType) (*models.BookingConflict, error) {
	id1, id2 := models.CanonicalPair(bookingID1, bookingID2)
	query := `SELECT ` + conflictColumns + ` FROM booking_conflicts
        WHERE booking_id_1 = ? AND booking_id_2 = ? AND conflict_type = ? AND resolved = 0`
	conflict, err := scanConflict(db.QueryRowContext(ctx, query, id1, id2, conflictType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return conflict, err
}

func (db *DB) GetActiveConflicts(ctx context.Context, propertyID int64) ([]*models.BookingConflict, error) {
	query := `SELECT c.id, c.booking_id_1, c.booking_id_2, c.conflict_type, c.overlap_start,
               c.overlap_end, c.resolved, c.resolution_notes, c.detected_at, c.resolved_at
        FROM booking_conflicts c
        JOIN bookings b1 ON b1.id = c.booking_id_1
        WHERE c.resolved = 0 AND b1.property_id = ?
        ORDER BY c.detected_at DESC`

	rows, err := db.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*models.BookingConflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, rows.Err()
}

func (db *DB) ResolveConflict(ctx context.Context, id int64, notes string, at time.Time) error {
	query := `UPDATE booking_conflicts SET resolved = 1, resolution_notes = ?, resolved_at = ?
        WHERE id = ? AND resolved = 0`
	result, err := db.ExecContext(ctx, query, notes, at, id)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict %d: %w", id, err)
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

func scanConflict(row rowScanner) (*models.BookingConflict, error) {
	var (
		conflict     models.BookingConflict
		overlapStart sql.NullTime
		overlapEnd   sql.NullTime
		notes        sql.NullString
		resolvedAt   sql.NullTime
	)

	err := row.Scan(
		&conflict.ID,
		&conflict.BookingID1,
		&conflict.BookingID2,
		&conflict.Type,
		&overlapStart,
		&overlapEnd,
		&conflict.Resolved,
		&notes,
		&conflict.DetectedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	conflict.OverlapStart = overlapStart.Time
	conflict.OverlapEnd = overlapEnd.Time
	conflict.ResolutionNotes = notes.String
	if resolvedAt.Valid {
		conflict.ResolvedAt = &resolvedAt.Time
	}
	return &conflict, nil
}

func nullDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}
