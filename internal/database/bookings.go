package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"
)

const bookingColumns = `id, property_id, calendar_source_id, external_id, platform, status,
               check_in, check_out, nights, guest_name, guest_email, guest_phone,
               guest_count, total_price, currency, raw_feed_data, created_at, updated_at`

const dateLayout = "2006-01-02"

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return booking, err
}

func (db *DB) GetBookingByExternalID(ctx context.Context, externalID string, platform models.Platform, propertyID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE external_id = ? AND platform = ? AND property_id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, externalID, platform, propertyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if !booking.CheckOut.After(booking.CheckIn) {
		return fmt.Errorf("invalid booking dates: check_out %s is not after check_in %s",
			booking.CheckOut.Format(dateLayout), booking.CheckIn.Format(dateLayout))
	}

	query := `INSERT INTO bookings (
                property_id, calendar_source_id, external_id, platform, status,
                check_in, check_out, nights, guest_name, guest_email, guest_phone,
                guest_count, total_price, currency, raw_feed_data, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if booking.GuestCount == 0 {
		booking.GuestCount = 1
	}
	if booking.Currency == "" {
		booking.Currency = models.DefaultCurrency
	}

	result, err := db.ExecContext(ctx, query,
		booking.PropertyID,
		nullInt64(booking.CalendarSourceID),
		nullString(booking.ExternalID),
		booking.Platform,
		booking.Status,
		booking.CheckIn.Format(dateLayout),
		booking.CheckOut.Format(dateLayout),
		booking.Nights,
		booking.GuestName,
		nullString(booking.GuestEmail),
		nullString(booking.GuestPhone),
		booking.GuestCount,
		nullFloat64(booking.TotalPrice),
		booking.Currency,
		nullString(booking.RawFeedData),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read booking id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings SET
                check_in = ?, check_out = ?, nights = ?, guest_name = ?,
                guest_email = ?, guest_phone = ?, guest_count = ?,
                total_price = ?, currency = ?, raw_feed_data = ?, status = ?, updated_at = ?
            WHERE id = ?`

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		booking.CheckIn.Format(dateLayout),
		booking.CheckOut.Format(dateLayout),
		booking.Nights,
		booking.GuestName,
		nullString(booking.GuestEmail),
		nullString(booking.GuestPhone),
		booking.GuestCount,
		nullFloat64(booking.TotalPrice),
		booking.Currency,
		nullString(booking.RawFeedData),
		booking.Status,
		now,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking %d: %w", booking.ID, err)
	}
	booking.UpdatedAt = now
	return nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return nil
}

func (db *DB) GetActiveBookings(ctx context.Context, propertyID int64, today time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE property_id = ? AND status = ? AND check_out >= ?
        ORDER BY check_in`
	return db.queryBookings(ctx, query, propertyID, models.BookingConfirmed, today.Format(dateLayout))
}

func (db *DB) GetOverlappingBookings(ctx context.Context, propertyID int64, checkIn, checkOut time.Time, excludeID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE property_id = ? AND status = ? AND check_in < ? AND check_out > ? AND id != ?
        ORDER BY check_in`
	return db.queryBookings(ctx, query, propertyID, models.BookingConfirmed,
		checkOut.Format(dateLayout), checkIn.Format(dateLayout), excludeID)
}

func (db *DB) GetBookings(ctx context.Context, propertyID int64, platform models.Platform, status models.BookingStatus, limit int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = ?`
	args := []interface{}{propertyID}

	if platform != "" {
		query += ` AND platform = ?`
		args = append(args, platform)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY check_in DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return db.queryBookings(ctx, query, args...)
}

func (db *DB) GetCurrentBooking(ctx context.Context, propertyID int64, today time.Time) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE property_id = ? AND status = ? AND check_in <= ? AND check_out > ?
        LIMIT 1`
	booking, err := scanBooking(db.QueryRowContext(ctx, query,
		propertyID, models.BookingConfirmed, today.Format(dateLayout), today.Format(dateLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

func (db *DB) GetUpcomingBookings(ctx context.Context, propertyID int64, from time.Time, limit int) ([]*models.Booking, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE property_id = ? AND status = ? AND check_in >= ?
        ORDER BY check_in LIMIT ?`
	return db.queryBookings(ctx, query, propertyID, models.BookingConfirmed, from.Format(dateLayout), limit)
}

func (db *DB) MarkCompletedBookings(ctx context.Context, propertyID int64, today time.Time) (int, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ?
        WHERE property_id = ? AND status = ? AND check_out < ?`
	result, err := db.ExecContext(ctx, query,
		models.BookingCompleted, time.Now().UTC(),
		propertyID, models.BookingConfirmed, today.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to mark completed bookings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		booking    models.Booking
		sourceID   sql.NullInt64
		externalID sql.NullString
		email      sql.NullString
		phone      sql.NullString
		price      sql.NullFloat64
		raw        sql.NullString
	)

	err := row.Scan(
		&booking.ID,
		&booking.PropertyID,
		&sourceID,
		&externalID,
		&booking.Platform,
		&booking.Status,
		&booking.CheckIn,
		&booking.CheckOut,
		&booking.Nights,
		&booking.GuestName,
		&email,
		&phone,
		&booking.GuestCount,
		&price,
		&booking.Currency,
		&raw,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.CalendarSourceID = sourceID.Int64
	booking.ExternalID = externalID.String
	booking.GuestEmail = email.String
	booking.GuestPhone = phone.String
	booking.TotalPrice = price.Float64
	booking.RawFeedData = raw.String
	return &booking, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func nullFloat64(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}
