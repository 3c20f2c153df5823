package domain

import (
	"context"
	"time"

	"staysync/internal/models"
)

// BookingRepository is the persistence boundary for the booking ledger.
type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	// GetBookingByExternalID returns nil, nil when no booking matches the
	// (external_id, platform, property_id) merge key.
	GetBookingByExternalID(ctx context.Context, externalID string, platform models.Platform, propertyID int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
	// GetActiveBookings returns confirmed bookings whose stay has not ended,
	// ordered by check-in date.
	GetActiveBookings(ctx context.Context, propertyID int64, today time.Time) ([]*models.Booking, error)
	GetOverlappingBookings(ctx context.Context, propertyID int64, checkIn, checkOut time.Time, excludeID int64) ([]*models.Booking, error)
	GetBookings(ctx context.Context, propertyID int64, platform models.Platform, status models.BookingStatus, limit int) ([]*models.Booking, error)
	GetCurrentBooking(ctx context.Context, propertyID int64, today time.Time) (*models.Booking, error)
	GetUpcomingBookings(ctx context.Context, propertyID int64, from time.Time, limit int) ([]*models.Booking, error)
	// MarkCompletedBookings flips confirmed bookings whose check-out has
	// passed to completed and returns how many changed.
	MarkCompletedBookings(ctx context.Context, propertyID int64, today time.Time) (int, error)
}

// SourceRepository manages calendar source records.
type SourceRepository interface {
	GetSource(ctx context.Context, id int64) (*models.CalendarSource, error)
	UpsertSource(ctx context.Context, source *models.CalendarSource) error
	GetEnabledSources(ctx context.Context, propertyID int64) ([]*models.CalendarSource, error)
	UpdateSourceSyncState(ctx context.Context, id int64, at time.Time, status models.SyncStatus) error
}

// ConflictRepository manages conflict records. CreateConflict must surface the
// unique-constraint violation as database.ErrConflictExists so callers can
// recover by re-reading the surviving row.
type ConflictRepository interface {
	GetConflict(ctx context.Context, id int64) (*models.BookingConflict, error)
	CreateConflict(ctx context.Context, conflict *models.BookingConflict) error
	// GetUnresolvedConflict returns nil, nil when no unresolved conflict
	// exists for the pair and type. The pair may be passed in either order.
	GetUnresolvedConflict(ctx context.Context, bookingID1, bookingID2 int64, conflictType models.ConflictType) (*models.BookingConflict, error)
	GetActiveConflicts(ctx context.Context, propertyID int64) ([]*models.BookingConflict, error)
	ResolveConflict(ctx context.Context, id int64, notes string, at time.Time) error
}

// ActionRepository manages operator remediation tasks.
type ActionRepository interface {
	GetAction(ctx context.Context, id int64) (*models.SyncAction, error)
	CreateAction(ctx context.Context, action *models.SyncAction) error
	// GetPendingActionForConflict returns nil, nil when the conflict has no
	// pending action yet.
	GetPendingActionForConflict(ctx context.Context, conflictID int64) (*models.SyncAction, error)
	GetActions(ctx context.Context, propertyID int64, status models.ActionStatus, limit int) ([]*models.SyncAction, error)
	UpdateActionStatus(ctx context.Context, id int64, status models.ActionStatus, notes string) error
	ExpireStaleActions(ctx context.Context, now time.Time) (int, error)
}

// SyncLogRepository appends and finalizes sync pass history.
type SyncLogRepository interface {
	CreateSyncLog(ctx context.Context, log *models.SyncLog) error
	FinalizeSyncLog(ctx context.Context, log *models.SyncLog) error
	GetSyncLogs(ctx context.Context, calendarSourceID int64, limit int) ([]*models.SyncLog, error)
	GetLastSyncLog(ctx context.Context, calendarSourceID int64) (*models.SyncLog, error)
}

// FeedFetcher downloads one calendar document.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, platform models.Platform) (string, error)
}

// FeedParser turns a raw calendar document into normalized booking events.
type FeedParser interface {
	Parse(content string, platform models.Platform) ([]models.BookingEvent, error)
}

// StateRepository is optional shared state (rate limits, feed digests) backed
// by redis. Implementations tolerate a nil client by returning errors.
type StateRepository interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	GetFeedDigest(ctx context.Context, sourceID int64) (string, error)
	SetFeedDigest(ctx context.Context, sourceID int64, digest string) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
