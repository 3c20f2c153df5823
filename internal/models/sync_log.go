package models

import "time"

// SyncLog is one append-only record per sync pass over one calendar source.
type SyncLog struct {
	ID                int64      `json:"id"`
	CalendarSourceID  int64      `json:"calendar_source_id"`
	RunID             string     `json:"run_id"`
	Status            SyncStatus `json:"status"`
	BookingsAdded     int        `json:"bookings_added"`
	BookingsUpdated   int        `json:"bookings_updated"`
	BookingsCancelled int        `json:"bookings_cancelled"`
	ConflictsDetected int        `json:"conflicts_detected"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	DurationMs        int64      `json:"duration_ms"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// TotalChanges is the sum of ledger mutations recorded by this pass.
func (l *SyncLog) TotalChanges() int {
	return l.BookingsAdded + l.BookingsUpdated + l.BookingsCancelled
}
