package models

// Platform identifies the origin of a calendar feed or booking.
type Platform string

const (
	PlatformAirbnb  Platform = "airbnb"
	PlatformBooking Platform = "booking"
	PlatformManual  Platform = "manual"
	PlatformOther   Platform = "other"
)

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformAirbnb, PlatformBooking, PlatformManual, PlatformOther:
		return true
	}
	return false
}

// BookingStatus is the canonical status of a booking in the ledger.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingBlocked   BookingStatus = "blocked"
)

// ConflictType classifies a detected inconsistency between two bookings.
type ConflictType string

const (
	// ConflictOverlap means two distinct reservations claim overlapping nights.
	ConflictOverlap ConflictType = "overlap"
	// ConflictDuplicate means the same real-world stay was reported by two platforms.
	ConflictDuplicate ConflictType = "duplicate"
)

// Severity ranks how urgent a conflict or action is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ActionType is the kind of manual remediation an operator should perform.
type ActionType string

const (
	ActionBlockDates    ActionType = "block_dates"
	ActionUnblockDates  ActionType = "unblock_dates"
	ActionCancelBooking ActionType = "cancel_booking"
)

// ActionStatus is the lifecycle state of a sync action.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionDismissed ActionStatus = "dismissed"
	ActionExpired   ActionStatus = "expired"
)

// SyncStatus is the outcome of one sync pass.
type SyncStatus string

const (
	SyncStarted SyncStatus = "started"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
	SyncPartial SyncStatus = "partial"
)

// ReconcileAction classifies what the reconciler did with one feed event.
type ReconcileAction string

const (
	ReconcileCreated   ReconcileAction = "created"
	ReconcileUpdated   ReconcileAction = "updated"
	ReconcileCancelled ReconcileAction = "cancelled"
	ReconcileUnchanged ReconcileAction = "unchanged"
)
