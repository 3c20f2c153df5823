package models

const (
	// DefaultFetchTimeoutSeconds is the per-attempt network timeout for feed downloads.
	DefaultFetchTimeoutSeconds = 30

	// DefaultRetryAttempts is the fetch attempt budget before giving up.
	DefaultRetryAttempts = 3

	// DefaultBackoffBaseSeconds is the first retry delay.
	DefaultBackoffBaseSeconds = 2

	// DefaultBackoffMaxSeconds caps the retry delay.
	DefaultBackoffMaxSeconds = 10

	// DefaultSyncIntervalMinutes is how often the scheduler runs a full pass.
	DefaultSyncIntervalMinutes = 30

	// ActionExpiryHours is how long a pending block action stays relevant.
	ActionExpiryHours = 72

	// DuplicateDateToleranceDays is the check-in/check-out slack allowed when
	// deciding that two bookings describe the same stay.
	DuplicateDateToleranceDays = 1

	// PlaceholderGuestName is used when no guest name can be extracted from a feed event.
	PlaceholderGuestName = "Guest"

	// DefaultCurrency applies to bookings whose feed carries no price information.
	DefaultCurrency = "EUR"
)
