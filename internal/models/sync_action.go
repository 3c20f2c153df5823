package models

import "time"

// SyncAction is an operator-facing remediation task, usually generated from a
// conflict ("block these dates on platform X"). The system never writes to the
// external platforms itself; it only recommends.
type SyncAction struct {
	ID               int64        `json:"id"`
	PropertyID       int64        `json:"property_id"`
	ConflictID       int64        `json:"conflict_id,omitempty"`
	TriggerBookingID int64        `json:"trigger_booking_id,omitempty"`
	Type             ActionType   `json:"action_type"`
	Status           ActionStatus `json:"status"`
	TargetPlatform   Platform     `json:"target_platform"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	Reason           string       `json:"reason"`
	Priority         Severity     `json:"priority"`
	ExpireAfterHours int          `json:"expire_after_hours,omitempty"`
	UserNotes        string       `json:"user_notes,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	DismissedAt      *time.Time   `json:"dismissed_at,omitempty"`
}

// ShouldExpire reports whether a still-pending action has outlived its horizon.
func (a *SyncAction) ShouldExpire(now time.Time) bool {
	if a.ExpireAfterHours <= 0 || a.Status != ActionPending {
		return false
	}
	return now.Sub(a.CreatedAt) >= time.Duration(a.ExpireAfterHours)*time.Hour
}
