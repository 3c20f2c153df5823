package models

import "time"

// BookingConflict records a detected inconsistency between exactly two
// bookings. The pair is stored in canonical order (BookingID1 < BookingID2) so
// that the unique constraint on (booking_id_1, booking_id_2, conflict_type)
// cannot be defeated by swapped operands.
type BookingConflict struct {
	ID              int64        `json:"id"`
	BookingID1      int64        `json:"booking_id_1"`
	BookingID2      int64        `json:"booking_id_2"`
	Type            ConflictType `json:"conflict_type"`
	OverlapStart    time.Time    `json:"overlap_start"`
	OverlapEnd      time.Time    `json:"overlap_end"`
	Resolved        bool         `json:"resolved"`
	ResolutionNotes string       `json:"resolution_notes,omitempty"`
	DetectedAt      time.Time    `json:"detected_at"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
}

// OverlapNights is the number of nights both bookings claim.
func (c *BookingConflict) OverlapNights() int {
	if c.OverlapStart.IsZero() || c.OverlapEnd.IsZero() {
		return 0
	}
	return int(c.OverlapEnd.Sub(c.OverlapStart).Hours() / 24)
}

// Severity derives urgency from the conflict type and overlap length.
// Duplicates are always high; overlaps scale with the nights at stake.
func (c *BookingConflict) Severity() Severity {
	if c.Type == ConflictDuplicate {
		return SeverityHigh
	}

	switch n := c.OverlapNights(); {
	case n >= 7:
		return SeverityCritical
	case n >= 3:
		return SeverityHigh
	case n >= 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CanonicalPair returns the two ids in stable order, lower first.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
