package models

import "time"

// Booking is the canonical occupancy record for one stay or manual block.
// CheckIn/CheckOut are date-only values (midnight UTC); the interval is
// half-open: the guest occupies nights [CheckIn, CheckOut).
type Booking struct {
	ID               int64         `json:"id"`
	PropertyID       int64         `json:"property_id"`
	CalendarSourceID int64         `json:"calendar_source_id,omitempty"`
	ExternalID       string        `json:"external_id,omitempty"`
	Platform         Platform      `json:"platform"`
	Status           BookingStatus `json:"status"`
	CheckIn          time.Time     `json:"check_in"`
	CheckOut         time.Time     `json:"check_out"`
	Nights           int           `json:"nights"`
	GuestName        string        `json:"guest_name"`
	GuestEmail       string        `json:"guest_email,omitempty"`
	GuestPhone       string        `json:"guest_phone,omitempty"`
	GuestCount       int           `json:"guest_count"`
	TotalPrice       float64       `json:"total_price,omitempty"`
	Currency         string        `json:"currency,omitempty"`
	RawFeedData      string        `json:"raw_feed_data,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// OverlapsWith reports whether the booking's stay overlaps the half-open
// interval [checkIn, checkOut). Touching ranges do not overlap.
func (b *Booking) OverlapsWith(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn)
}

// DurationNights is the stay length derived from the dates.
func (b *Booking) DurationNights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// BookingEvent is the normalized output of the feed parser. It is transient:
// produced per parse call, consumed by the reconciler, never persisted.
type BookingEvent struct {
	ExternalID string
	Platform   Platform
	Status     BookingStatus
	CheckIn    time.Time
	CheckOut   time.Time
	Nights     int
	GuestName  string
	RawData    string
}

// DateRange is a half-open [Start, End) span of dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Nights is the range length in whole days.
func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// Overlaps reports whether two half-open ranges share at least one night.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// Intersect returns the overlapping portion of two ranges and whether one exists.
func (r DateRange) Intersect(other DateRange) (DateRange, bool) {
	if !r.Overlaps(other) {
		return DateRange{}, false
	}
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}
