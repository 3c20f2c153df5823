package feed

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysync/internal/models"
)

const airbnbFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN
BEGIN:VEVENT
UID:abc123@airbnb.com
DTSTART;VALUE=DATE:20260601
DTEND;VALUE=DATE:20260605
SUMMARY:Reserved - John Smith
STATUS:CONFIRMED
END:VEVENT
BEGIN:VEVENT
UID:def456@airbnb.com
DTSTART;VALUE=DATE:20260610
DTEND;VALUE=DATE:20260612
SUMMARY:Airbnb (Not available)
END:VEVENT
END:VCALENDAR`

const bookingFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Booking.com//Calendar//EN
BEGIN:VEVENT
UID:res-777@booking.com
DTSTART;VALUE=DATE:20260701
DTEND;VALUE=DATE:20260704
SUMMARY:Jane Doe (ABC123)
END:VEVENT
BEGIN:VEVENT
UID:res-778@booking.com
DTSTART;VALUE=DATE:20260710
DTEND;VALUE=DATE:20260711
SUMMARY:CLOSED - Not available
END:VEVENT
END:VCALENDAR`

func newTestParser() *Parser {
	logger := zerolog.Nop()
	return NewParser(&logger)
}

func TestParseAirbnbFeed(t *testing.T) {
	events, err := newTestParser().Parse(airbnbFeed, models.PlatformAirbnb)
	require.NoError(t, err)
	require.Len(t, events, 2)

	reserved := events[0]
	assert.Equal(t, "abc123@airbnb.com", reserved.ExternalID)
	assert.Equal(t, models.PlatformAirbnb, reserved.Platform)
	assert.Equal(t, models.BookingConfirmed, reserved.Status)
	assert.Equal(t, "John Smith", reserved.GuestName)
	assert.True(t, reserved.CheckIn.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, reserved.CheckOut.Equal(time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 4, reserved.Nights)
	assert.Contains(t, reserved.RawData, "Reserved - John Smith")

	blocked := events[1]
	assert.Equal(t, models.BookingBlocked, blocked.Status)
}

func TestParseBookingFeed(t *testing.T) {
	events, err := newTestParser().Parse(bookingFeed, models.PlatformBooking)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Jane Doe", events[0].GuestName)
	assert.Equal(t, models.BookingConfirmed, events[0].Status)
	assert.Equal(t, 3, events[0].Nights)

	assert.Equal(t, models.BookingBlocked, events[1].Status)
}

func TestParseDropsEventsWithoutDates(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:no-dates@test
SUMMARY:Reserved - Ghost
END:VEVENT
BEGIN:VEVENT
UID:zero-nights@test
DTSTART;VALUE=DATE:20260601
DTEND;VALUE=DATE:20260601
SUMMARY:Reserved - Day Tripper
END:VEVENT
BEGIN:VEVENT
UID:ok@test
DTSTART;VALUE=DATE:20260601
DTEND;VALUE=DATE:20260602
SUMMARY:Reserved - Real Guest
END:VEVENT
END:VCALENDAR`

	events, err := newTestParser().Parse(feed, models.PlatformAirbnb)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok@test", events[0].ExternalID)
}

func TestParseInvalidDocument(t *testing.T) {
	_, err := newTestParser().Parse("this is not an ical document", models.PlatformAirbnb)
	assert.Error(t, err)
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		status  string
		want    models.BookingStatus
	}{
		{"confirmed", "Reserved - John", "CONFIRMED", models.BookingConfirmed},
		{"cancelled", "Reserved - John", "CANCELLED", models.BookingCancelled},
		{"tentative treated as confirmed", "Reserved - John", "TENTATIVE", models.BookingConfirmed},
		{"no status defaults to confirmed", "Reserved - John", "", models.BookingConfirmed},
		{"blocked keyword wins over status", "Airbnb (Not available)", "CONFIRMED", models.BookingBlocked},
		{"unavailable keyword", "Unavailable", "", models.BookingBlocked},
		{"blocked keyword", "Blocked by owner", "", models.BookingBlocked},
		{"unknown status defaults to confirmed", "Reserved - John", "MAYBE", models.BookingConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeStatus(tt.summary, tt.status))
		})
	}
}

func TestExtractGuestName(t *testing.T) {
	tests := []struct {
		name        string
		summary     string
		description string
		platform    models.Platform
		want        string
	}{
		{"airbnb reserved dash", "Reserved - John Smith", "", models.PlatformAirbnb, "John Smith"},
		{"airbnb reservation colon", "Reservation: Jane (HMABC123)", "", models.PlatformAirbnb, "Jane"},
		{"booking name with code", "John Smith (ABC123)", "", models.PlatformBooking, "John Smith"},
		{"booking plain name", "Maria Garcia", "", models.PlatformBooking, "Maria Garcia"},
		{"airbnb falls back to generic", "J. Smith (XYZ)", "", models.PlatformAirbnb, "J. Smith"},
		{"boilerplate summary uses description", "Reserved", "Guest: Alice Brown\nPhone: 123", models.PlatformAirbnb, "Alice Brown"},
		{"guest name line in description", "Reservation", "Guest Name: Tom Waits", models.PlatformBooking, "Tom Waits"},
		{"boilerplate summary no description", "Reserved", "", models.PlatformAirbnb, models.PlaceholderGuestName},
		{"empty summary placeholder", "", "", models.PlatformAirbnb, models.PlaceholderGuestName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractGuestName(tt.summary, tt.description, tt.platform))
		})
	}
}
