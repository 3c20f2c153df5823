package feed

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"

	"staysync/internal/metrics"
	"staysync/internal/models"
)

// Guest name extraction patterns. Airbnb summaries look like
// "Reserved - John Smith" or "Reservation: Jane (HMABC123)"; Booking.com
// summaries put the name first, "John Smith (ABC123)".
var (
	airbnbGuestPattern  = regexp.MustCompile(`(?:Reserved|Reservation)\s*[-:]\s*(.+?)(?:\s*\(|$)`)
	bookingGuestPattern = regexp.MustCompile(`^([^(]+?)(?:\s*\(|$)`)
	descriptionNameLine = regexp.MustCompile(`(?im)^\s*(?:guest\s*name|guest|name)\s*[:\-]\s*(.+)$`)
)

// Summaries that are pure reservation boilerplate carry no guest identity.
var boilerplatePhrases = []string{"reserved", "reservation", "closed"}

// Summaries containing these markers describe an availability block, not a
// guest reservation.
var blockedKeywords = []string{"blocked", "not available", "unavailable"}

// Parser turns an iCal document into normalized booking events. Events
// without usable dates are dropped, not failed: one malformed VEVENT must not
// poison the rest of the feed.
type Parser struct {
	logger *zerolog.Logger
}

func NewParser(logger *zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

func (p *Parser) Parse(content string, platform models.Platform) ([]models.BookingEvent, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var events []models.BookingEvent
	for _, ve := range cal.Events() {
		event, ok := p.parseEvent(ve, platform)
		if !ok {
			metrics.IncEventParsed(string(platform), "dropped")
			continue
		}
		metrics.IncEventParsed(string(platform), "ok")
		events = append(events, event)
	}
	return events, nil
}

func (p *Parser) parseEvent(ve *ical.VEvent, platform models.Platform) (models.BookingEvent, bool) {
	var event models.BookingEvent
	event.Platform = platform

	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		p.logger.Debug().Str("platform", string(platform)).Msg("dropping event without uid")
		return event, false
	}
	event.ExternalID = uid

	checkIn, okStart := eventDate(ve, ical.ComponentPropertyDtStart)
	checkOut, okEnd := eventDate(ve, ical.ComponentPropertyDtEnd)
	if !okStart || !okEnd {
		p.logger.Debug().Str("uid", uid).Msg("dropping event without dates")
		return event, false
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights <= 0 {
		p.logger.Debug().Str("uid", uid).Msg("dropping zero-length event")
		return event, false
	}
	event.CheckIn = checkIn
	event.CheckOut = checkOut
	event.Nights = nights

	summary := propValue(ve, ical.ComponentPropertySummary)
	description := propValue(ve, ical.ComponentPropertyDescription)
	status := propValue(ve, ical.ComponentPropertyStatus)
	event.Status = normalizeStatus(summary+" "+description, status)
	event.GuestName = extractGuestName(summary, description, platform)

	raw, err := json.Marshal(map[string]string{
		"uid":         uid,
		"summary":     summary,
		"description": description,
		"dtstart":     checkIn.Format("2006-01-02"),
		"dtend":       checkOut.Format("2006-01-02"),
		"status":      status,
	})
	if err == nil {
		event.RawData = string(raw)
	}

	return event, true
}

// normalizeStatus maps the iCal STATUS plus summary/description keywords onto
// the ledger status vocabulary. Blocked markers in the text win over STATUS
// because platforms export availability blocks as CONFIRMED events.
func normalizeStatus(text, status string) models.BookingStatus {
	lower := strings.ToLower(text)
	for _, kw := range blockedKeywords {
		if strings.Contains(lower, kw) {
			return models.BookingBlocked
		}
	}

	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "CANCELLED":
		return models.BookingCancelled
	case "CONFIRMED", "TENTATIVE", "":
		return models.BookingConfirmed
	}
	return models.BookingConfirmed
}

// extractGuestName pulls a guest name out of the event. Fallback order:
// platform-specific summary pattern, generic summary pattern, a name/guest
// line in the description, the raw summary unless it is boilerplate, and a
// placeholder last so bookings are never nameless.
func extractGuestName(summary, description string, platform models.Platform) string {
	summary = strings.TrimSpace(summary)

	if platform == models.PlatformAirbnb {
		if m := airbnbGuestPattern.FindStringSubmatch(summary); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}

	if m := bookingGuestPattern.FindStringSubmatch(summary); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" && !isBoilerplate(name) {
			return name
		}
	}

	if m := descriptionNameLine.FindStringSubmatch(description); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}

	if summary != "" && !isBoilerplate(summary) {
		return summary
	}
	return models.PlaceholderGuestName
}

func isBoilerplate(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, phrase := range boilerplatePhrases {
		if s == phrase {
			return true
		}
	}
	return false
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// eventDate reads DTSTART or DTEND as a date-only value at midnight UTC.
// Feeds ship all-day VALUE=DATE properties; timed values are truncated to
// their calendar date.
func eventDate(ve *ical.VEvent, prop ical.ComponentProperty) (time.Time, bool) {
	p := ve.GetProperty(prop)
	if p == nil || p.Value == "" {
		return time.Time{}, false
	}

	value := strings.TrimSpace(p.Value)
	if t, err := time.Parse("20060102", value); err == nil {
		return t, true
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405"} {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
