package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staysync/internal/database"
	"staysync/internal/domain"
	"staysync/internal/events"
	"staysync/internal/metrics"
	"staysync/internal/models"
)

// ConflictDetector finds overlaps and cross-platform duplicates among the
// property's confirmed bookings. Detection is idempotent: an unresolved
// conflict already on record is returned as-is, never recorded twice.
type ConflictDetector struct {
	bookings  domain.BookingRepository
	conflicts domain.ConflictRepository
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger
}

func NewConflictDetector(bookings domain.BookingRepository, conflicts domain.ConflictRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ConflictDetector {
	return &ConflictDetector{
		bookings:  bookings,
		conflicts: conflicts,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// ConflictSummary aggregates unresolved conflicts for reporting.
type ConflictSummary struct {
	Total      int                         `json:"total"`
	ByType     map[models.ConflictType]int `json:"by_type"`
	BySeverity map[models.Severity]int     `json:"by_severity"`
}

// DetectAll scans every pair of active bookings and returns the currently
// relevant conflicts: unresolved ones already on record plus those newly
// discovered. The second result is how many are new.
func (d *ConflictDetector) DetectAll(ctx context.Context, propertyID int64, today time.Time) ([]*models.BookingConflict, int, error) {
	bookings, err := d.bookings.GetActiveBookings(ctx, propertyID, today)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load active bookings: %w", err)
	}

	var relevant []*models.BookingConflict
	created := 0
	for i := 0; i < len(bookings); i++ {
		for j := i + 1; j < len(bookings); j++ {
			conflict, isNew, err := d.checkPair(ctx, bookings[i], bookings[j])
			if err != nil {
				return relevant, created, err
			}
			if conflict != nil {
				relevant = append(relevant, conflict)
				if isNew {
					created++
				}
			}
		}
	}
	return relevant, created, nil
}

// CheckBooking detects conflicts between one booking and the rest of the
// property. Used after a single booking changes outside a full sync pass.
// The overlap query is index-backed, only bookings sharing dates are loaded.
func (d *ConflictDetector) CheckBooking(ctx context.Context, booking *models.Booking) ([]*models.BookingConflict, error) {
	if booking.Status != models.BookingConfirmed {
		return nil, nil
	}

	others, err := d.bookings.GetOverlappingBookings(ctx, booking.PropertyID, booking.CheckIn, booking.CheckOut, booking.ID)
	if err != nil {
		return nil, err
	}

	var found []*models.BookingConflict
	for _, other := range others {
		conflict, _, err := d.checkPair(ctx, booking, other)
		if err != nil {
			return found, err
		}
		if conflict != nil {
			found = append(found, conflict)
		}
	}
	return found, nil
}

// checkPair classifies one booking pair. Overlap is the precondition for any
// conflict; an overlapping pair that also meets the duplicate heuristic is
// recorded as a duplicate, one record per pair.
func (d *ConflictDetector) checkPair(ctx context.Context, a, b *models.Booking) (*models.BookingConflict, bool, error) {
	if !a.OverlapsWith(b.CheckIn, b.CheckOut) {
		return nil, false, nil
	}

	conflictType := models.ConflictOverlap
	if isDuplicatePair(a, b) {
		conflictType = models.ConflictDuplicate
	}

	existing, err := d.conflicts.GetUnresolvedConflict(ctx, a.ID, b.ID, conflictType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	start, end := overlapRange(a, b)
	conflict := &models.BookingConflict{
		BookingID1:   a.ID,
		BookingID2:   b.ID,
		Type:         conflictType,
		OverlapStart: start,
		OverlapEnd:   end,
	}

	if err := d.conflicts.CreateConflict(ctx, conflict); err != nil {
		if errors.Is(err, database.ErrConflictExists) {
			// A concurrent pass won the insert. Both passes end up holding
			// the same surviving row.
			survivor, rerr := d.conflicts.GetUnresolvedConflict(ctx, a.ID, b.ID, conflictType)
			if rerr != nil {
				return nil, false, rerr
			}
			if survivor == nil {
				return nil, false, fmt.Errorf("conflict insert raced but no row found for pair (%d, %d)", a.ID, b.ID)
			}
			return survivor, false, nil
		}
		return nil, false, err
	}

	metrics.IncConflict(string(conflictType))
	if d.eventBus != nil {
		_ = d.eventBus.PublishJSON(events.EventConflictDetected, events.ConflictEventPayload{
			ConflictID:   conflict.ID,
			BookingID1:   conflict.BookingID1,
			BookingID2:   conflict.BookingID2,
			ConflictType: string(conflictType),
			Severity:     string(conflict.Severity()),
		})
	}
	d.logger.Warn().
		Int64("conflict_id", conflict.ID).
		Int64("booking_id_1", conflict.BookingID1).
		Int64("booking_id_2", conflict.BookingID2).
		Str("type", string(conflictType)).
		Str("severity", string(conflict.Severity())).
		Msg("conflict detected")
	return conflict, true, nil
}

// AutoResolveCancelled closes unresolved conflicts where at least one
// participant booking was cancelled or removed from the ledger. Completed
// stays keep their conflicts open; the double booking was real and an
// operator still needs to see it. Returns how many were closed.
func (d *ConflictDetector) AutoResolveCancelled(ctx context.Context, propertyID int64) (int, error) {
	conflicts, err := d.conflicts.GetActiveConflicts(ctx, propertyID)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, conflict := range conflicts {
		cancelledID, notes, err := d.findCancelledParty(ctx, conflict)
		if err != nil {
			return resolved, err
		}
		if cancelledID == 0 {
			continue
		}

		if err := d.conflicts.ResolveConflict(ctx, conflict.ID, notes, time.Now().UTC()); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return resolved, err
		}
		resolved++
		d.logger.Info().
			Int64("conflict_id", conflict.ID).
			Int64("cancelled_booking_id", cancelledID).
			Msg("conflict auto-resolved")
	}
	return resolved, nil
}

func (d *ConflictDetector) findCancelledParty(ctx context.Context, conflict *models.BookingConflict) (int64, string, error) {
	for _, id := range []int64{conflict.BookingID1, conflict.BookingID2} {
		booking, err := d.bookings.GetBooking(ctx, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return id, fmt.Sprintf("Auto-resolved: Booking %d no longer exists", id), nil
			}
			return 0, "", err
		}
		if booking.Status == models.BookingCancelled {
			return id, fmt.Sprintf("Auto-resolved: Booking %d was cancelled", id), nil
		}
	}
	return 0, "", nil
}

// Resolve marks a conflict resolved with operator notes.
func (d *ConflictDetector) Resolve(ctx context.Context, conflictID int64, notes string) error {
	return d.conflicts.ResolveConflict(ctx, conflictID, notes, time.Now().UTC())
}

// Summary tallies unresolved conflicts by type and severity.
func (d *ConflictDetector) Summary(ctx context.Context, propertyID int64) (*ConflictSummary, error) {
	conflicts, err := d.conflicts.GetActiveConflicts(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	summary := &ConflictSummary{
		Total:      len(conflicts),
		ByType:     make(map[models.ConflictType]int),
		BySeverity: make(map[models.Severity]int),
	}
	for _, c := range conflicts {
		summary.ByType[c.Type]++
		summary.BySeverity[c.Severity()]++
	}
	return summary, nil
}

// isDuplicatePair applies the cross-platform duplicate heuristic: different
// platforms, both stay boundaries within one day of each other, and guest
// names that plausibly refer to the same person. The name comparison favors
// false positives; a flagged pair is reviewed by an operator, nothing is
// cancelled automatically.
func isDuplicatePair(a, b *models.Booking) bool {
	if a.Platform == b.Platform {
		return false
	}
	if daysApart(a.CheckIn, b.CheckIn) > models.DuplicateDateToleranceDays {
		return false
	}
	if daysApart(a.CheckOut, b.CheckOut) > models.DuplicateDateToleranceDays {
		return false
	}
	return guestNamesMatch(a.GuestName, b.GuestName)
}

func daysApart(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// guestNamesMatch compares names case-insensitively: exact, matching first
// token (an abbreviated initial like "J." matches "John"), or one name
// contained in the other. Known false positive: two different guests whose
// first names share a prefix and whose stays line up will be flagged.
func guestNamesMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	aFirst := firstToken(a)
	bFirst := firstToken(b)
	if aFirst == "" || bFirst == "" {
		return false
	}
	return strings.HasPrefix(aFirst, bFirst) || strings.HasPrefix(bFirst, aFirst)
}

func firstToken(name string) string {
	token := strings.Fields(name)[0]
	return strings.TrimRight(token, ".")
}

// overlapRange is the intersection of two stays.
func overlapRange(a, b *models.Booking) (time.Time, time.Time) {
	r, ok := models.DateRange{Start: a.CheckIn, End: a.CheckOut}.
		Intersect(models.DateRange{Start: b.CheckIn, End: b.CheckOut})
	if !ok {
		return time.Time{}, time.Time{}
	}
	return r.Start, r.End
}
