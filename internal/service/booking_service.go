package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"staysync/internal/domain"
	"staysync/internal/events"
	"staysync/internal/metrics"
	"staysync/internal/models"
)

// BookingService reconciles parsed feed events into the booking ledger.
// The merge key is (external_id, platform, property_id); a feed event either
// creates a booking, updates it, cancels it or leaves it untouched.
type BookingService struct {
	bookings domain.BookingRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(bookings domain.BookingRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		eventBus: eventBus,
		logger:   logger,
	}
}

// MergeFromFeed applies one feed event to the ledger and reports what it did.
// Re-applying the same event is a no-op, which makes whole sync passes
// idempotent.
func (s *BookingService) MergeFromFeed(ctx context.Context, propertyID, sourceID int64, event models.BookingEvent) (*models.Booking, models.ReconcileAction, error) {
	existing, err := s.bookings.GetBookingByExternalID(ctx, event.ExternalID, event.Platform, propertyID)
	if err != nil {
		return nil, models.ReconcileUnchanged, err
	}

	if existing == nil {
		// A cancellation for a booking never seen leaves nothing to do.
		if event.Status == models.BookingCancelled {
			return nil, models.ReconcileUnchanged, nil
		}
		return s.createFromEvent(ctx, propertyID, sourceID, event)
	}

	if event.Status == models.BookingCancelled {
		if existing.Status == models.BookingCancelled {
			return existing, models.ReconcileUnchanged, nil
		}
		if err := s.bookings.UpdateBookingStatus(ctx, existing.ID, models.BookingCancelled); err != nil {
			return nil, models.ReconcileUnchanged, err
		}
		existing.Status = models.BookingCancelled

		metrics.IncBookingChange(string(models.ReconcileCancelled))
		s.publishBookingEvent(events.EventBookingCancelled, existing)
		s.logger.Info().
			Int64("booking_id", existing.ID).
			Str("external_id", event.ExternalID).
			Msg("booking cancelled by feed")
		return existing, models.ReconcileCancelled, nil
	}

	// Status is deliberately not part of the diff: feeds keep past events
	// forever, and a completed booking must not snap back to confirmed on
	// the next pass. Cancellation is the only feed-driven status change.
	changed := !existing.CheckIn.Equal(event.CheckIn) ||
		!existing.CheckOut.Equal(event.CheckOut) ||
		existing.GuestName != event.GuestName

	existing.CheckIn = event.CheckIn
	existing.CheckOut = event.CheckOut
	existing.Nights = event.Nights
	existing.GuestName = event.GuestName
	existing.RawFeedData = event.RawData

	if !changed {
		// Raw payload refreshes silently; the pass does not count it.
		if err := s.bookings.UpdateBooking(ctx, existing); err != nil {
			return nil, models.ReconcileUnchanged, err
		}
		return existing, models.ReconcileUnchanged, nil
	}

	if err := s.bookings.UpdateBooking(ctx, existing); err != nil {
		return nil, models.ReconcileUnchanged, err
	}

	metrics.IncBookingChange(string(models.ReconcileUpdated))
	s.publishBookingEvent(events.EventBookingUpdated, existing)
	s.logger.Info().
		Int64("booking_id", existing.ID).
		Str("external_id", event.ExternalID).
		Msg("booking updated from feed")
	return existing, models.ReconcileUpdated, nil
}

func (s *BookingService) createFromEvent(ctx context.Context, propertyID, sourceID int64, event models.BookingEvent) (*models.Booking, models.ReconcileAction, error) {
	booking := &models.Booking{
		PropertyID:       propertyID,
		CalendarSourceID: sourceID,
		ExternalID:       event.ExternalID,
		Platform:         event.Platform,
		Status:           event.Status,
		CheckIn:          event.CheckIn,
		CheckOut:         event.CheckOut,
		Nights:           event.Nights,
		GuestName:        event.GuestName,
		RawFeedData:      event.RawData,
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, models.ReconcileUnchanged, err
	}

	metrics.IncBookingChange(string(models.ReconcileCreated))
	s.publishBookingEvent(events.EventBookingCreated, booking)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("platform", string(booking.Platform)).
		Str("external_id", booking.ExternalID).
		Msg("booking created from feed")
	return booking, models.ReconcileCreated, nil
}

// MarkCompleted flips confirmed bookings whose stay has ended to completed.
func (s *BookingService) MarkCompleted(ctx context.Context, propertyID int64, today time.Time) (int, error) {
	n, err := s.bookings.MarkCompletedBookings(ctx, propertyID, today)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("bookings marked completed")
	}
	return n, nil
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		Platform:   string(booking.Platform),
		Status:     string(booking.Status),
		CheckIn:    booking.CheckIn,
		CheckOut:   booking.CheckOut,
		GuestName:  booking.GuestName,
	})
}
