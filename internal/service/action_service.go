package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staysync/internal/domain"
	"staysync/internal/events"
	"staysync/internal/metrics"
	"staysync/internal/models"
)

// ActionService turns unresolved conflicts into operator remediation tasks.
// Recommendations only: the engine never writes to the external platforms.
type ActionService struct {
	bookings domain.BookingRepository
	actions  domain.ActionRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewActionService(bookings domain.BookingRepository, actions domain.ActionRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ActionService {
	return &ActionService{
		bookings: bookings,
		actions:  actions,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateForConflicts creates one pending block action per conflict that does
// not already have one. Returns how many actions were created.
func (s *ActionService) CreateForConflicts(ctx context.Context, propertyID int64, conflicts []*models.BookingConflict) (int, error) {
	created := 0
	for _, conflict := range conflicts {
		if conflict.Resolved {
			continue
		}

		action, err := s.createForConflict(ctx, propertyID, conflict)
		if err != nil {
			return created, err
		}
		if action != nil {
			created++
		}
	}
	return created, nil
}

func (s *ActionService) createForConflict(ctx context.Context, propertyID int64, conflict *models.BookingConflict) (*models.SyncAction, error) {
	pending, err := s.actions.GetPendingActionForConflict(ctx, conflict.ID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, nil
	}

	b1, err := s.bookings.GetBooking(ctx, conflict.BookingID1)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", conflict.BookingID1, err)
	}
	b2, err := s.bookings.GetBooking(ctx, conflict.BookingID2)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", conflict.BookingID2, err)
	}

	// The booking created later is the intruder; the earlier reservation has
	// first claim, so the block recommendation targets the later platform.
	first, second := b1, b2
	if b2.CreatedAt.Before(b1.CreatedAt) {
		first, second = b2, b1
	}

	action := &models.SyncAction{
		PropertyID:       propertyID,
		ConflictID:       conflict.ID,
		TriggerBookingID: second.ID,
		Type:             models.ActionBlockDates,
		TargetPlatform:   second.Platform,
		StartDate:        conflict.OverlapStart,
		EndDate:          conflict.OverlapEnd,
		Reason:           blockReason(first, second, conflict),
		Priority:         conflict.Severity(),
		ExpireAfterHours: models.ActionExpiryHours,
	}

	if err := s.actions.CreateAction(ctx, action); err != nil {
		return nil, err
	}

	metrics.IncActionCreated(string(action.TargetPlatform))
	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(events.EventActionCreated, action)
	}
	s.logger.Warn().
		Int64("action_id", action.ID).
		Int64("conflict_id", conflict.ID).
		Str("target_platform", string(action.TargetPlatform)).
		Str("priority", string(action.Priority)).
		Msg("block action created for conflict")
	return action, nil
}

func blockReason(first, second *models.Booking, conflict *models.BookingConflict) string {
	return fmt.Sprintf(
		"Conflict detected between two bookings.\n"+
			"Existing booking: %s (%s)\n"+
			"Conflicts with: %s (%s)\n"+
			"Period: %s - %s\n"+
			"Severity: %s",
		first.GuestName, strings.ToUpper(string(first.Platform)),
		second.GuestName, strings.ToUpper(string(second.Platform)),
		conflict.OverlapStart.Format("2006-01-02"), conflict.OverlapEnd.Format("2006-01-02"),
		strings.ToUpper(string(conflict.Severity())),
	)
}

// Complete marks an action done, Dismiss rejects it.
func (s *ActionService) Complete(ctx context.Context, actionID int64, notes string) error {
	return s.actions.UpdateActionStatus(ctx, actionID, models.ActionCompleted, notes)
}

func (s *ActionService) Dismiss(ctx context.Context, actionID int64, notes string) error {
	return s.actions.UpdateActionStatus(ctx, actionID, models.ActionDismissed, notes)
}

// ExpireStale flips pending actions past their expiry horizon.
func (s *ActionService) ExpireStale(ctx context.Context) (int, error) {
	n, err := s.actions.ExpireStaleActions(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("stale actions expired")
	}
	return n, nil
}
