package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysync/internal/models"
)

func TestMergeFromFeedCreatesThenUnchanged(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewBookingService(db, nil, nopLogger())
	ctx := context.Background()

	event := confirmedEvent("X", models.PlatformAirbnb, "John Smith", date(2027, 3, 10), date(2027, 3, 12))

	booking, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileCreated, action)
	require.NotNil(t, booking)
	assert.Equal(t, 2, booking.Nights)

	// An identical second pass changes nothing.
	again, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileUnchanged, action)
	assert.Equal(t, booking.ID, again.ID)

	all, err := db.GetBookings(ctx, 1, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMergeFromFeedKeepsCompletedStatus(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewBookingService(db, nil, nopLogger())
	ctx := context.Background()

	event := confirmedEvent("X", models.PlatformAirbnb, "John Smith", date(2027, 3, 10), date(2027, 3, 12))
	created, _, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)

	n, err := svc.MarkCompleted(ctx, 1, date(2027, 4, 1))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Feeds keep past events; replaying one must not resurrect the booking.
	booking, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileUnchanged, action)
	assert.Equal(t, models.BookingCompleted, booking.Status)

	stored, err := db.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, stored.Status)
}

func TestMergeFromFeedUpdatesDatesAndNights(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewBookingService(db, nil, nopLogger())
	ctx := context.Background()

	event := confirmedEvent("X", models.PlatformAirbnb, "John Smith", date(2027, 3, 10), date(2027, 3, 12))
	_, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	require.Equal(t, models.ReconcileCreated, action)

	event.CheckOut = date(2027, 3, 13)
	event.Nights = 3
	booking, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileUpdated, action)
	assert.Equal(t, 3, booking.Nights)

	stored, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Nights)
	assert.True(t, stored.CheckOut.Equal(date(2027, 3, 13)))
}

func TestMergeFromFeedGuestNameChange(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewBookingService(db, nil, nopLogger())
	ctx := context.Background()

	event := confirmedEvent("X", models.PlatformBooking, "Guest", date(2027, 5, 1), date(2027, 5, 4))
	_, _, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)

	event.GuestName = "Maria Garcia"
	booking, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileUpdated, action)
	assert.Equal(t, "Maria Garcia", booking.GuestName)
}

func TestMergeFromFeedCancellation(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewBookingService(db, nil, nopLogger())
	ctx := context.Background()

	event := confirmedEvent("X", models.PlatformAirbnb, "John Smith", date(2027, 3, 10), date(2027, 3, 12))
	created, _, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)

	event.Status = models.BookingCancelled
	booking, action, err := svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileCancelled, action)
	assert.Equal(t, models.BookingCancelled, booking.Status)

	stored, err := db.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, stored.Status)

	// Cancelling twice is a no-op.
	_, action, err = svc.MergeFromFeed(ctx, 1, 0, event)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileUnchanged, action)
}

func TestMergeFromFeedCancellationForUnknownBooking(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewBookingService(db, nil, nopLogger())

	event := confirmedEvent("never-seen", models.PlatformAirbnb, "Ghost", date(2027, 3, 10), date(2027, 3, 12))
	event.Status = models.BookingCancelled

	booking, action, err := svc.MergeFromFeed(context.Background(), 1, 0, event)
	require.NoError(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, models.ReconcileUnchanged, action)
}
