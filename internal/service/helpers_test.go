package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"staysync/internal/database"
	"staysync/internal/models"
)

func setupServiceDB(t *testing.T) *database.DB {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustCreateBooking(t *testing.T, db *database.DB, externalID string, platform models.Platform, guest string, checkIn, checkOut time.Time) *models.Booking {
	t.Helper()

	booking := &models.Booking{
		PropertyID: 1,
		ExternalID: externalID,
		Platform:   platform,
		Status:     models.BookingConfirmed,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Nights:     int(checkOut.Sub(checkIn).Hours() / 24),
		GuestName:  guest,
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func confirmedEvent(externalID string, platform models.Platform, guest string, checkIn, checkOut time.Time) models.BookingEvent {
	return models.BookingEvent{
		ExternalID: externalID,
		Platform:   platform,
		Status:     models.BookingConfirmed,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Nights:     int(checkOut.Sub(checkIn).Hours() / 24),
		GuestName:  guest,
	}
}
