package models

import "time"

// CalendarSource is one external feed that contributes bookings to a property.
type CalendarSource struct {
	ID             int64      `json:"id"`
	PropertyID     int64      `json:"property_id"`
	Name           string     `json:"name"`
	Platform       Platform   `json:"platform"`
	FeedURL        string     `json:"feed_url"`
	SyncEnabled    bool       `json:"sync_enabled"`
	SyncInterval   int        `json:"sync_interval_minutes"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus SyncStatus `json:"last_sync_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
