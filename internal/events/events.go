package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingCancelled = "booking_cancelled"
	EventConflictDetected = "conflict_detected"
	EventActionCreated    = "action_created"
	EventSyncCompleted    = "sync_completed"
)

// BookingEventPayload is the booking snapshot consumers receive.
type BookingEventPayload struct {
	BookingID  int64     `json:"booking_id"`
	PropertyID int64     `json:"property_id"`
	Platform   string    `json:"platform"`
	Status     string    `json:"status"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	GuestName  string    `json:"guest_name"`
}

// ConflictEventPayload describes a freshly detected conflict.
type ConflictEventPayload struct {
	ConflictID   int64  `json:"conflict_id"`
	BookingID1   int64  `json:"booking_id_1"`
	BookingID2   int64  `json:"booking_id_2"`
	ConflictType string `json:"conflict_type"`
	Severity     string `json:"severity"`
}

// SyncEventPayload summarizes one completed sync pass.
type SyncEventPayload struct {
	RunID             string `json:"run_id"`
	SourceName        string `json:"source_name"`
	Status            string `json:"status"`
	BookingsAdded     int    `json:"bookings_added"`
	BookingsUpdated   int    `json:"bookings_updated"`
	BookingsCancelled int    `json:"bookings_cancelled"`
	ConflictsDetected int    `json:"conflicts_detected"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
