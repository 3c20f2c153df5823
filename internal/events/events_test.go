package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var received []string
	bus.Subscribe(EventBookingCreated, func(e *Event) error {
		received = append(received, e.Type)
		return nil
	})
	bus.Subscribe(EventConflictDetected, func(e *Event) error {
		received = append(received, e.Type)
		return nil
	})

	bus.Publish(&Event{Type: EventBookingCreated})
	bus.Publish(&Event{Type: EventBookingCancelled}) // no subscriber
	bus.Publish(&Event{Type: EventConflictDetected})

	assert.Equal(t, []string{EventBookingCreated, EventConflictDetected}, received)
}

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got ConflictEventPayload
	bus.Subscribe(EventConflictDetected, func(e *Event) error {
		return json.Unmarshal(e.Payload, &got)
	})

	payload := ConflictEventPayload{
		ConflictID:   7,
		BookingID1:   1,
		BookingID2:   2,
		ConflictType: "overlap",
		Severity:     "high",
	}
	require.NoError(t, bus.PublishJSON(EventConflictDetected, payload))
	assert.Equal(t, payload, got)
}

func TestPublishJSONOnNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, "payload"))
}
