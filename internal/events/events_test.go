package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversByType(t *testing.T) {
	bus := NewEventBus()
	var got []Event
	bus.Subscribe(AvailabilityChanged, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(OverrideCreated, func(Event) error {
		t.Fatal("wrong subscriber called")
		return nil
	})

	at := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	ev, err := NewEvent(AvailabilityChanged, "b1", AvailabilityPayload{IsOpen: true, Source: "schedule"}, at)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ev))

	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "b1", got[0].BusinessID)
	assert.Equal(t, at, got[0].CreatedAt)

	var p AvailabilityPayload
	require.NoError(t, got[0].Decode(&p))
	assert.True(t, p.IsOpen)
	assert.Equal(t, "schedule", p.Source)
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	calls := 0
	bus.Subscribe(OverrideExpired, func(Event) error { calls++; return boom })
	bus.Subscribe(OverrideExpired, func(Event) error { calls++; return nil })

	err := bus.Publish(Event{Type: OverrideExpired})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestPublishOnNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.Publish(Event{Type: AvailabilityChanged}))
}
