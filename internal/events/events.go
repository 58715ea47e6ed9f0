package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	AvailabilityChanged = "availability.changed"
	OverrideCreated     = "override.created"
	OverrideExpired     = "override.expired"
	OverrideRolledBack  = "override.rolled_back"
)

// Event represents a lightweight domain event.
type Event struct {
	ID         string
	Type       string
	BusinessID string
	Payload    []byte
	CreatedAt  time.Time
}

// AvailabilityPayload is the JSON body carried by every availability event.
type AvailabilityPayload struct {
	IsOpen    bool       `json:"is_open"`
	Source    string     `json:"source"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewEvent builds an event with a fresh id and a JSON payload.
func NewEvent(eventType, businessID string, payload any, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BusinessID: businessID,
		Payload:    data,
		CreatedAt:  at,
	}, nil
}

// Decode unmarshals the event payload into out.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

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

// Publish notifies subscribers of the event type and returns their joined
// errors. Every handler runs even if an earlier one fails.
func (b *EventBus) Publish(event Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}
