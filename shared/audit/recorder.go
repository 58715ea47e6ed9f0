package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"openhours/internal/events"
	"openhours/internal/models"
)

// Recorder appends every availability event to the audit log.
type Recorder struct {
	store   Store
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewRecorder(store Store, logger *zerolog.Logger) *Recorder {
	l := logger.With().Str("component", "audit").Logger()
	return &Recorder{store: store, timeout: 5 * time.Second, logger: &l}
}

// Subscribe registers the recorder for every availability event type.
func (r *Recorder) Subscribe(bus *events.EventBus) {
	for _, t := range []string{
		events.AvailabilityChanged,
		events.OverrideCreated,
		events.OverrideExpired,
		events.OverrideRolledBack,
	} {
		bus.Subscribe(t, r.Handle)
	}
}

// Handle stores one event.
func (r *Recorder) Handle(ev events.Event) error {
	var p events.AvailabilityPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entry := models.AuditEntry{
		ID:         ev.ID,
		BusinessID: ev.BusinessID,
		EventType:  ev.Type,
		IsOpen:     p.IsOpen,
		Source:     p.Source,
		ExpiresAt:  p.ExpiresAt,
		CreatedAt:  ev.CreatedAt,
	}
	if err := r.store.InsertAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("record %s: %w", ev.Type, err)
	}
	r.logger.Debug().Str("business_id", ev.BusinessID).Str("event", ev.Type).Msg("audit entry recorded")
	return nil
}
