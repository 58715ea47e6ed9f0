package availability

import (
	"time"

	"openhours/internal/models"
)

// Source names the authority behind a reconciled state.
type Source string

const (
	SourceSchedule Source = "schedule"
	SourceOverride Source = "override"
)

// Target is the outcome of one reconciliation.
type Target struct {
	Open          bool
	ScheduledOpen bool
	Source        Source
	// Expired is set when an override was present but has reached its
	// expiry; the caller must clear it from the override store.
	Expired bool
}

// Reconcile combines the schedule and an optional override into the single
// authoritative open state at now. It does not touch any store.
func Reconcile(schedule models.WeeklySchedule, override *models.OverrideState, now time.Time) Target {
	scheduled := IsOpen(schedule, now)
	t := Target{Open: scheduled, ScheduledOpen: scheduled, Source: SourceSchedule}

	switch {
	case override == nil:
	case override.Expired(now):
		t.Expired = true
	default:
		t.Open = override.ForcedOpen
		t.Source = SourceOverride
	}
	return t
}

// NeedsUpdate reports whether the persisted flag must be rewritten.
func (t Target) NeedsUpdate(current bool) bool {
	return t.Open != current
}

// OverrideExpiry computes when a toggle made at now should hand authority
// back to the schedule: the schedule's own next transition. A nil result
// means the override never expires naturally.
func OverrideExpiry(schedule models.WeeklySchedule, now time.Time) *time.Time {
	next, ok := NextTransition(schedule, now)
	if !ok {
		return nil
	}
	return &next
}
