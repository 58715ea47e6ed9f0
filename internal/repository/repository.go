// Package repository declares the persistence boundaries of the availability
// scheduler and provides in-memory implementations.
package repository

import (
	"context"
	"errors"

	"openhours/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ScheduleStore persists weekly schedules. GetSchedule returns the default
// schedule for businesses that have never saved one.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, businessID string) (models.WeeklySchedule, error)
	PutSchedule(ctx context.Context, businessID string, schedule models.WeeklySchedule) error
}

// OverrideStore persists at most one override per business. GetOverride
// returns nil when there is none.
type OverrideStore interface {
	GetOverride(ctx context.Context, businessID string) (*models.OverrideState, error)
	PutOverride(ctx context.Context, businessID string, override models.OverrideState) error
	ClearOverride(ctx context.Context, businessID string) error
}

// AvailabilityStore holds the externally visible open flag.
type AvailabilityStore interface {
	GetIsOpen(ctx context.Context, businessID string) (bool, error)
	SetIsOpen(ctx context.Context, businessID string, open bool) error
}

// BusinessStore lists the businesses subscribed to reconciliation.
type BusinessStore interface {
	GetBusiness(ctx context.Context, businessID string) (*models.Business, error)
	ListActiveBusinesses(ctx context.Context) ([]models.Business, error)
}

// Stores bundles every boundary the availability service consumes.
type Stores struct {
	Schedules    ScheduleStore
	Overrides    OverrideStore
	Availability AvailabilityStore
	Businesses   BusinessStore
}
