package models

import "time"

// Business is a merchant location whose open/closed flag is managed here.
type Business struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverrideState is an operator-forced open/closed value. A nil ExpiresAt
// never expires on its own.
type OverrideState struct {
	BusinessID string     `json:"business_id"`
	ForcedOpen bool       `json:"forced_open"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the override has reached its expiry at now.
func (o *OverrideState) Expired(now time.Time) bool {
	return o != nil && o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// AvailabilityRecord is the externally visible open flag of a business.
type AvailabilityRecord struct {
	BusinessID string    `json:"business_id"`
	IsOpen     bool      `json:"is_open"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditEntry is one recorded availability event.
type AuditEntry struct {
	ID         string     `json:"id"`
	BusinessID string     `json:"business_id"`
	EventType  string     `json:"event_type"`
	IsOpen     bool       `json:"is_open"`
	Source     string     `json:"source"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
