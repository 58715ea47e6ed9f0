package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"openhours/internal/models"
)

// MemoryStore implements every store interface over maps. It backs tests and
// the `--memory` development mode.
type MemoryStore struct {
	mu              sync.RWMutex
	defaultSchedule models.WeeklySchedule
	businesses      map[string]models.Business
	schedules       map[string]models.WeeklySchedule
	overrides       map[string]models.OverrideState
	open            map[string]bool
	audit           []models.AuditEntry
}

// NewMemoryStore creates an empty store returning defaultSchedule for
// businesses without a saved schedule.
func NewMemoryStore(defaultSchedule models.WeeklySchedule) *MemoryStore {
	return &MemoryStore{
		defaultSchedule: defaultSchedule,
		businesses:      make(map[string]models.Business),
		schedules:       make(map[string]models.WeeklySchedule),
		overrides:       make(map[string]models.OverrideState),
		open:            make(map[string]bool),
	}
}

// Stores exposes the memory store through every boundary.
func (m *MemoryStore) Stores() Stores {
	return Stores{Schedules: m, Overrides: m, Availability: m, Businesses: m}
}

// UpsertBusiness registers or replaces a business. A new business starts
// with a closed availability record.
func (m *MemoryStore) UpsertBusiness(b models.Business) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[b.ID]; !ok {
		m.open[b.ID] = false
	}
	now := time.Now()
	if existing, ok := m.businesses[b.ID]; ok {
		b.CreatedAt = existing.CreatedAt
	} else {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	m.businesses[b.ID] = b
}

func (m *MemoryStore) GetBusiness(_ context.Context, businessID string) (*models.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.businesses[businessID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) ListActiveBusinesses(_ context.Context) ([]models.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Business, 0, len(m.businesses))
	for _, b := range m.businesses {
		if b.Active {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetSchedule(_ context.Context, businessID string) (models.WeeklySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.schedules[businessID]; ok {
		return s, nil
	}
	return m.defaultSchedule, nil
}

func (m *MemoryStore) PutSchedule(_ context.Context, businessID string, schedule models.WeeklySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[businessID] = schedule
	return nil
}

// HasSchedule reports whether a schedule was ever saved for the business.
func (m *MemoryStore) HasSchedule(_ context.Context, businessID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.schedules[businessID]
	return ok, nil
}

func (m *MemoryStore) GetOverride(_ context.Context, businessID string) (*models.OverrideState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[businessID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *MemoryStore) PutOverride(_ context.Context, businessID string, override models.OverrideState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	override.BusinessID = businessID
	m.overrides[businessID] = override
	return nil
}

func (m *MemoryStore) ClearOverride(_ context.Context, businessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, businessID)
	return nil
}

func (m *MemoryStore) GetIsOpen(_ context.Context, businessID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open[businessID], nil
}

func (m *MemoryStore) SetIsOpen(_ context.Context, businessID string, open bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[businessID] = open
	return nil
}

func (m *MemoryStore) InsertAuditEntry(_ context.Context, e models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

// ListAuditEntries returns entries in [from, to) ordered by business, then time.
func (m *MemoryStore) ListAuditEntries(_ context.Context, from, to time.Time) ([]models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.AuditEntry
	for _, e := range m.audit {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BusinessID != result[j].BusinessID {
			return result[i].BusinessID < result[j].BusinessID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) DeleteAuditEntriesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.audit[:0]
	var deleted int64
	for _, e := range m.audit {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.audit = kept
	return deleted, nil
}
