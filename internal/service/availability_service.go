package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"openhours/internal/availability"
	"openhours/internal/events"
	"openhours/internal/metrics"
	"openhours/internal/models"
	"openhours/internal/repository"
)

var ErrUnknownBusiness = errors.New("unknown business")

// SourceToggle labels availability writes made directly by a manual toggle.
const SourceToggle = "toggle"

// Config tunes the availability service.
type Config struct {
	// StoreTimeout bounds every individual store call.
	// Default: 5 seconds.
	StoreTimeout time.Duration

	// MaxConcurrent limits how many businesses a tick reconciles in parallel.
	// Default: 8.
	MaxConcurrent int

	// Location is used for businesses without their own timezone.
	// Default: UTC.
	Location *time.Location
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:  5 * time.Second,
		MaxConcurrent: 8,
		Location:      time.UTC,
	}
}

// AvailabilityService owns every write to a business's override and open
// flag. Manual toggles, schedule saves and ticks all serialize on the same
// per-business lock.
type AvailabilityService struct {
	schedules    repository.ScheduleStore
	overrides    repository.OverrideStore
	availability repository.AvailabilityStore
	businesses   repository.BusinessStore

	clock  Clock
	bus    *events.EventBus
	config Config
	locks  *keyedMutex
	logger *zerolog.Logger

	strandedMu sync.Mutex
	stranded   map[string]strandedOverride
}

// strandedOverride is a toggle's override that stayed stored after both the
// open-flag write and its rollback failed.
type strandedOverride struct {
	override models.OverrideState
	prev     *models.OverrideState
}

// NewAvailabilityService wires the service to its stores. bus may be nil.
func NewAvailabilityService(
	stores repository.Stores,
	clock Clock,
	bus *events.EventBus,
	config Config,
	logger *zerolog.Logger,
) *AvailabilityService {
	if clock == nil {
		clock = SystemClock{}
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 5 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	l := logger.With().Str("component", "availability").Logger()

	return &AvailabilityService{
		schedules:    stores.Schedules,
		overrides:    stores.Overrides,
		availability: stores.Availability,
		businesses:   stores.Businesses,
		clock:        clock,
		bus:          bus,
		config:       config,
		locks:        newKeyedMutex(),
		logger:       &l,
		stranded:     make(map[string]strandedOverride),
	}
}

// Outcome describes a single reconciliation.
type Outcome struct {
	BusinessID string
	Open       bool
	Source     availability.Source
	Changed    bool
	Expired    bool
}

// TickStats summarises one pass over the active businesses.
type TickStats struct {
	Total     int
	Updated   int
	Unchanged int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// StatusReport is a read-only view of a business's availability.
type StatusReport struct {
	BusinessID     string                `json:"business_id"`
	Timezone       string                `json:"timezone"`
	IsOpen         bool                  `json:"is_open"`
	EffectiveOpen  bool                  `json:"effective_open"`
	ScheduledOpen  bool                  `json:"scheduled_open"`
	Source         availability.Source   `json:"source"`
	Override       *models.OverrideState `json:"override,omitempty"`
	NextTransition *time.Time            `json:"next_transition,omitempty"`
	EvaluatedAt    time.Time             `json:"evaluated_at"`
}

// ToggleOpen flips the business's effective state. The new override expires
// at the schedule's own next transition, computed before the flip. If the
// open flag cannot be written, the previous override is restored and the
// business keeps its pre-toggle state.
func (s *AvailabilityService) ToggleOpen(ctx context.Context, businessID string) (bool, error) {
	unlock := s.locks.Lock(businessID)
	defer unlock()

	b, err := s.business(ctx, businessID)
	if err != nil {
		metrics.IncToggle("error")
		return false, err
	}
	now := s.clock.Now().In(s.location(b))

	schedule, err := s.getSchedule(ctx, businessID)
	if err != nil {
		metrics.IncToggle("error")
		return false, err
	}
	prev, err := s.getOverride(ctx, businessID)
	if err != nil {
		metrics.IncToggle("error")
		return false, err
	}
	prev = s.repairStranded(ctx, businessID, prev)

	current := availability.Reconcile(schedule, prev, now)
	override := models.OverrideState{
		BusinessID: businessID,
		ForcedOpen: !current.Open,
		ExpiresAt:  availability.OverrideExpiry(schedule, now),
		CreatedAt:  now,
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.overrides.PutOverride(ctx, businessID, override)
	}); err != nil {
		metrics.IncStoreError("put_override")
		metrics.IncToggle("error")
		return false, fmt.Errorf("toggle %s: save override: %w", businessID, err)
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.availability.SetIsOpen(ctx, businessID, override.ForcedOpen)
	}); err != nil {
		metrics.IncStoreError("set_is_open")
		rbErr := s.rollbackOverride(ctx, businessID, prev)
		if rbErr != nil {
			metrics.IncToggle("error")
			s.strand(businessID, override, prev)
			ev := s.logger.Error().Err(rbErr).
				Str("business_id", businessID).
				Bool("forced_open", override.ForcedOpen).
				Time("created_at", override.CreatedAt)
			if override.ExpiresAt != nil {
				ev = ev.Time("expires_at", *override.ExpiresAt)
			}
			ev.Msg("override rollback failed, override ignored until removed")
		} else {
			metrics.IncToggle("rolled_back")
			s.publish(events.OverrideRolledBack, businessID, override.ForcedOpen, SourceToggle, override.ExpiresAt, now)
		}
		return false, errors.Join(fmt.Errorf("toggle %s: set open flag: %w", businessID, err), rbErr)
	}

	metrics.IncToggle("ok")
	metrics.IncAvailabilityUpdate(SourceToggle)
	s.publish(events.OverrideCreated, businessID, override.ForcedOpen, SourceToggle, override.ExpiresAt, now)
	s.publish(events.AvailabilityChanged, businessID, override.ForcedOpen, SourceToggle, override.ExpiresAt, now)

	ev := s.logger.Info().Str("business_id", businessID).Bool("is_open", override.ForcedOpen)
	if override.ExpiresAt != nil {
		ev = ev.Time("expires_at", *override.ExpiresAt)
	}
	ev.Msg("availability toggled")

	return override.ForcedOpen, nil
}

// rollbackOverride puts back the override that existed before a toggle, or
// removes the new one if there was none. It runs even if ctx is cancelled.
func (s *AvailabilityService) rollbackOverride(ctx context.Context, businessID string, prev *models.OverrideState) error {
	ctx = context.WithoutCancel(ctx)
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		if prev != nil {
			return s.overrides.PutOverride(ctx, businessID, *prev)
		}
		return s.overrides.ClearOverride(ctx, businessID)
	})
	if err != nil {
		return fmt.Errorf("rollback override: %w", err)
	}
	return nil
}

func (s *AvailabilityService) strand(businessID string, override models.OverrideState, prev *models.OverrideState) {
	s.strandedMu.Lock()
	defer s.strandedMu.Unlock()
	s.stranded[businessID] = strandedOverride{override: override, prev: prev}
}

// visibleOverride returns the override that should be in effect given the
// stored one: a stranded override is replaced by the one it displaced. The
// bool reports whether stored is stranded.
func (s *AvailabilityService) visibleOverride(businessID string, stored *models.OverrideState) (*models.OverrideState, bool) {
	s.strandedMu.Lock()
	defer s.strandedMu.Unlock()

	st, ok := s.stranded[businessID]
	if !ok {
		return stored, false
	}
	if stored == nil || !sameOverride(*stored, st.override) {
		// Replaced or cleared since; nothing left to undo.
		delete(s.stranded, businessID)
		return stored, false
	}
	return st.prev, true
}

// repairStranded retries the rollback of a stranded override and returns the
// override in effect. The caller holds the business lock.
func (s *AvailabilityService) repairStranded(ctx context.Context, businessID string, stored *models.OverrideState) *models.OverrideState {
	visible, stranded := s.visibleOverride(businessID, stored)
	if !stranded {
		return visible
	}
	if err := s.rollbackOverride(ctx, businessID, visible); err != nil {
		s.logger.Error().Err(err).Str("business_id", businessID).Msg("stranded override still stored, ignoring it")
		return visible
	}

	s.strandedMu.Lock()
	delete(s.stranded, businessID)
	s.strandedMu.Unlock()
	s.logger.Info().Str("business_id", businessID).Msg("stranded override rolled back")
	return visible
}

func sameOverride(a, b models.OverrideState) bool {
	if a.ForcedOpen != b.ForcedOpen || !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if a.ExpiresAt == nil || b.ExpiresAt == nil {
		return a.ExpiresAt == nil && b.ExpiresAt == nil
	}
	return a.ExpiresAt.Equal(*b.ExpiresAt)
}

// SaveSchedule replaces the business's weekly schedule and reconciles it at
// once. A failed save leaves the previous schedule and override untouched.
func (s *AvailabilityService) SaveSchedule(ctx context.Context, businessID string, schedule models.WeeklySchedule) error {
	unlock := s.locks.Lock(businessID)
	defer unlock()

	b, err := s.business(ctx, businessID)
	if err != nil {
		return err
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.schedules.PutSchedule(ctx, businessID, schedule)
	}); err != nil {
		metrics.IncStoreError("put_schedule")
		return fmt.Errorf("save schedule %s: %w", businessID, err)
	}
	s.logger.Info().Str("business_id", businessID).Msg("schedule saved")

	// The schedule is persisted; a failed follow-up write is retried by the next tick.
	if _, err := s.reconcileLocked(ctx, b, s.clock.Now()); err != nil {
		s.logger.Warn().Err(err).Str("business_id", businessID).Msg("reconcile after schedule save failed")
	}
	return nil
}

// Schedule returns the stored (or default) schedule of a known business.
// Reads take the business lock so they never interleave with a save.
func (s *AvailabilityService) Schedule(ctx context.Context, businessID string) (models.WeeklySchedule, error) {
	unlock := s.locks.Lock(businessID)
	defer unlock()

	if _, err := s.business(ctx, businessID); err != nil {
		return models.WeeklySchedule{}, err
	}
	return s.getSchedule(ctx, businessID)
}

// ReconcileBusiness runs one reconciliation for a single business at now.
func (s *AvailabilityService) ReconcileBusiness(ctx context.Context, businessID string, now time.Time) (Outcome, error) {
	unlock := s.locks.Lock(businessID)
	defer unlock()

	b, err := s.business(ctx, businessID)
	if err != nil {
		return Outcome{BusinessID: businessID}, err
	}
	return s.reconcileLocked(ctx, b, now)
}

// reconcileLocked derives the target state and writes it if it differs from
// the stored flag. An expired override is cleared first. The caller holds the
// business lock.
func (s *AvailabilityService) reconcileLocked(ctx context.Context, b *models.Business, now time.Time) (Outcome, error) {
	out := Outcome{BusinessID: b.ID}
	now = now.In(s.location(b))

	schedule, err := s.getSchedule(ctx, b.ID)
	if err != nil {
		metrics.IncReconcile("error")
		return out, err
	}
	override, err := s.getOverride(ctx, b.ID)
	if err != nil {
		metrics.IncReconcile("error")
		return out, err
	}
	override = s.repairStranded(ctx, b.ID, override)

	target := availability.Reconcile(schedule, override, now)
	out.Open = target.Open
	out.Source = target.Source

	var errs []error
	if target.Expired {
		// Keep going on failure: the override is past its expiry either way,
		// and the next tick will try the clear again.
		if err := s.withTimeout(ctx, func(ctx context.Context) error {
			return s.overrides.ClearOverride(ctx, b.ID)
		}); err != nil {
			metrics.IncStoreError("clear_override")
			errs = append(errs, fmt.Errorf("clear expired override: %w", err))
		} else {
			out.Expired = true
			metrics.IncOverrideExpired()
			s.publish(events.OverrideExpired, b.ID, target.Open, string(target.Source), override.ExpiresAt, now)
			s.logger.Info().Str("business_id", b.ID).Msg("override expired, schedule resumes")
		}
	}

	var current bool
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.availability.GetIsOpen(ctx, b.ID)
		return err
	}); err != nil {
		metrics.IncStoreError("get_is_open")
		metrics.IncReconcile("error")
		return out, errors.Join(append(errs, fmt.Errorf("read open flag: %w", err))...)
	}

	if target.NeedsUpdate(current) {
		if err := s.withTimeout(ctx, func(ctx context.Context) error {
			return s.availability.SetIsOpen(ctx, b.ID, target.Open)
		}); err != nil {
			metrics.IncStoreError("set_is_open")
			metrics.IncReconcile("error")
			return out, errors.Join(append(errs, fmt.Errorf("write open flag: %w", err))...)
		}
		out.Changed = true
		metrics.IncAvailabilityUpdate(string(target.Source))
		s.publish(events.AvailabilityChanged, b.ID, target.Open, string(target.Source), nil, now)
		s.logger.Info().
			Str("business_id", b.ID).
			Bool("is_open", target.Open).
			Str("source", string(target.Source)).
			Msg("availability updated")
	}

	if len(errs) > 0 {
		metrics.IncReconcile("error")
		return out, errors.Join(errs...)
	}
	if out.Changed {
		metrics.IncReconcile("updated")
	} else {
		metrics.IncReconcile("unchanged")
	}
	return out, nil
}

// RunTick reconciles every active business at now. Failures are logged and
// left for the next tick. Once started, a business's reconciliation runs to
// completion even if ctx is cancelled; businesses not yet started are skipped.
func (s *AvailabilityService) RunTick(ctx context.Context, now time.Time) TickStats {
	start := time.Now()
	var stats TickStats

	var list []models.Business
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.businesses.ListActiveBusinesses(ctx)
		return err
	}); err != nil {
		metrics.IncStoreError("list_businesses")
		s.logger.Error().Err(err).Msg("failed to list active businesses")
		return stats
	}
	stats.Total = len(list)

	work := context.WithoutCancel(ctx)
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := range list {
		if ctx.Err() != nil {
			stats.Skipped = len(list) - i
			s.logger.Info().Int("skipped", stats.Skipped).Msg("tick interrupted")
			break
		}

		wg.Add(1)
		sem <- struct{}{} // acquire

		go func(b models.Business) {
			defer wg.Done()
			defer func() { <-sem }() // release

			unlock := s.locks.Lock(b.ID)
			out, err := s.reconcileLocked(work, &b, now)
			unlock()

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				s.logger.Error().Err(err).Str("business_id", b.ID).Msg("reconciliation failed, will retry next tick")
			case out.Changed:
				stats.Updated++
			default:
				stats.Unchanged++
			}
		}(list[i])
	}

	wg.Wait()
	stats.Duration = time.Since(start)
	metrics.ObserveTick(stats.Duration)

	s.logger.Debug().
		Int("total", stats.Total).
		Int("updated", stats.Updated).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("tick complete")
	return stats
}

// Status reports the stored flag alongside what the schedule and override
// say right now. It never writes.
func (s *AvailabilityService) Status(ctx context.Context, businessID string) (StatusReport, error) {
	unlock := s.locks.Lock(businessID)
	defer unlock()

	b, err := s.business(ctx, businessID)
	if err != nil {
		return StatusReport{}, err
	}
	loc := s.location(b)
	now := s.clock.Now().In(loc)

	schedule, err := s.getSchedule(ctx, businessID)
	if err != nil {
		return StatusReport{}, err
	}
	override, err := s.getOverride(ctx, businessID)
	if err != nil {
		return StatusReport{}, err
	}
	override, _ = s.visibleOverride(businessID, override)
	var isOpen bool
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		isOpen, err = s.availability.GetIsOpen(ctx, businessID)
		return err
	}); err != nil {
		return StatusReport{}, fmt.Errorf("read open flag: %w", err)
	}

	target := availability.Reconcile(schedule, override, now)
	report := StatusReport{
		BusinessID:    businessID,
		Timezone:      loc.String(),
		IsOpen:        isOpen,
		EffectiveOpen: target.Open,
		ScheduledOpen: target.ScheduledOpen,
		Source:        target.Source,
		EvaluatedAt:   now,
	}
	if override != nil && !target.Expired {
		report.Override = override
	}
	if next, ok := availability.NextTransition(schedule, now); ok {
		report.NextTransition = &next
	}
	return report, nil
}

func (s *AvailabilityService) business(ctx context.Context, businessID string) (*models.Business, error) {
	var b *models.Business
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.businesses.GetBusiness(ctx, businessID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBusiness, businessID)
	}
	if err != nil {
		metrics.IncStoreError("get_business")
		return nil, fmt.Errorf("load business %s: %w", businessID, err)
	}
	return b, nil
}

func (s *AvailabilityService) getSchedule(ctx context.Context, businessID string) (models.WeeklySchedule, error) {
	var schedule models.WeeklySchedule
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		schedule, err = s.schedules.GetSchedule(ctx, businessID)
		return err
	})
	if err != nil {
		metrics.IncStoreError("get_schedule")
		return models.WeeklySchedule{}, fmt.Errorf("load schedule %s: %w", businessID, err)
	}
	return schedule, nil
}

func (s *AvailabilityService) getOverride(ctx context.Context, businessID string) (*models.OverrideState, error) {
	var o *models.OverrideState
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.overrides.GetOverride(ctx, businessID)
		return err
	})
	if err != nil {
		metrics.IncStoreError("get_override")
		return nil, fmt.Errorf("load override %s: %w", businessID, err)
	}
	return o, nil
}

func (s *AvailabilityService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *AvailabilityService) location(b *models.Business) *time.Location {
	if b == nil || b.Timezone == "" {
		return s.config.Location
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		s.logger.Warn().Err(err).Str("business_id", b.ID).Str("timezone", b.Timezone).Msg("invalid timezone, using default")
		return s.config.Location
	}
	return loc
}

func (s *AvailabilityService) publish(eventType, businessID string, open bool, source string, expiresAt *time.Time, at time.Time) {
	if s.bus == nil {
		return
	}
	ev, err := events.NewEvent(eventType, businessID, events.AvailabilityPayload{
		IsOpen:    open,
		Source:    source,
		ExpiresAt: expiresAt,
	}, at)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to build event")
		return
	}
	if err := s.bus.Publish(ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("business_id", businessID).Msg("event handler failed")
	}
}
