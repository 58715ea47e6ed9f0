package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"openhours/internal/service"
)

// TickRunner reconciles every active business once.
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) service.TickStats
}

// Config holds configuration for the reconciliation loop.
type Config struct {
	// Interval between ticks.
	// Default: 60 seconds.
	Interval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{Interval: time.Minute}
}

// Scheduler drives periodic reconciliation. It runs once on start, then on
// every interval, and again whenever Trigger is called.
type Scheduler struct {
	config  Config
	runner  TickRunner
	clock   service.Clock
	logger  *zerolog.Logger
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a new reconciliation scheduler.
func NewScheduler(config Config, runner TickRunner, clock service.Clock, logger *zerolog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if clock == nil {
		clock = service.SystemClock{}
	}
	l := logger.With().Str("component", "scheduler").Logger()

	return &Scheduler{
		config:  config,
		runner:  runner,
		clock:   clock,
		logger:  &l,
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the loop in the background. Cancelling ctx stops it like Stop
// does, but an in-flight tick still finishes its started businesses.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, stopCh)

	s.logger.Info().Dur("interval", s.config.Interval).Msg("reconciliation scheduler started")
}

// Stop stops the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info().Msg("reconciliation scheduler stopped")
}

// Trigger requests an out-of-band tick. Requests made while one is already
// pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunNow runs a tick synchronously.
func (s *Scheduler) RunNow(ctx context.Context) service.TickStats {
	return s.tick(ctx, "manual")
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.tick(ctx, "startup")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.stopCh == stopCh {
				s.running = false
			}
			s.mu.Unlock()
			s.logger.Info().Msg("reconciliation scheduler stopped by context")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(ctx, "timer")
		case <-s.trigger:
			s.tick(ctx, "trigger")
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, reason string) service.TickStats {
	tickID := uuid.NewString()
	stats := s.runner.RunTick(ctx, s.clock.Now())

	ev := s.logger.Debug()
	if stats.Failed > 0 || stats.Skipped > 0 {
		ev = s.logger.Warn()
	}
	ev.Str("tick_id", tickID).
		Str("reason", reason).
		Int("total", stats.Total).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Dur("duration", stats.Duration).
		Msg("tick finished")
	return stats
}
