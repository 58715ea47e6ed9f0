package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Maintenance runs housekeeping jobs (backups, audit retention) on cron
// expressions evaluated in a fixed location.
type Maintenance struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zerolog.Logger
}

func NewMaintenance(loc *time.Location, logger *zerolog.Logger) *Maintenance {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "maintenance").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	return &Maintenance{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: &l,
	}
}

// AddJob registers fn under a standard five-field cron spec.
func (m *Maintenance) AddJob(name, spec string, fn func(ctx context.Context)) error {
	_, err := m.cron.AddFunc(spec, func() {
		start := time.Now()
		m.logger.Info().Str("job", name).Msg("maintenance job started")
		fn(m.ctx)
		m.logger.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("maintenance job finished")
	})
	if err != nil {
		return fmt.Errorf("add %s job %q: %w", name, spec, err)
	}
	m.logger.Info().Str("job", name).Str("schedule", spec).Msg("maintenance job registered")
	return nil
}

func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop prevents new runs and waits for running jobs, up to ctx's deadline.
func (m *Maintenance) Stop(ctx context.Context) {
	done := m.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		m.logger.Warn().Msg("maintenance jobs still running at shutdown")
	}
	m.cancel()
}

// Len returns the number of registered jobs.
func (m *Maintenance) Len() int {
	return len(m.cron.Entries())
}
