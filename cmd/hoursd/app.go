package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"openhours/internal/cache"
	"openhours/internal/config"
	"openhours/internal/database"
	"openhours/internal/events"
	"openhours/internal/repository"
	"openhours/internal/service"
	"openhours/shared/audit"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger

	db     *database.DB
	memory *repository.MemoryStore
	rdb    *redis.Client
	cache  *cache.ScheduleCache

	stores repository.Stores
	audit  audit.Store
	bus    *events.EventBus
	svc    *service.AvailabilityService
}

func newApp(cfg *config.Config, logger *zerolog.Logger, inMemory bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger, bus: events.NewEventBus()}
	defaultSchedule := cfg.DefaultSchedule.Schedule()

	if inMemory {
		a.memory = repository.NewMemoryStore(defaultSchedule)
		a.stores = a.memory.Stores()
		a.audit = a.memory
		logger.Warn().Msg("running with in-memory storage; state is lost on exit")
	} else {
		db, err := database.NewDB(cfg.Database.Path, defaultSchedule, logger)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = db
		a.stores = db.Stores()
		a.audit = db
	}

	if cfg.Redis.Address != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.cache = cache.NewScheduleCache(a.stores.Schedules, a.rdb, cfg.CacheTTL(), logger)
		a.stores.Schedules = a.cache
	}

	audit.NewRecorder(a.audit, logger).Subscribe(a.bus)

	a.svc = service.NewAvailabilityService(a.stores, service.SystemClock{}, a.bus, service.Config{
		StoreTimeout:  cfg.StoreTimeout(),
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		Location:      cfg.Location(),
	}, logger)
	return a, nil
}

// syncBusinesses applies businesses.yaml to whichever store is active.
func (a *app) syncBusinesses(ctx context.Context, bc *config.BusinessesConfig) error {
	if a.db != nil {
		seeded, err := a.db.SyncBusinesses(ctx, bc)
		if a.cache != nil {
			for _, id := range seeded {
				a.cache.Invalidate(ctx, id)
			}
		}
		return err
	}
	return syncMemory(ctx, a.memory, bc)
}

func syncMemory(ctx context.Context, m *repository.MemoryStore, bc *config.BusinessesConfig) error {
	listed := make(map[string]bool, len(bc.Businesses))
	for _, b := range bc.Businesses {
		model := b.Model()
		listed[model.ID] = true
		m.UpsertBusiness(model)

		if b.Schedule == nil {
			continue
		}
		has, err := m.HasSchedule(ctx, model.ID)
		if err != nil {
			return err
		}
		if !has {
			if err := m.PutSchedule(ctx, model.ID, b.Schedule.WeeklySchedule()); err != nil {
				return err
			}
		}
	}

	active, err := m.ListActiveBusinesses(ctx)
	if err != nil {
		return err
	}
	for _, b := range active {
		if !listed[b.ID] {
			b.Active = false
			m.UpsertBusiness(b)
		}
	}
	return nil
}

func (a *app) readinessChecks() map[string]pinger {
	checks := map[string]pinger{}
	if a.db != nil {
		checks["db"] = a.db.PingContext
	}
	if a.cache != nil {
		checks["redis"] = a.cache.Ping
	}
	return checks
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("redis close")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("db close")
		}
	}
}
