// Package cache puts a Redis read-through layer in front of schedule storage.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"openhours/internal/models"
	"openhours/internal/repository"
)

const keyPrefix = "openhours:schedule:"

var errSuperseded = errors.New("schedule superseded")

// ScheduleCache wraps a ScheduleStore. Reads hit Redis first and fall back to
// the store; writes go to the store and then replace the cached copy.
//
// Every save bumps a per-business generation key. A read only fills the cache
// if the generation it saw before reading the store is still current, so a
// slow read can never overwrite a newer save. Redis failures never fail a
// call; a business whose cached copy could not be refreshed after a save
// bypasses Redis until its key is successfully dropped.
type ScheduleCache struct {
	next   repository.ScheduleStore
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger

	mu    sync.Mutex
	stale map[string]struct{}
}

var _ repository.ScheduleStore = (*ScheduleCache)(nil)

func NewScheduleCache(next repository.ScheduleStore, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *ScheduleCache {
	l := logger.With().Str("component", "schedule_cache").Logger()
	return &ScheduleCache{next: next, redis: client, ttl: ttl, logger: &l, stale: make(map[string]struct{})}
}

func cacheKey(businessID string) string {
	return keyPrefix + businessID
}

func genKey(businessID string) string {
	return "openhours:schedule_gen:" + businessID
}

func (c *ScheduleCache) GetSchedule(ctx context.Context, businessID string) (models.WeeklySchedule, error) {
	if !c.enabled() || !c.repair(ctx, businessID) {
		return c.next.GetSchedule(ctx, businessID)
	}

	var s models.WeeklySchedule
	if c.readCache(ctx, cacheKey(businessID), &s) {
		return s, nil
	}

	gen, err := c.redis.Get(ctx, genKey(businessID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Debug().Err(err).Str("business_id", businessID).Msg("cache generation read failed")
		return c.next.GetSchedule(ctx, businessID)
	}

	s, err = c.next.GetSchedule(ctx, businessID)
	if err != nil {
		return models.WeeklySchedule{}, err
	}
	c.fill(ctx, businessID, gen, s)
	return s, nil
}

func (c *ScheduleCache) PutSchedule(ctx context.Context, businessID string, schedule models.WeeklySchedule) error {
	if err := c.next.PutSchedule(ctx, businessID, schedule); err != nil {
		return err
	}
	if !c.enabled() {
		return nil
	}

	data, err := json.Marshal(schedule)
	if err == nil {
		_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, genKey(businessID))
			pipe.Set(ctx, cacheKey(businessID), data, c.ttl)
			return nil
		})
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("business_id", businessID).Msg("cache refresh failed, bypassing cache")
		c.markStale(businessID)
	}
	return nil
}

// Invalidate drops the cached schedule of a business and stops in-flight
// reads from filling it with what they loaded.
func (c *ScheduleCache) Invalidate(ctx context.Context, businessID string) {
	if !c.enabled() {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(businessID))
		pipe.Del(ctx, cacheKey(businessID))
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("business_id", businessID).Msg("cache invalidate failed, bypassing cache")
		c.markStale(businessID)
	}
}

// fill caches s unless a save happened since gen was read.
func (c *ScheduleCache) fill(ctx context.Context, businessID, gen string, s models.WeeklySchedule) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(businessID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errSuperseded
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(businessID), data, c.ttl)
			return nil
		})
		return err
	}, genKey(businessID))
	switch {
	case err == nil:
	case errors.Is(err, errSuperseded), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug().Str("business_id", businessID).Msg("schedule changed during read, not cached")
	default:
		c.logger.Debug().Err(err).Str("business_id", businessID).Msg("cache write failed")
	}
}

// repair reports whether the cache may be used for businessID. A business
// marked stale is usable again once its cached copy is dropped.
func (c *ScheduleCache) repair(ctx context.Context, businessID string) bool {
	c.mu.Lock()
	_, stale := c.stale[businessID]
	c.mu.Unlock()
	if !stale {
		return true
	}

	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(businessID))
		pipe.Del(ctx, cacheKey(businessID))
		return nil
	})
	if err != nil {
		return false
	}
	c.mu.Lock()
	delete(c.stale, businessID)
	c.mu.Unlock()
	c.logger.Info().Str("business_id", businessID).Msg("stale cache entry dropped")
	return true
}

func (c *ScheduleCache) markStale(businessID string) {
	c.mu.Lock()
	c.stale[businessID] = struct{}{}
	c.mu.Unlock()
}

func (c *ScheduleCache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

// Ping reports whether Redis is reachable.
func (c *ScheduleCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *ScheduleCache) readCache(ctx context.Context, key string, out any) bool {
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}
