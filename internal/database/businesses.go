package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"openhours/internal/config"
	"openhours/internal/models"
	"openhours/internal/repository"
)

func (db *DB) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	var b models.Business
	err := db.QueryRowContext(ctx, `
		SELECT id, name, timezone, is_active, created_at, updated_at
		FROM businesses
		WHERE id = ?`,
		businessID,
	).Scan(&b.ID, &b.Name, &b.Timezone, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get business", err)
	}
	return &b, nil
}

func (db *DB) ListActiveBusinesses(ctx context.Context) ([]models.Business, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, timezone, is_active, created_at, updated_at
		FROM businesses
		WHERE is_active = 1
		ORDER BY id`)
	if err != nil {
		return nil, storeErr("list businesses", err)
	}
	defer rows.Close()

	var result []models.Business
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Timezone, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, storeErr("scan business", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate businesses", err)
	}
	return result, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsertBusiness creates the business or updates its name, timezone and
// active flag, keeping created_at. A new business gets a closed availability
// record; an existing record is left alone.
func upsertBusiness(ctx context.Context, ex execer, b models.Business, now time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO businesses (id, name, timezone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		b.ID, b.Name, b.Timezone, b.Active, now, now,
	)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO availability_records (business_id, is_open, updated_at)
		VALUES (?, 0, ?)
		ON CONFLICT(business_id) DO NOTHING`,
		b.ID, now,
	)
	return err
}

// SyncBusinesses applies businesses.yaml to the registry. Businesses missing
// from the file are deactivated, and a configured schedule is seeded only
// when the business has none stored so operator edits survive reloads.
// It returns the ids whose schedule was seeded.
func (db *DB) SyncBusinesses(ctx context.Context, cfg *config.BusinessesConfig) ([]string, error) {
	if cfg == nil {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin sync tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()
	if _, err := tx.ExecContext(ctx, "UPDATE businesses SET is_active = 0, updated_at = ?", now); err != nil {
		return nil, storeErr("deactivate businesses", err)
	}

	for _, bc := range cfg.Businesses {
		b := bc.Model()
		if err := upsertBusiness(ctx, tx, b, now); err != nil {
			return nil, storeErr("sync business "+b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit sync", err)
	}

	var seeded []string
	for _, bc := range cfg.Businesses {
		if bc.Schedule == nil {
			continue
		}
		id := bc.Model().ID
		has, err := db.HasSchedule(ctx, id)
		if err != nil {
			return seeded, err
		}
		if has {
			continue
		}
		if err := db.PutSchedule(ctx, id, bc.Schedule.WeeklySchedule()); err != nil {
			return seeded, err
		}
		seeded = append(seeded, id)
		db.logger.Info().Str("business_id", id).Msg("seeded schedule from config")
	}

	db.logger.Info().Int("businesses", len(cfg.Businesses)).Int("seeded", len(seeded)).Msg("business registry synced")
	return seeded, nil
}
