package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"openhours/internal/models"
)

// GetOverride returns the active override row, or nil when none exists.
func (db *DB) GetOverride(ctx context.Context, businessID string) (*models.OverrideState, error) {
	var (
		o         models.OverrideState
		expiresAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT business_id, forced_open, expires_at, created_at
		FROM availability_overrides
		WHERE business_id = ?`,
		businessID,
	).Scan(&o.BusinessID, &o.ForcedOpen, &expiresAt, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get override", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		o.ExpiresAt = &t
	}
	return &o, nil
}

// PutOverride creates or atomically replaces the business's override.
func (db *DB) PutOverride(ctx context.Context, businessID string, o models.OverrideState) error {
	var expiresAt sql.NullTime
	if o.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *o.ExpiresAt, Valid: true}
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_overrides (business_id, forced_open, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(business_id) DO UPDATE SET
			forced_open = excluded.forced_open,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		businessID, o.ForcedOpen, expiresAt, createdAt,
	)
	if err != nil {
		return storeErr("put override", err)
	}
	return nil
}

// ClearOverride removes the business's override, if any.
func (db *DB) ClearOverride(ctx context.Context, businessID string) error {
	if _, err := db.ExecContext(ctx,
		"DELETE FROM availability_overrides WHERE business_id = ?",
		businessID,
	); err != nil {
		return storeErr("clear override", err)
	}
	return nil
}
