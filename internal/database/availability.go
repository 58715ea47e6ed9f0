package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetIsOpen returns the persisted open flag; a business without a record is closed.
func (db *DB) GetIsOpen(ctx context.Context, businessID string) (bool, error) {
	var open bool
	err := db.QueryRowContext(ctx,
		"SELECT is_open FROM availability_records WHERE business_id = ?",
		businessID,
	).Scan(&open)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("get availability", err)
	}
	return open, nil
}

// SetIsOpen writes the open flag.
func (db *DB) SetIsOpen(ctx context.Context, businessID string, open bool) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_records (business_id, is_open, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(business_id) DO UPDATE SET
			is_open = excluded.is_open,
			updated_at = excluded.updated_at`,
		businessID, open, time.Now(),
	)
	if err != nil {
		return storeErr("set availability", err)
	}
	return nil
}
