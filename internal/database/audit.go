package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"openhours/internal/models"
)

// InsertAuditEntry appends an entry, assigning an id when it has none.
func (db *DB) InsertAuditEntry(ctx context.Context, e models.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var expiresAt sql.NullTime
	if e.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *e.ExpiresAt, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_audit (id, business_id, event_type, is_open, source, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BusinessID, e.EventType, e.IsOpen, e.Source, expiresAt, e.CreatedAt.UTC(),
	)
	if err != nil {
		return storeErr("insert audit entry", err)
	}
	return nil
}

// ListAuditEntries returns entries created in [from, to), oldest first.
func (db *DB) ListAuditEntries(ctx context.Context, from, to time.Time) ([]models.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, event_type, is_open, source, expires_at, created_at
		FROM availability_audit
		WHERE created_at >= ? AND created_at < ?
		ORDER BY business_id, created_at`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, storeErr("list audit entries", err)
	}
	defer rows.Close()

	var result []models.AuditEntry
	for rows.Next() {
		var (
			e         models.AuditEntry
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.EventType, &e.IsOpen, &e.Source, &expiresAt, &e.CreatedAt); err != nil {
			return nil, storeErr("scan audit entry", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			e.ExpiresAt = &t
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate audit entries", err)
	}
	return result, nil
}

// DeleteAuditEntriesBefore prunes entries older than cutoff and returns how
// many were removed.
func (db *DB) DeleteAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM availability_audit WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, storeErr("delete audit entries", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
