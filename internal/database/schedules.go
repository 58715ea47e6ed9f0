package database

import (
	"context"
	"fmt"
	"time"

	"openhours/internal/models"
)

// GetSchedule returns the stored weekly schedule, or the default one when the
// business has none. Days missing from storage are read as disabled.
func (db *DB) GetSchedule(ctx context.Context, businessID string) (models.WeeklySchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, enabled, open_time, close_time
		FROM business_schedules
		WHERE business_id = ?`,
		businessID,
	)
	if err != nil {
		return models.WeeklySchedule{}, storeErr("get schedule", err)
	}
	defer rows.Close()

	var schedule models.WeeklySchedule
	found := false
	for rows.Next() {
		var (
			day         int
			enabled     bool
			open, close string
		)
		if err := rows.Scan(&day, &enabled, &open, &close); err != nil {
			return models.WeeklySchedule{}, storeErr("scan schedule", err)
		}
		if day < 1 || day > 7 {
			db.logger.Warn().Str("business_id", businessID).Int("day_of_week", day).Msg("ignoring schedule row with invalid day")
			continue
		}
		found = true
		schedule.SetDay(models.Weekday(day-1), models.DayWindow{
			Enabled: enabled,
			Open:    models.ParseClock(open),
			Close:   models.ParseClock(close),
		})
	}
	if err := rows.Err(); err != nil {
		return models.WeeklySchedule{}, storeErr("iterate schedule", err)
	}
	if !found {
		return db.defaultSchedule, nil
	}
	return schedule, nil
}

// PutSchedule replaces all seven days in one transaction, so a failed save
// leaves the previous schedule intact.
func (db *DB) PutSchedule(ctx context.Context, businessID string, schedule models.WeeklySchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin schedule tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()
	for d, w := range schedule.Days {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO business_schedules (business_id, day_of_week, enabled, open_time, close_time, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(business_id, day_of_week) DO UPDATE SET
				enabled = excluded.enabled,
				open_time = excluded.open_time,
				close_time = excluded.close_time,
				updated_at = excluded.updated_at`,
			businessID, d+1, w.Enabled, w.Open.String(), w.Close.String(), now,
		)
		if err != nil {
			return storeErr(fmt.Sprintf("put schedule day %d", d+1), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit schedule", err)
	}
	return nil
}

// HasSchedule reports whether the business has a stored schedule.
func (db *DB) HasSchedule(ctx context.Context, businessID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM business_schedules WHERE business_id = ?",
		businessID,
	).Scan(&count)
	if err != nil {
		return false, storeErr("count schedule", err)
	}
	return count > 0, nil
}
