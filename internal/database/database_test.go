package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openhours/internal/config"
	"openhours/internal/models"
	"openhours/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), models.DefaultSchedule(), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestScheduleRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.GetSchedule(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSchedule(), s, "unsaved business gets the default")

	has, err := db.HasSchedule(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, has)

	var custom models.WeeklySchedule
	custom.SetDay(models.Friday, models.DayWindow{Enabled: true, Open: models.NewClock(22, 0), Close: models.NewClock(2, 0)}).
		SetDay(models.Monday, models.DayWindow{Enabled: true, Open: models.NewClock(9, 30), Close: models.NewClock(17, 0)})
	require.NoError(t, db.PutSchedule(ctx, "b1", custom))

	got, err := db.GetSchedule(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	has, err = db.HasSchedule(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, has)

	// A second save replaces every day.
	replacement := models.UniformSchedule(models.DayWindow{Enabled: true, Open: models.NewClock(10, 0), Close: models.NewClock(10, 0)})
	require.NoError(t, db.PutSchedule(ctx, "b1", replacement))
	got, err = db.GetSchedule(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, replacement, got)
}

func TestOverrideLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o, err := db.GetOverride(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, o)

	expires := time.Date(2025, 1, 6, 22, 0, 0, 0, time.UTC)
	require.NoError(t, db.PutOverride(ctx, "b1", models.OverrideState{BusinessID: "b1", ForcedOpen: false, ExpiresAt: &expires}))

	o, err = db.GetOverride(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.False(t, o.ForcedOpen)
	require.NotNil(t, o.ExpiresAt)
	assert.True(t, o.ExpiresAt.Equal(expires))

	// Replacing keeps a single row.
	require.NoError(t, db.PutOverride(ctx, "b1", models.OverrideState{BusinessID: "b1", ForcedOpen: true}))
	o, err = db.GetOverride(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, o.ForcedOpen)
	assert.Nil(t, o.ExpiresAt)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM availability_overrides").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.ClearOverride(ctx, "b1"))
	o, err = db.GetOverride(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestAvailabilityRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	open, err := db.GetIsOpen(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, db.SetIsOpen(ctx, "b1", true))
	open, err = db.GetIsOpen(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, db.SetIsOpen(ctx, "b1", false))
	open, err = db.GetIsOpen(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestSyncBusinesses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inactive := false
	cfg := &config.BusinessesConfig{Businesses: []config.BusinessConfig{
		{ID: "a", Name: "Alpha", Timezone: "Europe/Berlin", Schedule: &config.ScheduleConfig{
			Monday: &config.DayConfig{Enabled: true, Open: "07:00", Close: "15:00"},
		}},
		{ID: "b", Name: "Beta", Active: &inactive},
	}}
	seeded, err := db.SyncBusinesses(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, seeded)

	active, err := db.ListActiveBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "Europe/Berlin", active[0].Timezone)

	b, err := db.GetBusiness(ctx, "b")
	require.NoError(t, err)
	assert.False(t, b.Active)

	_, err = db.GetBusiness(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Equal(t, 2, countRows(t, db, "availability_records"), "records are created with the business")
	require.NoError(t, db.SetIsOpen(ctx, "a", true))

	s, err := db.GetSchedule(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.NewClock(7, 0), s.Day(models.Monday).Open)
	assert.False(t, s.Day(models.Tuesday).Enabled)

	// An operator edit survives a reload, and dropped businesses go inactive.
	edited := models.UniformSchedule(models.DayWindow{Enabled: true, Open: models.NewClock(6, 0), Close: models.NewClock(12, 0)})
	require.NoError(t, db.PutSchedule(ctx, "a", edited))

	cfg.Businesses = []config.BusinessConfig{{ID: "c"}}
	seeded, err = db.SyncBusinesses(ctx, cfg)
	require.NoError(t, err)
	assert.Empty(t, seeded)

	active, err = db.ListActiveBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "c", active[0].ID)

	s, err = db.GetSchedule(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, edited, s)

	assert.Equal(t, 3, countRows(t, db, "availability_records"))
	open, err := db.GetIsOpen(ctx, "a")
	require.NoError(t, err)
	assert.True(t, open, "a reload keeps the existing record")
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestAuditEntries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.InsertAuditEntry(ctx, models.AuditEntry{
			BusinessID: "b1",
			EventType:  "availability.changed",
			IsOpen:     i%2 == 0,
			Source:     "schedule",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := db.ListAuditEntries(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].ID)
	assert.True(t, entries[0].CreatedAt.Equal(base))

	n, err := db.DeleteAuditEntriesBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err = db.ListAuditEntries(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBackup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SetIsOpen(ctx, "b1", true))

	dir := t.TempDir()
	logger := zerolog.Nop()
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Path: dir, RetentionDays: 7}, &logger)

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	stale := filepath.Join(dir, "backup_20000101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, path)
}
