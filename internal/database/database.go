package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"openhours/internal/models"
	"openhours/internal/repository"
)

// DB is the SQLite-backed implementation of the repository interfaces.
type DB struct {
	*sql.DB
	path            string
	defaultSchedule models.WeeklySchedule
	logger          *zerolog.Logger
}

var (
	_ repository.ScheduleStore     = (*DB)(nil)
	_ repository.OverrideStore     = (*DB)(nil)
	_ repository.AvailabilityStore = (*DB)(nil)
	_ repository.BusinessStore     = (*DB)(nil)
)

// NewDB opens the database at path and runs migrations. defaultSchedule is
// returned for businesses that have not saved a schedule yet.
func NewDB(path string, defaultSchedule models.WeeklySchedule, logger *zerolog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	l := logger.With().Str("component", "database").Logger()
	return &DB{DB: db, path: path, defaultSchedule: defaultSchedule, logger: &l}, nil
}

// Stores exposes the database through every repository boundary.
func (db *DB) Stores() repository.Stores {
	return repository.Stores{Schedules: db, Overrides: db, Availability: db, Businesses: db}
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// day_of_week: 1=Mon ... 7=Sun
		`CREATE TABLE IF NOT EXISTS business_schedules (
			business_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (business_id, day_of_week)
		)`,

		`CREATE TABLE IF NOT EXISTS availability_overrides (
			business_id TEXT PRIMARY KEY,
			forced_open BOOLEAN NOT NULL,
			expires_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS availability_records (
			business_id TEXT PRIMARY KEY,
			is_open BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS availability_audit (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			is_open BOOLEAN NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_businesses_active ON businesses(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_business_time ON availability_audit(business_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_time ON availability_audit(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// storeErr tags a driver error as a store failure so callers can match
// repository.ErrStoreUnavailable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}
