package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openhours/internal/models"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "database:\n  path: "+filepath.Join(dir, "db", "test.db")+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.App.Timezone)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval())
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, "configs/businesses.yaml", cfg.BusinessesConfigPath)
	assert.DirExists(t, filepath.Join(dir, "db"))

	s := cfg.DefaultSchedule.Schedule()
	assert.Equal(t, models.NewClock(8, 0), s.Day(models.Monday).Open)
	assert.Equal(t, models.NewClock(23, 0), s.Day(models.Sunday).Close)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("OPENHOURS_TZ", "Europe/Berlin")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  timezone: ${OPENHOURS_TZ}
database:
  path: `+filepath.Join(dir, "test.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }},
		{"negative interval", func(c *Config) { c.Scheduler.IntervalSeconds = -1 }},
		{"bad default time", func(c *Config) { c.DefaultSchedule.WeekdayOpen = "25:00" }},
		{"bad backup cron", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Cron = "every day"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

const businessesYAML = `
businesses:
  - id: cafe-1
    name: Corner Cafe
    timezone: Europe/Berlin
    schedule:
      monday: {enabled: true, open: "08:00", close: "18:00"}
      friday: {enabled: true, open: "22:00", close: "02:00"}
  - id: bar-2
    name: Night Bar
    active: false
`

func TestLoadBusinesses(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", businessesYAML)

	cfg, err := LoadBusinesses(path)
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 2)

	cafe := cfg.Businesses[0]
	assert.True(t, cafe.IsActive())
	assert.Equal(t, "Europe/Berlin", cafe.Model().Timezone)

	s := cafe.Schedule.WeeklySchedule()
	assert.True(t, s.Day(models.Monday).Enabled)
	assert.True(t, s.Day(models.Friday).Overnight())
	assert.False(t, s.Day(models.Tuesday).Enabled)

	bar := cfg.Businesses[1]
	assert.False(t, bar.IsActive())
	assert.Nil(t, bar.Schedule)
}

func TestLoadBusinessesRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing id":   "businesses:\n  - name: x\n",
		"duplicate id": "businesses:\n  - id: a\n  - id: a\n",
		"bad timezone": "businesses:\n  - id: a\n    timezone: Nowhere/Land\n",
		"bad time":     "businesses:\n  - id: a\n    schedule:\n      monday: {enabled: true, open: \"9am\", close: \"17:00\"}\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "businesses.yaml", body)
			_, err := LoadBusinesses(path)
			assert.Error(t, err)
		})
	}
}

func TestWatchBusinesses(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", "businesses:\n  - id: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *BusinessesConfig, 4)
	logger := zerolog.Nop()
	err := WatchBusinesses(ctx, path, 10*time.Millisecond, &logger, func(c *BusinessesConfig) { updates <- c })
	require.NoError(t, err)

	first := <-updates
	require.Len(t, first.Businesses, 1)

	require.NoError(t, os.WriteFile(path, []byte("businesses:\n  - id: a\n  - id: b\n"), 0o600))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case c := <-updates:
		assert.Len(t, c.Businesses, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not pick up the change")
	}
}

// lockedBuffer is written by the watcher goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchBusinessesReportsInvalidReload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", "businesses:\n  - id: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out lockedBuffer
	logger := zerolog.New(&out)
	updates := make(chan *BusinessesConfig, 4)
	require.NoError(t, WatchBusinesses(ctx, path, 10*time.Millisecond, &logger, func(c *BusinessesConfig) { updates <- c }))
	<-updates

	require.NoError(t, os.WriteFile(path, []byte("businesses:\n  - id: a\n  - id: a\n"), 0o600))
	bad := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, bad, bad))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "businesses config rejected")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "duplicate id")
	assert.Contains(t, out.String(), path)
	assert.Empty(t, updates)

	require.NoError(t, os.WriteFile(path, []byte("businesses:\n  - id: a\n  - id: b\n"), 0o600))
	good := bad.Add(time.Second)
	require.NoError(t, os.Chtimes(path, good, good))

	select {
	case c := <-updates:
		assert.Len(t, c.Businesses, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not recover after a valid file")
	}
	assert.Equal(t, 1, strings.Count(out.String(), "businesses config rejected"))
}

func TestValidateReportsDaysInWeekOrder(t *testing.T) {
	body := "businesses:\n  - id: a\n    schedule:\n" +
		"      sunday: {enabled: true, open: \"x\", close: \"17:00\"}\n" +
		"      monday: {enabled: true, open: \"y\", close: \"17:00\"}\n" +
		"      thursday: {enabled: true, open: \"z\", close: \"17:00\"}\n"
	path := writeFile(t, t.TempDir(), "businesses.yaml", body)

	_, err := LoadBusinesses(path)
	require.Error(t, err)
	first := err.Error()
	mon := strings.Index(first, "monday.open")
	thu := strings.Index(first, "thursday.open")
	sun := strings.Index(first, "sunday.open")
	require.True(t, mon >= 0 && thu >= 0 && sun >= 0, first)
	assert.Less(t, mon, thu)
	assert.Less(t, thu, sun)

	for range 5 {
		_, err := LoadBusinesses(path)
		require.Error(t, err)
		assert.Equal(t, first, err.Error())
	}
}
