package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"openhours/internal/models"
)

type Config struct {
	App struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Logging LoggingConfig `yaml:"logging"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Scheduler struct {
		IntervalSeconds     int `yaml:"interval_seconds"`
		StoreTimeoutSeconds int `yaml:"store_timeout_seconds"`
		MaxConcurrent       int `yaml:"max_concurrent"`
	} `yaml:"scheduler"`

	API struct {
		Enabled             bool    `yaml:"enabled"`
		Port                int     `yaml:"port"`
		ToggleRatePerSecond float64 `yaml:"toggle_rate_per_second"`
		ToggleBurst         int     `yaml:"toggle_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup BackupConfig `yaml:"backup"`

	Audit struct {
		RetentionDays int    `yaml:"retention_days"`
		CleanupCron   string `yaml:"cleanup_cron"`
	} `yaml:"audit"`

	DefaultSchedule DefaultScheduleConfig `yaml:"default_schedule"`

	BusinessesConfigPath string `yaml:"businesses_config_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Cron          string `yaml:"cron"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultScheduleConfig is the schedule given to businesses that never saved one.
type DefaultScheduleConfig struct {
	WeekdayOpen  string `yaml:"weekday_open"`
	WeekdayClose string `yaml:"weekday_close"`
	WeekendOpen  string `yaml:"weekend_open"`
	WeekendClose string `yaml:"weekend_close"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	// Missing .env is fine; real environment wins over it.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/openhours.db"
	}
	if c.Redis.CacheTTLSeconds <= 0 {
		c.Redis.CacheTTLSeconds = 300
	}
	if c.Scheduler.IntervalSeconds == 0 {
		c.Scheduler.IntervalSeconds = 60
	}
	if c.Scheduler.StoreTimeoutSeconds == 0 {
		c.Scheduler.StoreTimeoutSeconds = 5
	}
	if c.Scheduler.MaxConcurrent == 0 {
		c.Scheduler.MaxConcurrent = 8
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.ToggleRatePerSecond == 0 {
		c.API.ToggleRatePerSecond = 5
	}
	if c.API.ToggleBurst == 0 {
		c.API.ToggleBurst = 10
	}
	if c.Backup.Cron == "" {
		c.Backup.Cron = "0 3 * * *"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Audit.CleanupCron == "" {
		c.Audit.CleanupCron = "30 3 * * *"
	}
	d := &c.DefaultSchedule
	if d.WeekdayOpen == "" {
		d.WeekdayOpen = "08:00"
	}
	if d.WeekdayClose == "" {
		d.WeekdayClose = "22:00"
	}
	if d.WeekendOpen == "" {
		d.WeekendOpen = "09:00"
	}
	if d.WeekendClose == "" {
		d.WeekendClose = "23:00"
	}
	if c.BusinessesConfigPath == "" {
		c.BusinessesConfigPath = "configs/businesses.yaml"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone %q: %w", c.App.Timezone, err))
	}
	if c.Scheduler.IntervalSeconds < 0 {
		errs = append(errs, errors.New("scheduler.interval_seconds must be positive"))
	}
	if c.Scheduler.StoreTimeoutSeconds < 0 {
		errs = append(errs, errors.New("scheduler.store_timeout_seconds must be positive"))
	}
	if c.Scheduler.MaxConcurrent < 0 {
		errs = append(errs, errors.New("scheduler.max_concurrent must be positive"))
	}
	if c.API.ToggleRatePerSecond < 0 || c.API.ToggleBurst < 0 {
		errs = append(errs, errors.New("api toggle rate limits must be positive"))
	}

	d := c.DefaultSchedule
	for field, v := range map[string]string{
		"weekday_open":  d.WeekdayOpen,
		"weekday_close": d.WeekdayClose,
		"weekend_open":  d.WeekendOpen,
		"weekend_close": d.WeekendClose,
	} {
		if err := models.ValidateClock(v); err != nil {
			errs = append(errs, fmt.Errorf("default_schedule.%s: %w", field, err))
		}
	}

	if c.Backup.Enabled {
		if _, err := cron.ParseStandard(c.Backup.Cron); err != nil {
			errs = append(errs, fmt.Errorf("backup.cron %q: %w", c.Backup.Cron, err))
		}
	}
	if c.Audit.RetentionDays > 0 {
		if _, err := cron.ParseStandard(c.Audit.CleanupCron); err != nil {
			errs = append(errs, fmt.Errorf("audit.cleanup_cron %q: %w", c.Audit.CleanupCron, err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the fallback timezone for businesses without their own.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Scheduler.StoreTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// Schedule builds the default weekly schedule: weekday hours Monday to
// Friday, weekend hours Saturday and Sunday.
func (d DefaultScheduleConfig) Schedule() models.WeeklySchedule {
	return models.SplitSchedule(
		models.DayWindow{Enabled: true, Open: models.ParseClock(d.WeekdayOpen), Close: models.ParseClock(d.WeekdayClose)},
		models.DayWindow{Enabled: true, Open: models.ParseClock(d.WeekendOpen), Close: models.ParseClock(d.WeekendClose)},
	)
}
