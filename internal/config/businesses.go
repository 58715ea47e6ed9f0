package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"openhours/internal/models"
)

// BusinessConfig is one entry of businesses.yaml.
type BusinessConfig struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Timezone string          `yaml:"timezone,omitempty"`
	Active   *bool           `yaml:"active,omitempty"`
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
}

// DayConfig is a single day of a configured schedule.
type DayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Open    string `yaml:"open"`  // "08:00"
	Close   string `yaml:"close"` // "22:00"
}

// ScheduleConfig is the initial weekly schedule seeded for a business.
// Omitted days are closed.
type ScheduleConfig struct {
	Monday    *DayConfig `yaml:"monday,omitempty"`
	Tuesday   *DayConfig `yaml:"tuesday,omitempty"`
	Wednesday *DayConfig `yaml:"wednesday,omitempty"`
	Thursday  *DayConfig `yaml:"thursday,omitempty"`
	Friday    *DayConfig `yaml:"friday,omitempty"`
	Saturday  *DayConfig `yaml:"saturday,omitempty"`
	Sunday    *DayConfig `yaml:"sunday,omitempty"`
}

// BusinessesConfig is the root of businesses.yaml.
type BusinessesConfig struct {
	Businesses []BusinessConfig `yaml:"businesses"`
}

// LoadBusinesses loads and validates the business registry file.
func LoadBusinesses(path string) (*BusinessesConfig, error) {
	if path == "" {
		path = "configs/businesses.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read businesses config: %w", err)
	}

	var cfg BusinessesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse businesses config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate businesses config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *BusinessesConfig) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Businesses))

	for i, b := range c.Businesses {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("business[%d]: id is required", i))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("business[%d]: duplicate id %q", i, id))
		}
		seen[id] = true

		if b.Timezone != "" {
			if _, err := time.LoadLocation(b.Timezone); err != nil {
				errs = append(errs, fmt.Errorf("business %q: timezone: %w", id, err))
			}
		}
		if b.Schedule != nil {
			for i, d := range b.Schedule.days() {
				if d == nil {
					continue
				}
				name := dayNames[i]
				if err := models.ValidateClock(d.Open); err != nil {
					errs = append(errs, fmt.Errorf("business %q: %s.open: %w", id, name, err))
				}
				if err := models.ValidateClock(d.Close); err != nil {
					errs = append(errs, fmt.Errorf("business %q: %s.close: %w", id, name, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}

// IsActive reports whether the business is subscribed; entries without an
// explicit flag are active.
func (b BusinessConfig) IsActive() bool {
	return b.Active == nil || *b.Active
}

// Model converts the entry to a registry record.
func (b BusinessConfig) Model() models.Business {
	return models.Business{
		ID:       strings.TrimSpace(b.ID),
		Name:     b.Name,
		Timezone: b.Timezone,
		Active:   b.IsActive(),
	}
}

var dayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// days returns the configured days in weekday order, Monday first.
func (s *ScheduleConfig) days() [7]*DayConfig {
	return [7]*DayConfig{s.Monday, s.Tuesday, s.Wednesday, s.Thursday, s.Friday, s.Saturday, s.Sunday}
}

// WeeklySchedule converts the configured days into a schedule.
func (s *ScheduleConfig) WeeklySchedule() models.WeeklySchedule {
	var ws models.WeeklySchedule
	for d, day := range s.days() {
		if day == nil {
			continue
		}
		ws.SetDay(models.Weekday(d), models.DayWindow{
			Enabled: day.Enabled,
			Open:    models.ParseClock(day.Open),
			Close:   models.ParseClock(day.Close),
		})
	}
	return ws
}
