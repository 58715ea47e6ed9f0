package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// Midnight is 00:00, also the value malformed input collapses to.
var Midnight = ClockTime{}

// NewClock builds a ClockTime, collapsing out-of-range values to midnight.
func NewClock(hour, minute int) ClockTime {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Midnight
	}
	return ClockTime{Hour: hour, Minute: minute}
}

// ParseClock parses "HH:MM". Anything that is not two in-range integers
// separated by a colon is read as 00:00; callers never see an error.
func ParseClock(s string) ClockTime {
	c, err := parseClockStrict(s)
	if err != nil {
		return Midnight
	}
	return c
}

// ValidateClock reports whether s is a well-formed "HH:MM" value.
// Only configuration validation uses it; runtime parsing stays lenient.
func ValidateClock(s string) error {
	_, err := parseClockStrict(s)
	return err
}

func parseClockStrict(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Midnight, fmt.Errorf("invalid time format: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Midnight, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Midnight, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Midnight, fmt.Errorf("time out of range: %q", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = Midnight
		return nil
	}
	*c = ParseClock(s)
	return nil
}
