// Package availability decides whether a business is open from its weekly
// schedule and any operator override.
package availability

import (
	"time"

	"openhours/internal/models"
)

// MinuteOfDay returns minutes since local midnight of at.
func MinuteOfDay(at time.Time) int {
	return at.Hour()*60 + at.Minute()
}

// IsOpen evaluates the schedule at the wall-clock time of at, in at's location.
// An overnight window from the previous day still counts until its close time.
func IsOpen(schedule models.WeeklySchedule, at time.Time) bool {
	today := models.WeekdayOf(at)
	now := MinuteOfDay(at)

	if w := schedule.Day(today); w.Enabled && inRange(now, w.Open.Minutes(), w.Close.Minutes()) {
		return true
	}

	prev := schedule.Day(today.Prev())
	return prev.Enabled && prev.Overnight() && now < prev.Close.Minutes()
}

func inRange(now, openMin, closeMin int) bool {
	switch {
	case openMin == closeMin:
		return true
	case openMin < closeMin:
		return now >= openMin && now < closeMin
	default:
		return now >= openMin || now < closeMin
	}
}
