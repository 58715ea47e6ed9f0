package availability

import (
	"time"

	"openhours/internal/models"
)

// SearchHorizon bounds the forward scan: one weekly cycle plus a day.
const SearchHorizon = 8 * 24 * time.Hour

// NextTransition scans forward minute by minute from from and returns the
// first instant whose open state differs from the state at from. It reports
// false when the schedule never changes within SearchHorizon.
func NextTransition(schedule models.WeeklySchedule, from time.Time) (time.Time, bool) {
	initial := IsOpen(schedule, from)
	steps := int(SearchHorizon / time.Minute)

	for i := 1; i <= steps; i++ {
		candidate := from.Add(time.Duration(i) * time.Minute)
		if IsOpen(schedule, candidate) != initial {
			return candidate, true
		}
	}
	return time.Time{}, false
}
