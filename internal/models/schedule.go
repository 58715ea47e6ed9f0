package models

import (
	"encoding/json"
	"time"
)

// Weekday indexes a WeeklySchedule. Monday is 0, Sunday is 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// WeekdayOf converts Go's Sunday-first weekday to the Monday-first index.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Prev returns the calendar day before d.
func (d Weekday) Prev() Weekday {
	return (d + 6) % 7
}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "unknown"
	}
	return weekdayNames[d]
}

// DayWindow is one day's trading window. Open == Close means open all day.
type DayWindow struct {
	Enabled bool      `json:"enabled"`
	Open    ClockTime `json:"open"`
	Close   ClockTime `json:"close"`
}

// Overnight reports whether the window runs past midnight into the next day.
func (w DayWindow) Overnight() bool {
	return w.Open.Minutes() > w.Close.Minutes()
}

// FullDay reports whether the window covers the whole day.
func (w DayWindow) FullDay() bool {
	return w.Open == w.Close
}

// WeeklySchedule maps every day of the week to exactly one DayWindow.
type WeeklySchedule struct {
	Days [7]DayWindow
}

// Day returns the window configured for d.
func (s WeeklySchedule) Day(d Weekday) DayWindow {
	return s.Days[d]
}

// SetDay replaces the window for a single day. Persisting the result still
// goes through a full schedule replacement.
func (s *WeeklySchedule) SetDay(d Weekday, w DayWindow) *WeeklySchedule {
	s.Days[d] = w
	return s
}

// UniformSchedule applies the same window to all seven days.
func UniformSchedule(w DayWindow) WeeklySchedule {
	var s WeeklySchedule
	for d := range s.Days {
		s.Days[d] = w
	}
	return s
}

// SplitSchedule uses one window Monday to Friday and another on the weekend.
func SplitSchedule(weekday, weekend DayWindow) WeeklySchedule {
	s := UniformSchedule(weekday)
	s.SetDay(Saturday, weekend).SetDay(Sunday, weekend)
	return s
}

// DefaultSchedule is applied to businesses that have never saved a schedule.
func DefaultSchedule() WeeklySchedule {
	return SplitSchedule(
		DayWindow{Enabled: true, Open: NewClock(8, 0), Close: NewClock(22, 0)},
		DayWindow{Enabled: true, Open: NewClock(9, 0), Close: NewClock(23, 0)},
	)
}

type weeklyScheduleJSON struct {
	Monday    DayWindow `json:"monday"`
	Tuesday   DayWindow `json:"tuesday"`
	Wednesday DayWindow `json:"wednesday"`
	Thursday  DayWindow `json:"thursday"`
	Friday    DayWindow `json:"friday"`
	Saturday  DayWindow `json:"saturday"`
	Sunday    DayWindow `json:"sunday"`
}

func (s WeeklySchedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(weeklyScheduleJSON{
		Monday:    s.Days[Monday],
		Tuesday:   s.Days[Tuesday],
		Wednesday: s.Days[Wednesday],
		Thursday:  s.Days[Thursday],
		Friday:    s.Days[Friday],
		Saturday:  s.Days[Saturday],
		Sunday:    s.Days[Sunday],
	})
}

// UnmarshalJSON reads the day-keyed object form. Days absent from the
// payload are left disabled.
func (s *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var raw weeklyScheduleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Days = [7]DayWindow{
		raw.Monday, raw.Tuesday, raw.Wednesday, raw.Thursday,
		raw.Friday, raw.Saturday, raw.Sunday,
	}
	return nil
}
