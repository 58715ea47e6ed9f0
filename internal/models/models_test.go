package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want ClockTime
	}{
		{"08:30", ClockTime{Hour: 8, Minute: 30}},
		{"23:59", ClockTime{Hour: 23, Minute: 59}},
		{" 7:05 ", ClockTime{Hour: 7, Minute: 5}},
		{"00:00", Midnight},
		{"", Midnight},
		{"abc", Midnight},
		{"12:xx", Midnight},
		{"24:00", Midnight},
		{"10:60", Midnight},
		{"1:2:3", Midnight},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClock(tt.in))
		})
	}
}

func TestValidateClock(t *testing.T) {
	assert.NoError(t, ValidateClock("09:15"))
	assert.Error(t, ValidateClock("9"))
	assert.Error(t, ValidateClock("25:00"))
}

func TestClockMinutes(t *testing.T) {
	assert.Equal(t, 0, Midnight.Minutes())
	assert.Equal(t, 22*60, NewClock(22, 0).Minutes())
	assert.Equal(t, 1439, NewClock(23, 59).Minutes())
	assert.Equal(t, "07:05", NewClock(7, 5).String())
	assert.Equal(t, Midnight, NewClock(30, 0))
}

func TestWeekdayOf(t *testing.T) {
	// 2025-01-06 is a Monday.
	monday := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Monday, WeekdayOf(monday))
	assert.Equal(t, Saturday, WeekdayOf(monday.AddDate(0, 0, 5)))
	assert.Equal(t, Sunday, WeekdayOf(monday.AddDate(0, 0, 6)))
	assert.Equal(t, Sunday, Monday.Prev())
	assert.Equal(t, Friday, Saturday.Prev())
}

func TestScheduleJSON(t *testing.T) {
	s := DefaultSchedule()
	s.SetDay(Wednesday, DayWindow{Enabled: false, Open: NewClock(10, 0), Close: NewClock(2, 0)})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"monday":{"enabled":true,"open":"08:00","close":"22:00"}`)

	var back WeeklySchedule
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
	assert.True(t, back.Day(Wednesday).Overnight())
}

func TestScheduleJSONLenient(t *testing.T) {
	payload := `{"friday":{"enabled":true,"open":"bad","close":"02:00"},"sunday":{"enabled":true,"open":7,"close":"11:00"}}`

	var s WeeklySchedule
	require.NoError(t, json.Unmarshal([]byte(payload), &s))

	assert.Equal(t, Midnight, s.Day(Friday).Open)
	assert.Equal(t, NewClock(2, 0), s.Day(Friday).Close)
	assert.Equal(t, Midnight, s.Day(Sunday).Open)
	assert.False(t, s.Day(Monday).Enabled, "missing days stay disabled")
}

func TestOverrideExpired(t *testing.T) {
	now := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)

	var none *OverrideState
	assert.False(t, none.Expired(now))
	assert.False(t, (&OverrideState{ForcedOpen: true}).Expired(now.AddDate(1, 0, 0)))

	o := &OverrideState{ExpiresAt: &exp}
	assert.False(t, o.Expired(now))
	assert.True(t, o.Expired(exp))
	assert.True(t, o.Expired(exp.Add(time.Minute)))
}
