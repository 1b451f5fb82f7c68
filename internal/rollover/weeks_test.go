package rollover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// at builds a local time on the given date and hour.
func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, Schedule{Weekday: time.Friday, Hour: 17}.Validate())
	assert.Error(t, Schedule{Weekday: 7, Hour: 17}.Validate())
	assert.Error(t, Schedule{Weekday: time.Friday, Hour: 24}.Validate())
	assert.Error(t, Schedule{Weekday: time.Friday, Hour: -1}.Validate())
}

func TestMondayOf(t *testing.T) {
	// 2026-08-24 is a Monday.
	assert.Equal(t, "2026-08-24", MondayOf(at(2026, time.August, 24, 9)))  // Monday itself
	assert.Equal(t, "2026-08-24", MondayOf(at(2026, time.August, 26, 12))) // Wednesday
	assert.Equal(t, "2026-08-24", MondayOf(at(2026, time.August, 28, 23))) // Friday

	t.Run("Sunday belongs to the week that started the previous Monday", func(t *testing.T) {
		assert.Equal(t, "2026-08-24", MondayOf(at(2026, time.August, 30, 10)))
	})
}

func TestEligible(t *testing.T) {
	friday17 := Schedule{Weekday: time.Friday, Hour: 17}

	assert.False(t, Eligible(at(2026, time.August, 28, 16), friday17), "Friday before the hour")
	assert.True(t, Eligible(at(2026, time.August, 28, 17), friday17), "Friday at the hour")
	assert.True(t, Eligible(at(2026, time.August, 28, 22), friday17), "Friday after the hour")
	assert.False(t, Eligible(at(2026, time.August, 27, 18), friday17), "Thursday")
	assert.False(t, Eligible(at(2026, time.August, 29, 18), friday17), "Saturday")
}

func TestDisplayWeekMonday(t *testing.T) {
	friday17 := Schedule{Weekday: time.Friday, Hour: 17}

	t.Run("no marker shows the real week", func(t *testing.T) {
		got := DisplayWeekMonday(at(2026, time.August, 28, 18), "", friday17)
		assert.Equal(t, "2026-08-24", got)
	})

	t.Run("stale marker from a previous week shows the real week", func(t *testing.T) {
		got := DisplayWeekMonday(at(2026, time.August, 26, 12), "2026-08-17", friday17)
		assert.Equal(t, "2026-08-24", got)
	})

	t.Run("after the transition the board shows next week", func(t *testing.T) {
		// Friday evening, transition already ran.
		got := DisplayWeekMonday(at(2026, time.August, 28, 18), "2026-08-24", friday17)
		assert.Equal(t, "2026-08-31", got)

		// Saturday and Sunday stay on next week.
		got = DisplayWeekMonday(at(2026, time.August, 29, 9), "2026-08-24", friday17)
		assert.Equal(t, "2026-08-31", got)
		got = DisplayWeekMonday(at(2026, time.August, 30, 22), "2026-08-24", friday17)
		assert.Equal(t, "2026-08-31", got)
	})

	t.Run("marker present but before the trigger shows the current week", func(t *testing.T) {
		// A manual transition ran on Wednesday; until Friday 17:00 the
		// board keeps showing the current week.
		got := DisplayWeekMonday(at(2026, time.August, 26, 12), "2026-08-24", friday17)
		assert.Equal(t, "2026-08-24", got)
	})

	t.Run("Sunday trigger", func(t *testing.T) {
		sunday20 := Schedule{Weekday: time.Sunday, Hour: 20}

		// Sunday 21:00 with this week's marker: show next week.
		got := DisplayWeekMonday(at(2026, time.August, 30, 21), "2026-08-24", sunday20)
		assert.Equal(t, "2026-08-31", got)

		// Sunday 19:00: still the current week.
		got = DisplayWeekMonday(at(2026, time.August, 30, 19), "2026-08-24", sunday20)
		assert.Equal(t, "2026-08-24", got)
	})
}
