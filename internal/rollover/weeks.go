// Package rollover implements the scheduled weekly transition: a passive
// watcher that archives completed tasks and carries incomplete ones over to
// the next week, at most once per calendar week, with no server-side cron.
package rollover

import (
	"fmt"
	"time"
)

// dateLayout is the ISO date format used for Monday markers.
const dateLayout = "2006-01-02"

// Schedule is the configured weekly trigger: transition on this day once
// this hour is reached.
type Schedule struct {
	Weekday time.Weekday
	Hour    int
}

// Validate checks the schedule holds a real day and hour.
func (s Schedule) Validate() error {
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return fmt.Errorf("invalid weekday: %d (must be 0-6)", s.Weekday)
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("invalid hour: %d (must be 0-23)", s.Hour)
	}
	return nil
}

// MondayOf returns the ISO date of the Monday of the week containing t.
func MondayOf(t time.Time) string {
	return t.AddDate(0, 0, -weekIndex(t.Weekday())).Format(dateLayout)
}

// weekIndex maps a weekday onto a Monday-based index (Mon=0 ... Sun=6),
// which makes "on/after the trigger day" a plain comparison even when the
// trigger day is Sunday.
func weekIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Eligible reports whether the automatic transition may fire at the given
// moment: the current day matches the configured day and the configured
// hour has been reached.
func Eligible(now time.Time, s Schedule) bool {
	return now.Weekday() == s.Weekday && now.Hour() >= s.Hour
}

// DisplayWeekMonday returns the Monday of the week the user should be
// viewing. Normally that is the real current week; but when the marker says
// this week's transition already ran and the current moment is still inside
// the post-transition window (on or after the trigger day), the displayed
// week shifts forward by seven days so the board shows "next week"
// immediately after an end-of-week transition.
func DisplayWeekMonday(now time.Time, marker string, s Schedule) string {
	monday := MondayOf(now)
	if marker != monday {
		return monday
	}

	nowIdx, trigIdx := weekIndex(now.Weekday()), weekIndex(s.Weekday)
	if nowIdx > trigIdx || (nowIdx == trigIdx && now.Hour() >= s.Hour) {
		return now.AddDate(0, 0, 7-weekIndex(now.Weekday())).Format(dateLayout)
	}

	return monday
}
