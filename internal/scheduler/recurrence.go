package scheduler

import (
	"time"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

// NextOccurrence advances the schedule's start by one recurrence step. It
// returns false for recurrences that cannot be advanced (none, custom, or an
// unknown value). The step is anchored on the start, never on now, so a late
// run does not shift the series. The result is not checked against the
// schedule's end time.
func NextOccurrence(s model.Schedule, now time.Time) (time.Time, bool) {
	switch s.Recurrence {
	case model.RecurrenceDaily:
		return s.StartTime.AddDate(0, 0, 1), true
	case model.RecurrenceWeekly:
		return s.StartTime.AddDate(0, 0, 7), true
	case model.RecurrenceMonthly:
		return addMonth(s.StartTime), true
	default:
		return time.Time{}, false
	}
}

// addMonth moves t into the following month, clamping the day to the last day
// of that month (Jan 31 becomes Feb 28 or 29).
func addMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
