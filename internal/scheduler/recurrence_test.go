package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

func TestNextOccurrence(t *testing.T) {
	at := func(s string) time.Time {
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	cases := []struct {
		rec   model.Recurrence
		start string
		want  string
	}{
		{model.RecurrenceDaily, "2023-01-15T10:00:00Z", "2023-01-16T10:00:00Z"},
		{model.RecurrenceWeekly, "2023-01-15T10:00:00Z", "2023-01-22T10:00:00Z"},
		{model.RecurrenceMonthly, "2023-01-15T10:00:00Z", "2023-02-15T10:00:00Z"},
		{model.RecurrenceMonthly, "2023-01-31T10:00:00Z", "2023-02-28T10:00:00Z"},
		{model.RecurrenceMonthly, "2024-01-31T10:00:00Z", "2024-02-29T10:00:00Z"},
		{model.RecurrenceMonthly, "2023-12-31T23:30:00Z", "2024-01-31T23:30:00Z"},
		{model.RecurrenceDaily, "2023-12-31T22:00:00Z", "2024-01-01T22:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(string(tc.rec)+" "+tc.start, func(t *testing.T) {
			next, ok := NextOccurrence(model.Schedule{Recurrence: tc.rec, StartTime: at(tc.start)}, at(tc.start))
			assert.True(t, ok)
			assert.True(t, next.Equal(at(tc.want)), "got %s", next)
		})
	}
}

func TestNextOccurrenceNotRecurring(t *testing.T) {
	start := time.Date(2023, 1, 15, 10, 0, 0, 0, time.UTC)
	for _, rec := range []model.Recurrence{model.RecurrenceNone, model.RecurrenceCustom, "fortnightly"} {
		_, ok := NextOccurrence(model.Schedule{Recurrence: rec, StartTime: start}, start)
		assert.False(t, ok, rec)
	}
}

func TestNextOccurrenceIgnoresNow(t *testing.T) {
	start := time.Date(2023, 1, 15, 10, 0, 0, 0, time.UTC)
	sc := model.Schedule{Recurrence: model.RecurrenceDaily, StartTime: start}

	early, ok := NextOccurrence(sc, start)
	assert.True(t, ok)
	late, ok := NextOccurrence(sc, start.Add(72*time.Hour))
	assert.True(t, ok)
	assert.True(t, early.Equal(late))
	assert.True(t, late.Equal(start.AddDate(0, 0, 1)), "got %s", late)
}
