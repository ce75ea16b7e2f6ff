package scheduler

import "github.com/Nixie-Tech-LLC/platter/internal/model"

// Overlaps reports whether the closed intervals [a.StartTime, a.EndTime] and
// [b.StartTime, b.EndTime] intersect. Touching endpoints count as an overlap.
func Overlaps(a, b model.Schedule) bool {
	return !a.StartTime.After(b.EndTime) && !b.StartTime.After(a.EndTime)
}

// Conflict returns the first schedule in existing, other than candidate itself,
// whose time range overlaps candidate.
func Conflict(candidate model.Schedule, existing []model.Schedule) (model.Schedule, bool) {
	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, other) {
			return other, true
		}
	}
	return model.Schedule{}, false
}
