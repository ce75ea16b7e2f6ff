package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/notify"
)

const (
	msgAfterEnd     = "Next occurrence is after schedule end time"
	msgNoOccurrence = "Cannot calculate next occurrence"
)

// EndActive closes the current occurrence of an active schedule. Recurring
// schedules go back to pending at their next start if that start is still
// within the schedule's end time; everything else ends.
func (e *Executor) EndActive(ctx context.Context, s model.Schedule) error {
	all, err := e.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	current, ok := findSchedule(all, s.ID)
	if !ok {
		return nil
	}
	now := e.clock.Now()
	if current.Status != model.StatusActive || now.Before(current.OccurrenceEnd()) {
		log.Debug().
			Str("schedule_id", s.ID.String()).
			Str("status", string(current.Status)).
			Msg("[scheduler] active schedule changed since it was queued, skipping")
		return nil
	}
	s = current

	switch s.Recurrence {
	case model.RecurrenceNone, model.RecurrenceCustom:
		s.Status = model.StatusEnded
		s.ErrorMessage = nil
	default:
		next, ok := NextOccurrence(s, now)
		switch {
		case !ok:
			msg := msgNoOccurrence
			s.Status = model.StatusEnded
			s.ErrorMessage = &msg
		case next.After(s.EndTime):
			msg := msgAfterEnd
			s.Status = model.StatusEnded
			s.ErrorMessage = &msg
		default:
			s.StartTime = next
			s.Status = model.StatusPending
			s.ErrorMessage = nil
		}
	}
	s.UpdatedAt = now

	log.Info().
		Str("schedule_id", s.ID.String()).
		Str("status", string(s.Status)).
		Time("start_time", s.StartTime).
		Msg("[scheduler] occurrence finished")
	e.persist(ctx, s)
	e.publish(ctx, notify.EventStatusChanged, s, nil)
	return nil
}
