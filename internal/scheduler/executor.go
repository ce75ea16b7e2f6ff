package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/notify"
)

// ErrPresetNotFound is returned when a schedule references a preset that no
// longer exists. The schedule is left untouched.
var ErrPresetNotFound = errors.New("preset not found")

// DefaultPublishTimeout bounds a single notification so a slow or unreachable
// broker cannot hold the loop.
const DefaultPublishTimeout = 5 * time.Second

// Store is the slice of the storage gateway the scheduler depends on.
type Store interface {
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, s model.Schedule) error
	ListPresets(ctx context.Context) ([]model.Preset, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, it model.Item) error
}

// Executor applies schedule transitions against the store.
type Executor struct {
	store          Store
	publisher      notify.Publisher
	clock          Clock
	publishTimeout time.Duration

	// a schedule whose status write fails stays due and is retried at once,
	// so repeated write failures are logged at most once per interval
	writeErrs *rate.Limiter
}

func NewExecutor(store Store, publisher notify.Publisher, clock Clock) *Executor {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if clock == nil {
		clock = systemClock
	}
	return &Executor{
		store:          store,
		publisher:      publisher,
		clock:          clock,
		publishTimeout: DefaultPublishTimeout,
		writeErrs:      rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
}

// Execute activates a pending schedule: it checks the schedule against the
// ones already active, marks it active and sets item availability so that
// exactly the preset's items are available.
func (e *Executor) Execute(ctx context.Context, s model.Schedule) error {
	all, err := e.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	current, ok := findSchedule(all, s.ID)
	if !ok {
		log.Warn().Str("schedule_id", s.ID.String()).Msg("[scheduler] schedule disappeared before execution")
		return nil
	}
	now := e.clock.Now()
	if current.Status != model.StatusPending || current.StartTime.After(now) {
		log.Debug().
			Str("schedule_id", s.ID.String()).
			Str("status", string(current.Status)).
			Msg("[scheduler] schedule changed since it was queued, skipping")
		return nil
	}
	s = current

	if other, found := Conflict(s, activeSchedules(all)); found {
		msg := fmt.Sprintf("Conflicts with schedule '%s' (%s)", other.Name, other.ID)
		log.Warn().
			Str("schedule_id", s.ID.String()).
			Str("conflicts_with", other.ID.String()).
			Msg("[scheduler] schedule conflicts with an active schedule")
		s.Status = model.StatusConflicted
		s.ErrorMessage = &msg
		s.UpdatedAt = now
		e.persist(ctx, s)
		e.publish(ctx, notify.EventStatusChanged, s, nil)
		return nil
	}

	presets, err := e.store.ListPresets(ctx)
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	preset, ok := findPreset(presets, s.PresetID)
	if !ok {
		return fmt.Errorf("%w: preset %s for schedule %s", ErrPresetNotFound, s.PresetID, s.ID)
	}
	items, err := e.store.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}

	s.Status = model.StatusActive
	s.ErrorMessage = nil
	s.UpdatedAt = now
	e.persist(ctx, s)

	available, failed := e.applyPreset(ctx, preset, items)
	log.Info().
		Str("schedule_id", s.ID.String()).
		Str("preset_id", preset.ID.String()).
		Int("available", len(available)).
		Msg("[scheduler] schedule activated")
	e.publish(ctx, notify.EventActivated, s, available)

	if failed > 0 {
		return fmt.Errorf("%d of %d item updates failed for schedule %s", failed, len(items), s.ID)
	}
	return nil
}

// applyPreset writes the availability flag of every item whose flag differs
// from its preset membership. A failed write is logged and counted; the rest
// of the items are still processed.
func (e *Executor) applyPreset(ctx context.Context, preset model.Preset, items []model.Item) ([]uuid.UUID, int) {
	available := []uuid.UUID{}
	failed := 0
	now := e.clock.Now()
	for _, it := range items {
		want := preset.Contains(it.ID)
		if want {
			available = append(available, it.ID)
		}
		if it.IsAvailable == want {
			continue
		}
		it.IsAvailable = want
		it.UpdatedAt = now
		if err := e.store.UpdateItem(ctx, it.ID, it); err != nil {
			e.writeFailure().Err(err).
				Str("item_id", it.ID.String()).
				Bool("is_available", want).
				Msg("[scheduler] failed to update item availability")
			failed++
		}
	}
	return available, failed
}

func (e *Executor) persist(ctx context.Context, s model.Schedule) {
	if err := e.store.UpdateSchedule(ctx, s.ID, s); err != nil {
		e.writeFailure().Err(err).
			Str("schedule_id", s.ID.String()).
			Str("status", string(s.Status)).
			Msg("[scheduler] failed to write schedule")
	}
}

func (e *Executor) writeFailure() *zerolog.Event {
	if e.writeErrs.Allow() {
		return log.Error()
	}
	return log.Debug()
}

func (e *Executor) publish(ctx context.Context, typ notify.EventType, s model.Schedule, available []uuid.UUID) {
	ev := notify.Event{
		Type:             typ,
		ScheduleID:       s.ID,
		ScheduleName:     s.Name,
		PresetID:         s.PresetID,
		Status:           s.Status,
		AvailableItemIDs: available,
		At:               e.clock.Now(),
	}
	if s.ErrorMessage != nil {
		ev.Message = *s.ErrorMessage
	}
	ctx, cancel := context.WithTimeout(ctx, e.publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("schedule_id", s.ID.String()).Msg("[scheduler] failed to publish event")
	}
}

func activeSchedules(all []model.Schedule) []model.Schedule {
	var out []model.Schedule
	for _, s := range all {
		if s.Status == model.StatusActive {
			out = append(out, s)
		}
	}
	return out
}

func findSchedule(all []model.Schedule, id uuid.UUID) (model.Schedule, bool) {
	for _, s := range all {
		if s.ID == id {
			return s, true
		}
	}
	return model.Schedule{}, false
}

func findPreset(all []model.Preset, id uuid.UUID) (model.Preset, bool) {
	for _, p := range all {
		if p.ID == id {
			return p, true
		}
	}
	return model.Preset{}, false
}
