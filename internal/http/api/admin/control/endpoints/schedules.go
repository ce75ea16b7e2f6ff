package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/scheduler"
)

// Nudger is told whenever schedules change so it can re-read them.
type Nudger interface {
	Nudge()
}

// ScheduleRules are the admin-side checks applied to schedule writes.
type ScheduleRules struct {
	AllowOverlap bool
	MinDuration  time.Duration
	MaxDuration  time.Duration // 0 = unlimited
}

type ScheduleController struct {
	store  db.Store
	rules  ScheduleRules
	nudger Nudger
}

func NewScheduleController(store db.Store, rules ScheduleRules, nudger Nudger) *ScheduleController {
	return &ScheduleController{store: store, rules: rules, nudger: nudger}
}

// ScheduleModule mounts the /schedules endpoints. nudger may be nil when the
// scheduler is not running.
func ScheduleModule(store db.Store, rules ScheduleRules, nudger Nudger) api.Module {
	ctl := NewScheduleController(store, rules, nudger)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.POST("/schedules", ctl.createSchedule)
		c.GET("/schedules/:id", ctl.getSchedule)
		c.PUT("/schedules/:id", ctl.updateSchedule)
		c.DELETE("/schedules/:id", ctl.deleteSchedule)

		// put a conflicted or ended schedule back in the queue
		c.POST("/schedules/:id/reset", ctl.resetSchedule)
	})
}

func (s *ScheduleController) listSchedules(ctx *gin.Context) (any, *api.Error) {
	list, err := s.store.ListSchedules(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list schedules")
	}

	response := make([]packets.ScheduleResponse, 0, len(list))
	for _, it := range list {
		response = append(response, packets.NewScheduleResponse(it))
	}
	return response, nil
}

func (s *ScheduleController) getSchedule(ctx *gin.Context) (any, *api.Error) {
	sc, apiErr := s.load(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewScheduleResponse(sc), nil
}

func (s *ScheduleController) createSchedule(ctx *gin.Context) (any, *api.Error) {
	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	sc := model.Schedule{Status: model.StatusPending}
	applyRequest(&sc, request)
	if apiErr := s.validate(ctx, sc); apiErr != nil {
		return nil, apiErr
	}

	created, err := s.store.CreateSchedule(ctx.Request.Context(), sc)
	if err != nil {
		return nil, api.Internal("could not create schedule")
	}
	log.Info().
		Str("schedule_id", created.ID.String()).
		Str("recurrence", string(created.Recurrence)).
		Time("start_time", created.StartTime).
		Msg("schedule created")
	s.nudge()
	return packets.NewScheduleResponse(created), nil
}

func (s *ScheduleController) updateSchedule(ctx *gin.Context) (any, *api.Error) {
	sc, apiErr := s.load(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	applyRequest(&sc, request)
	return s.requeue(ctx, sc)
}

func (s *ScheduleController) resetSchedule(ctx *gin.Context) (any, *api.Error) {
	sc, apiErr := s.load(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return s.requeue(ctx, sc)
}

func (s *ScheduleController) deleteSchedule(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	err := s.store.DeleteSchedule(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("schedule not found")
	}
	if err != nil {
		return nil, api.Internal("could not delete schedule")
	}
	s.nudge()
	return gin.H{"message": "deleted"}, nil
}

// requeue validates sc and stores it as pending with its error cleared.
func (s *ScheduleController) requeue(ctx *gin.Context, sc model.Schedule) (any, *api.Error) {
	sc.Status = model.StatusPending
	sc.ErrorMessage = nil
	sc.UpdatedAt = time.Time{}
	if apiErr := s.validate(ctx, sc); apiErr != nil {
		return nil, apiErr
	}

	if err := s.store.UpdateSchedule(ctx.Request.Context(), sc.ID, sc); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, api.NotFound("schedule not found")
		}
		return nil, api.Internal("could not update schedule")
	}
	s.nudge()

	updated, err := s.store.GetSchedule(ctx.Request.Context(), sc.ID)
	if err != nil {
		return nil, api.Internal("failed to load schedule")
	}
	return packets.NewScheduleResponse(updated), nil
}

func (s *ScheduleController) load(ctx *gin.Context) (model.Schedule, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return model.Schedule{}, apiErr
	}
	sc, err := s.store.GetSchedule(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return model.Schedule{}, api.NotFound("schedule not found")
	}
	if err != nil {
		return model.Schedule{}, api.Internal("failed to load schedule")
	}
	return sc, nil
}

func (s *ScheduleController) validate(ctx *gin.Context, sc model.Schedule) *api.Error {
	if !sc.EndTime.After(sc.StartTime) {
		return api.BadRequest("end_time must be after start_time")
	}
	if !sc.Recurrence.Valid() {
		return api.BadRequest(fmt.Sprintf("unknown recurrence %q", sc.Recurrence))
	}
	if sc.WindowSeconds < 0 {
		return api.BadRequest("window_seconds must not be negative")
	}

	length := sc.OccurrenceEnd().Sub(sc.StartTime)
	if length < s.rules.MinDuration {
		return api.BadRequest(fmt.Sprintf("schedule must last at least %s", s.rules.MinDuration))
	}
	if s.rules.MaxDuration > 0 && length > s.rules.MaxDuration {
		return api.BadRequest(fmt.Sprintf("schedule must not last longer than %s", s.rules.MaxDuration))
	}

	if _, err := s.store.GetPreset(ctx.Request.Context(), sc.PresetID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return api.BadRequest("preset not found")
		}
		return api.Internal("failed to load preset")
	}

	// Whole start..end ranges are compared; recurring windows are not expanded.
	if s.rules.AllowOverlap {
		return nil
	}
	all, err := s.store.ListSchedules(ctx.Request.Context())
	if err != nil {
		return api.Internal("failed to list schedules")
	}
	live := make([]model.Schedule, 0, len(all))
	for _, other := range all {
		if !other.Status.Terminal() {
			live = append(live, other)
		}
	}
	if other, found := scheduler.Conflict(sc, live); found {
		return &api.Error{
			Code:    http.StatusConflict,
			Message: fmt.Sprintf("Conflicts with schedule '%s' (%s)", other.Name, other.ID),
		}
	}
	return nil
}

func (s *ScheduleController) nudge() {
	if s.nudger != nil {
		s.nudger.Nudge()
	}
}

func applyRequest(sc *model.Schedule, request packets.ScheduleRequest) {
	sc.Name = request.Name
	sc.Description = request.Description
	sc.PresetID = request.PresetID
	sc.StartTime = request.StartTime.UTC()
	sc.EndTime = request.EndTime.UTC()
	sc.WindowSeconds = request.WindowSeconds
	sc.Recurrence = model.Recurrence(request.Recurrence)
	if sc.Recurrence == "" {
		sc.Recurrence = model.RecurrenceNone
	}
}
