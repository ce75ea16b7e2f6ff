// internal/db/schedules.go
package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

const scheduleColumns = `id, preset_id, name, description, start_time, end_time, window_seconds,
	recurrence, status, error_message, created_at, updated_at`

func (s *sqlStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	var out []model.Schedule
	q := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at, id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("ListSchedules failed")
		return nil, err
	}
	for i := range out {
		utcSchedule(&out[i])
	}
	return out, nil
}

func (s *sqlStore) GetSchedule(ctx context.Context, id uuid.UUID) (model.Schedule, error) {
	var sc model.Schedule
	err := s.db.GetContext(ctx, &sc, s.q(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?;`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Schedule{}, ErrNotFound
		}
		log.Error().Err(err).Str("schedule_id", id.String()).Msg("GetSchedule failed")
		return model.Schedule{}, err
	}
	utcSchedule(&sc)
	return sc, nil
}

func (s *sqlStore) CreateSchedule(ctx context.Context, sc model.Schedule) (model.Schedule, error) {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	if sc.Status == "" {
		sc.Status = model.StatusPending
	}
	stamp(&sc.CreatedAt, &sc.UpdatedAt)
	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO schedules (`+scheduleColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`),
		sc.ID, sc.PresetID, sc.Name, sc.Description, sc.StartTime.UTC(), sc.EndTime.UTC(), sc.WindowSeconds,
		sc.Recurrence, sc.Status, sc.ErrorMessage, sc.CreatedAt.UTC(), sc.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error().Err(err).Msg("CreateSchedule failed")
		return model.Schedule{}, err
	}
	utcSchedule(&sc)
	return sc, nil
}

func (s *sqlStore) UpdateSchedule(ctx context.Context, id uuid.UUID, sc model.Schedule) error {
	stamp(nil, &sc.UpdatedAt)
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE schedules
		SET
		preset_id      = ?,
		name           = ?,
		description    = ?,
		start_time     = ?,
		end_time       = ?,
		window_seconds = ?,
		recurrence     = ?,
		status         = ?,
		error_message  = ?,
		updated_at     = ?
		WHERE id = ?;`),
		sc.PresetID, sc.Name, sc.Description, sc.StartTime.UTC(), sc.EndTime.UTC(), sc.WindowSeconds,
		sc.Recurrence, sc.Status, sc.ErrorMessage, sc.UpdatedAt.UTC(), id,
	)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", id.String()).Msg("UpdateSchedule failed")
		return err
	}
	return affected(res)
}

func (s *sqlStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM schedules WHERE id = ?;`), id)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", id.String()).Msg("DeleteSchedule failed")
		return err
	}
	return affected(res)
}

func utcSchedule(sc *model.Schedule) {
	sc.StartTime = sc.StartTime.UTC()
	sc.EndTime = sc.EndTime.UTC()
	sc.CreatedAt = sc.CreatedAt.UTC()
	sc.UpdatedAt = sc.UpdatedAt.UTC()
}
