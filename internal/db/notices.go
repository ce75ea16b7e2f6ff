package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

const noticeColumns = `id, title, body, is_active, created_at, updated_at`

func (s *sqlStore) ListNotices(ctx context.Context) ([]model.Notice, error) {
	var out []model.Notice
	if err := s.db.SelectContext(ctx, &out, `SELECT `+noticeColumns+` FROM notices ORDER BY created_at, id;`); err != nil {
		log.Error().Err(err).Msg("ListNotices failed")
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
		out[i].UpdatedAt = out[i].UpdatedAt.UTC()
	}
	return out, nil
}

func (s *sqlStore) CreateNotice(ctx context.Context, n model.Notice) (model.Notice, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	stamp(&n.CreatedAt, &n.UpdatedAt)
	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO notices (`+noticeColumns+`)
	VALUES (?, ?, ?, ?, ?, ?);`),
		n.ID, n.Title, n.Body, n.IsActive, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		log.Error().Err(err).Msg("CreateNotice failed")
		return model.Notice{}, err
	}
	return n, nil
}

func (s *sqlStore) UpdateNotice(ctx context.Context, id uuid.UUID, n model.Notice) error {
	stamp(nil, &n.UpdatedAt)
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE notices
		SET title = ?, body = ?, is_active = ?, updated_at = ?
		WHERE id = ?;`),
		n.Title, n.Body, n.IsActive, n.UpdatedAt.UTC(), id)
	if err != nil {
		log.Error().Err(err).Str("notice_id", id.String()).Msg("UpdateNotice failed")
		return err
	}
	return affected(res)
}

func (s *sqlStore) DeleteNotice(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM notices WHERE id = ?;`), id)
	if err != nil {
		log.Error().Err(err).Str("notice_id", id.String()).Msg("DeleteNotice failed")
		return err
	}
	return affected(res)
}
