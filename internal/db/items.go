package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

const itemColumns = `id, name, description, category, price_cents, is_available, created_at, updated_at`

func (s *sqlStore) ListItems(ctx context.Context) ([]model.Item, error) {
	var out []model.Item
	q := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at, id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("ListItems failed")
		return nil, err
	}
	for i := range out {
		utcItem(&out[i])
	}
	return out, nil
}

func (s *sqlStore) GetItem(ctx context.Context, id uuid.UUID) (model.Item, error) {
	var it model.Item
	q := s.q(`SELECT ` + itemColumns + ` FROM items WHERE id = ?;`)
	if err := s.db.GetContext(ctx, &it, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Item{}, ErrNotFound
		}
		log.Error().Err(err).Str("item_id", id.String()).Msg("GetItem failed")
		return model.Item{}, err
	}
	utcItem(&it)
	return it, nil
}

func (s *sqlStore) CreateItem(ctx context.Context, it model.Item) (model.Item, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	stamp(&it.CreatedAt, &it.UpdatedAt)
	q := s.q(`
	INSERT INTO items (` + itemColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);`)
	_, err := s.db.ExecContext(ctx, q,
		it.ID, it.Name, it.Description, it.Category, it.PriceCents, it.IsAvailable, it.CreatedAt.UTC(), it.UpdatedAt.UTC())
	if err != nil {
		log.Error().Err(err).Msg("CreateItem failed")
		return model.Item{}, err
	}
	utcItem(&it)
	return it, nil
}

func (s *sqlStore) UpdateItem(ctx context.Context, id uuid.UUID, it model.Item) error {
	stamp(nil, &it.UpdatedAt)
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE items
		SET
		name         = ?,
		description  = ?,
		category     = ?,
		price_cents  = ?,
		is_available = ?,
		updated_at   = ?
		WHERE id = ?;`),
		it.Name, it.Description, it.Category, it.PriceCents, it.IsAvailable, it.UpdatedAt.UTC(), id,
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", id.String()).Msg("UpdateItem failed")
		return err
	}
	return affected(res)
}

func (s *sqlStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM items WHERE id = ?;`), id)
	if err != nil {
		log.Error().Err(err).Str("item_id", id.String()).Msg("DeleteItem failed")
		return err
	}
	return affected(res)
}

func utcItem(it *model.Item) {
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
}
