package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

const presetColumns = `id, name, description, created_at, updated_at`

type presetItemRow struct {
	PresetID uuid.UUID `db:"preset_id"`
	ItemID   uuid.UUID `db:"item_id"`
}

func (s *sqlStore) ListPresets(ctx context.Context) ([]model.Preset, error) {
	var out []model.Preset
	q := `SELECT ` + presetColumns + ` FROM presets ORDER BY created_at, id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("[db] ListPresets: failed to select presets")
		return nil, err
	}

	var rows []presetItemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT preset_id, item_id FROM preset_items ORDER BY preset_id, position;`); err != nil {
		log.Error().Err(err).Msg("[db] ListPresets: failed to load preset items")
		return nil, err
	}
	byPreset := make(map[uuid.UUID][]uuid.UUID, len(out))
	for _, r := range rows {
		byPreset[r.PresetID] = append(byPreset[r.PresetID], r.ItemID)
	}
	for i := range out {
		out[i].ItemIDs = byPreset[out[i].ID]
		if out[i].ItemIDs == nil {
			out[i].ItemIDs = []uuid.UUID{}
		}
		utcPreset(&out[i])
	}
	return out, nil
}

func (s *sqlStore) GetPreset(ctx context.Context, id uuid.UUID) (model.Preset, error) {
	var p model.Preset
	if err := s.db.GetContext(ctx, &p, s.q(`SELECT `+presetColumns+` FROM presets WHERE id = ?;`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Preset{}, ErrNotFound
		}
		log.Error().Err(err).Str("preset_id", id.String()).Msg("Failed to get preset by ID")
		return model.Preset{}, err
	}
	ids := []uuid.UUID{}
	if err := s.db.SelectContext(ctx, &ids, s.q(`SELECT item_id FROM preset_items WHERE preset_id = ? ORDER BY position;`), id); err != nil {
		log.Error().Err(err).Str("preset_id", id.String()).Msg("Failed to list preset items")
		return model.Preset{}, err
	}
	p.ItemIDs = ids
	utcPreset(&p)
	return p, nil
}

func (s *sqlStore) CreatePreset(ctx context.Context, p model.Preset) (out model.Preset, err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Preset{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`
	INSERT INTO presets (`+presetColumns+`)
	VALUES (?, ?, ?, ?, ?);`),
		p.ID, p.Name, p.Description, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	); err != nil {
		log.Error().Err(err).Msg("[db] CreatePreset: failed to insert preset")
		return model.Preset{}, err
	}
	if err = insertPresetItems(ctx, tx, p.ID, p.ItemIDs); err != nil {
		return model.Preset{}, err
	}
	if p.ItemIDs == nil {
		p.ItemIDs = []uuid.UUID{}
	}
	utcPreset(&p)
	return p, nil
}

// UpdatePreset replaces the preset row and its item set in one transaction.
func (s *sqlStore) UpdatePreset(ctx context.Context, id uuid.UUID, p model.Preset) (err error) {
	stamp(nil, &p.UpdatedAt)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE presets
		SET
		name        = ?,
		description = ?,
		updated_at  = ?
		WHERE id = ?;`),
		p.Name, p.Description, p.UpdatedAt.UTC(), id,
	)
	if err != nil {
		log.Error().Err(err).Str("preset_id", id.String()).Msg("Failed to update preset")
		return err
	}
	if err = affected(res); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM preset_items WHERE preset_id = ?;`), id); err != nil {
		return err
	}
	return insertPresetItems(ctx, tx, id, p.ItemIDs)
}

func (s *sqlStore) DeletePreset(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM presets WHERE id = ?;`), id)
	if err != nil {
		log.Error().Err(err).Str("preset_id", id.String()).Msg("Failed to delete preset")
		return err
	}
	return affected(res)
}

func insertPresetItems(ctx context.Context, tx *sqlx.Tx, presetID uuid.UUID, itemIDs []uuid.UUID) error {
	for pos, itemID := range itemIDs {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO preset_items (preset_id, item_id, position)
			VALUES (?, ?, ?);`), presetID, itemID, pos+1); err != nil {
			log.Error().Err(err).
				Str("preset_id", presetID.String()).
				Str("item_id", itemID.String()).
				Msg("Failed to add item to preset")
			return err
		}
	}
	return nil
}

func utcPreset(p *model.Preset) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
}
