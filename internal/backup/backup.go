// Package backup writes periodic snapshots of every menu collection.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/storage"
)

const Filename = "menu_backup.json"

// Source is the read side of the storage gateway.
type Source interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	ListPresets(ctx context.Context) ([]model.Preset, error)
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	ListNotices(ctx context.Context) ([]model.Notice, error)
}

// Snapshot holds one envelope per collection, in the same layout the JSON
// store uses on disk.
type Snapshot struct {
	CreatedAt time.Time                   `json:"created_at"`
	Items     db.Envelope[model.Item]     `json:"menu_items"`
	Presets   db.Envelope[model.Preset]   `json:"menu_presets"`
	Schedules db.Envelope[model.Schedule] `json:"menu_schedules"`
	Notices   db.Envelope[model.Notice]   `json:"notices"`
}

func Take(ctx context.Context, src Source) (Snapshot, error) {
	items, err := src.ListItems(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list items: %w", err)
	}
	presets, err := src.ListPresets(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list presets: %w", err)
	}
	schedules, err := src.ListSchedules(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list schedules: %w", err)
	}
	notices, err := src.ListNotices(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list notices: %w", err)
	}
	return Snapshot{
		CreatedAt: time.Now().UTC(),
		Items:     db.NewEnvelope(items),
		Presets:   db.NewEnvelope(presets),
		Schedules: db.NewEnvelope(schedules),
		Notices:   db.NewEnvelope(notices),
	}, nil
}

// Run takes a snapshot and saves it to dst, returning the saved location.
func Run(ctx context.Context, src Source, dst storage.Storage) (string, error) {
	snap, err := Take(ctx, src)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	loc, err := dst.SaveFile(ctx, data, Filename)
	if err != nil {
		return "", err
	}
	log.Info().
		Str("location", loc).
		Int("items", snap.Items.Metadata.TotalItems).
		Int("schedules", snap.Schedules.Metadata.TotalItems).
		Msg("Backup completed")
	return loc, nil
}

// Schedule registers a backup job on c that runs every interval.
func Schedule(c *cron.Cron, interval time.Duration, src Source, dst storage.Storage) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("backup interval must be positive, got %s", interval)
	}
	return c.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := Run(ctx, src, dst); err != nil {
			log.Error().Err(err).Msg("Scheduled backup failed")
		}
	})
}
