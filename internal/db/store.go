// exposes a Store interface that is passed to the scheduler and API handlers
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

// ErrNotFound is returned when a record with the requested id does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the storage gateway over items, presets, schedules and notices.
// List calls return records in a stable order. Update calls replace a single
// record atomically.
type Store interface {
	// item functions
	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (model.Item, error)
	CreateItem(ctx context.Context, item model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, item model.Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// preset functions
	ListPresets(ctx context.Context) ([]model.Preset, error)
	GetPreset(ctx context.Context, id uuid.UUID) (model.Preset, error)
	CreatePreset(ctx context.Context, preset model.Preset) (model.Preset, error)
	UpdatePreset(ctx context.Context, id uuid.UUID, preset model.Preset) error
	DeletePreset(ctx context.Context, id uuid.UUID) error

	// schedule functions
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (model.Schedule, error)
	CreateSchedule(ctx context.Context, schedule model.Schedule) (model.Schedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, schedule model.Schedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	// notice functions
	ListNotices(ctx context.Context) ([]model.Notice, error)
	CreateNotice(ctx context.Context, notice model.Notice) (model.Notice, error)
	UpdateNotice(ctx context.Context, id uuid.UUID, notice model.Notice) error
	DeleteNotice(ctx context.Context, id uuid.UUID) error

	Close() error
}

type sqlStore struct {
	db *sqlx.DB
}

// compile-time check that sqlStore implements Store
var _ Store = (*sqlStore)(nil)

// NewStore wraps a postgres or sqlite connection.
func NewStore(conn *sqlx.DB) Store {
	return &sqlStore{db: conn}
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) q(query string) string {
	return s.db.Rebind(query)
}

// stamp fills in audit timestamps that the caller left empty.
func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
