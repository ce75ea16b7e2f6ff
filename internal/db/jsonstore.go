package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

const (
	itemsFile     = "menu_items.json"
	presetsFile   = "menu_presets.json"
	schedulesFile = "menu_schedules.json"
	noticesFile   = "notices.json"

	schemaVersion = "1.0.0"
	generatedBy   = "platter"
)

// Envelope is the on-disk layout of every collection file.
type Envelope[T any] struct {
	SchemaVersion string   `json:"schema_version"`
	LastUpdated   string   `json:"last_updated"`
	GeneratedBy   string   `json:"generated_by"`
	Metadata      Metadata `json:"metadata"`
	Items         []T      `json:"items"`
}

type Metadata struct {
	TotalItems         int    `json:"total_items"`
	DataIntegrityCheck string `json:"data_integrity_check"`
}

// NewEnvelope wraps items with the current timestamp and counts.
func NewEnvelope[T any](items []T) Envelope[T] {
	if items == nil {
		items = []T{}
	}
	return Envelope[T]{
		SchemaVersion: schemaVersion,
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		GeneratedBy:   generatedBy,
		Metadata:      Metadata{TotalItems: len(items), DataIntegrityCheck: "passed"},
		Items:         items,
	}
}

// jsonStore keeps each collection in its own JSON file. Every write rewrites
// the whole file through a temp file and a rename, so readers never observe a
// partial record.
type jsonStore struct {
	fs  afero.Fs
	dir string
	mu  sync.RWMutex
}

var _ Store = (*jsonStore)(nil)

// NewJSONStore opens (and creates, if needed) a file store rooted at dir.
func NewJSONStore(fs afero.Fs, dir string) (Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &jsonStore{fs: fs, dir: dir}
	for _, name := range []string{itemsFile, presetsFile, schedulesFile, noticesFile} {
		exists, err := afero.Exists(fs, s.path(name))
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		log.Warn().Str("file", s.path(name)).Msg("data file not found, creating with empty data")
		if err := writeFile(s, name, []json.RawMessage{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *jsonStore) Close() error { return nil }

func (s *jsonStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func readFile[T any](s *jsonStore, name string) ([]T, error) {
	raw, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var env Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if env.Items == nil {
		env.Items = []T{}
	}
	return env.Items, nil
}

func writeFile[T any](s *jsonStore, name string, items []T) error {
	raw, err := json.MarshalIndent(NewEnvelope(items), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp := s.path(name + ".tmp")
	if err := afero.WriteFile(s.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func listRecords[T any](s *jsonStore, name string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readFile[T](s, name)
}

func getRecord[T any](s *jsonStore, name string, id uuid.UUID, idOf func(T) uuid.UUID) (T, error) {
	var zero T
	items, err := listRecords[T](s, name)
	if err != nil {
		return zero, err
	}
	for _, it := range items {
		if idOf(it) == id {
			return it, nil
		}
	}
	return zero, ErrNotFound
}

// mutate runs fn over the collection under the write lock and persists the
// result if fn returns no error.
func mutate[T any](s *jsonStore, name string, fn func([]T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := readFile[T](s, name)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return writeFile(s, name, items)
}

func replaceRecord[T any](s *jsonStore, name string, id uuid.UUID, v T, idOf func(T) uuid.UUID) error {
	return mutate(s, name, func(items []T) ([]T, error) {
		for i := range items {
			if idOf(items[i]) == id {
				items[i] = v
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

func removeRecord[T any](s *jsonStore, name string, id uuid.UUID, idOf func(T) uuid.UUID) error {
	return mutate(s, name, func(items []T) ([]T, error) {
		for i := range items {
			if idOf(items[i]) == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

func appendRecord[T any](s *jsonStore, name string, v T) error {
	return mutate(s, name, func(items []T) ([]T, error) {
		return append(items, v), nil
	})
}

func itemID(it model.Item) uuid.UUID         { return it.ID }
func presetID(p model.Preset) uuid.UUID      { return p.ID }
func scheduleID(sc model.Schedule) uuid.UUID { return sc.ID }
func noticeID(n model.Notice) uuid.UUID      { return n.ID }

// @ ITEMS

func (s *jsonStore) ListItems(ctx context.Context) ([]model.Item, error) {
	return listRecords[model.Item](s, itemsFile)
}

func (s *jsonStore) GetItem(ctx context.Context, id uuid.UUID) (model.Item, error) {
	return getRecord(s, itemsFile, id, itemID)
}

func (s *jsonStore) CreateItem(ctx context.Context, it model.Item) (model.Item, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	stamp(&it.CreatedAt, &it.UpdatedAt)
	utcItem(&it)
	if err := appendRecord(s, itemsFile, it); err != nil {
		log.Error().Err(err).Msg("CreateItem failed")
		return model.Item{}, err
	}
	return it, nil
}

func (s *jsonStore) UpdateItem(ctx context.Context, id uuid.UUID, it model.Item) error {
	it.ID = id
	stamp(nil, &it.UpdatedAt)
	utcItem(&it)
	return replaceRecord(s, itemsFile, id, it, itemID)
}

// DeleteItem also drops the item from every preset that lists it.
func (s *jsonStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := removeRecord(s, itemsFile, id, itemID); err != nil {
		return err
	}
	return mutate(s, presetsFile, func(presets []model.Preset) ([]model.Preset, error) {
		for i := range presets {
			kept := presets[i].ItemIDs[:0]
			for _, member := range presets[i].ItemIDs {
				if member != id {
					kept = append(kept, member)
				}
			}
			presets[i].ItemIDs = kept
		}
		return presets, nil
	})
}

// @ PRESETS

func (s *jsonStore) ListPresets(ctx context.Context) ([]model.Preset, error) {
	return listRecords[model.Preset](s, presetsFile)
}

func (s *jsonStore) GetPreset(ctx context.Context, id uuid.UUID) (model.Preset, error) {
	return getRecord(s, presetsFile, id, presetID)
}

func (s *jsonStore) CreatePreset(ctx context.Context, p model.Preset) (model.Preset, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ItemIDs == nil {
		p.ItemIDs = []uuid.UUID{}
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	utcPreset(&p)
	if err := appendRecord(s, presetsFile, p); err != nil {
		log.Error().Err(err).Msg("[db] CreatePreset: failed to write preset")
		return model.Preset{}, err
	}
	return p, nil
}

func (s *jsonStore) UpdatePreset(ctx context.Context, id uuid.UUID, p model.Preset) error {
	p.ID = id
	if p.ItemIDs == nil {
		p.ItemIDs = []uuid.UUID{}
	}
	stamp(nil, &p.UpdatedAt)
	utcPreset(&p)
	return replaceRecord(s, presetsFile, id, p, presetID)
}

func (s *jsonStore) DeletePreset(ctx context.Context, id uuid.UUID) error {
	return removeRecord(s, presetsFile, id, presetID)
}

// @ SCHEDULES

func (s *jsonStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	return listRecords[model.Schedule](s, schedulesFile)
}

func (s *jsonStore) GetSchedule(ctx context.Context, id uuid.UUID) (model.Schedule, error) {
	return getRecord(s, schedulesFile, id, scheduleID)
}

func (s *jsonStore) CreateSchedule(ctx context.Context, sc model.Schedule) (model.Schedule, error) {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	if sc.Status == "" {
		sc.Status = model.StatusPending
	}
	stamp(&sc.CreatedAt, &sc.UpdatedAt)
	utcSchedule(&sc)
	if err := appendRecord(s, schedulesFile, sc); err != nil {
		log.Error().Err(err).Msg("CreateSchedule failed")
		return model.Schedule{}, err
	}
	return sc, nil
}

func (s *jsonStore) UpdateSchedule(ctx context.Context, id uuid.UUID, sc model.Schedule) error {
	sc.ID = id
	stamp(nil, &sc.UpdatedAt)
	utcSchedule(&sc)
	return replaceRecord(s, schedulesFile, id, sc, scheduleID)
}

func (s *jsonStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return removeRecord(s, schedulesFile, id, scheduleID)
}

// @ NOTICES

func (s *jsonStore) ListNotices(ctx context.Context) ([]model.Notice, error) {
	return listRecords[model.Notice](s, noticesFile)
}

func (s *jsonStore) CreateNotice(ctx context.Context, n model.Notice) (model.Notice, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	stamp(&n.CreatedAt, &n.UpdatedAt)
	if err := appendRecord(s, noticesFile, n); err != nil {
		log.Error().Err(err).Msg("CreateNotice failed")
		return model.Notice{}, err
	}
	return n, nil
}

func (s *jsonStore) UpdateNotice(ctx context.Context, id uuid.UUID, n model.Notice) error {
	n.ID = id
	stamp(nil, &n.UpdatedAt)
	return replaceRecord(s, noticesFile, id, n, noticeID)
}

func (s *jsonStore) DeleteNotice(ctx context.Context, id uuid.UUID) error {
	return removeRecord(s, noticesFile, id, noticeID)
}
