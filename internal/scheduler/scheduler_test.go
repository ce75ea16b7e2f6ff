package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/mqtt"
	"github.com/Nixie-Tech-LLC/platter/internal/notify"
)

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// flakyStore wraps a real store and fails selected calls.
type flakyStore struct {
	db.Store
	failList          bool
	failScheduleWrite bool
	failItem          uuid.UUID
	panicPresets      bool
	listCalls         atomic.Int32
	scheduleWrites    atomic.Int32
	itemWrites        atomic.Int32
}

func (f *flakyStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	f.listCalls.Add(1)
	if f.failList {
		return nil, errors.New("storage unavailable")
	}
	return f.Store.ListSchedules(ctx)
}

func (f *flakyStore) UpdateSchedule(ctx context.Context, id uuid.UUID, s model.Schedule) error {
	f.scheduleWrites.Add(1)
	if f.failScheduleWrite {
		return errors.New("read-only filesystem")
	}
	return f.Store.UpdateSchedule(ctx, id, s)
}

func (f *flakyStore) UpdateItem(ctx context.Context, id uuid.UUID, it model.Item) error {
	f.itemWrites.Add(1)
	if id == f.failItem {
		return errors.New("item write failed")
	}
	return f.Store.UpdateItem(ctx, id, it)
}

func (f *flakyStore) ListPresets(ctx context.Context) ([]model.Preset, error) {
	if f.panicPresets {
		panic("corrupt preset file")
	}
	return f.Store.ListPresets(ctx)
}

type menu struct {
	store  db.Store
	a, b   model.Item
	preset model.Preset
}

// newMenu seeds item A (unavailable) and item B (available) plus a preset
// containing only A.
func newMenu(t *testing.T) *menu {
	t.Helper()
	ctx := context.Background()
	store, err := db.NewJSONStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	a, err := store.CreateItem(ctx, model.Item{Name: "Pancakes", IsAvailable: false})
	require.NoError(t, err)
	b, err := store.CreateItem(ctx, model.Item{Name: "Steak", IsAvailable: true})
	require.NoError(t, err)
	p, err := store.CreatePreset(ctx, model.Preset{Name: "Breakfast", ItemIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)
	return &menu{store: store, a: a, b: b, preset: p}
}

func (m *menu) schedule(t *testing.T, s model.Schedule) model.Schedule {
	t.Helper()
	if s.PresetID == uuid.Nil {
		s.PresetID = m.preset.ID
	}
	if s.Recurrence == "" {
		s.Recurrence = model.RecurrenceNone
	}
	s.CreatedAt, s.UpdatedAt = t0, t0
	out, err := m.store.CreateSchedule(context.Background(), s)
	require.NoError(t, err)
	return out
}

func (m *menu) get(t *testing.T, id uuid.UUID) model.Schedule {
	t.Helper()
	s, err := m.store.GetSchedule(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (m *menu) available(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	it, err := m.store.GetItem(context.Background(), id)
	require.NoError(t, err)
	return it.IsAvailable
}

func TestOverlappingSchedulesSecondConflicts(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	first := m.schedule(t, model.Schedule{Name: "Early", StartTime: t0, EndTime: t0.Add(2 * time.Hour)})
	second := m.schedule(t, model.Schedule{Name: "Late", StartTime: t0.Add(time.Hour), EndTime: t0.Add(3 * time.Hour)})

	s := New(m.store, WithClock(clk))
	s.rebuild(ctx)

	wait, refresh := s.step(ctx)
	assert.Zero(t, wait)
	assert.False(t, refresh)
	assert.Equal(t, model.StatusActive, m.get(t, first.ID).Status)
	assert.True(t, m.available(t, m.a.ID))
	assert.False(t, m.available(t, m.b.ID))

	wait, _ = s.step(ctx)
	assert.Equal(t, time.Hour, wait)

	clk.Advance(time.Hour)
	wait, _ = s.step(ctx)
	assert.Zero(t, wait)

	got := m.get(t, second.ID)
	assert.Equal(t, model.StatusConflicted, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, first.ID.String())
	assert.Contains(t, *got.ErrorMessage, "Early")
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))

	wait, _ = s.step(ctx)
	assert.Equal(t, time.Hour, wait)

	clk.Advance(time.Hour)
	s.step(ctx)
	got = m.get(t, first.ID)
	assert.Equal(t, model.StatusEnded, got.Status)
	assert.Nil(t, got.ErrorMessage)

	wait, refresh = s.step(ctx)
	assert.Equal(t, DefaultIdleInterval, wait)
	assert.True(t, refresh)
}

func TestDailyScheduleReturnsToPending(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{
		Name:          "Breakfast",
		StartTime:     t0,
		EndTime:       t0.Add(72 * time.Hour),
		WindowSeconds: 3600,
		Recurrence:    model.RecurrenceDaily,
	})

	s := New(m.store, WithClock(clk))
	s.rebuild(ctx)
	s.step(ctx)
	assert.Equal(t, model.StatusActive, m.get(t, sc.ID).Status)

	wait, _ := s.step(ctx)
	assert.Equal(t, time.Hour, wait)

	clk.Advance(time.Hour)
	s.step(ctx)
	got := m.get(t, sc.ID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.True(t, got.StartTime.Equal(t0.Add(24*time.Hour)), "start %s", got.StartTime)
	assert.Nil(t, got.ErrorMessage)

	wait, _ = s.step(ctx)
	assert.Equal(t, 23*time.Hour, wait)
}

func TestRecurringScheduleEndsPastEndTime(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{
		Name:          "Brunch",
		StartTime:     t0,
		EndTime:       t0.Add(12 * time.Hour),
		WindowSeconds: 3600,
		Recurrence:    model.RecurrenceDaily,
	})

	s := New(m.store, WithClock(clk))
	s.rebuild(ctx)
	s.step(ctx)
	clk.Advance(time.Hour)
	s.step(ctx)

	got := m.get(t, sc.ID)
	assert.Equal(t, model.StatusEnded, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msgAfterEnd, *got.ErrorMessage)

	_, refresh := s.step(ctx)
	assert.True(t, refresh, "nothing left to schedule")
}

func TestCustomRecurrenceEndsWithoutError(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{
		Name:       "Festival",
		StartTime:  t0,
		EndTime:    t0.Add(time.Hour),
		Recurrence: model.RecurrenceCustom,
	})

	s := New(m.store, WithClock(clk))
	s.rebuild(ctx)
	s.step(ctx)
	clk.Advance(time.Hour)
	s.step(ctx)

	got := m.get(t, sc.ID)
	assert.Equal(t, model.StatusEnded, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func TestUnknownRecurrenceEndsWithMessage(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{
		Name:       "Odd",
		StartTime:  t0,
		EndTime:    t0.Add(time.Hour),
		Recurrence: "fortnightly",
	})

	s := New(m.store, WithClock(clk))
	s.rebuild(ctx)
	s.step(ctx)
	clk.Advance(time.Hour)
	s.step(ctx)

	got := m.get(t, sc.ID)
	assert.Equal(t, model.StatusEnded, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msgNoOccurrence, *got.ErrorMessage)
}

func TestMissingPresetIsQuarantined(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{
		Name:      "Ghost",
		PresetID:  uuid.New(),
		StartTime: t0,
		EndTime:   t0.Add(time.Hour),
	})

	s := New(m.store, WithClock(clk))
	s.rebuild(ctx)
	wait, _ := s.step(ctx)
	assert.Zero(t, wait)

	got := m.get(t, sc.ID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.False(t, m.available(t, m.a.ID), "items untouched")

	wait, refresh := s.step(ctx)
	assert.Equal(t, DefaultIdleInterval, wait)
	assert.True(t, refresh)

	got.PresetID = m.preset.ID
	got.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, m.store.UpdateSchedule(ctx, got.ID, got))

	s.rebuild(ctx)
	assert.Equal(t, 1, s.queue.Len())
	s.step(ctx)
	assert.Equal(t, model.StatusActive, m.get(t, sc.ID).Status)
	assert.Empty(t, s.quarantine)
}

func TestScheduleWriteFailureStillAppliesPreset(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	store := &flakyStore{Store: m.store, failScheduleWrite: true}

	s := New(store, WithClock(clk))
	s.rebuild(ctx)
	assert.NotPanics(t, func() { s.step(ctx) })

	assert.Equal(t, model.StatusPending, m.get(t, sc.ID).Status)
	assert.True(t, m.available(t, m.a.ID))
	assert.False(t, m.available(t, m.b.ID))
	assert.Equal(t, int32(2), store.itemWrites.Load())

	// the schedule is still due, so every step retries it straight away
	for i := 0; i < 3; i++ {
		wait, refresh := s.step(ctx)
		assert.Zero(t, wait)
		assert.False(t, refresh)
	}
	assert.Equal(t, int32(4), store.scheduleWrites.Load())
	assert.Equal(t, int32(2), store.itemWrites.Load(), "items already match the preset")
	assert.Equal(t, model.StatusPending, m.get(t, sc.ID).Status)
	assert.False(t, s.exec.writeErrs.Allow(), "repeated write failures are throttled")
}

func TestSimultaneousSchedulesHandledOneAtATime(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	first := m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	second := m.schedule(t, model.Schedule{Name: "Brunch", StartTime: t0, EndTime: t0.Add(2 * time.Hour)})
	store := &flakyStore{Store: m.store}

	s := New(store, WithClock(clk))
	s.rebuild(ctx)
	require.Equal(t, 2, s.queue.Len())
	reads := store.listCalls.Load()

	wait, _ := s.step(ctx)
	assert.Zero(t, wait)
	assert.Equal(t, model.StatusActive, m.get(t, first.ID).Status)
	assert.Equal(t, model.StatusPending, m.get(t, second.ID).Status)
	// one read to execute, one to rebuild
	assert.Equal(t, reads+2, store.listCalls.Load())

	next, ok := s.queue.Peek()
	require.True(t, ok)
	assert.Equal(t, second.ID, next.Schedule.ID)
	assert.True(t, next.Trigger.Equal(t0))

	wait, _ = s.step(ctx)
	assert.Zero(t, wait)
	assert.Equal(t, model.StatusConflicted, m.get(t, second.ID).Status)
	assert.Equal(t, model.StatusActive, m.get(t, first.ID).Status)
}

func TestItemWriteFailureDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	store := &flakyStore{Store: m.store, failItem: m.a.ID}

	exec := NewExecutor(store, nil, clk)
	err := exec.Execute(ctx, sc)
	assert.ErrorContains(t, err, "1 of 2 item updates failed")

	assert.Equal(t, model.StatusActive, m.get(t, sc.ID).Status)
	assert.False(t, m.available(t, m.a.ID))
	assert.False(t, m.available(t, m.b.ID))
}

func TestExecuteMissingPreset(t *testing.T) {
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{Name: "Ghost", PresetID: uuid.New(), StartTime: t0, EndTime: t0.Add(time.Hour)})

	err := NewExecutor(m.store, nil, clk).Execute(context.Background(), sc)
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestExecuteSkipsStaleEvent(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{Name: "Later", StartTime: t0, EndTime: t0.Add(time.Hour)})

	moved := sc
	moved.StartTime = t0.Add(30 * time.Minute)
	require.NoError(t, m.store.UpdateSchedule(ctx, sc.ID, moved))

	require.NoError(t, NewExecutor(m.store, nil, clk).Execute(ctx, sc))
	assert.Equal(t, model.StatusPending, m.get(t, sc.ID).Status)
	assert.False(t, m.available(t, m.a.ID))
}

func TestPublishesTransitions(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	rec := &recorder{}

	s := New(m.store, WithClock(clk), WithPublisher(rec))
	s.rebuild(ctx)
	s.step(ctx)
	clk.Advance(time.Hour)
	s.step(ctx)

	require.Len(t, rec.events, 2)
	assert.Equal(t, notify.EventActivated, rec.events[0].Type)
	assert.Equal(t, sc.ID, rec.events[0].ScheduleID)
	assert.Equal(t, []uuid.UUID{m.a.ID}, rec.events[0].AvailableItemIDs)
	assert.Equal(t, notify.EventStatusChanged, rec.events[1].Type)
	assert.Equal(t, model.StatusEnded, rec.events[1].Status)
}

// pendingToken is a paho token for a publish the broker never acknowledges,
// as happens while the client is reconnecting.
type pendingToken struct{ done chan struct{} }

func (t pendingToken) Wait() bool                     { <-t.done; return true }
func (t pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t pendingToken) Done() <-chan struct{}          { return t.done }
func (t pendingToken) Error() error                   { return nil }

type reconnectingClient struct {
	paho.Client
	publishes atomic.Int32
}

func (c *reconnectingClient) Publish(string, byte, bool, interface{}) paho.Token {
	c.publishes.Add(1)
	return pendingToken{done: make(chan struct{})}
}

func TestUnacknowledgedPublishDoesNotStallLoop(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: t0}
	m := newMenu(t)
	sc := m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	client := &reconnectingClient{}

	s := New(m.store,
		WithClock(clk),
		WithPublisher(mqtt.NewPublisher(client)),
		WithPublishTimeout(50*time.Millisecond),
	)
	s.rebuild(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.step(ctx)
		clk.Advance(time.Hour)
		s.step(ctx)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("step blocked on an unacknowledged publish")
	}

	assert.Equal(t, int32(2), client.publishes.Load())
	assert.Equal(t, model.StatusEnded, m.get(t, sc.ID).Status)
	assert.True(t, m.available(t, m.a.ID))
}

func TestStopWithUnreachableBroker(t *testing.T) {
	m := newMenu(t)
	now := time.Now().UTC()
	sc := m.schedule(t, model.Schedule{Name: "Now", StartTime: now.Add(-time.Second), EndTime: now.Add(time.Hour)})

	h := New(m.store,
		WithPublisher(mqtt.NewPublisher(&reconnectingClient{})),
		WithPublishTimeout(50*time.Millisecond),
		WithIdleInterval(time.Hour),
	).Start(context.Background())

	require.Eventually(t, func() bool {
		return m.get(t, sc.ID).Status == model.StatusActive
	}, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestReadFailureIdles(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)
	m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	store := &flakyStore{Store: m.store, failList: true}

	s := New(store, WithClock(&fakeClock{now: t0}), WithIdleInterval(5*time.Second))
	s.rebuild(ctx)
	wait, refresh := s.step(ctx)
	assert.Equal(t, 5*time.Second, wait)
	assert.True(t, refresh)
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)
	m.schedule(t, model.Schedule{Name: "Breakfast", StartTime: t0, EndTime: t0.Add(time.Hour)})
	store := &flakyStore{Store: m.store, panicPresets: true}

	s := New(store, WithClock(&fakeClock{now: t0}))
	s.rebuild(ctx)
	assert.NotPanics(t, func() { s.step(ctx) })
}

func TestIdleLoopDoesNotSpin(t *testing.T) {
	m := newMenu(t)
	store := &flakyStore{Store: m.store}

	h := New(store, WithIdleInterval(20*time.Millisecond)).Start(context.Background())
	time.Sleep(150 * time.Millisecond)
	h.Stop()

	calls := store.listCalls.Load()
	assert.GreaterOrEqual(t, calls, int32(2))
	assert.LessOrEqual(t, calls, int32(12))

	select {
	case <-h.Done():
	default:
		t.Fatal("loop still running after Stop")
	}
}

func TestNudgeWakesLoop(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)
	s := New(m.store, WithIdleInterval(time.Hour))
	h := s.Start(ctx)
	defer h.Stop()

	now := time.Now().UTC()
	sc, err := m.store.CreateSchedule(ctx, model.Schedule{
		Name:       "Now",
		PresetID:   m.preset.ID,
		StartTime:  now.Add(-time.Second),
		EndTime:    now.Add(time.Hour),
		Recurrence: model.RecurrenceNone,
	})
	require.NoError(t, err)
	s.Nudge()
	s.Nudge()

	require.Eventually(t, func() bool {
		return m.get(t, sc.ID).Status == model.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopOnContextCancel(t *testing.T) {
	m := newMenu(t)
	ctx, cancel := context.WithCancel(context.Background())
	h := New(m.store, WithIdleInterval(time.Hour)).Start(ctx)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
