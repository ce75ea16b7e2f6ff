// Package scheduler turns stored schedules into item availability changes.
//
// A single goroutine keeps a queue of the next instant each schedule needs
// attention, sleeps until the earliest one, handles it, and rebuilds the queue
// from storage. Nothing is cached between iterations except the quarantine of
// schedules whose preset is missing.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/notify"
)

const DefaultIdleInterval = time.Second

type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithIdleInterval sets how long the loop waits before re-reading storage
// when there is nothing queued.
func WithIdleInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.idle = d
		}
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithPublishTimeout bounds how long one notification may hold the loop.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

type Scheduler struct {
	store          Store
	clock          Clock
	publisher      notify.Publisher
	publishTimeout time.Duration
	idle           time.Duration
	exec           *Executor

	queue *Queue
	// schedules whose preset was missing, keyed to the updated_at seen at the time
	quarantine map[uuid.UUID]time.Time
	nudge      chan struct{}
	readErrs   *rate.Limiter
}

func New(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:          store,
		clock:          systemClock,
		publisher:      notify.Nop{},
		publishTimeout: DefaultPublishTimeout,
		idle:           DefaultIdleInterval,
		queue:          NewQueue(),
		quarantine:     make(map[uuid.UUID]time.Time),
		nudge:          make(chan struct{}, 1),
		readErrs:       rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.exec = NewExecutor(store, s.publisher, s.clock)
	s.exec.publishTimeout = s.publishTimeout
	return s
}

// Handle controls a running scheduler loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop and waits for it to return.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the loop has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start runs the loop on its own goroutine until ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	log.Info().Dur("idle_interval", s.idle).Msg("Starting scheduler")
	go func() {
		defer close(h.done)
		s.run(ctx)
		log.Info().Msg("Scheduler stopped")
	}()
	return h
}

// Nudge wakes a sleeping loop and makes it re-read storage. It never blocks.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	s.rebuild(ctx)
	for ctx.Err() == nil {
		wait, refresh := s.step(ctx)
		if wait > 0 {
			nudged, ok := s.sleep(ctx, wait)
			if !ok {
				return
			}
			refresh = refresh || nudged
		}
		if refresh {
			s.rebuild(ctx)
		}
	}
}

// step handles at most one event. It returns how long to wait before the next
// step and whether the queue must be rebuilt after that wait.
func (s *Scheduler) step(ctx context.Context) (time.Duration, bool) {
	ev, ok := s.queue.Peek()
	if !ok {
		return s.idle, true
	}
	now := s.clock.Now()
	if ev.Trigger.After(now) {
		return ev.Trigger.Sub(now), false
	}
	s.queue.Pop()
	s.dispatch(ctx, ev)
	s.rebuild(ctx)
	return 0, false
}

func (s *Scheduler) dispatch(ctx context.Context, ev Event) {
	id := ev.Schedule.ID
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("schedule_id", id.String()).
				Msg("[scheduler] recovered from panic while handling schedule")
		}
	}()

	var err error
	switch ev.Schedule.Status {
	case model.StatusPending:
		err = s.exec.Execute(ctx, ev.Schedule)
	case model.StatusActive:
		err = s.exec.EndActive(ctx, ev.Schedule)
	}
	if err == nil {
		return
	}
	if errors.Is(err, ErrPresetNotFound) {
		s.quarantine[id] = ev.Schedule.UpdatedAt
		log.Error().Err(err).
			Str("schedule_id", id.String()).
			Msg("[scheduler] schedule references a missing preset, holding it until it is edited")
		return
	}
	log.Error().Err(err).
		Str("schedule_id", id.String()).
		Str("status", string(ev.Schedule.Status)).
		Msg("[scheduler] failed to handle schedule")
}

func (s *Scheduler) rebuild(ctx context.Context) {
	q, err := BuildQueue(ctx, s.store, s.clock.Now())
	if err != nil {
		if s.readErrs.Allow() {
			log.Error().Err(err).Msg("[scheduler] failed to load schedules")
		} else {
			log.Debug().Err(err).Msg("[scheduler] failed to load schedules")
		}
	}
	if len(s.quarantine) > 0 {
		seen := make(map[uuid.UUID]bool, len(s.quarantine))
		q.Filter(func(ev Event) bool {
			held, ok := s.quarantine[ev.Schedule.ID]
			if !ok {
				return true
			}
			seen[ev.Schedule.ID] = true
			if ev.Schedule.Status == model.StatusPending && ev.Schedule.UpdatedAt.Equal(held) {
				return false
			}
			delete(s.quarantine, ev.Schedule.ID)
			return true
		})
		if err == nil {
			for id := range s.quarantine {
				if !seen[id] {
					delete(s.quarantine, id)
				}
			}
		}
	}
	s.queue = q
}

// sleep waits for d, a nudge, or cancellation. ok is false when ctx is done.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) (nudged bool, ok bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, false
	case <-s.nudge:
		return true, true
	case <-timer.C:
		return false, true
	}
}
