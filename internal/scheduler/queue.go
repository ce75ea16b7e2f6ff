package scheduler

import (
	"container/heap"
	"context"
	"time"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

// Event is a schedule snapshot paired with the instant it needs attention.
type Event struct {
	Schedule model.Schedule
	Trigger  time.Time

	seq int
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Trigger.Equal(h[j].Trigger) {
		return h[i].seq < h[j].seq
	}
	return h[i].Trigger.Before(h[j].Trigger)
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

// Queue orders events by trigger time. Events with equal triggers come out in
// the order they were pushed.
type Queue struct {
	events eventHeap
	next   int
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Len() int { return q.events.Len() }

func (q *Queue) Push(s model.Schedule, trigger time.Time) {
	heap.Push(&q.events, Event{Schedule: s, Trigger: trigger, seq: q.next})
	q.next++
}

// Peek returns the earliest event without removing it.
func (q *Queue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

func (q *Queue) Pop() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.events).(Event), true
}

// Filter drops every event for which keep returns false.
func (q *Queue) Filter(keep func(Event) bool) {
	kept := q.events[:0]
	for _, ev := range q.events {
		if keep(ev) {
			kept = append(kept, ev)
		}
	}
	q.events = kept
	heap.Init(&q.events)
}

// TriggerTime is when the scheduler must next look at s. Pending schedules
// fire at their start (or immediately if the start has passed); active ones
// at the end of the current occurrence. Terminal schedules never fire.
func TriggerTime(s model.Schedule, now time.Time) (time.Time, bool) {
	switch s.Status {
	case model.StatusPending:
		if s.StartTime.After(now) {
			return s.StartTime, true
		}
		return now, true
	case model.StatusActive:
		return s.OccurrenceEnd(), true
	default:
		return time.Time{}, false
	}
}

type scheduleLister interface {
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
}

// BuildQueue loads every schedule and queues the ones that still need work,
// in storage order. On a read failure it returns an empty queue with the error.
func BuildQueue(ctx context.Context, store scheduleLister, now time.Time) (*Queue, error) {
	q := NewQueue()
	schedules, err := store.ListSchedules(ctx)
	if err != nil {
		return q, err
	}
	for _, s := range schedules {
		if trigger, ok := TriggerTime(s, now); ok {
			q.Push(s, trigger)
		}
	}
	return q, nil
}
