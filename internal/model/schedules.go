package model

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	StatusPending    ScheduleStatus = "pending"
	StatusActive     ScheduleStatus = "active"
	StatusEnded      ScheduleStatus = "ended"
	StatusConflicted ScheduleStatus = "conflicted"
)

// Terminal reports whether the status produces no further scheduler events.
func (s ScheduleStatus) Terminal() bool {
	return s == StatusEnded || s == StatusConflicted
}

func (s ScheduleStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded, StatusConflicted:
		return true
	}
	return false
}

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceCustom  Recurrence = "custom"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Recurring is true for the recurrences the scheduler knows how to advance.
func (r Recurrence) Recurring() bool {
	return r == RecurrenceDaily || r == RecurrenceWeekly || r == RecurrenceMonthly
}

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceCustom, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Schedule activates a preset between StartTime and EndTime.
//
// EndTime bounds the whole schedule, including every recurrence. WindowSeconds
// limits a single occurrence to [StartTime, StartTime+WindowSeconds]; zero means
// the occurrence lasts until EndTime.
type Schedule struct {
	ID            uuid.UUID      `db:"id"             json:"id"`
	PresetID      uuid.UUID      `db:"preset_id"      json:"preset_id"`
	Name          string         `db:"name"           json:"name"`
	Description   string         `db:"description"    json:"description"`
	StartTime     time.Time      `db:"start_time"     json:"start_time"`
	EndTime       time.Time      `db:"end_time"       json:"end_time"`
	WindowSeconds int64          `db:"window_seconds" json:"window_seconds"`
	Recurrence    Recurrence     `db:"recurrence"     json:"recurrence"`
	Status        ScheduleStatus `db:"status"         json:"status"`
	ErrorMessage  *string        `db:"error_message"  json:"error_message,omitempty"`
	CreatedAt     time.Time      `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"     json:"updated_at"`
}

// OccurrenceEnd is the instant the current occurrence closes.
func (s Schedule) OccurrenceEnd() time.Time {
	if s.WindowSeconds <= 0 {
		return s.EndTime
	}
	end := s.StartTime.Add(time.Duration(s.WindowSeconds) * time.Second)
	if end.After(s.EndTime) {
		return s.EndTime
	}
	return end
}
