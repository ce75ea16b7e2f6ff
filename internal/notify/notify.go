// Package notify fans scheduler state changes out to displays and caches.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

type EventType string

const (
	// EventActivated is sent after a preset has been applied to the item set.
	EventActivated EventType = "activated"
	// EventStatusChanged is sent for every other schedule transition.
	EventStatusChanged EventType = "status_changed"
)

type Event struct {
	Type             EventType            `json:"type"`
	ScheduleID       uuid.UUID            `json:"schedule_id"`
	ScheduleName     string               `json:"schedule_name"`
	PresetID         uuid.UUID            `json:"preset_id"`
	Status           model.ScheduleStatus `json:"status"`
	Message          string               `json:"message,omitempty"`
	AvailableItemIDs []uuid.UUID          `json:"available_item_ids,omitempty"`
	At               time.Time            `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi delivers an event to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
