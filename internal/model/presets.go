package model

import (
	"time"

	"github.com/google/uuid"
)

// Preset is a named set of items that are made available together.
type Preset struct {
	ID          uuid.UUID   `db:"id"          json:"id"`
	Name        string      `db:"name"        json:"name"`
	Description string      `db:"description" json:"description"`
	ItemIDs     []uuid.UUID `db:"-"           json:"item_ids"`
	CreatedAt   time.Time   `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"  json:"updated_at"`
}

func (p Preset) Contains(itemID uuid.UUID) bool {
	for _, id := range p.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}
