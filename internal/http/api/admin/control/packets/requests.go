package packets

import (
	"time"

	"github.com/google/uuid"
)

type CreateItemRequest struct {
	Name        string `json:"name"        binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PriceCents  int64  `json:"price_cents" binding:"gte=0"`
	IsAvailable *bool  `json:"is_available"` // defaults to items.default_availability
}

type UpdateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	PriceCents  *int64  `json:"price_cents" binding:"omitempty,gte=0"`
	IsAvailable *bool   `json:"is_available"`
}

type CreatePresetRequest struct {
	Name        string      `json:"name"     binding:"required"`
	Description string      `json:"description"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
}

type UpdatePresetRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	ItemIDs     *[]uuid.UUID `json:"item_ids"`
}

// ScheduleRequest is used for both create and full update.
type ScheduleRequest struct {
	Name          string    `json:"name"           binding:"required"`
	Description   string    `json:"description"`
	PresetID      uuid.UUID `json:"preset_id"      binding:"required"`
	StartTime     time.Time `json:"start_time"     binding:"required"` // RFC3339
	EndTime       time.Time `json:"end_time"       binding:"required"`
	WindowSeconds int64     `json:"window_seconds" binding:"gte=0"` // 0 = whole range
	Recurrence    string    `json:"recurrence"     binding:"omitempty,oneof=none custom daily weekly monthly"`
}

type CreateNoticeRequest struct {
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body"`
	IsActive *bool  `json:"is_active"`
}

type UpdateNoticeRequest struct {
	Title    *string `json:"title"`
	Body     *string `json:"body"`
	IsActive *bool   `json:"is_active"`
}
