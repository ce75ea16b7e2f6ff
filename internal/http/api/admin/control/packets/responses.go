package packets

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

type ItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PriceCents  int64     `json:"price_cents"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

func NewItemResponse(it model.Item) ItemResponse {
	return ItemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Category:    it.Category,
		PriceCents:  it.PriceCents,
		IsAvailable: it.IsAvailable,
		CreatedAt:   it.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   it.UpdatedAt.Format(time.RFC3339),
	}
}

type PresetResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

func NewPresetResponse(p model.Preset) PresetResponse {
	ids := p.ItemIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return PresetResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ItemIDs:     ids,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

// ScheduleResponse flattens times to RFC3339
type ScheduleResponse struct {
	ID            uuid.UUID `json:"id"`
	PresetID      uuid.UUID `json:"preset_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	WindowSeconds int64     `json:"window_seconds"`
	Recurrence    string    `json:"recurrence"`
	Status        string    `json:"status"`
	ErrorMessage  *string   `json:"error_message"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
}

func NewScheduleResponse(s model.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:            s.ID,
		PresetID:      s.PresetID,
		Name:          s.Name,
		Description:   s.Description,
		StartTime:     s.StartTime.Format(time.RFC3339),
		EndTime:       s.EndTime.Format(time.RFC3339),
		WindowSeconds: s.WindowSeconds,
		Recurrence:    string(s.Recurrence),
		Status:        string(s.Status),
		ErrorMessage:  s.ErrorMessage,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     s.UpdatedAt.Format(time.RFC3339),
	}
}

type NoticeResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

func NewNoticeResponse(n model.Notice) NoticeResponse {
	return NoticeResponse{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		IsActive:  n.IsActive,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.Format(time.RFC3339),
	}
}
