package packets

// RESPONSES FOR /api/tv/*

import "github.com/google/uuid"

// MenuResponse is what a display renders: available items by category, the
// schedule currently driving them, and active notices.
type MenuResponse struct {
	Schedule   *ActiveSchedule `json:"schedule"`
	Categories []MenuCategory  `json:"categories"`
	Notices    []MenuNotice    `json:"notices"`
}

type ActiveSchedule struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Until string    `json:"until"`
}

type MenuCategory struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

type MenuItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
}

type MenuNotice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
