package endpoints

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/tv/packets"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

const uncategorized = "other"

// MenuModule mounts the read-only endpoint polled by menu displays.
func MenuModule(store db.Store) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/menu", func(ctx *gin.Context) (any, *api.Error) {
			return buildMenu(ctx, store)
		})
	})
}

func buildMenu(ctx *gin.Context, store db.Store) (any, *api.Error) {
	rctx := ctx.Request.Context()
	items, err := store.ListItems(rctx)
	if err != nil {
		return nil, api.Internal("failed to list items")
	}
	notices, err := store.ListNotices(rctx)
	if err != nil {
		return nil, api.Internal("failed to list notices")
	}
	schedules, err := store.ListSchedules(rctx)
	if err != nil {
		return nil, api.Internal("failed to list schedules")
	}

	response := packets.MenuResponse{
		Categories: []packets.MenuCategory{},
		Notices:    []packets.MenuNotice{},
	}

	// categories keep the order their first item appears in
	index := map[string]int{}
	for _, it := range items {
		if !it.IsAvailable {
			continue
		}
		name := it.Category
		if name == "" {
			name = uncategorized
		}
		i, ok := index[name]
		if !ok {
			i = len(response.Categories)
			index[name] = i
			response.Categories = append(response.Categories, packets.MenuCategory{Name: name})
		}
		response.Categories[i].Items = append(response.Categories[i].Items, packets.MenuItem{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			PriceCents:  it.PriceCents,
		})
	}

	for _, n := range notices {
		if n.IsActive {
			response.Notices = append(response.Notices, packets.MenuNotice{Title: n.Title, Body: n.Body})
		}
	}

	for _, s := range schedules {
		if s.Status == model.StatusActive {
			response.Schedule = &packets.ActiveSchedule{
				ID:    s.ID,
				Name:  s.Name,
				Until: s.OccurrenceEnd().Format(time.RFC3339),
			}
			break
		}
	}
	return response, nil
}
