package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

type PresetController struct {
	store db.Store
}

// PresetModule mounts the /presets endpoints.
func PresetModule(store db.Store) api.Module {
	ctl := &PresetController{store: store}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/presets", ctl.listPresets)
		c.POST("/presets", ctl.createPreset)
		c.GET("/presets/:id", ctl.getPreset)
		c.PUT("/presets/:id", ctl.updatePreset)
		c.DELETE("/presets/:id", ctl.deletePreset)
	})
}

func (p *PresetController) listPresets(ctx *gin.Context) (any, *api.Error) {
	list, err := p.store.ListPresets(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list presets")
	}
	response := make([]packets.PresetResponse, 0, len(list))
	for _, it := range list {
		response = append(response, packets.NewPresetResponse(it))
	}
	return response, nil
}

func (p *PresetController) getPreset(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	preset, err := p.store.GetPreset(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("preset not found")
	}
	if err != nil {
		return nil, api.Internal("failed to load preset")
	}
	return packets.NewPresetResponse(preset), nil
}

func (p *PresetController) createPreset(ctx *gin.Context) (any, *api.Error) {
	var request packets.CreatePresetRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	ids, apiErr := p.checkItems(ctx, request.ItemIDs)
	if apiErr != nil {
		return nil, apiErr
	}

	preset, err := p.store.CreatePreset(ctx.Request.Context(), model.Preset{
		Name:        request.Name,
		Description: request.Description,
		ItemIDs:     ids,
	})
	if err != nil {
		return nil, api.Internal("could not create preset")
	}
	log.Info().Str("preset_id", preset.ID.String()).Int("items", len(ids)).Msg("preset created")
	return packets.NewPresetResponse(preset), nil
}

func (p *PresetController) updatePreset(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdatePresetRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	preset, err := p.store.GetPreset(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("preset not found")
	}
	if err != nil {
		return nil, api.Internal("failed to load preset")
	}
	if request.Name != nil {
		if *request.Name == "" {
			return nil, api.BadRequest("name must not be empty")
		}
		preset.Name = *request.Name
	}
	if request.Description != nil {
		preset.Description = *request.Description
	}
	if request.ItemIDs != nil {
		ids, apiErr := p.checkItems(ctx, *request.ItemIDs)
		if apiErr != nil {
			return nil, apiErr
		}
		preset.ItemIDs = ids
	}
	preset.UpdatedAt = time.Time{}

	if err := p.store.UpdatePreset(ctx.Request.Context(), id, preset); err != nil {
		return nil, api.Internal("could not update preset")
	}
	updated, err := p.store.GetPreset(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.Internal("failed to load preset")
	}
	return packets.NewPresetResponse(updated), nil
}

// deletePreset refuses while a pending or active schedule still uses the preset.
func (p *PresetController) deletePreset(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	schedules, err := p.store.ListSchedules(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list schedules")
	}
	for _, s := range schedules {
		if s.PresetID == id && !s.Status.Terminal() {
			return nil, &api.Error{
				Code:    http.StatusConflict,
				Message: fmt.Sprintf("preset is used by schedule '%s' (%s)", s.Name, s.ID),
			}
		}
	}

	err = p.store.DeletePreset(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("preset not found")
	}
	if err != nil {
		return nil, api.Internal("could not delete preset")
	}
	return gin.H{"message": "deleted"}, nil
}

// checkItems drops duplicates and makes sure every id names an existing item.
func (p *PresetController) checkItems(ctx *gin.Context, ids []uuid.UUID) ([]uuid.UUID, *api.Error) {
	items, err := p.store.ListItems(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list items")
	}
	known := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, api.BadRequest(fmt.Sprintf("item %s not found", id))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
