package endpoints

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

type ItemController struct {
	store               db.Store
	defaultAvailability bool
}

// ItemModule mounts the /items endpoints. New items are available by default
// unless defaultAvailability is false.
func ItemModule(store db.Store, defaultAvailability bool) api.Module {
	ctl := &ItemController{store: store, defaultAvailability: defaultAvailability}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/items", ctl.listItems)
		c.POST("/items", ctl.createItem)
		c.GET("/items/:id", ctl.getItem)
		c.PUT("/items/:id", ctl.updateItem)
		c.DELETE("/items/:id", ctl.deleteItem)
	})
}

func (i *ItemController) listItems(ctx *gin.Context) (any, *api.Error) {
	list, err := i.store.ListItems(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list items")
	}
	response := make([]packets.ItemResponse, 0, len(list))
	for _, it := range list {
		response = append(response, packets.NewItemResponse(it))
	}
	return response, nil
}

func (i *ItemController) getItem(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	it, err := i.store.GetItem(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("item not found")
	}
	if err != nil {
		return nil, api.Internal("failed to load item")
	}
	return packets.NewItemResponse(it), nil
}

func (i *ItemController) createItem(ctx *gin.Context) (any, *api.Error) {
	var request packets.CreateItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	available := i.defaultAvailability
	if request.IsAvailable != nil {
		available = *request.IsAvailable
	}
	it, err := i.store.CreateItem(ctx.Request.Context(), model.Item{
		Name:        request.Name,
		Description: request.Description,
		Category:    request.Category,
		PriceCents:  request.PriceCents,
		IsAvailable: available,
	})
	if err != nil {
		return nil, api.Internal("could not create item")
	}
	log.Info().Str("item_id", it.ID.String()).Str("name", it.Name).Msg("item created")
	return packets.NewItemResponse(it), nil
}

func (i *ItemController) updateItem(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	it, err := i.store.GetItem(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("item not found")
	}
	if err != nil {
		return nil, api.Internal("failed to load item")
	}
	if request.Name != nil {
		it.Name = *request.Name
	}
	if request.Description != nil {
		it.Description = *request.Description
	}
	if request.Category != nil {
		it.Category = *request.Category
	}
	if request.PriceCents != nil {
		it.PriceCents = *request.PriceCents
	}
	if request.IsAvailable != nil {
		it.IsAvailable = *request.IsAvailable
	}
	if it.Name == "" {
		return nil, api.BadRequest("name must not be empty")
	}
	it.UpdatedAt = time.Time{} // stamped by the store

	if err := i.store.UpdateItem(ctx.Request.Context(), id, it); err != nil {
		return nil, api.Internal("could not update item")
	}
	updated, err := i.store.GetItem(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.Internal("failed to load item")
	}
	return packets.NewItemResponse(updated), nil
}

func (i *ItemController) deleteItem(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	err := i.store.DeleteItem(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("item not found")
	}
	if err != nil {
		return nil, api.Internal("could not delete item")
	}
	return gin.H{"message": "deleted"}, nil
}
