package endpoints

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

type NoticeController struct {
	store db.Store
}

func NoticeModule(store db.Store) api.Module {
	ctl := &NoticeController{store: store}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/notices", ctl.listNotices)
		c.POST("/notices", ctl.createNotice)
		c.PUT("/notices/:id", ctl.updateNotice)
		c.DELETE("/notices/:id", ctl.deleteNotice)
	})
}

func (n *NoticeController) listNotices(ctx *gin.Context) (any, *api.Error) {
	list, err := n.store.ListNotices(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list notices")
	}
	response := make([]packets.NoticeResponse, 0, len(list))
	for _, it := range list {
		response = append(response, packets.NewNoticeResponse(it))
	}
	return response, nil
}

func (n *NoticeController) createNotice(ctx *gin.Context) (any, *api.Error) {
	var request packets.CreateNoticeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	active := true
	if request.IsActive != nil {
		active = *request.IsActive
	}
	notice, err := n.store.CreateNotice(ctx.Request.Context(), model.Notice{
		Title:    request.Title,
		Body:     request.Body,
		IsActive: active,
	})
	if err != nil {
		return nil, api.Internal("could not create notice")
	}
	return packets.NewNoticeResponse(notice), nil
}

func (n *NoticeController) updateNotice(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateNoticeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	// notices have no single-record read; find it in the list
	list, err := n.store.ListNotices(ctx.Request.Context())
	if err != nil {
		return nil, api.Internal("failed to list notices")
	}
	var notice *model.Notice
	for i := range list {
		if list[i].ID == id {
			notice = &list[i]
			break
		}
	}
	if notice == nil {
		return nil, api.NotFound("notice not found")
	}

	if request.Title != nil {
		notice.Title = *request.Title
	}
	if request.Body != nil {
		notice.Body = *request.Body
	}
	if request.IsActive != nil {
		notice.IsActive = *request.IsActive
	}
	notice.UpdatedAt = time.Now().UTC()

	err = n.store.UpdateNotice(ctx.Request.Context(), id, *notice)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("notice not found")
	}
	if err != nil {
		return nil, api.Internal("could not update notice")
	}
	return packets.NewNoticeResponse(*notice), nil
}

func (n *NoticeController) deleteNotice(ctx *gin.Context) (any, *api.Error) {
	id, apiErr := api.ParseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	err := n.store.DeleteNotice(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("notice not found")
	}
	if err != nil {
		return nil, api.Internal("could not delete notice")
	}
	return gin.H{"message": "deleted"}, nil
}
