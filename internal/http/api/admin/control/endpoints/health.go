package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
)

func HealthModule(schedulingEnabled bool) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/health", func(ctx *gin.Context) (any, *api.Error) {
			return gin.H{"status": "ok", "scheduling": schedulingEnabled}, nil
		})
	})
}
