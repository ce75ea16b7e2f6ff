package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/platter/internal/config"
	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/endpoints"
	tvapi "github.com/Nixie-Tech-LLC/platter/internal/http/api/tv/endpoints"
)

// RegisterRoutes sets up all application routes. nudger is nil when the
// scheduler is disabled.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, store db.Store, nudger adminapi.Nudger) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	settings := cfg.Settings
	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/admin",
	},
		adminapi.ItemModule(store, settings.Items.DefaultAvailability),
		adminapi.PresetModule(store),
		adminapi.ScheduleModule(store, adminapi.ScheduleRules{
			AllowOverlap: settings.Validation.AllowOverlappingSchedules,
			MinDuration:  settings.Validation.MinScheduleDuration,
			MaxDuration:  settings.Validation.MaxScheduleDuration,
		}, nudger),
		adminapi.NoticeModule(store),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/tv",
	},
		tvapi.MenuModule(store),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
	},
		adminapi.HealthModule(settings.Scheduling.Enabled),
	)
}
