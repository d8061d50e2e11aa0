package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/maosquran/miqat/internal/db"
	"github.com/maosquran/miqat/internal/geocode"
	"github.com/maosquran/miqat/internal/http/api"
	deviceapi "github.com/maosquran/miqat/internal/http/api/devices/endpoints"
	"github.com/maosquran/miqat/internal/prayer"
	"github.com/maosquran/miqat/internal/storage"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(
	r *gin.Engine,
	env Environment,
	store db.Store,
	scheduler *prayer.Scheduler,
	geocoder *geocode.Client,
	audioStorage storage.Storage,
) {
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
			"Authorization",
			"Accept",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/devices",
		Auth:   false,
	},
		deviceapi.RegisterModule(env.SecretKey, store, geocoder, scheduler),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/devices",
		Auth:      true,
		SecretKey: env.SecretKey,
		Store:     store,
	},
		deviceapi.PrayerModule(store, scheduler, geocoder, audioStorage),
		deviceapi.QuranModule(store),
	)

	// locally stored adhan audio
	if !env.UseSpaces {
		r.Static("/uploads", "./uploads")
	}
}
