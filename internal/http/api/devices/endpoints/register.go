package endpoints

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/db"
	"github.com/maosquran/miqat/internal/http/api"
	"github.com/maosquran/miqat/internal/http/api/devices/packets"
	"github.com/maosquran/miqat/internal/http/middleware"
	"github.com/maosquran/miqat/internal/prayer"
)

// LocationNamer resolves coordinates to display text, best effort.
type LocationNamer interface {
	LocationName(ctx context.Context, lat, lon float64) string
}

type RegistrationController struct {
	jwtSecret string
	store     db.Store
	geocoder  LocationNamer
	scheduler *prayer.Scheduler
}

// RegisterModule mounts the public device registration endpoints.
func RegisterModule(jwtSecret string, store db.Store, geocoder LocationNamer, scheduler *prayer.Scheduler) api.Module {
	ctl := &RegistrationController{
		jwtSecret: jwtSecret,
		store:     store,
		geocoder:  geocoder,
		scheduler: scheduler,
	}
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/register", api.ResolveEndpoint(ctl.registerDevice))
		c.POST("/login", api.ResolveEndpoint(ctl.loginDevice))
	})
}

// POST /api/devices/register
func (r *RegistrationController) registerDevice(ctx *gin.Context) (any, *api.APIError) {
	var request packets.RegisterRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	if existing, _ := r.store.GetDeviceByName(request.Name); existing != nil {
		return nil, &api.APIError{Code: http.StatusConflict, Message: "device name already registered"}
	}

	hashed, err := middleware.HashSecret(request.Secret)
	if err != nil {
		log.Error().Err(err).Msg("could not hash device secret")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "something went wrong, please try again"}
	}

	locationName := r.geocoder.LocationName(ctx.Request.Context(), *request.Latitude, *request.Longitude)

	deviceID, err := r.store.CreateDevice(request.Name, hashed, *request.Latitude, *request.Longitude, request.Timezone, &locationName)
	if errors.Is(err, db.ErrDeviceNameTaken) {
		// a concurrent register with the same name won the insert
		return nil, &api.APIError{Code: http.StatusConflict, Message: "device name already registered"}
	}
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not create device"}
	}

	device, err := r.store.GetDeviceByID(deviceID)
	if err != nil || device == nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not load device"}
	}

	prefs, err := r.store.GetAdhanPreferences(deviceID)
	if err != nil {
		log.Warn().Err(err).Int("device_id", deviceID).Msg("could not load adhan preferences, using defaults")
		prefs = nil
	}

	// the initial timetable fetch happens off the request path; the
	// reader polls /prayer/timings and renders a loading state meanwhile
	go func() {
		trackCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.scheduler.Track(trackCtx, *device, prefs)
	}()

	token, err := middleware.GenerateJWT(deviceID, r.jwtSecret)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not generate token"}
	}

	return packets.TokenResponse{Token: token}, nil
}

// POST /api/devices/login
func (r *RegistrationController) loginDevice(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	device, err := r.store.GetDeviceByName(request.Name)
	if err != nil || device == nil || !middleware.CheckSecret(device.HashedSecret, request.Secret) {
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: middleware.ErrInvalidCredentials.Error()}
	}

	token, err := middleware.GenerateJWT(device.ID, r.jwtSecret)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not generate token"}
	}

	return packets.TokenResponse{Token: token}, nil
}
