package endpoints

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/db"
	"github.com/maosquran/miqat/internal/http/api"
	"github.com/maosquran/miqat/internal/http/api/devices/packets"
	"github.com/maosquran/miqat/internal/model"
	"github.com/maosquran/miqat/internal/prayer"
	"github.com/maosquran/miqat/internal/storage"
)

type PrayerController struct {
	store     db.Store
	scheduler *prayer.Scheduler
	geocoder  LocationNamer
	audio     storage.Storage
}

// PrayerModule mounts the authenticated prayer-schedule endpoints.
func PrayerModule(store db.Store, scheduler *prayer.Scheduler, geocoder LocationNamer, audio storage.Storage) api.Module {
	ctl := &PrayerController{store: store, scheduler: scheduler, geocoder: geocoder, audio: audio}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/prayer/timings", api.ResolveEndpointWithDevice(ctl.getTimings))
		c.GET("/prayer/next", api.ResolveEndpointWithDevice(ctl.getNextPrayer))
		c.POST("/prayer/refresh", api.ResolveEndpointWithDevice(ctl.refreshSchedule))
		c.PUT("/prayer/location", api.ResolveEndpointWithDevice(ctl.updateLocation))
		c.GET("/prayer/adhan-preferences", api.ResolveEndpointWithDevice(ctl.getAdhanPreferences))
		c.PUT("/prayer/adhan-preferences", api.ResolveEndpointWithDevice(ctl.setAdhanPreference))
		c.PUT("/prayer/adhan-audio", api.ResolveEndpointWithDevice(ctl.uploadAdhanAudio))
	})
}

func clockText(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func nextPayload(next *model.NextPrayerView) *packets.NextPrayerPayload {
	if next == nil {
		return nil
	}
	return &packets.NextPrayerPayload{
		Name:             string(next.Name),
		Time:             clockText(next.Minutes),
		MinutesRemaining: next.MinutesRemaining,
		IsTomorrow:       next.IsTomorrow,
	}
}

func timingsResponse(device *model.Device, view prayer.ScheduleView) packets.TimingsResponse {
	locationName := ""
	if device.LocationName != nil {
		locationName = *device.LocationName
	}
	return packets.TimingsResponse{
		Date:         view.Schedule.Date,
		LocationName: locationName,
		Stale:        view.Stale,
		Slots:        view.Schedule.Slots,
		Next:         nextPayload(view.Next),
	}
}

// GET /api/devices/prayer/timings
func (p *PrayerController) getTimings(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	view, ok := p.scheduler.Snapshot(device.ID)
	if !ok || view.Schedule == nil {
		// tracked but the first fetch has not landed, or tracking was
		// lost across a restart; either way the reader shows loading
		return packets.TimingsResponse{Stale: true}, nil
	}
	return timingsResponse(device, view), nil
}

// GET /api/devices/prayer/next
func (p *PrayerController) getNextPrayer(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	view, ok := p.scheduler.Snapshot(device.ID)
	if !ok || view.Next == nil {
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "no schedule yet, try refreshing"}
	}
	return nextPayload(view.Next), nil
}

// POST /api/devices/prayer/refresh
func (p *PrayerController) refreshSchedule(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	if err := p.scheduler.Refresh(ctx.Request.Context(), device.ID); err != nil {
		// last-known-good schedule stays on screen; the reader shows a
		// retry banner off this status
		log.Warn().Err(err).Int("device_id", device.ID).Msg("manual refresh failed")
		return nil, &api.APIError{Code: http.StatusBadGateway, Message: "could not refresh prayer times"}
	}
	view, ok := p.scheduler.Snapshot(device.ID)
	if !ok || view.Schedule == nil {
		return packets.TimingsResponse{Stale: true}, nil
	}
	return timingsResponse(device, view), nil
}

// PUT /api/devices/prayer/location
func (p *PrayerController) updateLocation(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	var request packets.UpdateLocationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	locationName := p.geocoder.LocationName(ctx.Request.Context(), *request.Latitude, *request.Longitude)
	if err := p.store.UpdateDeviceLocation(device.ID, *request.Latitude, *request.Longitude, &locationName); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not update location"}
	}

	device.Latitude = *request.Latitude
	device.Longitude = *request.Longitude
	device.LocationName = &locationName
	if err := p.scheduler.UpdateLocation(ctx.Request.Context(), *device); err != nil {
		log.Warn().Err(err).Int("device_id", device.ID).Msg("schedule refresh after location change failed")
	}

	return gin.H{"location_name": locationName}, nil
}

// GET /api/devices/prayer/adhan-preferences
func (p *PrayerController) getAdhanPreferences(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	prefs, ok := p.scheduler.Preferences(device.ID)
	if !ok {
		var err error
		prefs, err = p.store.GetAdhanPreferences(device.ID)
		if err != nil {
			return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not load preferences"}
		}
	}

	out := make(map[string]bool, len(prefs))
	for name, enabled := range prefs {
		out[string(name)] = enabled
	}
	return packets.AdhanPreferencesResponse{Preferences: out}, nil
}

// PUT /api/devices/prayer/adhan-preferences
func (p *PrayerController) setAdhanPreference(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	var request packets.AdhanToggleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	name := model.PrayerName(request.Prayer)
	if !adhanEligible(name) {
		return nil, &api.APIError{Code: http.StatusUnprocessableEntity, Message: fmt.Sprintf("%q cannot carry an adhan toggle", request.Prayer)}
	}

	// durable write first, then the in-memory copy the tick reads
	if err := p.store.SetAdhanPreference(device.ID, name, *request.Enabled); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not save preference"}
	}
	p.scheduler.SetPreference(device.ID, name, *request.Enabled)

	return gin.H{"prayer": request.Prayer, "enabled": *request.Enabled}, nil
}

// PUT /api/devices/prayer/adhan-audio
func (p *PrayerController) uploadAdhanAudio(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	fileHeader, err := ctx.FormFile("audio")
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "missing audio file"}
	}

	url, err := p.audio.SaveAudio(fileHeader, fileHeader.Filename)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusUnprocessableEntity, Message: err.Error()}
	}

	if err := p.store.UpdateDeviceAdhanAudio(device.ID, url); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not save audio"}
	}
	p.scheduler.SetAdhanAudio(device.ID, url)

	return packets.AdhanAudioResponse{AudioURL: url}, nil
}

func adhanEligible(name model.PrayerName) bool {
	for _, n := range model.AdhanNames {
		if n == name {
			return true
		}
	}
	return false
}
