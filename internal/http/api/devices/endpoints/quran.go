package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maosquran/miqat/internal/db"
	"github.com/maosquran/miqat/internal/http/api"
	"github.com/maosquran/miqat/internal/http/api/devices/packets"
	"github.com/maosquran/miqat/internal/model"
)

type QuranController struct {
	store db.Store
}

// QuranModule mounts the reader-state endpoints: favorites, last-read
// position, and display preferences.
func QuranModule(store db.Store) api.Module {
	ctl := &QuranController{store: store}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/quran/favorites", api.ResolveEndpointWithDevice(ctl.listFavorites))
		c.POST("/quran/favorites", api.ResolveEndpointWithDevice(ctl.addFavorite))
		c.DELETE("/quran/favorites/:nomor", api.ResolveEndpointWithDevice(ctl.removeFavorite))
		c.GET("/quran/last-read", api.ResolveEndpointWithDevice(ctl.getLastRead))
		c.PUT("/quran/last-read", api.ResolveEndpointWithDevice(ctl.setLastRead))
		c.GET("/quran/preferences", api.ResolveEndpointWithDevice(ctl.getPreferences))
		c.PUT("/quran/preferences", api.ResolveEndpointWithDevice(ctl.setPreferences))
	})
}

// GET /api/devices/quran/favorites
func (q *QuranController) listFavorites(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	favorites, err := q.store.ListFavorites(device.ID)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not list favorites"}
	}
	if favorites == nil {
		favorites = []model.SurahFavorite{}
	}
	return favorites, nil
}

// POST /api/devices/quran/favorites
func (q *QuranController) addFavorite(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	var request packets.FavoriteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	favorite, err := q.store.AddFavorite(device.ID, request.SurahNomor, request.SurahName)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not add favorite"}
	}
	return favorite, nil
}

// DELETE /api/devices/quran/favorites/:nomor
func (q *QuranController) removeFavorite(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	nomor, err := strconv.Atoi(ctx.Param("nomor"))
	if err != nil || nomor < 1 || nomor > 114 {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid surah number"}
	}

	if err := q.store.RemoveFavorite(device.ID, nomor); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not remove favorite"}
	}
	return gin.H{"removed": nomor}, nil
}

// GET /api/devices/quran/last-read
func (q *QuranController) getLastRead(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	lastRead, err := q.store.GetLastRead(device.ID)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not load last read"}
	}
	if lastRead == nil {
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "no last-read position yet"}
	}
	return lastRead, nil
}

// PUT /api/devices/quran/last-read
func (q *QuranController) setLastRead(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	var request packets.LastReadRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	if err := q.store.SetLastRead(device.ID, request.SurahNomor, request.SurahName, request.Ayah); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not save last read"}
	}
	return gin.H{"surah_nomor": request.SurahNomor, "ayah": request.Ayah}, nil
}

// GET /api/devices/quran/preferences
func (q *QuranController) getPreferences(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	pref, err := q.store.GetReaderPreference(device.ID)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not load preferences"}
	}
	if pref == nil {
		// fresh install defaults, same as the reader ships with
		return model.ReaderPreference{DeviceID: device.ID, Translation: true, Tafsir: false, Qari: "05"}, nil
	}
	return pref, nil
}

// PUT /api/devices/quran/preferences
func (q *QuranController) setPreferences(ctx *gin.Context, device *model.Device) (any, *api.APIError) {
	var request packets.ReaderPreferenceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	if _, ok := model.QariList[request.Qari]; !ok {
		return nil, &api.APIError{Code: http.StatusUnprocessableEntity, Message: fmt.Sprintf("unknown qari %q", request.Qari)}
	}

	if err := q.store.SetReaderPreference(device.ID, *request.Translation, *request.Tafsir, request.Qari); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not save preferences"}
	}
	return gin.H{"translation": *request.Translation, "tafsir": *request.Tafsir, "qari": request.Qari}, nil
}
