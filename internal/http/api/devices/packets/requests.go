package packets

// body for registering a reader device; coordinates are pointers so a
// device on the equator or prime meridian binds instead of reading as
// absent
type RegisterRequest struct {
	Name      string   `json:"name" binding:"required,min=3"`
	Secret    string   `json:"secret" binding:"required,min=8"`
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Timezone  string   `json:"timezone"`
}

// body for re-authenticating
type LoginRequest struct {
	Name   string `json:"name" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// body for the "refresh location" action
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// body for one adhan toggle; write-through per change, not batched
type AdhanToggleRequest struct {
	Prayer  string `json:"prayer" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

type LastReadRequest struct {
	SurahNomor int    `json:"surah_nomor" binding:"required,min=1,max=114"`
	SurahName  string `json:"surah_name" binding:"required"`
	Ayah       int    `json:"ayah" binding:"required,min=1"`
}

type FavoriteRequest struct {
	SurahNomor int    `json:"surah_nomor" binding:"required,min=1,max=114"`
	SurahName  string `json:"surah_name" binding:"required"`
}

type ReaderPreferenceRequest struct {
	Translation *bool  `json:"translation" binding:"required"`
	Tafsir      *bool  `json:"tafsir" binding:"required"`
	Qari        string `json:"qari" binding:"required"`
}
