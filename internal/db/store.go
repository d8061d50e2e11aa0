// exposes a Store interface that is passed to API calls
package db

import (
	"github.com/jmoiron/sqlx"

	"github.com/maosquran/miqat/internal/model"
)

type Store interface {
	// device functions
	CreateDevice(name, hashedSecret string, lat, lon float64, timezone string, locationName *string) (int, error)
	GetDeviceByID(id int) (*model.Device, error)
	GetDeviceByName(name string) (*model.Device, error)
	ListDevices() ([]model.Device, error)
	UpdateDeviceLocation(id int, lat, lon float64, locationName *string) error
	UpdateDeviceAdhanAudio(id int, audioURL string) error

	// adhan preference functions
	GetAdhanPreferences(deviceID int) (model.AdhanPreferences, error)
	SetAdhanPreference(deviceID int, prayer model.PrayerName, enabled bool) error

	// quran reader functions
	ListFavorites(deviceID int) ([]model.SurahFavorite, error)
	AddFavorite(deviceID, surahNomor int, surahName string) (*model.SurahFavorite, error)
	RemoveFavorite(deviceID, surahNomor int) error
	GetLastRead(deviceID int) (*model.LastRead, error)
	SetLastRead(deviceID, surahNomor int, surahName string, ayah int) error
	GetReaderPreference(deviceID int) (*model.ReaderPreference, error)
	SetReaderPreference(deviceID int, translation, tafsir bool, qari string) error
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &pgStore{db: conn}
}
