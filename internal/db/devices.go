package db

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/model"
)

// ErrDeviceNameTaken reports a unique-constraint hit on devices.name,
// so a registration race still maps to a conflict response.
var ErrDeviceNameTaken = errors.New("device name already registered")

func (s *pgStore) CreateDevice(name, hashedSecret string, lat, lon float64, timezone string, locationName *string) (int, error) {
	var id int
	const q = `
	INSERT INTO devices (name, hashed_secret, latitude, longitude, timezone, location_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	RETURNING id;`
	if err := s.db.Get(&id, q, name, hashedSecret, lat, lon, timezone, locationName); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, ErrDeviceNameTaken
		}
		log.Error().Err(err).Msg("CreateDevice failed")
		return 0, err
	}
	return id, nil
}

func (s *pgStore) GetDeviceByID(id int) (*model.Device, error) {
	var d model.Device
	err := s.db.Get(&d, `SELECT * FROM devices WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Int("device_id", id).Msg("GetDeviceByID failed")
		return nil, err
	}
	return &d, nil
}

func (s *pgStore) GetDeviceByName(name string) (*model.Device, error) {
	var d model.Device
	err := s.db.Get(&d, `SELECT * FROM devices WHERE name = $1;`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("GetDeviceByName failed")
		return nil, err
	}
	return &d, nil
}

func (s *pgStore) ListDevices() ([]model.Device, error) {
	var out []model.Device
	if err := s.db.Select(&out, `SELECT * FROM devices ORDER BY id;`); err != nil {
		log.Error().Err(err).Msg("ListDevices failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) UpdateDeviceLocation(id int, lat, lon float64, locationName *string) error {
	_, err := s.db.Exec(`
	UPDATE devices
	   SET latitude = $2, longitude = $3, location_name = $4, updated_at = now()
	 WHERE id = $1;`, id, lat, lon, locationName)
	if err != nil {
		log.Error().Err(err).Int("device_id", id).Msg("UpdateDeviceLocation failed")
	}
	return err
}

func (s *pgStore) UpdateDeviceAdhanAudio(id int, audioURL string) error {
	_, err := s.db.Exec(`
	UPDATE devices SET adhan_audio = $2, updated_at = now() WHERE id = $1;`, id, audioURL)
	if err != nil {
		log.Error().Err(err).Int("device_id", id).Msg("UpdateDeviceAdhanAudio failed")
	}
	return err
}

// GetAdhanPreferences reads the device's toggles. Rows are written one
// per prayer; prayers without a row read as disabled, matching a fresh
// install.
func (s *pgStore) GetAdhanPreferences(deviceID int) (model.AdhanPreferences, error) {
	rows := []struct {
		Prayer  string `db:"prayer"`
		Enabled bool   `db:"enabled"`
	}{}
	const q = `SELECT prayer, enabled FROM adhan_preferences WHERE device_id = $1;`
	if err := s.db.Select(&rows, q, deviceID); err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("GetAdhanPreferences failed")
		return nil, err
	}

	prefs := model.DefaultAdhanPreferences()
	for _, r := range rows {
		prefs[model.PrayerName(r.Prayer)] = r.Enabled
	}
	return prefs, nil
}

func (s *pgStore) SetAdhanPreference(deviceID int, prayer model.PrayerName, enabled bool) error {
	_, err := s.db.Exec(`
	INSERT INTO adhan_preferences (device_id, prayer, enabled, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (device_id, prayer)
	DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now();`, deviceID, string(prayer), enabled)
	if err != nil {
		log.Error().Err(err).
			Int("device_id", deviceID).
			Str("prayer", string(prayer)).
			Msg("SetAdhanPreference failed")
	}
	return err
}
