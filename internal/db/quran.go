package db

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/model"
)

func (s *pgStore) ListFavorites(deviceID int) ([]model.SurahFavorite, error) {
	var out []model.SurahFavorite
	const q = `
	SELECT id, device_id, surah_nomor, surah_name, created_at
	  FROM surah_favorites
	 WHERE device_id = $1
	 ORDER BY created_at DESC;`
	if err := s.db.Select(&out, q, deviceID); err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("ListFavorites failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) AddFavorite(deviceID, surahNomor int, surahName string) (*model.SurahFavorite, error) {
	var f model.SurahFavorite
	const q = `
	INSERT INTO surah_favorites (device_id, surah_nomor, surah_name, created_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (device_id, surah_nomor) DO UPDATE SET surah_name = EXCLUDED.surah_name
	RETURNING id, device_id, surah_nomor, surah_name, created_at;`
	if err := s.db.Get(&f, q, deviceID, surahNomor, surahName); err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("AddFavorite failed")
		return nil, err
	}
	return &f, nil
}

func (s *pgStore) RemoveFavorite(deviceID, surahNomor int) error {
	_, err := s.db.Exec(`DELETE FROM surah_favorites WHERE device_id = $1 AND surah_nomor = $2;`, deviceID, surahNomor)
	if err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Int("surah", surahNomor).Msg("RemoveFavorite failed")
	}
	return err
}

func (s *pgStore) GetLastRead(deviceID int) (*model.LastRead, error) {
	var lr model.LastRead
	err := s.db.Get(&lr, `SELECT * FROM last_read WHERE device_id = $1;`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("GetLastRead failed")
		return nil, err
	}
	return &lr, nil
}

func (s *pgStore) SetLastRead(deviceID, surahNomor int, surahName string, ayah int) error {
	_, err := s.db.Exec(`
	INSERT INTO last_read (device_id, surah_nomor, surah_name, ayah, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (device_id)
	DO UPDATE SET surah_nomor = EXCLUDED.surah_nomor,
	              surah_name  = EXCLUDED.surah_name,
	              ayah        = EXCLUDED.ayah,
	              updated_at  = now();`, deviceID, surahNomor, surahName, ayah)
	if err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("SetLastRead failed")
	}
	return err
}

func (s *pgStore) GetReaderPreference(deviceID int) (*model.ReaderPreference, error) {
	var p model.ReaderPreference
	err := s.db.Get(&p, `SELECT * FROM reader_preferences WHERE device_id = $1;`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("GetReaderPreference failed")
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) SetReaderPreference(deviceID int, translation, tafsir bool, qari string) error {
	_, err := s.db.Exec(`
	INSERT INTO reader_preferences (device_id, translation, tafsir, qari, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (device_id)
	DO UPDATE SET translation = EXCLUDED.translation,
	              tafsir      = EXCLUDED.tafsir,
	              qari        = EXCLUDED.qari,
	              updated_at  = now();`, deviceID, translation, tafsir, qari)
	if err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("SetReaderPreference failed")
	}
	return err
}
