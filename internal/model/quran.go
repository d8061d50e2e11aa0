package model

import "time"

// SurahFavorite is one bookmarked surah for a device.
type SurahFavorite struct {
	ID         int       `db:"id"          json:"id"`
	DeviceID   int       `db:"device_id"   json:"device_id"`
	SurahNomor int       `db:"surah_nomor" json:"surah_nomor"`
	SurahName  string    `db:"surah_name"  json:"surah_name"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// LastRead tracks the verse a device last had open.
type LastRead struct {
	DeviceID   int       `db:"device_id"   json:"device_id"`
	SurahNomor int       `db:"surah_nomor" json:"surah_nomor"`
	SurahName  string    `db:"surah_name"  json:"surah_name"`
	Ayah       int       `db:"ayah"        json:"ayah"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// ReaderPreference mirrors the reader's display settings.
type ReaderPreference struct {
	DeviceID    int       `db:"device_id"   json:"device_id"`
	Translation bool      `db:"translation" json:"translation"`
	Tafsir      bool      `db:"tafsir"      json:"tafsir"`
	Qari        string    `db:"qari"        json:"qari"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

// QariList is the set of reciters the content API serves, keyed by the
// two-digit id the reader stores.
var QariList = map[string]string{
	"01": "Abdullah Al-Juhany",
	"02": "Abdul Muhsin Al-Qasim",
	"03": "Abdurrahman as-Sudais",
	"04": "Ibrahim Al-Akhdar",
	"05": "Misyari Rasyid Al-Afasi",
}
