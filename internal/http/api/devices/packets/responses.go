package packets

import "github.com/maosquran/miqat/internal/model"

type TokenResponse struct {
	Token string `json:"token"`
}

// returned for GET /prayer/timings
type TimingsResponse struct {
	Date         string             `json:"date"`
	LocationName string             `json:"location_name"`
	Stale        bool               `json:"stale"`
	Slots        []model.PrayerSlot `json:"slots"`
	Next         *NextPrayerPayload `json:"next,omitempty"`
}

type NextPrayerPayload struct {
	Name             string `json:"name"`
	Time             string `json:"time"` // "HH:MM"
	MinutesRemaining int    `json:"minutes_remaining"`
	IsTomorrow       bool   `json:"is_tomorrow"`
}

type AdhanPreferencesResponse struct {
	Preferences map[string]bool `json:"preferences"`
}

type AdhanAudioResponse struct {
	AudioURL string `json:"audio_url"`
}
