package model

import "time"

// Device is a registered reader client. Its coordinates drive which
// timetable the scheduler maintains for it.
type Device struct {
	ID           int       `db:"id"            json:"id"`
	Name         string    `db:"name"          json:"name"`
	HashedSecret string    `db:"hashed_secret" json:"-"`
	Latitude     float64   `db:"latitude"      json:"latitude"`
	Longitude    float64   `db:"longitude"     json:"longitude"`
	Timezone     string    `db:"timezone"      json:"timezone"`
	LocationName *string   `db:"location_name" json:"location_name"`
	AdhanAudio   *string   `db:"adhan_audio"   json:"adhan_audio"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
