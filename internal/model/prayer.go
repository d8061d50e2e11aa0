package model

// PrayerName tags one entry of the daily timetable.
type PrayerName string

const (
	Fajr    PrayerName = "Fajr"
	Sunrise PrayerName = "Sunrise"
	Dhuhr   PrayerName = "Dhuhr"
	Asr     PrayerName = "Asr"
	Maghrib PrayerName = "Maghrib"
	Isha    PrayerName = "Isha"
)

// TimetableNames is every name that must appear in a normalized schedule,
// in canonical order. Sunrise is a timetable marker only; it never fires
// an adhan notification.
var TimetableNames = []PrayerName{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// AdhanNames are the prayers eligible for notification triggering.
var AdhanNames = []PrayerName{Fajr, Dhuhr, Asr, Maghrib, Isha}

// PrayerSlot is a single named prayer time within a day's schedule.
// Minutes is minutes since midnight, 0–1439.
type PrayerSlot struct {
	Name    PrayerName `json:"name"`
	Minutes int        `json:"minutes"`
}

// DaySchedule is the normalized timetable for one (latitude, longitude,
// date) triple: exactly one slot per timetable name, sorted ascending by
// Minutes. It is built wholesale on each successful fetch and never
// mutated in place.
type DaySchedule struct {
	Date  string       `json:"date"` // ISO calendar date, e.g. "2025-01-02"
	Slots []PrayerSlot `json:"slots"`
}

// Slot returns the slot for name, or false if the schedule does not
// carry it.
func (s DaySchedule) Slot(name PrayerName) (PrayerSlot, bool) {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return PrayerSlot{}, false
}

// NextPrayerView is the derived "what comes next" value shown to the
// reader. Recomputed on every tick or schedule change, never persisted.
type NextPrayerView struct {
	Name             PrayerName `json:"name"`
	Minutes          int        `json:"minutes"`
	MinutesRemaining int        `json:"minutes_remaining"`
	IsTomorrow       bool       `json:"is_tomorrow"`
}

// AdhanPreferences maps a prayer to its "alert enabled" flag. Sunrise is
// never present. Missing keys read as disabled.
type AdhanPreferences map[PrayerName]bool

// Enabled reports whether the adhan toggle for name is on.
func (p AdhanPreferences) Enabled(name PrayerName) bool {
	return p[name]
}

// DefaultAdhanPreferences mirrors a fresh install: every toggle off.
func DefaultAdhanPreferences() AdhanPreferences {
	prefs := make(AdhanPreferences, len(AdhanNames))
	for _, name := range AdhanNames {
		prefs[name] = false
	}
	return prefs
}

// FiredRecord is the persisted fired-today marker. Records whose Date is
// not today's date are ignored and reset, so a stale record can never
// suppress the next day's trigger.
type FiredRecord struct {
	Date    string       `json:"date"`
	Prayers []PrayerName `json:"prayers"`
}

// Fired reports whether name has already fired on the record's date.
func (r FiredRecord) Fired(name PrayerName) bool {
	for _, p := range r.Prayers {
		if p == name {
			return true
		}
	}
	return false
}
