package prayer

import "github.com/maosquran/miqat/internal/model"

const minutesPerDay = 24 * 60

// ResolveNext determines which prayer is next, given a normalized
// schedule and the current minutes-since-midnight. It is total: for any
// nowMinutes in [0, 1439] and any valid schedule it returns a view.
//
// The comparison is strictly greater-than, so a prayer exactly at the
// current minute counts as already occurred. Past the last slot the
// resolver wraps to the first slot of the following day, which is always
// Fajr in a sorted schedule.
func ResolveNext(schedule model.DaySchedule, nowMinutes int) model.NextPrayerView {
	if len(schedule.Slots) == 0 {
		// only a corrupted schedule has no slots; fail closed rather
		// than panic on the wraparound index
		return model.NextPrayerView{}
	}
	for _, slot := range schedule.Slots {
		if slot.Minutes > nowMinutes {
			return model.NextPrayerView{
				Name:             slot.Name,
				Minutes:          slot.Minutes,
				MinutesRemaining: slot.Minutes - nowMinutes,
				IsTomorrow:       false,
			}
		}
	}

	first := schedule.Slots[0]
	return model.NextPrayerView{
		Name:             first.Name,
		Minutes:          first.Minutes,
		MinutesRemaining: (minutesPerDay - nowMinutes) + first.Minutes,
		IsTomorrow:       true,
	}
}
