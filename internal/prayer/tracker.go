package prayer

import "github.com/maosquran/miqat/internal/model"

// triggerWindow is how far (in minutes) the polling tick may land from a
// prayer's scheduled minute and still fire its adhan. One minute on
// either side covers a 30–60s poll interval without double counting.
const triggerWindow = 1

// CheckAndFire decides whether an adhan should fire on this tick. It is
// a pure decision: the caller persists the returned record and performs
// playback. Empty return name means nothing fires.
//
// Rules, in order:
//   - no schedule, or a schedule for a different date: fail closed;
//   - a fired record carrying a different date is discarded first, so a
//     stale record never suppresses today's triggers;
//   - while a previous adhan is still in flight nothing new fires;
//   - Sunrise and disabled prayers never fire;
//   - at most one prayer fires per tick; if several are in-window the
//     earliest by scheduled minute wins.
func CheckAndFire(
	schedule *model.DaySchedule,
	nowMinutes int,
	today string,
	prefs model.AdhanPreferences,
	fired model.FiredRecord,
	inFlight model.PrayerName,
) (model.PrayerName, model.FiredRecord) {
	if fired.Date != today {
		fired = model.FiredRecord{Date: today}
	}

	if schedule == nil || schedule.Date != today {
		return "", fired
	}
	if inFlight != "" {
		return "", fired
	}

	for _, slot := range schedule.Slots {
		if slot.Name == model.Sunrise {
			continue
		}
		if !prefs.Enabled(slot.Name) {
			continue
		}
		if fired.Fired(slot.Name) {
			continue
		}
		delta := slot.Minutes - nowMinutes
		if delta < 0 {
			delta = -delta
		}
		if delta <= triggerWindow {
			fired.Prayers = append(fired.Prayers, slot.Name)
			return slot.Name, fired
		}
	}

	return "", fired
}
