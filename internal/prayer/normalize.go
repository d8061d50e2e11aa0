package prayer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/maosquran/miqat/internal/model"
)

// timePattern matches the timing API's 24h clock fields. Both fields are
// zero-padded; "4:3" is rejected rather than guessed at.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// MalformedTimeError reports a timetable field that does not parse as
// an "HH:MM" clock value.
type MalformedTimeError struct {
	Field string
	Value string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed time %q for %s", e.Value, e.Field)
}

// IncompleteScheduleError reports required timetable names the upstream
// response did not carry.
type IncompleteScheduleError struct {
	Missing []model.PrayerName
}

func (e *IncompleteScheduleError) Error() string {
	return fmt.Sprintf("incomplete schedule, missing %v", e.Missing)
}

// Normalize converts the raw timings map of a timing-API response into a
// DaySchedule for date. Fields outside the known timetable names are
// ignored; the upstream API adds entries like Imsak and Midnight freely.
func Normalize(date string, timings map[string]string) (model.DaySchedule, error) {
	slots := make([]model.PrayerSlot, 0, len(model.TimetableNames))
	var missing []model.PrayerName

	for _, name := range model.TimetableNames {
		raw, ok := timings[string(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		minutes, err := parseClock(string(name), raw)
		if err != nil {
			return model.DaySchedule{}, err
		}
		slots = append(slots, model.PrayerSlot{Name: name, Minutes: minutes})
	}

	if len(missing) > 0 {
		return model.DaySchedule{}, &IncompleteScheduleError{Missing: missing}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Minutes < slots[j].Minutes })

	return model.DaySchedule{Date: date, Slots: slots}, nil
}

func parseClock(field, value string) (int, error) {
	m := timePattern.FindStringSubmatch(value)
	if m == nil {
		return 0, &MalformedTimeError{Field: field, Value: value}
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min, nil
}
