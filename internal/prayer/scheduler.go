package prayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/model"
)

// TimingsSource fetches the raw timetable for a coordinate pair and
// date. Implemented by the aladhan client.
type TimingsSource interface {
	Timings(ctx context.Context, lat, lon float64, date time.Time) (map[string]string, error)
}

// StateStore persists the fired-today record and caches normalized
// schedules. Implemented by the redis package; tests use an in-memory
// fake.
type StateStore interface {
	FiredRecord(ctx context.Context, deviceID int) (model.FiredRecord, error)
	SaveFiredRecord(ctx context.Context, deviceID int, rec model.FiredRecord) error
	CachedSchedule(ctx context.Context, lat, lon float64, date string) (*model.DaySchedule, error)
	CacheSchedule(ctx context.Context, lat, lon float64, sched model.DaySchedule) error
}

// AdhanEvent is what the scheduler hands to the publisher when a prayer
// fires. Playback is entirely the publisher's concern.
type AdhanEvent struct {
	Prayer   model.PrayerName `json:"prayer"`
	Date     string           `json:"date"`
	Minutes  int              `json:"minutes"`
	AudioURL string           `json:"audio_url,omitempty"`
}

// AdhanPublisher delivers adhan events to a device. Implemented by the
// MQTT publisher.
type AdhanPublisher interface {
	PublishAdhan(deviceID int, event AdhanEvent) error
}

// ScheduleView is the per-device snapshot served to the reader.
type ScheduleView struct {
	Schedule *model.DaySchedule    `json:"schedule"`
	Stale    bool                  `json:"stale"`
	Next     *model.NextPrayerView `json:"next"`
}

type deviceState struct {
	device   model.Device
	prefs    model.AdhanPreferences
	schedule *model.DaySchedule
	stale    bool
	fired    model.FiredRecord
	inFlight model.PrayerName
}

// Scheduler owns the per-device prayer state: it refreshes timetables,
// resolves the next prayer, and runs the trigger check on a fixed tick.
// All state lives behind one mutex; ticks, HTTP handlers and MQTT status
// callbacks all funnel through it.
type Scheduler struct {
	timings  TimingsSource
	store    StateStore
	pub      AdhanPublisher
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	devices    map[int]*deviceState
	refreshing map[string]bool
}

// NewScheduler wires a scheduler with a 30s tick. now is injectable for
// tests; pass nil for wall-clock time.
func NewScheduler(timings TimingsSource, store StateStore, pub AdhanPublisher, interval time.Duration, now func() time.Time) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		timings:    timings,
		store:      store,
		pub:        pub,
		interval:   interval,
		now:        now,
		devices:    make(map[int]*deviceState),
		refreshing: make(map[string]bool),
	}
}

// Track registers a device, loads its persisted fired record, and kicks
// off the initial schedule refresh.
func (s *Scheduler) Track(ctx context.Context, device model.Device, prefs model.AdhanPreferences) {
	if prefs == nil {
		prefs = model.DefaultAdhanPreferences()
	}

	fired, err := s.store.FiredRecord(ctx, device.ID)
	if err != nil {
		log.Warn().Err(err).Int("device_id", device.ID).Msg("could not load fired record, starting empty")
	}

	s.mu.Lock()
	s.devices[device.ID] = &deviceState{
		device: device,
		prefs:  prefs,
		fired:  fired,
	}
	s.mu.Unlock()

	if err := s.Refresh(ctx, device.ID); err != nil {
		log.Error().Err(err).Int("device_id", device.ID).Msg("initial schedule refresh failed")
	}
}

// Untrack forgets a device.
func (s *Scheduler) Untrack(deviceID int) {
	s.mu.Lock()
	delete(s.devices, deviceID)
	s.mu.Unlock()
}

// UpdateLocation replaces a device's coordinates and refreshes its
// schedule. The old schedule is kept on screen until the fetch lands.
func (s *Scheduler) UpdateLocation(ctx context.Context, device model.Device) error {
	s.mu.Lock()
	st, ok := s.devices[device.ID]
	if ok {
		st.device = device
		st.stale = true
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("device %d is not tracked", device.ID)
	}
	return s.Refresh(ctx, device.ID)
}

// Refresh fetches and normalizes today's timetable for the device.
// Concurrent refreshes for the same coordinates are coalesced: the
// second caller returns immediately and the in-flight result serves
// both. On failure the previous schedule is retained and only the stale
// flag reflects the miss.
func (s *Scheduler) Refresh(ctx context.Context, deviceID int) error {
	s.mu.Lock()
	st, ok := s.devices[deviceID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("device %d is not tracked", deviceID)
	}
	device := st.device
	lat, lon := device.Latitude, device.Longitude
	key := refreshKey(lat, lon)
	if s.refreshing[key] {
		s.mu.Unlock()
		return nil
	}
	s.refreshing[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.refreshing, key)
		s.mu.Unlock()
	}()

	now := s.nowFor(device)
	date := now.Format("2006-01-02")

	schedule, err := s.store.CachedSchedule(ctx, lat, lon, date)
	if err != nil {
		log.Warn().Err(err).Msg("schedule cache read failed")
	}
	if schedule == nil {
		timings, err := s.timings.Timings(ctx, lat, lon, now)
		if err != nil {
			s.mu.Lock()
			st.stale = true
			s.mu.Unlock()
			return fmt.Errorf("fetch timings: %w", err)
		}
		normalized, err := Normalize(date, timings)
		if err != nil {
			s.mu.Lock()
			st.stale = true
			s.mu.Unlock()
			return fmt.Errorf("normalize timings: %w", err)
		}
		schedule = &normalized
		if err := s.store.CacheSchedule(ctx, lat, lon, normalized); err != nil {
			log.Warn().Err(err).Msg("schedule cache write failed")
		}
	}

	s.mu.Lock()
	// a location change may have raced the fetch; late results for the
	// old coordinates are discarded rather than applied
	if st.device.Latitude == lat && st.device.Longitude == lon {
		st.schedule = schedule
		st.stale = false
	}
	s.mu.Unlock()

	log.Info().
		Int("device_id", deviceID).
		Str("date", date).
		Msg("schedule refreshed")
	return nil
}

// Snapshot returns the device's current schedule view.
func (s *Scheduler) Snapshot(deviceID int) (ScheduleView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.devices[deviceID]
	if !ok {
		return ScheduleView{}, false
	}
	view := ScheduleView{Schedule: st.schedule, Stale: st.stale}
	if st.schedule != nil && len(st.schedule.Slots) > 0 {
		next := ResolveNext(*st.schedule, minutesOfDay(s.nowFor(st.device)))
		view.Next = &next
	}
	return view, true
}

// Preferences returns a copy of the device's adhan toggles.
func (s *Scheduler) Preferences(deviceID int) (model.AdhanPreferences, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.devices[deviceID]
	if !ok {
		return nil, false
	}
	prefs := make(model.AdhanPreferences, len(st.prefs))
	for k, v := range st.prefs {
		prefs[k] = v
	}
	return prefs, true
}

// SetPreference flips one adhan toggle in memory. The caller is
// responsible for the write-through to durable storage before replying.
func (s *Scheduler) SetPreference(deviceID int, name model.PrayerName, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.devices[deviceID]; ok {
		st.prefs[name] = enabled
	}
}

// SetAdhanAudio swaps the audio URL carried on future adhan events.
func (s *Scheduler) SetAdhanAudio(deviceID int, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.devices[deviceID]; ok {
		st.device.AdhanAudio = &url
	}
}

// ClearInFlight marks the device's adhan playback as finished, making
// the next trigger eligible.
func (s *Scheduler) ClearInFlight(deviceID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.devices[deviceID]; ok {
		st.inFlight = ""
	}
}

// Run drives the polling loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("prayer scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("prayer scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one poll pass over every tracked device. A panic inside the
// pass is swallowed and logged; an escaped panic would kill every future
// tick.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("scheduler tick panicked")
		}
	}()

	s.mu.Lock()
	ids := make([]int, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.tickDevice(ctx, id)
	}
}

func (s *Scheduler) tickDevice(ctx context.Context, deviceID int) {
	s.mu.Lock()
	st, ok := s.devices[deviceID]
	if !ok {
		s.mu.Unlock()
		return
	}

	now := s.nowFor(st.device)
	today := now.Format("2006-01-02")

	// schedule staleness: the cached day no longer matches the clock
	rolledOver := st.schedule != nil && st.schedule.Date != today
	if rolledOver {
		st.stale = true
		st.inFlight = ""
	}

	fire, fired := CheckAndFire(st.schedule, minutesOfDay(now), today, st.prefs, st.fired, st.inFlight)
	st.fired = fired
	var event AdhanEvent
	if fire != "" {
		st.inFlight = fire
		slot, _ := st.schedule.Slot(fire)
		event = AdhanEvent{Prayer: fire, Date: today, Minutes: slot.Minutes}
		if st.device.AdhanAudio != nil {
			event.AudioURL = *st.device.AdhanAudio
		}
	}
	s.mu.Unlock()

	if rolledOver {
		if err := s.Refresh(ctx, deviceID); err != nil {
			log.Error().Err(err).Int("device_id", deviceID).Msg("rollover refresh failed")
		}
	}

	if fire == "" {
		return
	}

	// persist the fired record before signalling, so a crash between the
	// two cannot replay the adhan on restart
	if err := s.store.SaveFiredRecord(ctx, deviceID, fired); err != nil {
		log.Error().Err(err).Int("device_id", deviceID).Msg("could not persist fired record")
	}
	if err := s.pub.PublishAdhan(deviceID, event); err != nil {
		log.Error().Err(err).
			Int("device_id", deviceID).
			Str("prayer", string(fire)).
			Msg("adhan publish failed")
		s.ClearInFlight(deviceID)
		return
	}

	log.Info().
		Int("device_id", deviceID).
		Str("prayer", string(fire)).
		Msg("adhan fired")
}

// nowFor returns the wall clock in the device's timezone, falling back
// to the server clock when the zone name does not resolve.
func (s *Scheduler) nowFor(device model.Device) time.Time {
	if device.Timezone == "" {
		return s.now()
	}
	loc, err := time.LoadLocation(device.Timezone)
	if err != nil {
		return s.now()
	}
	return s.now().In(loc)
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func refreshKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f:%.4f", lat, lon)
}
