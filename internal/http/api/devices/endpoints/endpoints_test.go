package endpoints_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maosquran/miqat/internal/db"
	"github.com/maosquran/miqat/internal/http/api"
	deviceapi "github.com/maosquran/miqat/internal/http/api/devices/endpoints"
	"github.com/maosquran/miqat/internal/http/middleware"
	"github.com/maosquran/miqat/internal/model"
	"github.com/maosquran/miqat/internal/prayer"
)

const jwtSecret = "supersecret"

// fakeStore is an in-memory db.Store.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int
	devices   map[int]*model.Device
	prefs     map[int]map[model.PrayerName]bool
	favorites map[int][]model.SurahFavorite
	lastRead  map[int]*model.LastRead
	readPrefs map[int]*model.ReaderPreference
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:    1,
		devices:   make(map[int]*model.Device),
		prefs:     make(map[int]map[model.PrayerName]bool),
		favorites: make(map[int][]model.SurahFavorite),
		lastRead:  make(map[int]*model.LastRead),
		readPrefs: make(map[int]*model.ReaderPreference),
	}
}

func (f *fakeStore) CreateDevice(name, hashedSecret string, lat, lon float64, timezone string, locationName *string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Name == name {
			return 0, db.ErrDeviceNameTaken
		}
	}
	id := f.nextID
	f.nextID++
	f.devices[id] = &model.Device{
		ID: id, Name: name, HashedSecret: hashedSecret,
		Latitude: lat, Longitude: lon, Timezone: timezone,
		LocationName: locationName,
		CreatedAt:    time.Now(), UpdatedAt: time.Now(),
	}
	return id, nil
}

func (f *fakeStore) GetDeviceByID(id int) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[id], nil
}

func (f *fakeStore) GetDeviceByName(name string) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListDevices() ([]model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeStore) UpdateDeviceLocation(id int, lat, lon float64, locationName *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		d.Latitude, d.Longitude, d.LocationName = lat, lon, locationName
	}
	return nil
}

func (f *fakeStore) UpdateDeviceAdhanAudio(id int, audioURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		d.AdhanAudio = &audioURL
	}
	return nil
}

func (f *fakeStore) GetAdhanPreferences(deviceID int) (model.AdhanPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefs := model.DefaultAdhanPreferences()
	for name, enabled := range f.prefs[deviceID] {
		prefs[name] = enabled
	}
	return prefs, nil
}

func (f *fakeStore) SetAdhanPreference(deviceID int, prayerName model.PrayerName, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefs[deviceID] == nil {
		f.prefs[deviceID] = make(map[model.PrayerName]bool)
	}
	f.prefs[deviceID][prayerName] = enabled
	return nil
}

func (f *fakeStore) ListFavorites(deviceID int) ([]model.SurahFavorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.favorites[deviceID], nil
}

func (f *fakeStore) AddFavorite(deviceID, surahNomor int, surahName string) (*model.SurahFavorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fav := model.SurahFavorite{
		ID: len(f.favorites[deviceID]) + 1, DeviceID: deviceID,
		SurahNomor: surahNomor, SurahName: surahName, CreatedAt: time.Now(),
	}
	f.favorites[deviceID] = append(f.favorites[deviceID], fav)
	return &fav, nil
}

func (f *fakeStore) RemoveFavorite(deviceID, surahNomor int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.favorites[deviceID][:0]
	for _, fav := range f.favorites[deviceID] {
		if fav.SurahNomor != surahNomor {
			kept = append(kept, fav)
		}
	}
	f.favorites[deviceID] = kept
	return nil
}

func (f *fakeStore) GetLastRead(deviceID int) (*model.LastRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRead[deviceID], nil
}

func (f *fakeStore) SetLastRead(deviceID, surahNomor int, surahName string, ayah int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRead[deviceID] = &model.LastRead{
		DeviceID: deviceID, SurahNomor: surahNomor, SurahName: surahName,
		Ayah: ayah, UpdatedAt: time.Now(),
	}
	return nil
}

func (f *fakeStore) GetReaderPreference(deviceID int) (*model.ReaderPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readPrefs[deviceID], nil
}

func (f *fakeStore) SetReaderPreference(deviceID int, translation, tafsir bool, qari string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readPrefs[deviceID] = &model.ReaderPreference{
		DeviceID: deviceID, Translation: translation, Tafsir: tafsir,
		Qari: qari, UpdatedAt: time.Now(),
	}
	return nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) LocationName(ctx context.Context, lat, lon float64) string {
	return "Jakarta Selatan, DKI Jakarta"
}

type fakeTimings struct{}

func (fakeTimings) Timings(ctx context.Context, lat, lon float64, date time.Time) (map[string]string, error) {
	return map[string]string{
		"Fajr": "04:30", "Sunrise": "05:50", "Dhuhr": "12:10",
		"Asr": "15:30", "Maghrib": "18:05", "Isha": "19:20",
	}, nil
}

type fakeState struct {
	mu    sync.Mutex
	fired map[int]model.FiredRecord
	cache map[string]model.DaySchedule
}

func (f *fakeState) FiredRecord(ctx context.Context, deviceID int) (model.FiredRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fired[deviceID], nil
}

func (f *fakeState) SaveFiredRecord(ctx context.Context, deviceID int, rec model.FiredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired[deviceID] = rec
	return nil
}

func (f *fakeState) CachedSchedule(ctx context.Context, lat, lon float64, date string) (*model.DaySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sched, ok := f.cache[fmt.Sprintf("%f:%f:%s", lat, lon, date)]; ok {
		return &sched, nil
	}
	return nil, nil
}

func (f *fakeState) CacheSchedule(ctx context.Context, lat, lon float64, sched model.DaySchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[fmt.Sprintf("%f:%f:%s", lat, lon, sched.Date)] = sched
	return nil
}

type dropPublisher struct{}

func (dropPublisher) PublishAdhan(int, prayer.AdhanEvent) error { return nil }

type fakeAudio struct{}

func (fakeAudio) SaveAudio(fileHeader *multipart.FileHeader, filename string) (string, error) {
	return "/uploads/" + filename, nil
}

func setupRouter(store db.Store, scheduler *prayer.Scheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/devices",
		Auth:   false,
	},
		deviceapi.RegisterModule(jwtSecret, store, fakeGeocoder{}, scheduler),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/devices",
		Auth:      true,
		SecretKey: jwtSecret,
		Store:     store,
	},
		deviceapi.PrayerModule(store, scheduler, fakeGeocoder{}, fakeAudio{}),
		deviceapi.QuranModule(store),
	)

	return r
}

func newScheduler() *prayer.Scheduler {
	state := &fakeState{fired: make(map[int]model.FiredRecord), cache: make(map[string]model.DaySchedule)}
	return prayer.NewScheduler(fakeTimings{}, state, dropPublisher{}, time.Second, nil)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// seedDevice registers a device directly and tracks it synchronously so
// tests do not race the registration goroutine.
func seedDevice(t *testing.T, store *fakeStore, scheduler *prayer.Scheduler) (int, string) {
	t.Helper()
	hashed, err := middleware.HashSecret("reader-secret")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	name := "family-tablet"
	id, _ := store.CreateDevice(name, hashed, -6.2, 106.8, "", nil)
	device, _ := store.GetDeviceByID(id)
	scheduler.Track(context.Background(), *device, nil)

	token, err := middleware.GenerateJWT(id, jwtSecret)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return id, token
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)

	body := map[string]any{
		"name":      "living-room",
		"secret":    "reader-secret",
		"latitude":  -6.2,
		"longitude": 106.8,
	}
	w := doJSON(t, router, "POST", "/api/devices/register", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["token"] == "" {
		t.Fatal("register returned no token")
	}

	// duplicate name rejected
	w = doJSON(t, router, "POST", "/api/devices/register", "", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", w.Code)
	}

	// wrong secret rejected
	w = doJSON(t, router, "POST", "/api/devices/login", "", map[string]string{
		"name": "living-room", "secret": "wrong-secret",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", w.Code)
	}

	// correct secret accepted
	w = doJSON(t, router, "POST", "/api/devices/login", "", map[string]string{
		"name": "living-room", "secret": "reader-secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterAtZeroCoordinates(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)

	// Pontianak sits on the equator; latitude 0 must bind, not read as
	// a missing field
	w := doJSON(t, router, "POST", "/api/devices/register", "", map[string]any{
		"name":      "pontianak-reader",
		"secret":    "reader-secret",
		"latitude":  0.0,
		"longitude": 109.3,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("equator register = %d %s, want 200", w.Code, w.Body.String())
	}

	// an actually missing coordinate is still rejected
	w = doJSON(t, router, "POST", "/api/devices/register", "", map[string]any{
		"name":   "no-coords",
		"secret": "reader-secret",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing coordinates = %d, want 400", w.Code)
	}

	// out-of-range latitude is still rejected
	w = doJSON(t, router, "POST", "/api/devices/register", "", map[string]any{
		"name":      "off-the-map",
		"secret":    "reader-secret",
		"latitude":  95.0,
		"longitude": 0.0,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("latitude 95 = %d, want 400", w.Code)
	}
}

func TestUpdateLocationToPrimeMeridian(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	id, token := seedDevice(t, store, scheduler)

	w := doJSON(t, router, "PUT", "/api/devices/prayer/location", token, map[string]any{
		"latitude": 5.6, "longitude": 0.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("longitude 0 update = %d %s, want 200", w.Code, w.Body.String())
	}

	device, _ := store.GetDeviceByID(id)
	if device.Longitude != 0 || device.Latitude != 5.6 {
		t.Fatalf("device at %f,%f, want 5.6,0", device.Latitude, device.Longitude)
	}
}

// blindStore misses the pre-insert name lookup, so the insert itself
// carries the uniqueness check, as under a registration race.
type blindStore struct {
	*fakeStore
}

func (b blindStore) GetDeviceByName(name string) (*model.Device, error) {
	return nil, nil
}

func TestRegisterRaceMapsToConflict(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(blindStore{store}, scheduler)

	body := map[string]any{
		"name":      "living-room",
		"secret":    "reader-secret",
		"latitude":  -6.2,
		"longitude": 106.8,
	}
	w := doJSON(t, router, "POST", "/api/devices/register", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("first register = %d %s, want 200", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/api/devices/register", "", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("losing racer = %d, want 409", w.Code)
	}
}

func TestTimingsRequiresAuth(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)

	w := doJSON(t, router, "GET", "/api/devices/prayer/timings", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated timings = %d, want 401", w.Code)
	}
}

func TestGetTimingsAndNext(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	_, token := seedDevice(t, store, scheduler)

	w := doJSON(t, router, "GET", "/api/devices/prayer/timings", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("timings failed: %d %s", w.Code, w.Body.String())
	}
	var timings struct {
		Date  string `json:"date"`
		Stale bool   `json:"stale"`
		Slots []struct {
			Name    string `json:"name"`
			Minutes int    `json:"minutes"`
		} `json:"slots"`
		Next *struct {
			Name string `json:"name"`
			Time string `json:"time"`
		} `json:"next"`
	}
	json.Unmarshal(w.Body.Bytes(), &timings)
	if len(timings.Slots) != 6 {
		t.Fatalf("got %d slots, want 6", len(timings.Slots))
	}
	if timings.Stale {
		t.Fatal("fresh schedule reported stale")
	}
	if timings.Next == nil {
		t.Fatal("no next prayer in timings response")
	}

	w = doJSON(t, router, "GET", "/api/devices/prayer/next", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("next failed: %d %s", w.Code, w.Body.String())
	}
}

func TestRefreshServesTimingsShape(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	_, token := seedDevice(t, store, scheduler)

	w := doJSON(t, router, "POST", "/api/devices/prayer/refresh", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh failed: %d %s", w.Code, w.Body.String())
	}

	// same body shape as GET /prayer/timings: the reader parses one
	// format, with next.time as "HH:MM"
	var resp struct {
		Date  string `json:"date"`
		Slots []struct {
			Name string `json:"name"`
		} `json:"slots"`
		Next *struct {
			Name string `json:"name"`
			Time string `json:"time"`
		} `json:"next"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Slots) != 6 {
		t.Fatalf("got %d slots, want 6", len(resp.Slots))
	}
	if resp.Next == nil {
		t.Fatal("no next prayer in refresh response")
	}
	if len(resp.Next.Time) != 5 || resp.Next.Time[2] != ':' {
		t.Fatalf("next.time = %q, want HH:MM", resp.Next.Time)
	}
}

func TestAdhanPreferenceToggle(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	id, token := seedDevice(t, store, scheduler)

	enabled := true
	w := doJSON(t, router, "PUT", "/api/devices/prayer/adhan-preferences", token, map[string]any{
		"prayer": "Dhuhr", "enabled": &enabled,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle failed: %d %s", w.Code, w.Body.String())
	}

	// write-through hit the durable store
	prefs, _ := store.GetAdhanPreferences(id)
	if !prefs[model.Dhuhr] {
		t.Fatal("toggle did not reach the store")
	}

	// Sunrise can never carry a toggle
	w = doJSON(t, router, "PUT", "/api/devices/prayer/adhan-preferences", token, map[string]any{
		"prayer": "Sunrise", "enabled": &enabled,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Sunrise toggle = %d, want 422", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/devices/prayer/adhan-preferences", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get preferences failed: %d", w.Code)
	}
	var resp struct {
		Preferences map[string]bool `json:"preferences"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Preferences["Dhuhr"] {
		t.Fatal("Dhuhr toggle lost on read-back")
	}
}

func TestFavoritesFlow(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	_, token := seedDevice(t, store, scheduler)

	w := doJSON(t, router, "POST", "/api/devices/quran/favorites", token, map[string]any{
		"surah_nomor": 18, "surah_name": "Al-Kahf",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add favorite failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/devices/quran/favorites", token, nil)
	var favorites []model.SurahFavorite
	json.Unmarshal(w.Body.Bytes(), &favorites)
	if len(favorites) != 1 || favorites[0].SurahNomor != 18 {
		t.Fatalf("favorites = %+v, want Al-Kahf", favorites)
	}

	w = doJSON(t, router, "DELETE", "/api/devices/quran/favorites/18", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove favorite failed: %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/devices/quran/favorites", token, nil)
	favorites = nil
	json.Unmarshal(w.Body.Bytes(), &favorites)
	if len(favorites) != 0 {
		t.Fatalf("favorites not empty after remove: %+v", favorites)
	}
}

func TestLastReadFlow(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	_, token := seedDevice(t, store, scheduler)

	w := doJSON(t, router, "GET", "/api/devices/quran/last-read", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("empty last-read = %d, want 404", w.Code)
	}

	w = doJSON(t, router, "PUT", "/api/devices/quran/last-read", token, map[string]any{
		"surah_nomor": 2, "surah_name": "Al-Baqarah", "ayah": 255,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set last-read failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/devices/quran/last-read", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get last-read failed: %d", w.Code)
	}
	var lastRead model.LastRead
	json.Unmarshal(w.Body.Bytes(), &lastRead)
	if lastRead.SurahNomor != 2 || lastRead.Ayah != 255 {
		t.Fatalf("last-read = %+v, want 2:255", lastRead)
	}
}

func TestReaderPreferenceValidation(t *testing.T) {
	store := newFakeStore()
	scheduler := newScheduler()
	router := setupRouter(store, scheduler)
	_, token := seedDevice(t, store, scheduler)

	off, on := false, true
	w := doJSON(t, router, "PUT", "/api/devices/quran/preferences", token, map[string]any{
		"translation": &on, "tafsir": &off, "qari": "99",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown qari = %d, want 422", w.Code)
	}

	w = doJSON(t, router, "PUT", "/api/devices/quran/preferences", token, map[string]any{
		"translation": &on, "tafsir": &off, "qari": "03",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set preferences failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/devices/quran/preferences", token, nil)
	var pref model.ReaderPreference
	json.Unmarshal(w.Body.Bytes(), &pref)
	if pref.Qari != "03" {
		t.Fatalf("qari = %q, want 03", pref.Qari)
	}
}
