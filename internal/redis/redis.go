package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maosquran/miqat/internal/model"
)

// Store keeps the small, hot prayer state: the per-device fired-today
// record and a cache of normalized schedules keyed by coordinates and
// date. Fired records are written through synchronously on every fire.
type Store struct {
	rdb *redis.Client
}

func NewStore(address, username, password string) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     address,
			Username: username,
			Password: password,
			DB:       0,
		}),
	}
}

// Ping verifies the connection at boot.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func firedKey(deviceID int) string {
	return fmt.Sprintf("miqat:fired:%d", deviceID)
}

func scheduleKey(lat, lon float64, date string) string {
	return fmt.Sprintf("miqat:schedule:%.4f:%.4f:%s", lat, lon, date)
}

// FiredRecord loads the persisted fired-today record. A missing key is
// not an error: it reads as an empty record.
func (s *Store) FiredRecord(ctx context.Context, deviceID int) (model.FiredRecord, error) {
	raw, err := s.rdb.Get(ctx, firedKey(deviceID)).Result()
	if err == redis.Nil {
		return model.FiredRecord{}, nil
	}
	if err != nil {
		return model.FiredRecord{}, err
	}
	var rec model.FiredRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.FiredRecord{}, err
	}
	return rec, nil
}

func (s *Store) SaveFiredRecord(ctx context.Context, deviceID int, rec model.FiredRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// the record is self-invalidating on date rollover; the TTL only
	// keeps dead devices from accumulating keys
	return s.rdb.Set(ctx, firedKey(deviceID), raw, 48*time.Hour).Err()
}

// CachedSchedule returns the cached schedule for the triple, or nil on a
// miss. Devices sharing coordinates share the cache entry.
func (s *Store) CachedSchedule(ctx context.Context, lat, lon float64, date string) (*model.DaySchedule, error) {
	raw, err := s.rdb.Get(ctx, scheduleKey(lat, lon, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sched model.DaySchedule
	if err := json.Unmarshal([]byte(raw), &sched); err != nil {
		return nil, err
	}
	// a decoded entry with no slots or the wrong date is corrupt; report
	// a miss so the caller refetches instead of serving it
	if len(sched.Slots) == 0 || sched.Date != date {
		return nil, nil
	}
	return &sched, nil
}

func (s *Store) CacheSchedule(ctx context.Context, lat, lon float64, sched model.DaySchedule) error {
	raw, err := json.Marshal(sched)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, scheduleKey(lat, lon, sched.Date), raw, 48*time.Hour).Err()
}
