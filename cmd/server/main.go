package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/aladhan"
	"github.com/maosquran/miqat/internal/db"
	"github.com/maosquran/miqat/internal/geocode"
	"github.com/maosquran/miqat/internal/notify"
	"github.com/maosquran/miqat/internal/prayer"
	"github.com/maosquran/miqat/internal/redis"
)

func main() {
	env := LoadEnvironment()

	// initialize PostgreSQL
	conn, err := db.Init(env.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}

	// run pending migrations
	if err := db.RunMigrations(conn, env.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	store := db.NewStore(conn)

	// redis keeps fired records and the schedule cache
	kv := redis.NewStore(env.RedisAddress, env.RedisUsername, env.RedisPassword)
	if err := kv.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("redis init")
	}

	// MQTT carries adhan events to reader devices
	publisher, err := notify.NewPublisher(env.MQTTBrokerURL, "miqat-server")
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt init")
	}
	defer publisher.Close()

	timings := aladhan.NewClient(env.AladhanBaseURL)
	geocoder := geocode.NewClient(env.NominatimBaseURL)

	scheduler := prayer.NewScheduler(timings, kv, publisher, env.PollInterval, nil)
	if err := publisher.SubscribeStatus(scheduler.ClearInFlight); err != nil {
		log.Fatal().Err(err).Msg("mqtt status subscription")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// re-track known devices after a restart so persisted fired records
	// keep suppressing already-played adhans
	go trackExistingDevices(ctx, store, scheduler)

	go scheduler.Run(ctx)

	if env.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	RegisterRoutes(r, env, store, scheduler, geocoder, InitStorage(env))

	log.Info().Str("address", env.ServerAddress).Msg("listening")
	if err := r.Run(env.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func trackExistingDevices(ctx context.Context, store db.Store, scheduler *prayer.Scheduler) {
	devices, err := store.ListDevices()
	if err != nil {
		log.Error().Err(err).Msg("could not list devices for tracking")
		return
	}
	for _, device := range devices {
		prefs, err := store.GetAdhanPreferences(device.ID)
		if err != nil {
			log.Warn().Err(err).Int("device_id", device.ID).Msg("could not load adhan preferences")
			prefs = nil
		}
		trackCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		scheduler.Track(trackCtx, device, prefs)
		cancel()
	}
	log.Info().Int("count", len(devices)).Msg("devices tracked")
}
