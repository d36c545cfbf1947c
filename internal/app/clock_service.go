package app

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/clock"
	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/env"
)

// RunClock runs the correction engine and publishes its snapshot, retained,
// on TOPIC_CLOCK whenever it changes and every PUBLISH_INTERVAL_MS.
func RunClock(ctx context.Context) error {
	cfg := config.Get()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	source, err := newTimeSource(cfg)
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDClock, "clock")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	feed, err := newPositionFeed(cfg, client)
	if err != nil {
		return err
	}

	changed := make(chan struct{}, 1)
	engine, err := clock.NewEngine(clock.Options{
		Feed:            feed,
		EnvFeed:         &env.MQTTFeed{Client: client, Topic: cfg.TopicEnv},
		Source:          source,
		Location:        loc,
		FixTimeout:      config.Millis(cfg.GPSFixTimeoutMs),
		RefreshInterval: config.Millis(cfg.TimeRefreshIntervalMs),
		RequestTimeout:  config.Millis(cfg.TimeRequestTimeoutMs),
		OnChange: func(clock.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	log.Info().Msgf("clock: publishing on %s", cfg.TopicClock)
	return publishLoop(ctx, engine, changed, client, cfg.TopicClock,
		config.Millis(cfg.PublishIntervalMs), config.Millis(cfg.ConsoleLogInterval))
}

// publishLoop publishes the engine snapshot on every change signal and
// every interval, and logs a reading every logInterval.
func publishLoop(ctx context.Context, engine *clock.Engine, changed <-chan struct{}, client mqtt.Client, topic string, interval, logInterval time.Duration) error {
	publish := func() {
		if err := publishJSON(client, topic, true, engine.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("clock: publish error")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logTicker := time.NewTicker(logInterval)
	defer logTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			publish()
		case <-ticker.C:
			publish()
		case <-logTicker.C:
			logReading(engine.Read())
		}
	}
}

func logReading(r clock.Reading) {
	log.Debug().
		Str("device", r.DeviceClock).
		Str("accurate", r.AccurateClock).
		Str("difference", r.Difference).
		Str("position", r.Coordinates).
		Str("sunrise", r.Sunrise).
		Str("sunset", r.Sunset).
		Str("network", string(r.NetworkQuality)).
		Msg("clock: reading")
}
