package app

import (
	"context"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/gps"
)

// RunGPSProducer reads NMEA from the receiver on the serial port and
// publishes every fix as a gps.Sample on TOPIC_GPS.
func RunGPSProducer(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS, "gps")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	feed := &gps.SerialFeed{
		PortName: cfg.GPSSerialPort,
		BaudRate: cfg.GPSBaudRate,
		Now:      time.Now,
	}
	return runGPSPublisher(ctx, feed, client, cfg.TopicGPS, 5*time.Second)
}

// runGPSPublisher forwards samples from feed until ctx is done, reopening
// the feed after retryDelay when it fails.
func runGPSPublisher(ctx context.Context, feed gps.Feed, client mqtt.Client, topic string, retryDelay time.Duration) error {
	onSample := func(s gps.Sample) {
		// Fixes are not retained; subscribers only use live positions.
		if err := publishJSON(client, topic, false, s); err != nil {
			log.Warn().Err(err).Msg("gps: publish error")
			return
		}
		log.Debug().
			Float64("lat", s.Latitude).
			Float64("lon", s.Longitude).
			Msg("gps: published fix")
	}
	onError := func(err error) {
		if errors.Is(err, gps.ErrNoFix) {
			log.Debug().Msg("gps: receiver has no fix yet")
			return
		}
		log.Warn().Err(err).Msg("gps: receiver error")
	}

	for {
		err := feed.Watch(ctx, onSample, onError)
		if ctx.Err() != nil {
			return nil
		}
		log.Error().Err(err).Msgf("gps: feed stopped, retrying in %s", retryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryDelay):
		}
	}
}
