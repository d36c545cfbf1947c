package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/sensors"
)

// RunEnvProducer samples the BMx280 every ENV_SAMPLE_INTERVAL and publishes
// the reading, retained, on TOPIC_ENV.
func RunEnvProducer(ctx context.Context) error {
	cfg := config.Get()

	sensor, err := sensors.OpenEnv(cfg.EnvSPIDevice)
	if err != nil {
		return err
	}
	defer sensor.Close()
	log.Info().Msgf("env: sensor ready on %s", cfg.EnvSPIDevice)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDEnv, "env")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ticker := time.NewTicker(config.Millis(cfg.EnvSampleInterval))
	defer ticker.Stop()

	for {
		sample, err := sensor.Read(time.Now())
		if err != nil {
			log.Warn().Err(err).Msg("env: read error")
		} else if err := publishJSON(client, cfg.TopicEnv, true, sample); err != nil {
			log.Warn().Err(err).Msg("env: publish error")
		} else {
			log.Debug().
				Float64("temp_c", sample.Temperature).
				Float64("pressure_hpa", sample.PressureHPa).
				Msg("env: published sample")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
