package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/accurate_clock/internal/clock"
	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/sensors"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// RunDisplay draws the corrected clock and today's solar events on an
// SSD1306 OLED, from the snapshots published on TOPIC_CLOCK.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()

	if err := sensors.InitHost(); err != nil {
		return err
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer func() {
		if err := dev.Halt(); err != nil {
			log.Warn().Err(err).Msg("display: halt error")
		}
	}()
	log.Info().Msg("display: initialized")

	if err := dev.Draw(dev.Bounds(), drawLines("Accurate Clock", "", "waiting for", "clock service"), image.Point{}); err != nil {
		log.Warn().Err(err).Msg("display: error showing splash")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay, "display")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	store := newSnapshotStore()
	if err := store.subscribe(client, cfg.TopicClock, "display"); err != nil {
		return err
	}

	ticker := time.NewTicker(config.Millis(cfg.DisplayUpdateInterval))
	defer ticker.Stop()

	log.Info().Msg("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			reading, ok := store.Read(now)
			if !ok {
				continue
			}
			if err := dev.Draw(dev.Bounds(), drawReading(reading), image.Point{}); err != nil {
				log.Warn().Err(err).Msg("display: error updating display")
			}
		}
	}
}

// drawReading lays out one frame: corrected time of day with milliseconds,
// the difference to the device clock, sunrise and sunset.
func drawReading(r clock.Reading) *image1bit.VerticalLSB {
	timeLine := r.AccurateClock
	if len(timeLine) > 11 {
		timeLine = timeLine[11:] // HH:mm:ss.SSS
	}
	return drawLines(
		timeLine,
		"d "+r.Difference,
		"rise "+trimMillis(r.Sunrise),
		"set  "+trimMillis(r.Sunset),
		"net  "+string(r.NetworkQuality),
	)
}

// trimMillis drops ".SSS" from a time of day; the panel is 18 columns wide.
func trimMillis(s string) string {
	if len(s) == len("00:00:00.000") && s[8] == '.' {
		return s[:8]
	}
	return s
}

func drawLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		y := (i + 1) * lineHeight
		if y > displayHeight {
			break
		}
		drawer.Dot = fixed.P(0, y-2)
		drawer.DrawString(line)
	}
	return img
}
