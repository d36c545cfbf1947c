package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/relabs-tech/accurate_clock/internal/clock"
	"github.com/relabs-tech/accurate_clock/internal/config"
)

// RunConsoleMQTT prints a reading of the clock published on TOPIC_CLOCK
// every CONSOLE_LOG_INTERVAL.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, "console")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	store := newSnapshotStore()
	if err := store.subscribe(client, cfg.TopicClock, "console"); err != nil {
		return err
	}

	return printReadings(ctx, os.Stdout, config.Millis(cfg.ConsoleLogInterval), func(now time.Time) (clock.Reading, bool) {
		return store.Read(now)
	})
}

// printReadings writes one line per tick until ctx is done.
func printReadings(ctx context.Context, w io.Writer, interval time.Duration, read func(time.Time) (clock.Reading, bool)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r, ok := read(now)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintln(w, formatReadingLine(r)); err != nil {
				return err
			}
		}
	}
}

func formatReadingLine(r clock.Reading) string {
	return fmt.Sprintf(
		"[CLOCK] device=%s  accurate=%s  diff=%s  pos=%s  move=%s  rise=%s  noon=%s  set=%s  net=%s",
		r.DeviceClock, r.AccurateClock, r.Difference,
		r.Coordinates, r.Movement,
		r.Sunrise, r.SolarNoon, r.Sunset,
		r.NetworkQuality,
	)
}
