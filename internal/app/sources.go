package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/gps"
	"github.com/relabs-tech/accurate_clock/internal/timesync"
)

// newTimeSource builds the time authority selected by TIME_SOURCE.
func newTimeSource(cfg *config.Config) (timesync.Source, error) {
	timeout := config.Millis(cfg.TimeRequestTimeoutMs)
	switch cfg.TimeSource {
	case "worldtime":
		return timesync.NewWorldTimeClient(cfg.TimeServiceURL, cfg.TimeZone, timeout), nil
	case "ntp":
		return &timesync.NTPClient{Server: cfg.NTPServer, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown TIME_SOURCE %q", cfg.TimeSource)
	}
}

// newPositionFeed builds the position feed selected by GPS_SOURCE. client
// is only used by the mqtt feed and may be nil otherwise.
func newPositionFeed(cfg *config.Config, client mqtt.Client) (gps.Feed, error) {
	switch cfg.GPSSource {
	case "mqtt":
		if client == nil {
			return nil, fmt.Errorf("GPS_SOURCE=mqtt needs a broker connection")
		}
		return &gps.MQTTFeed{Client: client, Topic: cfg.TopicGPS}, nil
	case "serial":
		return &gps.SerialFeed{PortName: cfg.GPSSerialPort, BaudRate: cfg.GPSBaudRate, Now: time.Now}, nil
	case "mock":
		feed := gps.NewMockFeed(cfg.MockLatitude, cfg.MockLongitude)
		feed.Interval = config.Millis(cfg.MockIntervalMs)
		return feed, nil
	default:
		return nil, fmt.Errorf("unknown GPS_SOURCE %q", cfg.GPSSource)
	}
}
