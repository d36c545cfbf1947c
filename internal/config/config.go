package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // LOCAL_TIME_ZONE must resolve on hosts without a zoneinfo database

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
)

// DefaultPath is the configuration file read by every command.
const DefaultPath = "accurate_clock.conf"

// Config holds all application configuration values. Each field maps to one
// KEY=VALUE line of the configuration file.
type Config struct {
	// MQTT
	MQTTBroker          string `ini:"MQTT_BROKER" validate:"required,url"`
	MQTTClientIDClock   string `ini:"MQTT_CLIENT_ID_CLOCK"`
	MQTTClientIDGPS     string `ini:"MQTT_CLIENT_ID_GPS"`
	MQTTClientIDEnv     string `ini:"MQTT_CLIENT_ID_ENV"`
	MQTTClientIDWeb     string `ini:"MQTT_CLIENT_ID_WEB"`
	MQTTClientIDDisplay string `ini:"MQTT_CLIENT_ID_DISPLAY"`
	MQTTClientIDConsole string `ini:"MQTT_CLIENT_ID_CONSOLE"`

	// Topics
	TopicGPS   string `ini:"TOPIC_GPS" validate:"required"`
	TopicEnv   string `ini:"TOPIC_ENV" validate:"required"`
	TopicClock string `ini:"TOPIC_CLOCK" validate:"required"`

	// Position feed: mqtt (gps_producer), serial (receiver attached to the
	// clock host) or mock.
	GPSSource       string  `ini:"GPS_SOURCE" validate:"oneof=mqtt serial mock"`
	GPSSerialPort   string  `ini:"GPS_SERIAL_PORT" validate:"required_if=GPSSource serial"`
	GPSBaudRate     uint    `ini:"GPS_BAUD_RATE" validate:"gt=0"`
	GPSFixTimeoutMs int     `ini:"GPS_FIX_TIMEOUT_MS" validate:"gt=0"`
	MockLatitude    float64 `ini:"MOCK_LATITUDE" validate:"gte=-90,lte=90"`
	MockLongitude   float64 `ini:"MOCK_LONGITUDE" validate:"gte=-180,lte=180"`
	MockIntervalMs  int     `ini:"MOCK_INTERVAL_MS" validate:"gt=0"`

	// Time reference
	TimeSource            string `ini:"TIME_SOURCE" validate:"oneof=worldtime ntp"`
	TimeServiceURL        string `ini:"TIME_SERVICE_URL" validate:"required_if=TimeSource worldtime,omitempty,url"`
	TimeZone              string `ini:"TIME_ZONE"` // IANA zone requested from the world-time service
	NTPServer             string `ini:"NTP_SERVER" validate:"required_if=TimeSource ntp"`
	TimeRequestTimeoutMs  int    `ini:"TIME_REQUEST_TIMEOUT_MS" validate:"gt=0"`
	TimeRefreshIntervalMs int    `ini:"TIME_REFRESH_INTERVAL_MS" validate:"gt=0"`

	// Clock service
	LocalTimeZone     string `ini:"LOCAL_TIME_ZONE" validate:"required"` // display zone, "Local" for the host zone
	PublishIntervalMs int    `ini:"PUBLISH_INTERVAL_MS" validate:"gt=0"`

	// Web Server
	WebServerPort     int    `ini:"WEB_SERVER_PORT" validate:"gt=0,lte=65535"`
	WebStaticDir      string `ini:"WEB_STATIC_DIR"`
	WebPushIntervalMs int    `ini:"WEB_PUSH_INTERVAL_MS" validate:"gt=0"`

	// Display
	DisplayI2CBus         string `ini:"DISPLAY_I2C_BUS"`                         // empty selects the first bus
	DisplayUpdateInterval int    `ini:"DISPLAY_UPDATE_INTERVAL" validate:"gt=0"` // milliseconds

	// Ambient sensor
	EnvSPIDevice      string `ini:"ENV_SPI_DEVICE"`
	EnvSampleInterval int    `ini:"ENV_SAMPLE_INTERVAL" validate:"gt=0"` // milliseconds

	// Logging
	LogLevel           string `ini:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogFile            string `ini:"LOG_FILE"`
	ConsoleLogInterval int    `ini:"CONSOLE_LOG_INTERVAL" validate:"gt=0"` // milliseconds
}

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTBroker: "tcp://localhost:1883",

		TopicGPS:   "clock/gps",
		TopicEnv:   "clock/env",
		TopicClock: "clock/state",

		GPSSource:       "mqtt",
		GPSSerialPort:   "/dev/serial0",
		GPSBaudRate:     9600,
		GPSFixTimeoutMs: 20_000,
		MockLatitude:    35.6895,
		MockLongitude:   139.6917,
		MockIntervalMs:  1000,

		TimeSource:            "worldtime",
		TimeServiceURL:        "https://worldtimeapi.org/api/timezone",
		TimeZone:              "Etc/UTC",
		NTPServer:             "pool.ntp.org",
		TimeRequestTimeoutMs:  10_000,
		TimeRefreshIntervalMs: 60_000,

		LocalTimeZone:     "Local",
		PublishIntervalMs: 1000,

		WebServerPort:     8080,
		WebStaticDir:      "web",
		WebPushIntervalMs: 100,

		DisplayUpdateInterval: 250,

		EnvSPIDevice:      "/dev/spidev0.0",
		EnvSampleInterval: 60_000,

		LogLevel:           "info",
		ConsoleLogInterval: 1000,
	}
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var validate = newValidator()

// Only '=' separates keys; URLs keep their ':' and '#'.
var loadOptions = ini.LoadOptions{
	KeyValueDelimiters:       "=",
	SpaceBeforeInlineComment: true,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report the file key, not the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("ini")
	})
	return v
}

// Load reads the configuration file at path on top of Default.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return fromFile(f)
}

// Parse reads configuration from raw KEY=VALUE data.
func Parse(data []byte) (*Config, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	if sections := f.SectionStrings(); len(sections) > 1 {
		return nil, fmt.Errorf("config sections are not supported: %q", sections[1:])
	}

	known := knownKeys()
	for _, key := range f.Section("").KeyStrings() {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", key)
		}
	}

	cfg := Default()
	if err := f.Section("").StrictMapTo(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func knownKeys() map[string]struct{} {
	t := reflect.TypeOf(Config{})
	keys := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		if key := t.Field(i).Tag.Get("ini"); key != "" {
			keys[key] = struct{}{}
		}
	}
	return keys
}

// Validate checks ranges and the fields required by the selected sources.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		_, err = c.Location()
		return err
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s=%v fails %q", fe.Field(), fe.Value(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Location resolves LOCAL_TIME_ZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LocalTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCAL_TIME_ZONE %q: %w", c.LocalTimeZone, err)
	}
	return loc, nil
}

// Millis converts a *_MS value into a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// InitGlobal loads the global configuration once. Later calls do nothing.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
