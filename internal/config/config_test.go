package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("# empty apart from comments\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseValues(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
# broker
MQTT_BROKER=tcp://broker.local:1883
MQTT_CLIENT_ID_CLOCK=clock-1
TOPIC_CLOCK=home/clock # retained snapshot

GPS_SOURCE=serial
GPS_SERIAL_PORT=/dev/ttyUSB0
GPS_BAUD_RATE=115200
GPS_FIX_TIMEOUT_MS=5000

TIME_SOURCE=ntp
NTP_SERVER=time.cloudflare.com
TIME_REFRESH_INTERVAL_MS=30000
TIME_SERVICE_URL=http://localhost:8081/api/timezone#fragment

LOCAL_TIME_ZONE=Asia/Tokyo
DISPLAY_I2C_BUS=1
MOCK_LATITUDE=-33.8688
LOG_LEVEL=debug
`))
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTTBroker)
	assert.Equal(t, "clock-1", cfg.MQTTClientIDClock)
	assert.Equal(t, "home/clock", cfg.TopicClock)
	assert.Equal(t, "serial", cfg.GPSSource)
	assert.Equal(t, "/dev/ttyUSB0", cfg.GPSSerialPort)
	assert.Equal(t, uint(115200), cfg.GPSBaudRate)
	assert.Equal(t, 5*time.Second, Millis(cfg.GPSFixTimeoutMs))
	assert.Equal(t, "ntp", cfg.TimeSource)
	assert.Equal(t, "time.cloudflare.com", cfg.NTPServer)
	assert.Equal(t, 30_000, cfg.TimeRefreshIntervalMs)
	assert.Equal(t, "http://localhost:8081/api/timezone#fragment", cfg.TimeServiceURL)
	assert.Equal(t, "1", cfg.DisplayI2CBus)
	assert.InDelta(t, -33.8688, cfg.MockLatitude, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel)

	// untouched keys keep their defaults
	assert.Equal(t, "clock/gps", cfg.TopicGPS)
	assert.Equal(t, 8080, cfg.WebServerPort)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "unknown key", data: "TOPIC_POSE=x\n", wantErr: `unknown config key: "TOPIC_POSE"`},
		{name: "section", data: "[extra]\nA=1\n", wantErr: "sections are not supported"},
		{name: "bad int", data: "WEB_SERVER_PORT=eighty\n", wantErr: "config:"},
		{name: "port range", data: "WEB_SERVER_PORT=70000\n", wantErr: "WEB_SERVER_PORT"},
		{name: "gps source", data: "GPS_SOURCE=bluetooth\n", wantErr: "GPS_SOURCE"},
		{name: "latitude range", data: "MOCK_LATITUDE=91\n", wantErr: "MOCK_LATITUDE"},
		{name: "time source", data: "TIME_SOURCE=gps\n", wantErr: "TIME_SOURCE"},
		{name: "log level", data: "LOG_LEVEL=loud\n", wantErr: "LOG_LEVEL"},
		{name: "zone", data: "LOCAL_TIME_ZONE=Mars/Olympus\n", wantErr: "LOCAL_TIME_ZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSourceRequirements(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.GPSSource = "serial"
	cfg.GPSSerialPort = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPS_SERIAL_PORT")

	cfg = Default()
	cfg.TimeSource = "ntp"
	cfg.NTPServer = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NTP_SERVER")

	cfg = Default()
	cfg.TimeSource = "ntp"
	cfg.TimeServiceURL = ""
	assert.NoError(t, cfg.Validate(), "the world-time URL is only needed for that source")
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("TOPIC_GPS=site/gps\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "site/gps", cfg.TopicGPS)

	_, err = Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}
