package sensors

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accurate_clock/internal/env"
)

var (
	hostOnce    sync.Once
	hostInitErr error
)

// InitHost loads the periph drivers once per process.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}

// EnvSensor is a BMP280/BME280 on an SPI port.
type EnvSensor struct {
	name string
	port spi.PortCloser
	dev  *bmxx80.Dev
}

// OpenEnv opens the sensor on spiDevice (e.g. /dev/spidev0.0).
func OpenEnv(spiDevice string) (*EnvSensor, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}

	port, err := spireg.Open(spiDevice)
	if err != nil {
		return nil, fmt.Errorf("env SPI open %s: %w", spiDevice, err)
	}

	dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("env sensor init: %w", err)
	}

	return &EnvSensor{name: dev.String(), port: port, dev: dev}, nil
}

// Read takes one measurement stamped with now.
func (s *EnvSensor) Read(now time.Time) (env.Sample, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("env sense: %w", err)
	}
	return envSample(s.name, e, now), nil
}

func (s *EnvSensor) Close() error {
	devErr := s.dev.Halt()
	if err := s.port.Close(); err != nil {
		return err
	}
	return devErr
}

func envSample(name string, e physic.Env, now time.Time) env.Sample {
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.Sample{
		Source:       name,
		Temperature:  e.Temperature.Celsius(),
		Pressure:     pressurePa,
		PressureHPa:  pressurePa / 100.0, // 1 hPa = 100 Pa
		CapturedAtMs: now.UnixMilli(),
	}
}
