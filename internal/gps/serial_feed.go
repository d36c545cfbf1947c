package gps

import (
	"context"
	"fmt"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog/log"
)

// SerialFeed reads NMEA sentences from a receiver on a serial port.
type SerialFeed struct {
	PortName string
	BaudRate uint
	Now      func() time.Time
}

func (f *SerialFeed) Watch(ctx context.Context, onSample func(Sample), onError func(error)) error {
	opts := serial.OpenOptions{
		PortName:              f.PortName,
		BaudRate:              f.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("gps: open serial port %s: %w", f.PortName, err)
	}
	log.Info().Msgf("gps: serial port opened on %s at %d baud", opts.PortName, opts.BaudRate)

	// a blocked Read only returns once the port is closed
	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer func() {
		if stop() {
			_ = port.Close()
		}
	}()

	return ReadStream(ctx, port, NewDecoder(f.Now), onSample, onError)
}
