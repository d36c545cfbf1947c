// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// MockFeed generates samples around a fixed location, walking slowly in a
// circle so heading and speed change over time.
type MockFeed struct {
	Latitude  float64
	Longitude float64
	Interval  time.Duration
	Clock     clockwork.Clock
}

// NewMockFeed creates a mock feed emitting one sample per second.
func NewMockFeed(lat, lon float64) *MockFeed {
	return &MockFeed{
		Latitude:  lat,
		Longitude: lon,
		Interval:  time.Second,
		Clock:     clockwork.NewRealClock(),
	}
}

func (m *MockFeed) Watch(ctx context.Context, onSample func(Sample), _ func(error)) error {
	clock := m.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := m.Interval
	if interval <= 0 {
		interval = time.Second
	}

	start := clock.Now()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	onSample(m.sampleAt(start, start))
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.Chan():
			onSample(m.sampleAt(start, t))
		}
	}
}

// sampleAt walks a ~50 m circle at 1.4 m/s.
func (m *MockFeed) sampleAt(start, t time.Time) Sample {
	const radiusDeg = 0.00045
	const speed = 1.4

	elapsed := t.Sub(start).Seconds()
	angle := elapsed * speed / 50

	heading := math.Mod(angle*180/math.Pi+90, 360)
	return Sample{
		Latitude:     m.Latitude + radiusDeg*math.Sin(angle),
		Longitude:    m.Longitude + radiusDeg*math.Cos(angle),
		Heading:      Float(heading),
		Speed:        Float(speed),
		AccuracyM:    5,
		CapturedAtMs: t.UnixMilli(),
	}
}
