package gps

import (
	"errors"
	"fmt"
)

// Sample is a single position update suitable for JSON and MQTT.
// Heading and Speed are nil when the receiver reports position only.
type Sample struct {
	Latitude     float64  `json:"lat"`                   // decimal degrees
	Longitude    float64  `json:"lon"`                   // decimal degrees
	Heading      *float64 `json:"heading_deg,omitempty"` // course over ground
	Speed        *float64 `json:"speed_mps,omitempty"`   // speed over ground
	AccuracyM    float64  `json:"accuracy_m,omitempty"`  // 0 when unknown
	CapturedAtMs int64    `json:"captured_at_ms"`        // device clock
}

var (
	// ErrFixTimeout is reported when no fix arrives within the watch timeout.
	ErrFixTimeout = errors.New("gps: no fix within timeout")
	// ErrNoFix is reported when the receiver explicitly flags its fix as void.
	ErrNoFix = errors.New("gps: receiver reports no fix")
)

// Validate checks the coordinate ranges.
func (s Sample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %.7f out of range [-90,90]", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %.7f out of range [-180,180]", s.Longitude)
	}
	return nil
}

// HasMovement reports whether the sample carries speed and heading.
func (s Sample) HasMovement() bool {
	return s.Speed != nil && s.Heading != nil
}

// Float returns a pointer to v, for building samples.
func Float(v float64) *float64 {
	return &v
}
