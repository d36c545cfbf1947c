// Package clock reconciles the device clock with a network time reference
// and the observer's longitude, and renders the result.
package clock

import (
	"math"
	"time"
)

const (
	msPerHour = 3_600_000
	msPerDay  = 24 * msPerHour
)

// CorrectionState holds every offset applied on top of the device clock.
// All offsets are signed milliseconds.
type CorrectionState struct {
	NetworkOffsetMs   int64 `json:"network_offset_ms"`
	LongitudeOffsetMs int64 `json:"longitude_offset_ms"`
	TimezoneOffsetMs  int64 `json:"timezone_offset_ms"`
	HasFirstFix       bool  `json:"has_first_fix"`
}

// LongitudeOffsetMs converts a longitude into the mean solar time offset
// from UTC: 15° per hour, east positive.
func LongitudeOffsetMs(longitudeDeg float64) int64 {
	return int64(math.Round(longitudeDeg / 15 * msPerHour))
}

// TimezoneOffsetMs returns UTC minus local time for loc at the given
// instant, so that formatting a corrected instant in loc cancels the zone
// and shows mean solar time.
func TimezoneOffsetMs(loc *time.Location, at time.Time) int64 {
	if loc == nil {
		loc = time.Local
	}
	_, offset := at.In(loc).Zone()
	return -int64(offset) * 1000
}

// Compose returns the most accurate time for deviceNowMs. Before the first
// position fix no correction is applied.
func Compose(deviceNowMs int64, cs CorrectionState) int64 {
	if !cs.HasFirstFix {
		return deviceNowMs
	}
	return deviceNowMs + cs.NetworkOffsetMs + cs.LongitudeOffsetMs + cs.TimezoneOffsetMs
}

// MeanSolarMs is local mean solar time expressed as Unix milliseconds:
// the corrected clock without the display zone adjustment.
func MeanSolarMs(deviceNowMs int64, cs CorrectionState) int64 {
	return deviceNowMs + cs.NetworkOffsetMs + cs.LongitudeOffsetMs
}
