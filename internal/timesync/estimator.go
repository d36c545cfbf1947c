// Package timesync estimates the offset between the device clock and an
// external time authority, assuming symmetric request latency.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNegativeRoundTrip is returned when the device clock went backwards
// during a request.
var ErrNegativeRoundTrip = errors.New("timesync: negative round trip")

// RequestFunc performs one round trip to a time authority and returns the
// instant it reported.
type RequestFunc func(ctx context.Context) (time.Time, error)

// NowFunc returns the device clock.
type NowFunc func() time.Time

// TimeSample is the result of one reference fetch. The last sample wins;
// samples are never averaged.
type TimeSample struct {
	DeviceTimestampMs     int64   `json:"device_timestamp_ms"` // device clock at response
	ServerReferenceMs     int64   `json:"server_reference_ms"`
	ServerReferenceFracMs float64 `json:"server_reference_frac_ms"` // sub-millisecond part
	RoundTripMs           int64   `json:"round_trip_ms"`
	OffsetMs              int64   `json:"offset_ms"`
}

// EstimateOffset measures the offset between now and the authority behind
// request: the reported instant is taken to be the midpoint of the round
// trip, so offset = reported + rtt/2 - now at response.
func EstimateOffset(ctx context.Context, request RequestFunc, now NowFunc) (TimeSample, error) {
	t0 := now()
	reported, err := request(ctx)
	if err != nil {
		return TimeSample{}, fmt.Errorf("timesync: request: %w", err)
	}
	t1 := now()

	rtt := t1.Sub(t0)
	if rtt < 0 {
		return TimeSample{}, fmt.Errorf("%w: %s", ErrNegativeRoundTrip, rtt)
	}

	offset := reported.Sub(t1) + rtt/2
	return TimeSample{
		DeviceTimestampMs:     t1.UnixMilli(),
		ServerReferenceMs:     reported.UnixMilli(),
		ServerReferenceFracMs: float64(reported.Nanosecond()%int(time.Millisecond)) / float64(time.Millisecond),
		RoundTripMs:           rtt.Milliseconds(),
		OffsetMs:              int64(math.Round(float64(offset) / float64(time.Millisecond))),
	}, nil
}
