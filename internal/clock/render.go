package clock

import (
	"fmt"
	"time"

	"github.com/relabs-tech/accurate_clock/internal/solar"
)

const (
	NoSunrise = "no sunrise"
	NoSunset  = "no sunset"
)

// Reading is one rendered frame of the clock.
type Reading struct {
	DeviceMs    int64 `json:"device_ms"`
	CorrectedMs int64 `json:"corrected_ms"`
	HasFirstFix bool  `json:"has_first_fix"`

	DeviceClock   string `json:"device_clock"`
	AccurateClock string `json:"accurate_clock"`
	Difference    string `json:"difference"`

	Coordinates string `json:"coordinates"`
	Movement    string `json:"movement"`

	Sunrise   string     `json:"sunrise"`
	SolarNoon string     `json:"solar_noon"`
	Sunset    string     `json:"sunset"`
	DayLength string     `json:"day_length"`
	SolarKind solar.Kind `json:"solar_kind,omitempty"`

	NetworkQuality Quality `json:"network_quality"`
	NetworkError   string  `json:"network_error,omitempty"`
	Ambient        string  `json:"ambient,omitempty"`
}

// Render composes a reading from an already computed snapshot. It only
// reads; nothing here touches the feed or the network.
func Render(snap Snapshot, deviceNow time.Time, loc *time.Location) Reading {
	if loc == nil {
		loc = time.Local
	}

	deviceMs := deviceNow.UnixMilli()
	corrected := Compose(deviceMs, snap.Correction)

	r := Reading{
		DeviceMs:       deviceMs,
		CorrectedMs:    corrected,
		HasFirstFix:    snap.Correction.HasFirstFix,
		DeviceClock:    FormatAbsolute(deviceMs, loc),
		AccurateClock:  Pending,
		Difference:     Pending,
		Coordinates:    Pending,
		Movement:       Pending,
		Sunrise:        Pending,
		SolarNoon:      Pending,
		Sunset:         Pending,
		DayLength:      Pending,
		NetworkQuality: snap.Network.Quality,
		NetworkError:   snap.Network.LastError,
	}

	if r.HasFirstFix {
		r.AccurateClock = FormatAbsolute(corrected, loc)
		r.Difference = FormatSignedDelta(deviceMs, corrected)
	}

	renderGeo(&r, snap.Geo)
	if snap.Solar != nil {
		_, zone := deviceNow.In(loc).Zone()
		renderSolar(&r, *snap.Solar, int64(zone)*1000)
	}
	if e := snap.Env; e != nil && e.Fresh(deviceNow, EnvMaxAge) {
		r.Ambient = fmt.Sprintf("%.1f°C, %.1fhPa", e.Temperature, e.PressureHPa)
	}
	return r
}

func renderGeo(r *Reading, geo GeoStatus) {
	if geo.Unavailable {
		r.Coordinates = Unavailable
		r.Movement = Unavailable
		return
	}
	if geo.Sample == nil {
		return
	}

	s := geo.Sample
	r.Coordinates = FormatCoordinates(s.Latitude, s.Longitude)
	if geo.MovementUnavailable || !s.HasMovement() {
		r.Movement = Unavailable
		return
	}
	r.Movement = FormatMovement(*s.Speed, *s.Heading)
}

// renderSolar shows the events in the civil zone; zoneMs is the zone's
// offset east of UTC.
func renderSolar(r *Reading, ev solar.Events, zoneMs int64) {
	r.SolarKind = ev.Kind
	r.SolarNoon = FormatDuration(ev.SolarNoonMs + zoneMs)
	r.DayLength = formatDayLength(ev.DayLengthMs)

	if !ev.HasSunriseSunset() {
		r.Sunrise = NoSunrise
		r.Sunset = NoSunset
		return
	}
	r.Sunrise = FormatDuration(ev.SunriseMs + zoneMs)
	r.Sunset = FormatDuration(ev.SunsetMs + zoneMs)
}
