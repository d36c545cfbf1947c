// Package solar computes sunrise, solar noon (southing) and sunset from a
// corrected timestamp and a latitude, using the NOAA truncated Fourier
// series for the equation of time and the solar declination.
//
// Times are returned as milliseconds from local mean midnight, i.e. on the
// timeline of a clock that runs at UTC plus the longitude offset.
package solar

import (
	"math"
	"time"
)

// DefaultZenith is the sun's zenith angle at apparent sunrise/sunset:
// 90° plus 16′ solar semi-diameter plus 34′ standard refraction.
const DefaultZenith = 90.833

const (
	msPerMinute = 60_000
	msPerDay    = 24 * 60 * msPerMinute
)

// Kind tells whether the sun rises and sets on the given day.
type Kind string

const (
	KindNormal     Kind = "normal"
	KindPolarDay   Kind = "polar_day"   // sun never sets
	KindPolarNight Kind = "polar_night" // sun never rises
)

// Events holds the solar events of one day. SunriseMs and SunsetMs are zero
// unless Kind is KindNormal; SolarNoonMs is always defined.
type Events struct {
	Kind              Kind    `json:"kind"`
	SunriseMs         int64   `json:"sunrise_ms"`
	SolarNoonMs       int64   `json:"solar_noon_ms"`
	SunsetMs          int64   `json:"sunset_ms"`
	DayLengthMs       int64   `json:"day_length_ms"`
	EquationOfTimeMin float64 `json:"equation_of_time_min"`
	DeclinationDeg    float64 `json:"declination_deg"`
}

// HasSunriseSunset reports whether sunrise and sunset are defined.
func (e Events) HasSunriseSunset() bool {
	return e.Kind == KindNormal
}

// Shift moves every defined instant by deltaMs. Day length is unchanged.
func (e Events) Shift(deltaMs int64) Events {
	e.SolarNoonMs += deltaMs
	if e.HasSunriseSunset() {
		e.SunriseMs += deltaMs
		e.SunsetMs += deltaMs
	}
	return e
}

type options struct {
	zenithDeg float64
}

// Option tunes ComputeEvents.
type Option func(*options)

// WithZenith overrides the zenith angle used for sunrise/sunset.
func WithZenith(deg float64) Option {
	return func(o *options) {
		if deg > 0 {
			o.zenithDeg = deg
		}
	}
}

// DayFraction returns the elapsed fraction of the UTC calendar year
// containing the instant, in [0,1).
func DayFraction(ms int64) float64 {
	t := time.UnixMilli(ms).UTC()
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Sub(start)) / float64(end.Sub(start))
}

// EquationOfTime returns the equation of time in minutes for the
// fractional-year angle theta (radians).
func EquationOfTime(theta float64) float64 {
	return 229.18 * (0.000075 +
		0.001868*math.Cos(theta) -
		0.032077*math.Sin(theta) -
		0.014615*math.Cos(2*theta) -
		0.040849*math.Sin(2*theta))
}

// Declination returns the solar declination in radians for the
// fractional-year angle theta (radians).
func Declination(theta float64) float64 {
	return 0.006918 -
		0.399912*math.Cos(theta) +
		0.070257*math.Sin(theta) -
		0.006758*math.Cos(2*theta) +
		0.000907*math.Sin(2*theta) -
		0.002697*math.Cos(3*theta) +
		0.001480*math.Sin(3*theta)
}

// HourAngleArg is the argument of acos in the sunrise hour-angle equation.
// Values outside [-1,1] mean the sun does not cross the horizon.
func HourAngleArg(latitudeDeg, declinationRad, zenithDeg float64) float64 {
	lat := latitudeDeg * math.Pi / 180
	zenith := zenithDeg * math.Pi / 180
	return math.Cos(zenith)/(math.Cos(lat)*math.Cos(declinationRad)) -
		math.Tan(lat)*math.Tan(declinationRad)
}

// ComputeEvents computes the solar events of the day containing
// correctedNowMs at the given latitude.
func ComputeEvents(correctedNowMs int64, latitudeDeg float64, opts ...Option) Events {
	o := options{zenithDeg: DefaultZenith}
	for _, opt := range opts {
		opt(&o)
	}

	theta := DayFraction(correctedNowMs) * 2 * math.Pi
	eot := EquationOfTime(theta)
	decl := Declination(theta)

	noonMin := 720 - eot
	ev := Events{
		SolarNoonMs:       minutesToMs(noonMin),
		EquationOfTimeMin: eot,
		DeclinationDeg:    decl * 180 / math.Pi,
	}

	arg := HourAngleArg(latitudeDeg, decl, o.zenithDeg)
	switch {
	case arg > 1 || math.IsNaN(arg):
		ev.Kind = KindPolarNight
		return ev
	case arg < -1:
		ev.Kind = KindPolarDay
		ev.DayLengthMs = msPerDay
		return ev
	}

	haDeg := math.Acos(arg) * 180 / math.Pi
	ev.Kind = KindNormal
	ev.SunriseMs = minutesToMs(noonMin - 4*haDeg)
	ev.SunsetMs = minutesToMs(noonMin + 4*haDeg)
	ev.DayLengthMs = ev.SunsetMs - ev.SunriseMs
	return ev
}

// RefractedZenith returns the sunrise zenith angle with the standard 34′
// refraction scaled for ambient pressure (hPa) and temperature (°C).
func RefractedZenith(pressureHPa, tempC float64) float64 {
	if pressureHPa <= 0 || tempC <= -273 {
		return DefaultZenith
	}
	refraction := 34.0 * (pressureHPa / 1010.0) * (283.0 / (273.0 + tempC))
	return 90 + (16+refraction)/60
}

func minutesToMs(min float64) int64 {
	return int64(math.Round(min * msPerMinute))
}
