package solar

import (
	"math"
	"testing"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan1st2024  = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	solstice24  = time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC)
	midYear2023 = time.Date(2023, time.July, 2, 12, 0, 0, 0, time.UTC)
)

func TestDayFraction(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, DayFraction(jan1st2024.UnixMilli()), 1e-12)
	assert.InDelta(t, 0.5, DayFraction(midYear2023.UnixMilli()), 1e-12)

	last := time.Date(2024, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)
	f := DayFraction(last.UnixMilli())
	assert.Less(t, f, 1.0)
	assert.Greater(t, f, 0.999)
}

func TestComputeEventsTokyoNewYear(t *testing.T) {
	t.Parallel()

	ev := ComputeEvents(jan1st2024.UnixMilli(), 35.6895)
	require.Equal(t, KindNormal, ev.Kind)

	// theta == 0
	assert.InDelta(t, -2.904169, ev.EquationOfTimeMin, 1e-5)
	assert.InDelta(t, -23.0586, ev.DeclinationDeg, 1e-3)

	// solar noon slightly after 12:00 local mean time
	assert.InDelta(t, 722.904169*60_000, float64(ev.SolarNoonMs), 1)
	assert.InDelta(t, 429.453287*60_000, float64(ev.SunriseMs), 10)
	assert.InDelta(t, 1016.355051*60_000, float64(ev.SunsetMs), 10)

	// symmetric around solar noon
	assert.InDelta(t, ev.SolarNoonMs-ev.SunriseMs, ev.SunsetMs-ev.SolarNoonMs, 2)
	assert.Equal(t, ev.SunsetMs-ev.SunriseMs, ev.DayLengthMs)
}

func TestComputeEventsPolar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		at       time.Time
		lat      float64
		wantKind Kind
		wantLen  int64
	}{
		{name: "arctic summer", at: solstice24, lat: 70, wantKind: KindPolarDay, wantLen: msPerDay},
		{name: "antarctic winter", at: solstice24, lat: -70, wantKind: KindPolarNight},
		{name: "north pole summer", at: solstice24, lat: 90, wantKind: KindPolarDay, wantLen: msPerDay},
		{name: "north pole winter", at: jan1st2024, lat: 90, wantKind: KindPolarNight},
		{name: "south pole summer", at: jan1st2024, lat: -90, wantKind: KindPolarDay, wantLen: msPerDay},
		// refraction lifts the midnight sun about 0.8° below the polar circles
		{name: "inside antarctic circle band", at: jan1st2024, lat: -66.4999, wantKind: KindPolarDay, wantLen: msPerDay},
		{name: "inside arctic circle band", at: solstice24, lat: 66.4999, wantKind: KindPolarDay, wantLen: msPerDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev := ComputeEvents(tt.at.UnixMilli(), tt.lat)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.False(t, ev.HasSunriseSunset())
			assert.Zero(t, ev.SunriseMs)
			assert.Zero(t, ev.SunsetMs)
			assert.Equal(t, tt.wantLen, ev.DayLengthMs)
			assert.InDelta(t, 720*60_000, float64(ev.SolarNoonMs), 20*60_000)
		})
	}
}

func TestShift(t *testing.T) {
	t.Parallel()

	ev := ComputeEvents(jan1st2024.UnixMilli(), 35.6895)
	shifted := ev.Shift(-1000)
	assert.Equal(t, ev.SunriseMs-1000, shifted.SunriseMs)
	assert.Equal(t, ev.SolarNoonMs-1000, shifted.SolarNoonMs)
	assert.Equal(t, ev.SunsetMs-1000, shifted.SunsetMs)
	assert.Equal(t, ev.DayLengthMs, shifted.DayLengthMs)

	polar := ComputeEvents(solstice24.UnixMilli(), 80).Shift(500)
	assert.Zero(t, polar.SunriseMs)
	assert.Zero(t, polar.SunsetMs)
}

func TestWithZenith(t *testing.T) {
	t.Parallel()

	standard := ComputeEvents(solstice24.UnixMilli(), 45)
	geometric := ComputeEvents(solstice24.UnixMilli(), 45, WithZenith(90))
	ignored := ComputeEvents(solstice24.UnixMilli(), 45, WithZenith(-1))

	// without refraction the sun rises later and sets earlier
	assert.Greater(t, geometric.SunriseMs, standard.SunriseMs)
	assert.Less(t, geometric.SunsetMs, standard.SunsetMs)
	assert.Equal(t, standard, ignored)
}

func TestRefractedZenith(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, DefaultZenith, RefractedZenith(1010, 10), 0.001)
	assert.Greater(t, RefractedZenith(1040, -20), DefaultZenith)
	assert.Less(t, RefractedZenith(700, 30), DefaultZenith)
	assert.InDelta(t, DefaultZenith, RefractedZenith(0, 10), 1e-12)
}

// The series approximation should stay within a few minutes of an
// independent implementation.
func TestAgainstGoSunrise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lat  float64
		date time.Time
	}{
		{name: "london midsummer", lat: 51.5, date: time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC)},
		{name: "mid latitude winter", lat: 40, date: time.Date(2024, time.December, 21, 0, 0, 0, 0, time.UTC)},
		{name: "southern equinox", lat: -33.9, date: time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)},
		{name: "equator", lat: 0.5, date: time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC)},
	}

	const tolerance = float64(5 * time.Minute / time.Millisecond)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// at longitude 0 local mean time equals UTC
			ev := ComputeEvents(tt.date.Add(12*time.Hour).UnixMilli(), tt.lat)
			require.True(t, ev.HasSunriseSunset())

			rise, set := sunrise.SunriseSunset(tt.lat, 0, tt.date.Year(), tt.date.Month(), tt.date.Day())
			assert.InDelta(t, float64(rise.Sub(tt.date).Milliseconds()), float64(ev.SunriseMs), tolerance)
			assert.InDelta(t, float64(set.Sub(tt.date).Milliseconds()), float64(ev.SunsetMs), tolerance)
		})
	}
}

func TestHourAngleArgSign(t *testing.T) {
	t.Parallel()

	decl := 23.44 * math.Pi / 180
	assert.Less(t, HourAngleArg(75, decl, DefaultZenith), -1.0)
	assert.Greater(t, HourAngleArg(-75, decl, DefaultZenith), 1.0)
	assert.InDelta(t, 0, HourAngleArg(0, 0, 90), 1e-12)
}
