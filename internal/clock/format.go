package clock

import (
	"fmt"
	"math"
	"time"
)

const (
	// Pending is shown until the first value arrives.
	Pending = "..."
	// Unavailable is shown when the source failed or was denied.
	Unavailable = "---"

	absoluteLayout = "2006/01/02 15:04:05.000"
)

// FormatAbsolute renders ms as yyyy/MM/dd HH:mm:ss.SSS in loc.
func FormatAbsolute(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(absoluteLayout)
}

// FormatDuration renders ms as HH:mm:ss.SSS within one day. Values are
// reduced modulo 24 h and negative values wrap by adding 24 h, which suits
// times of day; it is not meant for arbitrary large magnitudes.
func FormatDuration(ms int64) string {
	d := ms % msPerDay
	if d < 0 {
		d += msPerDay
	}
	h := d / msPerHour
	m := d / 60_000 % 60
	s := d / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d%1000)
}

// FormatSignedDelta renders b relative to a: "-" when b is behind a, "+"
// when ahead and "±" when equal, followed by the magnitude.
func FormatSignedDelta(a, b int64) string {
	diff := b - a
	switch {
	case diff < 0:
		return "-" + FormatDuration(-diff)
	case diff > 0:
		return "+" + FormatDuration(diff)
	default:
		return "±" + FormatDuration(0)
	}
}

// FormatCoordinates renders a position as 35.6895000°N, 139.6917000°E.
func FormatCoordinates(lat, lon float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.7f°%s, %.7f°%s", math.Abs(lat), latDir, math.Abs(lon), lonDir)
}

// FormatMovement renders speed (m/s) and heading (degrees) as
// 12.345km/h, 90.000°.
func FormatMovement(speedMps, headingDeg float64) string {
	return fmt.Sprintf("%.3fkm/h, %.3f°", speedMps*3.6, headingDeg)
}

// formatDayLength keeps a full day readable instead of wrapping to zero.
func formatDayLength(ms int64) string {
	if ms >= msPerDay {
		return "24:00:00.000"
	}
	return FormatDuration(ms)
}
