package env

import "time"

// Sample represents a single ambient measurement (BMx280).
type Sample struct {
	Source string `json:"source"` // sensor name

	Temperature float64 `json:"temp_c"`       // °C
	Pressure    float64 `json:"pressure_pa"`  // Pa
	PressureHPa float64 `json:"pressure_hpa"` // hPa

	CapturedAtMs int64 `json:"captured_at_ms"`
}

// Fresh reports whether the sample is recent enough to describe current
// conditions at now.
func (s Sample) Fresh(now time.Time, maxAge time.Duration) bool {
	if s.CapturedAtMs == 0 {
		return false
	}
	return now.Sub(time.UnixMilli(s.CapturedAtMs)) <= maxAge
}
