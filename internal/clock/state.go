package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/accurate_clock/internal/env"
	"github.com/relabs-tech/accurate_clock/internal/gps"
	"github.com/relabs-tech/accurate_clock/internal/solar"
	"github.com/relabs-tech/accurate_clock/internal/timesync"
)

// EnvMaxAge bounds how old an ambient sample may be and still adjust the
// sunrise zenith.
const EnvMaxAge = 10 * time.Minute

// Quality describes how trustworthy the network offset is.
type Quality string

const (
	QualityLost     Quality = "lost"     // no successful sync yet
	QualityGood     Quality = "good"     // last refresh succeeded
	QualityDegraded Quality = "degraded" // last refresh failed, previous offset kept
)

// GeoStatus is the position side of the snapshot.
type GeoStatus struct {
	Sample              *gps.Sample `json:"sample,omitempty"`
	Unavailable         bool        `json:"unavailable"`
	MovementUnavailable bool        `json:"movement_unavailable"`
	LastError           string      `json:"last_error,omitempty"`
}

// NetworkStatus is the time-reference side of the snapshot.
type NetworkStatus struct {
	Quality    Quality              `json:"quality"`
	Source     string               `json:"source,omitempty"`
	LastSample *timesync.TimeSample `json:"last_sample,omitempty"`
	LastSyncMs int64                `json:"last_sync_ms,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

// Snapshot is a consistent copy of everything the clock knows. It is the
// document published on the clock topic.
type Snapshot struct {
	Correction  CorrectionState `json:"correction"`
	Geo         GeoStatus       `json:"geo"`
	Network     NetworkStatus   `json:"network"`
	Solar       *solar.Events   `json:"solar,omitempty"`
	ZenithDeg   float64         `json:"zenith_deg"`
	Env         *env.Sample     `json:"env,omitempty"`
	Location    string          `json:"location"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
}

// State stores the correction inputs. Each field group has a single
// writer: the geo feed, the refresher or the env feed.
type State struct {
	clock clockwork.Clock
	loc   *time.Location

	mu   sync.RWMutex
	snap Snapshot
}

// NewState returns an empty state. A nil clock selects the real clock and
// a nil loc selects time.Local.
func NewState(clock clockwork.Clock, loc *time.Location) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &State{
		clock: clock,
		loc:   loc,
		snap: Snapshot{
			Network:   NetworkStatus{Quality: QualityLost},
			ZenithDeg: solar.DefaultZenith,
			Location:  loc.String(),
		},
	}
}

// Location is the civil zone the corrected clock is displayed in.
func (s *State) Location() *time.Location {
	return s.loc
}

// Snapshot returns a copy safe to use without holding the lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	if out.Geo.Sample != nil {
		sample := *out.Geo.Sample
		out.Geo.Sample = &sample
	}
	if out.Network.LastSample != nil {
		ts := *out.Network.LastSample
		out.Network.LastSample = &ts
	}
	if out.Solar != nil {
		ev := *out.Solar
		out.Solar = &ev
	}
	if out.Env != nil {
		e := *out.Env
		out.Env = &e
	}
	return out
}

// ApplyGeo records a position sample and recomputes the longitude offset,
// the timezone offset and the solar events. It reports whether this was
// the first fix.
func (s *State) ApplyGeo(sample gps.Sample) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	first := !s.snap.Correction.HasFirstFix
	s.snap.Geo = GeoStatus{
		Sample:              &sample,
		MovementUnavailable: !sample.HasMovement(),
	}
	s.snap.Correction.LongitudeOffsetMs = LongitudeOffsetMs(sample.Longitude)
	s.snap.Correction.TimezoneOffsetMs = TimezoneOffsetMs(s.loc, now)
	s.snap.Correction.HasFirstFix = true
	s.recomputeSolarLocked(now)
	return first
}

// GeoFailed marks position and movement unavailable. Offsets and solar
// events stay frozen at their last values.
func (s *State) GeoFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Geo.Unavailable = true
	s.snap.Geo.MovementUnavailable = true
	if err != nil {
		s.snap.Geo.LastError = err.Error()
	}
	s.snap.UpdatedAtMs = s.clock.Now().UnixMilli()
}

// SetNetworkSample stores a new network offset. The last sample wins.
func (s *State) SetNetworkSample(sample timesync.TimeSample) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Correction.NetworkOffsetMs = sample.OffsetMs
	s.snap.Network.Quality = QualityGood
	s.snap.Network.LastSample = &sample
	s.snap.Network.LastSyncMs = now.UnixMilli()
	s.snap.Network.LastError = ""
	s.recomputeSolarLocked(now)
}

// NetworkFailed keeps the previous offset and downgrades quality.
func (s *State) NetworkFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Network.Quality == QualityGood {
		s.snap.Network.Quality = QualityDegraded
	}
	if err != nil {
		s.snap.Network.LastError = err.Error()
	}
	s.snap.UpdatedAtMs = s.clock.Now().UnixMilli()
}

// SetSourceName records which authority the network offset comes from.
func (s *State) SetSourceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Network.Source = name
}

// ApplyEnv records an ambient sample; a fresh one refines the zenith.
func (s *State) ApplyEnv(sample env.Sample) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Env = &sample
	s.recomputeSolarLocked(now)
}

func (s *State) recomputeSolarLocked(now time.Time) {
	s.snap.UpdatedAtMs = now.UnixMilli()

	zenith := solar.DefaultZenith
	if e := s.snap.Env; e != nil && e.Fresh(now, EnvMaxAge) {
		zenith = solar.RefractedZenith(e.PressureHPa, e.Temperature)
	}
	s.snap.ZenithDeg = zenith

	// Frozen while the position is unavailable.
	geo := s.snap.Geo
	if geo.Sample == nil || geo.Unavailable {
		return
	}

	cs := s.snap.Correction
	ev := solar.ComputeEvents(MeanSolarMs(now.UnixMilli(), cs), geo.Sample.Latitude, solar.WithZenith(zenith)).
		Shift(-(cs.NetworkOffsetMs + cs.LongitudeOffsetMs))
	s.snap.Solar = &ev
}
