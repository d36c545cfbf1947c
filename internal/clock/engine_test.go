package clock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/relabs-tech/accurate_clock/internal/env"
	"github.com/relabs-tech/accurate_clock/internal/gps"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type chanFeed struct {
	samples chan gps.Sample
	errs    chan error
}

func newChanFeed() *chanFeed {
	return &chanFeed{samples: make(chan gps.Sample), errs: make(chan error)}
}

func (f *chanFeed) Watch(ctx context.Context, onSample func(gps.Sample), onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-f.samples:
			onSample(s)
		case err := <-f.errs:
			onError(err)
		}
	}
}

type failingFeed struct {
	calls atomic.Int32
}

func (f *failingFeed) Watch(context.Context, func(gps.Sample), func(error)) error {
	f.calls.Add(1)
	return errors.New("permission denied")
}

type envChanFeed chan env.Sample

func (f envChanFeed) Watch(ctx context.Context, onSample func(env.Sample)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-f:
			onSample(s)
		}
	}
}

type fakeSource struct {
	clock clockwork.Clock
	ahead time.Duration
	calls atomic.Int32
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Reference(context.Context) (time.Time, error) {
	s.calls.Add(1)
	return s.clock.Now().Add(s.ahead), nil
}

func newTestEngine(t *testing.T, feed gps.Feed, opts Options) (*Engine, *clockwork.FakeClock, *fakeSource) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 3, 0, 0, 0, time.UTC))
	src := &fakeSource{clock: clock, ahead: 250 * time.Millisecond}

	opts.Feed = feed
	opts.Source = src
	opts.Clock = clock
	opts.Location = time.UTC

	e, err := NewEngine(opts)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(e.Stop)
	return e, clock, src
}

func TestNewEngineRequiresFeedAndSource(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(Options{Source: &fakeSource{}})
	assert.Error(t, err)

	_, err = NewEngine(Options{Feed: newChanFeed()})
	assert.Error(t, err)
}

func TestEngineFirstFixTriggersRefresh(t *testing.T) {
	t.Parallel()

	var changes atomic.Int32
	feed := newChanFeed()
	e, clock, src := newTestEngine(t, feed, Options{
		OnChange: func(Snapshot) { changes.Add(1) },
	})

	r := e.Read()
	assert.False(t, r.HasFirstFix)
	assert.Equal(t, Pending, r.AccurateClock)
	assert.Equal(t, Pending, r.Difference)
	assert.Equal(t, int32(0), src.calls.Load(), "no refresh before the first fix")

	feed.samples <- tokyo

	require.Eventually(t, func() bool {
		s := e.Snapshot()
		return s.Correction.HasFirstFix && s.Network.Quality == QualityGood
	}, 5*time.Second, 10*time.Millisecond)

	snap := e.Snapshot()
	assert.Equal(t, int64(250), snap.Correction.NetworkOffsetMs)
	assert.Equal(t, int64(33_526_008), snap.Correction.LongitudeOffsetMs)
	assert.Equal(t, "fake", snap.Network.Source)
	require.NotNil(t, snap.Solar)

	r = e.Read()
	want := clock.Now().UnixMilli() + 250 + 33_526_008
	assert.Equal(t, want, r.CorrectedMs)
	assert.Equal(t, FormatAbsolute(want, time.UTC), r.AccurateClock)
	assert.Equal(t, "+09:18:46.258", r.Difference)
	assert.Equal(t, "35.6895000°N, 139.6917000°E", r.Coordinates)
	assert.GreaterOrEqual(t, changes.Load(), int32(2))

	// A second fix does not trigger another eager refresh.
	feed.samples <- tokyo
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestEngineFixTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed := newChanFeed()
	e, clock, _ := newTestEngine(t, feed, Options{})

	// refresh ticker and fix timer
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(gps.DefaultFixTimeout)

	require.Eventually(t, func() bool {
		return e.Snapshot().Geo.Unavailable
	}, 5*time.Second, 10*time.Millisecond)

	snap := e.Snapshot()
	assert.Equal(t, gps.ErrFixTimeout.Error(), snap.Geo.LastError)
	assert.False(t, snap.Correction.HasFirstFix)

	r := e.Read()
	assert.Equal(t, Unavailable, r.Coordinates)
	assert.Equal(t, Unavailable, r.Movement)
	assert.Equal(t, Pending, r.AccurateClock)

	feed.samples <- tokyo
	require.Eventually(t, func() bool {
		return !e.Snapshot().Geo.Unavailable
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEngineFeedErrorMarksUnavailable(t *testing.T) {
	t.Parallel()

	feed := newChanFeed()
	e, _, _ := newTestEngine(t, feed, Options{})

	feed.errs <- errors.New("permission denied")
	require.Eventually(t, func() bool {
		return e.Snapshot().Geo.Unavailable
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, Unavailable, e.Read().Coordinates)
}

func TestEngineRetriesStoppedFeed(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed := &failingFeed{}
	e, clock, _ := newTestEngine(t, feed, Options{RetryDelay: time.Second})

	require.Eventually(t, func() bool {
		return feed.calls.Load() == 1 && e.Snapshot().Geo.Unavailable
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "permission denied", e.Snapshot().Geo.LastError)

	// refresh ticker and retry delay
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return feed.calls.Load() == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEngineInvalidSample(t *testing.T) {
	t.Parallel()

	feed := newChanFeed()
	e, _, _ := newTestEngine(t, feed, Options{})

	feed.samples <- gps.Sample{Latitude: 91, Longitude: 0}
	require.Eventually(t, func() bool {
		return e.Snapshot().Geo.Unavailable
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, e.Snapshot().Correction.HasFirstFix)
}

func TestEngineAmbientFeed(t *testing.T) {
	t.Parallel()

	envFeed := make(envChanFeed)
	feed := newChanFeed()
	e, clock, _ := newTestEngine(t, feed, Options{EnvFeed: envFeed})

	envFeed <- env.Sample{Source: "bme280", Temperature: 0, PressureHPa: 1030, CapturedAtMs: clock.Now().UnixMilli()}
	require.Eventually(t, func() bool {
		return e.Snapshot().Env != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Greater(t, e.Snapshot().ZenithDeg, 90.833)
}

func TestEngineStop(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	src := &fakeSource{clock: clock}
	e, err := NewEngine(Options{Feed: newChanFeed(), Source: src, Clock: clock})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Start(context.Background()), "second start is a no-op")

	e.Stop()
	e.Stop()
	assert.Error(t, e.Start(context.Background()))
	assert.Equal(t, int32(0), src.calls.Load())
}
