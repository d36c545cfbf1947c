package clock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/env"
	"github.com/relabs-tech/accurate_clock/internal/gps"
	"github.com/relabs-tech/accurate_clock/internal/timesync"
)

// DefaultRetryDelay is the pause before re-watching a feed that stopped.
const DefaultRetryDelay = 5 * time.Second

// EnvFeed delivers ambient samples until ctx is done.
type EnvFeed interface {
	Watch(ctx context.Context, onSample func(env.Sample)) error
}

// Options configures an Engine. Feed and Source are required.
type Options struct {
	Feed    gps.Feed
	EnvFeed EnvFeed
	Source  timesync.Source

	Clock    clockwork.Clock
	Location *time.Location

	FixTimeout      time.Duration
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	RetryDelay      time.Duration

	// OnChange is called after every state change, from the goroutine that
	// caused it.
	OnChange func(Snapshot)
}

// Engine runs the three independent inputs of the clock (position feed,
// network refresh, ambient feed) against one State.
type Engine struct {
	opts      Options
	clock     clockwork.Clock
	feed      gps.Feed
	state     *State
	refresher *timesync.Refresher

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc

	started bool
	stopped bool
}

// NewEngine validates opts and builds an engine that has not started yet.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Feed == nil {
		return nil, errors.New("clock: position feed is required")
	}
	if opts.Source == nil {
		return nil, errors.New("clock: time source is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	e := &Engine{
		opts:  opts,
		clock: opts.Clock,
		feed:  gps.WithFixTimeout(opts.Feed, opts.FixTimeout, opts.Clock),
		state: NewState(opts.Clock, opts.Location),
	}
	e.state.SetSourceName(opts.Source.Name())
	e.refresher = timesync.NewRefresher(opts.Source, e, opts.Clock, opts.RefreshInterval, opts.RequestTimeout)
	return e, nil
}

// Start launches the feed watchers and the periodic refresh. The eager
// refresh waits for the first position fix.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.New("clock: engine stopped")
	}
	if e.started {
		return nil
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)

	e.refresher.Start()

	e.wg.Add(1)
	go e.watchGeo(ctx)

	if e.opts.EnvFeed != nil {
		e.wg.Add(1)
		go e.watchEnv(ctx)
	}

	log.Info().
		Str("source", e.opts.Source.Name()).
		Str("location", e.state.Location().String()).
		Msg("clock: engine started")
	return nil
}

// Stop releases the feed subscriptions, clears the refresh timer and waits
// for every goroutine. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.refresher.Stop()
	log.Info().Msg("clock: engine stopped")
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	return e.state.Snapshot()
}

// Read renders the current state against the device clock.
func (e *Engine) Read() Reading {
	return Render(e.state.Snapshot(), e.clock.Now(), e.state.Location())
}

// SetNetworkSample implements timesync.Sink.
func (e *Engine) SetNetworkSample(sample timesync.TimeSample) {
	e.state.SetNetworkSample(sample)
	e.changed()
}

// NetworkFailed implements timesync.Sink.
func (e *Engine) NetworkFailed(err error) {
	e.state.NetworkFailed(err)
	e.changed()
}

func (e *Engine) watchGeo(ctx context.Context) {
	defer e.wg.Done()

	for {
		err := e.feed.Watch(ctx, e.onGeoSample, e.onGeoError)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("gps: feed closed")
		}
		log.Warn().Err(err).Msgf("clock: position feed stopped, retrying in %s", e.opts.RetryDelay)
		e.onGeoError(err)

		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(e.opts.RetryDelay):
		}
	}
}

func (e *Engine) onGeoSample(s gps.Sample) {
	if err := s.Validate(); err != nil {
		e.onGeoError(err)
		return
	}

	if e.state.ApplyGeo(s) {
		log.Info().
			Float64("lat", s.Latitude).
			Float64("lon", s.Longitude).
			Msg("clock: first position fix")
		e.refresher.Trigger()
	}
	e.changed()
}

func (e *Engine) onGeoError(err error) {
	log.Warn().Err(err).Msg("clock: position unavailable")
	e.state.GeoFailed(err)
	e.changed()
}

func (e *Engine) watchEnv(ctx context.Context) {
	defer e.wg.Done()

	for {
		err := e.opts.EnvFeed.Watch(ctx, func(s env.Sample) {
			e.state.ApplyEnv(s)
			e.changed()
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("clock: ambient feed stopped")
		}

		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(e.opts.RetryDelay):
		}
	}
}

func (e *Engine) changed() {
	if e.opts.OnChange != nil {
		e.opts.OnChange(e.state.Snapshot())
	}
}
