package timesync

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
)

// Sink receives the outcome of each refresh. A failure must leave the
// previously stored offset untouched.
type Sink interface {
	SetNetworkSample(TimeSample)
	NetworkFailed(error)
}

// Refresher keeps the network offset current: once eagerly on Trigger,
// then on a fixed interval. Refreshes never block callers.
type Refresher struct {
	source   Source
	sink     Sink
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewRefresher builds a refresher. Zero durations select the defaults and
// a nil clock selects the real clock.
func NewRefresher(source Source, sink Sink, clock clockwork.Clock, interval, timeout time.Duration) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		source:   source,
		sink:     sink,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the periodic refresh loop. It does not refresh immediately;
// call Trigger for the eager first fetch.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	r.wg.Add(1)
	go r.loop()
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	log.Debug().Msgf("timesync: refreshing from %s every %s", r.source.Name(), r.interval)
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.Chan():
			r.Trigger()
		}
	}
}

// Trigger starts a refresh in the background and returns immediately.
func (r *Refresher) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.Refresh(r.ctx)
	}()
}

// Refresh fetches a new sample and hands it to the sink. Concurrent calls
// share one request.
func (r *Refresher) Refresh(ctx context.Context) (TimeSample, error) {
	v, err, _ := r.group.Do("refresh", func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		sample, err := EstimateOffset(reqCtx, r.source.Reference, r.clock.Now)
		if err != nil {
			if ctx.Err() != nil || r.ctx.Err() != nil {
				// shutting down, not a failure of the source
				log.Debug().Err(err).Msgf("timesync: refresh from %s cancelled", r.source.Name())
				return TimeSample{}, err
			}
			log.Warn().Err(err).Msgf("timesync: refresh from %s failed, keeping previous offset", r.source.Name())
			r.sink.NetworkFailed(err)
			return TimeSample{}, err
		}

		log.Debug().
			Int64("offset_ms", sample.OffsetMs).
			Int64("rtt_ms", sample.RoundTripMs).
			Msgf("timesync: refreshed from %s", r.source.Name())
		r.sink.SetNetworkSample(sample)
		return sample, nil
	})
	if err != nil {
		return TimeSample{}, err
	}
	return v.(TimeSample), nil
}

// Stop cancels in-flight requests, clears the interval timer and waits for
// background work. Safe to call more than once.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
