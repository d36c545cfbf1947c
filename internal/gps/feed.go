package gps

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFixTimeout bounds how long a watch waits for a fix before
// reporting the position as unavailable.
const DefaultFixTimeout = 20 * time.Second

// Feed is anything that delivers position samples over time: a serial
// receiver, an MQTT subscription, a mock.
//
// Watch blocks until ctx is done or the feed fails permanently. onSample and
// onError may be called from the feed's own goroutines but never
// concurrently with each other.
type Feed interface {
	Watch(ctx context.Context, onSample func(Sample), onError func(error)) error
}

type timeoutFeed struct {
	feed    Feed
	timeout time.Duration
	clock   clockwork.Clock
}

// WithFixTimeout wraps feed so that ErrFixTimeout is reported whenever no
// sample has arrived for timeout. Watching continues after a timeout; the
// next sample clears the condition.
func WithFixTimeout(feed Feed, timeout time.Duration, clock clockwork.Clock) Feed {
	if timeout <= 0 {
		timeout = DefaultFixTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &timeoutFeed{feed: feed, timeout: timeout, clock: clock}
}

func (f *timeoutFeed) Watch(ctx context.Context, onSample func(Sample), onError func(error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	timer := f.clock.NewTimer(f.timeout)
	defer timer.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.Chan():
				mu.Lock()
				onError(ErrFixTimeout)
				mu.Unlock()
				timer.Reset(f.timeout)
			}
		}
	}()

	err := f.feed.Watch(ctx,
		func(s Sample) {
			mu.Lock()
			defer mu.Unlock()
			timer.Reset(f.timeout)
			onSample(s)
		},
		func(err error) {
			mu.Lock()
			defer mu.Unlock()
			onError(err)
		},
	)

	cancel()
	<-done
	return err
}
