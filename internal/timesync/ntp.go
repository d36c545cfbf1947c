package timesync

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// NTPClient uses an NTP server as the time authority.
type NTPClient struct {
	Server  string
	Timeout time.Duration
}

func (c *NTPClient) Name() string {
	return "ntp " + c.Server
}

// Reference queries the server once. The query runs on its own goroutine
// so ctx cancellation returns promptly; the socket is bounded by Timeout.
func (c *NTPClient) Reference(ctx context.Context) (time.Time, error) {
	type result struct {
		resp *ntp.Response
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		resp, err := ntp.QueryWithOptions(c.Server, ntp.QueryOptions{Timeout: c.Timeout})
		ch <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return time.Time{}, fmt.Errorf("ntp query %s: %w", c.Server, r.err)
		}
		if err := r.resp.Validate(); err != nil {
			return time.Time{}, fmt.Errorf("ntp response from %s: %w", c.Server, err)
		}
		return r.resp.Time, nil
	}
}
