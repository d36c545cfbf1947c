package timesync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultWorldTimeURL = "https://worldtimeapi.org/api/timezone"
	DefaultTimezone     = "Etc/UTC"
)

// Source is a time authority.
type Source interface {
	Name() string
	Reference(ctx context.Context) (time.Time, error)
}

// StatusError is returned for non-2xx responses from the time service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("time service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("time service returned %d: %s", e.StatusCode, e.Message)
}

// WorldTimeResponse is the subset of the world-time payload the clock uses.
type WorldTimeResponse struct {
	Datetime    string `json:"datetime"`
	UTCDatetime string `json:"utc_datetime"`
	Timezone    string `json:"timezone"`
	RawOffset   int    `json:"raw_offset"` // seconds
	Error       string `json:"error"`
	Message     string `json:"message"`
}

// WorldTimeClient queries a world-time HTTP service keyed by IANA timezone.
type WorldTimeClient struct {
	BaseURL  string
	Timezone string
	HTTP     *http.Client
}

// NewWorldTimeClient returns a client for baseURL, falling back to the
// public service and Etc/UTC when arguments are empty.
func NewWorldTimeClient(baseURL, timezone string, timeout time.Duration) *WorldTimeClient {
	if baseURL == "" {
		baseURL = DefaultWorldTimeURL
	}
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return &WorldTimeClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Timezone: timezone,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

func (c *WorldTimeClient) Name() string {
	return "worldtime " + c.Timezone
}

// Reference fetches the current instant from the service.
func (c *WorldTimeClient) Reference(ctx context.Context) (time.Time, error) {
	resp, err := c.Fetch(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return resp.Instant()
}

// Fetch performs the GET and decodes the payload.
func (c *WorldTimeClient) Fetch(ctx context.Context) (*WorldTimeResponse, error) {
	url := c.BaseURL + "/" + c.Timezone
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	var payload WorldTimeResponse
	jsonErr := json.Unmarshal(body, &payload)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := payload.Error
		if msg == "" {
			msg = payload.Message
		}
		if msg == "" && jsonErr != nil {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &StatusError{StatusCode: res.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("decode %s: %w", url, jsonErr)
	}
	return &payload, nil
}

// Instant returns the reported instant with its full sub-millisecond
// precision.
func (r *WorldTimeResponse) Instant() (time.Time, error) {
	s := r.Datetime
	if s == "" {
		s = r.UTCDatetime
	}
	if s == "" {
		return time.Time{}, fmt.Errorf("time service response has no datetime")
	}
	return ParseDatetime(s)
}

// ParseDatetime parses an ISO-8601 datetime such as
// 2024-03-20T12:00:00.123456+00:00, keeping the digits beyond the
// millisecond.
func ParseDatetime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t, nil
}

// ReferenceMs returns t as fractional Unix milliseconds.
func ReferenceMs(t time.Time) float64 {
	return float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/float64(time.Millisecond)
}
