package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// isoLayout is the ISO-8601 timestamp format sent to the ingest endpoint.
const isoLayout = "2006-01-02T15:04:05"

// minValidTime is the earliest wall-clock time accepted from an SNTP
// server.  Anything earlier means the answer (or the local clock it was
// combined with) is not set yet.
var minValidTime = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// TimeSource fetches wall-clock time over SNTP and renders it as ISO-8601
// text with a fixed UTC offset applied.  Servers are tried in order until
// one gives a valid answer; rounds repeat until the overall budget runs
// out.  Every fetch queries the network, the result is not cached.
type TimeSource struct {
	Servers []string
	Offset  time.Duration
	AppendZ bool

	budget       time.Duration
	retryWait    time.Duration
	queryTimeout time.Duration

	query func(server string, timeout time.Duration) (time.Time, error)
	now   func() time.Time
	sleep func(d time.Duration)
}

// NewTimeSource builds a TimeSource from configuration.  The 12 second
// budget and 250 ms retry pacing match the fixed waits the device firmware
// used while polling for SNTP to settle.
func NewTimeSource(servers []string, offsetHours int, appendZ bool) *TimeSource {
	return &TimeSource{
		Servers:      servers,
		Offset:       time.Duration(offsetHours) * time.Hour,
		AppendZ:      appendZ,
		budget:       12 * time.Second,
		retryWait:    250 * time.Millisecond,
		queryTimeout: 3 * time.Second,
		query:        sntpQuery,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// FetchISO performs a blocking SNTP fetch and returns the shifted
// ISO-8601 timestamp, e.g. "2025-11-10T02:23:50" with a -8h offset.
func (ts *TimeSource) FetchISO() (string, error) {
	t, err := ts.Fetch()
	if err != nil {
		return "", err
	}
	return ts.FormatISO(t), nil
}

// Fetch returns the current UTC time as reported over SNTP, without the
// configured offset applied.
func (ts *TimeSource) Fetch() (time.Time, error) {
	if len(ts.Servers) == 0 {
		return time.Time{}, errors.New("no SNTP servers configured")
	}
	deadline := ts.now().Add(ts.budget)
	var lastErr error
loop:
	for {
		for _, server := range ts.Servers {
			// The budget bounds the whole fetch, so it is checked
			// before every query and the query timeout is clipped to
			// whatever is left.
			remaining := deadline.Sub(ts.now())
			if remaining <= 0 {
				break loop
			}
			timeout := ts.queryTimeout
			if remaining < timeout {
				timeout = remaining
			}
			t, err := ts.query(server, timeout)
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", server, err)
				continue
			}
			if t.Before(minValidTime) {
				lastErr = fmt.Errorf("%s: implausible time %v", server, t)
				continue
			}
			return t.UTC(), nil
		}
		if !ts.now().Before(deadline) {
			break
		}
		ts.sleep(ts.retryWait)
	}
	if lastErr == nil {
		lastErr = errors.New("no server answered")
	}
	return time.Time{}, fmt.Errorf("sntp fetch timed out: %w", lastErr)
}

// FormatISO applies the fixed offset and renders the ISO-8601 text.  The
// trailing Z is only appended when configured; it marks the text as UTC,
// which is wrong once an offset is in play.
func (ts *TimeSource) FormatISO(t time.Time) string {
	out := t.UTC().Add(ts.Offset).Format(isoLayout)
	if ts.AppendZ {
		out += "Z"
	}
	return out
}

// sntpQuery asks a single server for the clock offset and applies it to
// the local clock.  The response is validated (stratum, leap, RTT) before
// being trusted.
func sntpQuery(server string, timeout time.Duration) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(resp.ClockOffset), nil
}
