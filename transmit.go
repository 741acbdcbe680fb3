package main

// This file defines pluggable sinks that deliver a reading after it has
// been taken and timestamped.  The HTTP form POST is the primary path;
// the log and Influx sinks exist for local debugging and dashboarding.

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Sink delivers one reading to a destination.  The Send method receives
// the reading and a logger to record any diagnostics.  If an error is
// returned, the caller should log it but continue operation.
type Sink interface {
	Name() string
	Send(r Reading, logger *EventLogger) error
}

// LogSink records readings in the event log.  It is the default sink when
// nothing else is configured, so every reading leaves a trace.
type LogSink struct{}

// Name returns the type name of the sink.
func (LogSink) Name() string { return "log" }

// Send writes the reading to the event log.
func (LogSink) Send(r Reading, logger *EventLogger) error {
	logger.Log("reading %s node=%s measured=%s dist=%.2fcm sound=%.2fdB",
		r.ID, r.Node, r.MeasuredISO, r.DistanceCM, r.SoundDB)
	return nil
}

// HTTPSink POSTs readings to the remote ingest endpoint as an URL-encoded
// form.  The wire format is fixed: exactly the five fields the ingest
// script reads, floats rendered with two decimals.  Certificate validation
// can be disabled for endpoints with self-signed or misconfigured TLS,
// which is how the original device always ran.
type HTTPSink struct {
	BaseURL  string
	Path     string
	Insecure bool
	Timeout  time.Duration

	client *http.Client
}

// NewHTTPSink builds the sink and its HTTP client up front so every Send
// reuses connections.
func NewHTTPSink(baseURL, path string, insecure bool) *HTTPSink {
	s := &HTTPSink{
		BaseURL:  baseURL,
		Path:     path,
		Insecure: insecure,
		Timeout:  15 * time.Second,
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	s.client = &http.Client{Timeout: s.Timeout, Transport: transport}
	return s
}

// Name returns the type name of the sink.
func (s *HTTPSink) Name() string { return "http" }

// SetTarget repoints the sink.  The control loop calls this with the
// current config before each reading, so API updates to the ingest URL
// take effect without a restart.
func (s *HTTPSink) SetTarget(baseURL, path string) {
	s.BaseURL = baseURL
	s.Path = path
}

// formBody renders the five-field form the ingest endpoint expects.
func formBody(r Reading) string {
	form := url.Values{}
	form.Set("node_name", r.Node)
	form.Set("measured_iso", r.MeasuredISO)
	form.Set("tz_region", r.TZRegion)
	form.Set("distance_cm", strconv.FormatFloat(r.DistanceCM, 'f', 2, 64))
	form.Set("sound_db", strconv.FormatFloat(r.SoundDB, 'f', 2, 64))
	return form.Encode()
}

// Send performs a single POST.  Any 2xx status counts as delivered; the
// status code and (truncated) body are logged either way so the serial
// console habit of printing "POST -> code" survives in the event log.
func (s *HTTPSink) Send(r Reading, logger *EventLogger) error {
	full := s.BaseURL + s.Path
	resp, err := s.client.Post(full, "application/x-www-form-urlencoded",
		strings.NewReader(formBody(r)))
	if err != nil {
		return fmt.Errorf("post %s: %w", full, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	logger.Log("POST -> %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", full, resp.StatusCode)
	}
	return nil
}

// InfluxSink writes each reading as a point to an InfluxDB bucket.  The
// write API is the non-blocking batched one, so Send never waits on the
// network; delivery errors surface through the client's error channel and
// are logged in the background.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInfluxSink connects the sink to a bucket.  Errors from the async
// writer are forwarded to the event logger for as long as the process runs.
func NewInfluxSink(url, token, org, bucket string, logger *EventLogger) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Log("influx write error: %v", err)
		}
	}()
	return &InfluxSink{client: client, writeAPI: writeAPI}
}

// Name returns the type name of the sink.
func (s *InfluxSink) Name() string { return "influx" }

// Send enqueues one point tagged with the node and reading ID.
func (s *InfluxSink) Send(r Reading, logger *EventLogger) error {
	p := influxdb2.NewPointWithMeasurement("sensor_data").
		AddTag("node", r.Node).
		AddTag("reading_id", r.ID).
		AddField("distance_cm", r.DistanceCM).
		AddField("sound_db", r.SoundDB).
		SetTime(r.Taken)
	s.writeAPI.WritePoint(p)
	return nil
}

// Close flushes pending points and shuts the client down.
func (s *InfluxSink) Close() error {
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

// initSinks constructs the configured sinks.  If cfg.Sinks is empty, a
// single LogSink is returned so readings are always recorded somewhere.
func initSinks(cfg Config, logger *EventLogger) []Sink {
	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch strings.ToLower(sc.Type) {
		case "log":
			sinks = append(sinks, LogSink{})
		case "http":
			sinks = append(sinks, NewHTTPSink(cfg.ServerBase, cfg.PostPath, cfg.InsecureTLS))
		case "influx":
			sinks = append(sinks, NewInfluxSink(sc.URL, sc.Token, sc.Org, sc.Bucket, logger))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, LogSink{})
	}
	return sinks
}
