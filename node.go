package main

import (
	"io"
	"sync"
	"time"

	"github.com/muyo/sno"
)

// recentCap bounds the ring of readings kept for the status API.
const recentCap = 32

// Node owns the hardware and the control loop: it polls the selector
// buttons, takes one reading per accepted press, timestamps it over SNTP
// and pushes it through the configured sinks.
type Node struct {
	cfgMgr  *ConfigManager
	logger  *EventLogger
	sinks   []Sink
	led     *Led
	buttons *buttonSelector
	ultra   Sensor
	sound   Sensor
	clock   *TimeSource

	started time.Time

	mu     sync.Mutex
	recent []Reading // newest first
	sent   int
	failed int
}

// NewNode initialises GPIO, builds the sensors and sinks from the loaded
// configuration and starts the control loop in the background.
func NewNode(cfgMgr *ConfigManager) (*Node, error) {
	if err := initGPIO(); err != nil {
		return nil, err
	}
	cfg := cfgMgr.Get()
	logger := NewEventLogger(cfg.LogFile)
	n := &Node{
		cfgMgr:  cfgMgr,
		logger:  logger,
		sinks:   initSinks(cfg, logger),
		led:     NewLed(cfg.Pins.Led),
		buttons: newButtonSelector(cfg.Pins.BtnUltra, cfg.Pins.BtnSound, time.Duration(cfg.DebounceMs)*time.Millisecond),
		ultra:   NewUltrasonicSensor(cfg.Pins.Trig, cfg.Pins.Echo),
		sound:   NewSoundSensor(cfg.Pins.ADCChannel),
		clock:   NewTimeSource(cfg.NTPServers, cfg.UTCOffsetHours, cfg.AppendZ),
		started: time.Now(),
	}
	go n.run()
	return n, nil
}

// run is the control loop.  It polls the buttons at the idle interval and
// sleeps a guard delay after each handled press so a held button does not
// retrigger immediately.
func (n *Node) run() {
	cfg := n.cfgMgr.Get()
	idle := time.Duration(cfg.IdleDelayMs) * time.Millisecond
	guard := time.Duration(cfg.GuardDelayMs) * time.Millisecond
	for {
		sel := n.buttons.Poll()
		if sel == selectNone {
			time.Sleep(idle)
			continue
		}
		n.handlePress(sel)
		time.Sleep(guard)
	}
}

// refreshFromConfig pushes the live-tunable fields into the clock and the
// HTTP sink, so config API updates to the ingest target and timestamp
// shape apply on the next reading.  Pin and debounce changes still need a
// restart; those are wired into the hardware at construction.
func (n *Node) refreshFromConfig(cfg Config) {
	n.clock.Servers = cfg.NTPServers
	n.clock.Offset = time.Duration(cfg.UTCOffsetHours) * time.Hour
	n.clock.AppendZ = cfg.AppendZ
	for _, s := range n.sinks {
		if h, ok := s.(*HTTPSink); ok {
			h.SetTarget(cfg.ServerBase, cfg.PostPath)
		}
	}
}

// handlePress takes one reading for the selected sensor, fetches the
// timestamp and delivers the result.  The LED is lit while the reading is
// in flight; a double blink marks a failure.
func (n *Node) handlePress(sel selection) {
	cfg := n.cfgMgr.Get()
	n.refreshFromConfig(cfg)
	n.led.On()
	defer n.led.Off()

	sensor := n.ultra
	if sel == selectSound {
		sensor = n.sound
	}
	r, err := sensor.Read()
	if err != nil {
		n.logger.Log("[ERROR] %s read failed: %v", sensor.Name(), err)
		n.countFailure()
		n.led.Blink(2, 100*time.Millisecond)
		return
	}
	n.logger.Log("%s dist=%.2f cm, sound=%.2f dB", sensor.Name(), r.DistanceCM, r.SoundDB)

	iso, err := n.clock.FetchISO()
	if err != nil {
		n.logger.Log("[ERROR] sntp fetch failed: %v", err)
		n.countFailure()
		n.led.Blink(2, 100*time.Millisecond)
		return
	}

	r.ID = sno.New(0).String()
	r.Node = cfg.NodeName(r.Kind)
	r.MeasuredISO = iso
	r.TZRegion = cfg.TZRegion
	r.Taken = time.Now()

	ok := true
	for _, s := range n.sinks {
		if err := s.Send(r, n.logger); err != nil {
			n.logger.Log("sink %s error: %v", s.Name(), err)
			ok = false
		}
	}
	n.record(r, ok)
	if ok {
		n.logger.Log("[OK] data sent id=%s", r.ID)
	} else {
		n.logger.Log("[ERROR] transmit failed id=%s", r.ID)
		n.led.Blink(2, 100*time.Millisecond)
	}
}

// record stores the reading in the recent ring and bumps the counters.
func (n *Node) record(r Reading, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recent = append([]Reading{r}, n.recent...)
	if len(n.recent) > recentCap {
		n.recent = n.recent[:recentCap]
	}
	if ok {
		n.sent++
	} else {
		n.failed++
	}
}

func (n *Node) countFailure() {
	n.mu.Lock()
	n.failed++
	n.mu.Unlock()
}

// NodeStatus is the snapshot served by the status API.
type NodeStatus struct {
	UptimeSeconds int64     `json:"uptime_seconds"`
	Sent          int       `json:"sent"`
	Failed        int       `json:"failed"`
	Recent        []Reading `json:"recent"`
}

// Status returns a copy of the node's counters and recent readings.
func (n *Node) Status() NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	recent := make([]Reading, len(n.recent))
	copy(recent, n.recent)
	return NodeStatus{
		UptimeSeconds: int64(time.Since(n.started).Seconds()),
		Sent:          n.sent,
		Failed:        n.failed,
		Recent:        recent,
	}
}

// Close releases sinks that hold connections (the Influx client batches
// in the background and needs a flush).
func (n *Node) Close() {
	for _, s := range n.sinks {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
