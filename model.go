package main

import "time"

// SensorKind enumerates the sensors a button press can select.
// The logger carries exactly two: an HC-SR04 ultrasonic ranger and a
// MAX4466 electret microphone read through an ADS1115 ADC.
type SensorKind string

const (
	SensorKindUltrasonic SensorKind = "ultrasonic"
	SensorKindSound      SensorKind = "sound"
)

// Reading is a single timestamped measurement.  Exactly one of DistanceCM
// or SoundDB carries a value; the other is zero, matching what the ingest
// endpoint expects.  ID is a sortable unique identifier generated on the
// device so the server side can deduplicate retried sends.
type Reading struct {
	ID          string     `json:"id"`
	Node        string     `json:"node_name"`
	Kind        SensorKind `json:"kind"`
	MeasuredISO string     `json:"measured_iso"`
	TZRegion    string     `json:"tz_region"`
	DistanceCM  float64    `json:"distance_cm"`
	SoundDB     float64    `json:"sound_db"`
	Taken       time.Time  `json:"taken"`
}

// PinConfig groups the BCM pin assignments for the attached hardware.
// The microphone is analog and sits behind an ADS1115 on the I2C bus, so
// it is addressed by ADC channel rather than by pin.
type PinConfig struct {
	Trig       int `json:"trig"`        // HC-SR04 trigger
	Echo       int `json:"echo"`        // HC-SR04 echo
	BtnUltra   int `json:"btn_ultra"`   // pushbutton to GND (pull-up)
	BtnSound   int `json:"btn_sound"`   // pushbutton to GND (pull-up)
	Led        int `json:"led"`         // activity LED
	ADCChannel int `json:"adc_channel"` // ADS1115 channel for the microphone
}

// SinkConfig selects and parameterises a delivery sink.  Type is one of
// "http", "log" or "influx".  The http sink takes its target from the
// top-level ServerBase/PostPath so config.json stays close to the shape
// the firmware used.  The influx fields are usually injected from the
// environment rather than written to disk.
type SinkConfig struct {
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Token  string `json:"token,omitempty"`
	Org    string `json:"org,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// User represents an account that can log in to the status API.
// Passwords are stored as bcrypt hashes.  The Admin flag indicates
// whether the user may change configuration.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Admin        bool   `json:"admin"`
}

// Config is the top-level structure serialized to config.json.  It contains
// all persisted state.  Deployment secrets (the ingest URL, Influx tokens)
// can be overridden from the environment after load.
type Config struct {
	ServerBase     string   `json:"server_base"`      // e.g. https://example.com/api
	PostPath       string   `json:"post_path"`        // e.g. /ingest.php
	InsecureTLS    bool     `json:"insecure_tls"`     // skip certificate validation on POST
	TZRegion       string   `json:"tz_region"`        // IANA region reported with each reading
	NTPServers     []string `json:"ntp_servers"`      // tried in order
	UTCOffsetHours int      `json:"utc_offset_hours"` // applied to the SNTP result
	AppendZ        bool     `json:"append_z"`         // tag timestamps with a trailing Z

	NodeUltraName string `json:"node_ultra_name"`
	NodeSoundName string `json:"node_sound_name"`

	Pins PinConfig `json:"pins"`

	DebounceMs   int `json:"debounce_ms"`    // button debounce window
	IdleDelayMs  int `json:"idle_delay_ms"`  // poll interval while no button is down
	GuardDelayMs int `json:"guard_delay_ms"` // hold-off after each handled press

	Sinks []SinkConfig `json:"sinks"`

	LogFile  string `json:"log_file"`
	HTTPPort int    `json:"http_port"` // status API port; 0 disables the server
	CertFile string `json:"cert_file"` // path to PEM encoded certificate
	KeyFile  string `json:"key_file"`  // path to PEM encoded key
	Users    []User `json:"users"`
}

// NodeName returns the configured node name for a sensor kind.
func (c Config) NodeName(kind SensorKind) string {
	if kind == SensorKindSound {
		return c.NodeSoundName
	}
	return c.NodeUltraName
}
