package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// configPath is the default filename for persisted configuration.
const configPath = "config.json"

// ConfigManager wraps the loaded configuration and a mutex for concurrent access.
// When modifying configuration through the HTTP API, always call Save() to
// persist changes.
type ConfigManager struct {
	mu     sync.RWMutex
	cfg    Config
	loaded bool
}

// defaultConfig returns the configuration written on first run.  The pin
// assignments follow the reference wiring for a Raspberry Pi header; the
// single admin user has password "admin", which you should change
// immediately.
func defaultConfig() Config {
	return Config{
		ServerBase:     "https://example.com/api",
		PostPath:       "/ingest.php",
		InsecureTLS:    true,
		TZRegion:       "America/Los_Angeles",
		NTPServers:     []string{"pool.ntp.org", "time.nist.gov", "time.google.com"},
		UTCOffsetHours: -8,
		AppendZ:        false,
		NodeUltraName:  "Ultrasonic_Sensor",
		NodeSoundName:  "Sound_Sensor_MAX4466",
		Pins: PinConfig{
			Trig:       24,
			Echo:       23,
			BtnUltra:   17,
			BtnSound:   27,
			Led:        22,
			ADCChannel: 0,
		},
		DebounceMs:   250,
		IdleDelayMs:  25,
		GuardDelayMs: 500,
		Sinks:        []SinkConfig{{Type: "http"}},
		LogFile:      "readings.log",
		HTTPPort:     8443,
		CertFile:     "server.crt",
		KeyFile:      "server.key",
		Users: []User{
			{Username: "admin", PasswordHash: hashPassword("admin"), Admin: true},
		},
	}
}

// Load reads configuration from disk.  If the file does not exist, a default
// configuration is created and persisted to disk.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	// If the config is already loaded in memory, release the lock and return.
	if cm.loaded {
		cm.mu.Unlock()
		return nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cm.cfg = defaultConfig()
			cm.loaded = true
			// Release the write lock before saving to avoid deadlock: Save acquires
			// a read lock on the same mutex.
			cm.mu.Unlock()
			return cm.Save()
		}
		cm.mu.Unlock()
		return fmt.Errorf("unable to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cm.cfg); err != nil {
		cm.mu.Unlock()
		return fmt.Errorf("invalid config.json: %w", err)
	}
	cm.loaded = true
	cm.mu.Unlock()
	return nil
}

// ApplyEnv overrides deployment-specific settings from the environment
// without persisting them, so tokens and target URLs never have to live
// in config.json.  Call after Load (godotenv has already populated the
// environment from .env by then).  If INFLUX_URL is set, an influx sink
// is added (or updated) with the INFLUX_* values.
func (cm *ConfigManager) ApplyEnv() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if v := os.Getenv("SERVER_BASE"); v != "" {
		cm.cfg.ServerBase = v
	}
	if v := os.Getenv("POST_PATH"); v != "" {
		cm.cfg.PostPath = v
	}
	if v := os.Getenv("TZ_REGION"); v != "" {
		cm.cfg.TZRegion = v
	}
	if url := os.Getenv("INFLUX_URL"); url != "" {
		sink := SinkConfig{
			Type:   "influx",
			URL:    url,
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    os.Getenv("INFLUX_ORG"),
			Bucket: os.Getenv("INFLUX_BUCKET"),
		}
		replaced := false
		for i, sc := range cm.cfg.Sinks {
			if sc.Type == "influx" {
				cm.cfg.Sinks[i] = sink
				replaced = true
				break
			}
		}
		if !replaced {
			cm.cfg.Sinks = append(cm.cfg.Sinks, sink)
		}
	}
}

// Save writes the configuration to disk.  Call this after any changes to
// configuration via the API.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	bytes, err := json.MarshalIndent(cm.cfg, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, bytes, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, configPath)
}

// Get returns a copy of the current configuration.  Callers must treat the
// returned Config as immutable.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// Update applies a user supplied function to modify the configuration.  It
// holds the write lock, calls the supplied function with a pointer to the
// internal config, and then persists the change.  The updater must not
// capture the pointer beyond the scope of the function.
func (cm *ConfigManager) Update(fn func(*Config) error) error {
	cm.mu.Lock()
	if err := fn(&cm.cfg); err != nil {
		cm.mu.Unlock()
		return err
	}
	// Release the lock before saving to avoid deadlock: Save acquires a read
	// lock on the same mutex.
	cm.mu.Unlock()
	return cm.Save()
}

// FindUser returns a user and its index by username.  If not found, index
// will be -1.
func (cm *ConfigManager) FindUser(username string) (User, int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for i, u := range cm.cfg.Users {
		if u.Username == username {
			return u, i
		}
	}
	return User{}, -1
}

// Authenticate checks whether the provided username and password are valid.  It
// returns the user object if authentication succeeds.
func (cm *ConfigManager) Authenticate(username, password string) (User, error) {
	user, _ := cm.FindUser(username)
	if user.Username == "" {
		return User{}, errors.New("invalid credentials")
	}
	if err := checkPasswordHash(password, user.PasswordHash); err != nil {
		return User{}, errors.New("invalid credentials")
	}
	return user, nil
}
