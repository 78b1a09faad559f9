package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier; imported rows are stored under "ics:<id>".
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// TaggerConfig selects the statistical tagger fed to the entity extractor.
type TaggerConfig struct {
	// Mode is one of:
	//   - "none"    regex fallback only
	//   - "prose"   in-process tagger (default)
	//   - "sidecar" HTTP tagging service at URL
	Mode           string `yaml:"mode" json:"mode"`
	URL            string `yaml:"url" json:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RateLimitConfig bounds /api/parse.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" json:"per_second"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for "now" when no reference is given.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the sqlite file holding events.
	Database string `yaml:"database" json:"database"`

	// ReminderCron is the cron schedule of the due-reminder scan.
	ReminderCron string `yaml:"reminder_cron" json:"reminder_cron"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Tagger    TaggerConfig    `yaml:"tagger" json:"tagger"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// ICS is the list of subscribed calendars, refreshed on ICSSyncCron.
	ICS         []ICSConfig `yaml:"ics" json:"ics"`
	ICSSyncCron string      `yaml:"ics_sync_cron" json:"ics_sync_cron"`

	// HorizonDays bounds recurrence expansion of imported calendars.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Ho_Chi_Minh"
	}
	if c.Database == "" {
		c.Database = "events.db"
	}
	// Once a minute.
	if c.ReminderCron == "" {
		c.ReminderCron = "* * * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	switch c.Tagger.Mode {
	case "none", "prose", "sidecar":
	default:
		c.Tagger.Mode = "prose"
	}
	if c.Tagger.Mode == "sidecar" && c.Tagger.URL == "" {
		// Nothing to talk to.
		c.Tagger.Mode = "prose"
	}
	if c.Tagger.TimeoutSeconds <= 0 {
		c.Tagger.TimeoutSeconds = 2
	}

	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}

	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.ICSSyncCron == "" {
		c.ICSSyncCron = "*/30 * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 60
	}
}

// Location resolves Timezone, falling back to the fixed UTC+7 offset the
// parser assumes.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".vnsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
