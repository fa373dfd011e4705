package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CalendarConfig describes one calendar the sync command operates on.
type CalendarConfig struct {
	// ID is the internal identifier used in reports and logging.
	ID string `yaml:"id" json:"id"`

	// Type selects the backend adapter: "caldav", "sqlite", or "memory".
	Type string `yaml:"type" json:"type"`

	// URL is the CalDAV collection URL. CalDAV only.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Username pairs with PasswordEnv for CalDAV basic auth.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// PasswordEnv names the environment variable holding the password.
	// The password itself never lives in the config file.
	PasswordEnv string `yaml:"password_env,omitempty" json:"password_env,omitempty"`

	// Path is the database file location. SQLite only.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// ReadOnly forces the adapter to refuse writes regardless of what
	// the backend would allow.
	ReadOnly bool `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// Config is the top-level runtime configuration for the sync command.
type Config struct {
	// RulesDir is the directory holding the CUE rule files.
	RulesDir string `yaml:"rules_dir" json:"rules_dir"`

	// Timezone is the IANA timezone used for day-boundary decisions
	// (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Calendars lists the sync targets.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		RulesDir:  "rules",
		Timezone:  "UTC",
		Calendars: []CalendarConfig{},
	}
}

// Normalize fills in missing values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.RulesDir == "" {
		c.RulesDir = "rules"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
}

// Validate checks the parts Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	seen := make(map[string]bool, len(c.Calendars))
	for i, cal := range c.Calendars {
		if cal.ID == "" {
			return fmt.Errorf("calendars[%d]: id is required", i)
		}
		if seen[cal.ID] {
			return fmt.Errorf("calendars[%d]: duplicate id %q", i, cal.ID)
		}
		seen[cal.ID] = true
		switch cal.Type {
		case "caldav":
			if cal.URL == "" {
				return fmt.Errorf("calendar %s: caldav requires url", cal.ID)
			}
		case "sqlite":
			if cal.Path == "" {
				return fmt.Errorf("calendar %s: sqlite requires path", cal.ID)
			}
		case "memory":
		default:
			return fmt.Errorf("calendar %s: unknown type %q", cal.ID, cal.Type)
		}
	}
	return nil
}

// Load reads the YAML configuration at path, normalizes defaults, and
// validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}
