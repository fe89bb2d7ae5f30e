// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Admin    AdminConfig             `yaml:"admin"`
	Player   PlayerConfig            `yaml:"player"`
	Settings []SettingConfig         `yaml:"settings" validate:"dive"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Journal  JournalConfig           `yaml:"journal"`
	Messages MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlayerConfig represents the playback device's credentials.
type PlayerConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// SettingConfig is one initial settings entry.
type SettingConfig struct {
	Key   string `yaml:"key" validate:"required"`
	Value string `yaml:"value"`
	Kind  string `yaml:"kind" validate:"required,oneof=boolean string number"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// JournalConfig represents the request journal configuration.
type JournalConfig struct {
	Driver     string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres none"`
	DSN        string `yaml:"dsn" default:"requestbox.db"`
	BufferSize int    `yaml:"buffer_size" default:"256" validate:"gte=1,lte=65536"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success             string `yaml:"success"`
	DefaultError        string `yaml:"default_error"`
	PaymentNotConfirmed string `yaml:"payment_not_confirmed"`
	PaymentDenied       string `yaml:"payment_denied"`
	AcceptanceClosed    string `yaml:"acceptance_closed"`
	DuplicateRequest    string `yaml:"duplicate_request"`
	RequesterPending    string `yaml:"requester_pending"`
	TitleLengthExceeded string `yaml:"title_length_exceeded"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("PLAYER_TOKEN"); v != "" {
		c.Player.Token = v
	}
	if v := os.Getenv("REQUESTBOX_JOURNAL_DSN"); v != "" {
		c.Journal.DSN = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "payment_not_confirmed":
		return c.Messages.PaymentNotConfirmed
	case "payment_denied":
		return c.Messages.PaymentDenied
	case "acceptance_closed":
		return c.Messages.AcceptanceClosed
	case "duplicate_request":
		return c.Messages.DuplicateRequest
	case "requester_pending":
		return c.Messages.RequesterPending
	case "title_length_exceeded":
		return c.Messages.TitleLengthExceeded
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Admin.Token == c.Player.Token {
		return errors.New("admin.token and player.token must differ")
	}

	if c.Journal.Driver != DriverNone && c.Journal.DSN == "" {
		return errors.Newf("journal.dsn is required for driver %s", c.Journal.Driver)
	}

	seen := make(map[string]bool, len(c.Settings))
	for _, s := range c.Settings {
		if seen[s.Key] {
			return errors.Newf("duplicate settings key %q", s.Key)
		}
		seen[s.Key] = true
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
