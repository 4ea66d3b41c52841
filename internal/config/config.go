package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Database      string     `yaml:"database,omitempty"` // sqlite file (default: mindergas.db)
	Timezone      string     `yaml:"timezone,omitempty"` // IANA name used for schedules and reading dates
	Log           LogConfig  `yaml:"log,omitempty"`
	API           APIConfig  `yaml:"api,omitempty"`
	HomeAssistant HAConfig   `yaml:"home_assistant,omitempty"`
	MQTT          MQTTConfig `yaml:"mqtt,omitempty"`
	HTTP          HTTPConfig `yaml:"http,omitempty"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // auto, text, json
}

// APIConfig holds MinderGas API settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	URL   string `yaml:"url"`   // e.g., "http://homeassistant.local:8123"
	Token string `yaml:"token"` // Long-lived access token
}

// MQTTConfig holds the broker used for Home Assistant discovery
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"` // host:port
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	ClientID        string `yaml:"client_id,omitempty"`
	TopicPrefix     string `yaml:"topic_prefix,omitempty"`
	DiscoveryPrefix string `yaml:"discovery_prefix,omitempty"`
}

// HTTPConfig controls the local action/metrics API
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetDatabasePath returns the sqlite path with a default of mindergas.db
func (c *Config) GetDatabasePath() string {
	if c.Database == "" {
		return "mindergas.db"
	}
	return c.Database
}

// GetLocation resolves the configured timezone, falling back to the local zone
func (c *Config) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetAPIBaseURL returns the MinderGas API base URL without a trailing slash
func (c *Config) GetAPIBaseURL() string {
	if c.API.BaseURL == "" {
		return "https://www.mindergas.nl/api"
	}
	return strings.TrimRight(c.API.BaseURL, "/")
}

// GetAPITimeout returns the per-request timeout with a default of 10 seconds
func (c *Config) GetAPITimeout() time.Duration {
	if c.API.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.API.Timeout
}

// GetHTTPAddress returns the listen address for the local API
func (c *Config) GetHTTPAddress() string {
	if c.HTTP.Address == "" {
		return ":8080"
	}
	return c.HTTP.Address
}

// GetTopicPrefix returns the MQTT state/command topic prefix
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "mindergas"
	}
	return strings.TrimRight(m.TopicPrefix, "/")
}

// GetDiscoveryPrefix returns the Home Assistant discovery prefix
func (m MQTTConfig) GetDiscoveryPrefix() string {
	if m.DiscoveryPrefix == "" {
		return "homeassistant"
	}
	return strings.TrimRight(m.DiscoveryPrefix, "/")
}

// GetClientID returns the MQTT client ID
func (m MQTTConfig) GetClientID() string {
	if m.ClientID == "" {
		return "mindergas"
	}
	return m.ClientID
}
