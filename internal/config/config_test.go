package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mindergas.db", cfg.GetDatabasePath())
	assert.Equal(t, "https://www.mindergas.nl/api", cfg.GetAPIBaseURL())
	assert.Equal(t, 10*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, ":8080", cfg.GetHTTPAddress())
	assert.Equal(t, "mindergas", cfg.MQTT.GetTopicPrefix())
	assert.Equal(t, "homeassistant", cfg.MQTT.GetDiscoveryPrefix())

	loc, err := cfg.GetLocation()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `database: /var/lib/mindergas/state.db
timezone: Europe/Amsterdam
log:
  level: debug
  format: json
api:
  base_url: http://localhost:9999/api/
  timeout: 5s
home_assistant:
  url: http://ha.local:8123
  token: secret
mqtt:
  enabled: true
  broker: mqtt.local:1883
  topic_prefix: gas/
http:
  enabled: true
  address: 127.0.0.1:9100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/mindergas/state.db", cfg.GetDatabasePath())
	assert.Equal(t, "http://localhost:9999/api", cfg.GetAPIBaseURL())
	assert.Equal(t, 5*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "secret", cfg.HomeAssistant.Token)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "gas", cfg.MQTT.GetTopicPrefix())
	assert.Equal(t, "127.0.0.1:9100", cfg.GetHTTPAddress())

	loc, err := cfg.GetLocation()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		Timezone: "Europe/Amsterdam",
		API:      APIConfig{Timeout: 15 * time.Second},
		MQTT:     MQTTConfig{Enabled: true, Broker: "localhost:1883"},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Timezone, loaded.Timezone)
	assert.Equal(t, 15*time.Second, loaded.GetAPITimeout())
	assert.Equal(t, "localhost:1883", loaded.MQTT.Broker)
}

func TestLoadInvalidTimezone(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	_, err := cfg.GetLocation()
	assert.Error(t, err)
}
