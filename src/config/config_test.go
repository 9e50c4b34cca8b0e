package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bot-mirror/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := &Config{MConfig: Defaults()}
	assert.NoError(t, cfg.Validate())
}

func TestShippedDefaultFileLoads(t *testing.T) {
	cfg, err := NewConfig(filepath.Join("..", "..", "config", "default.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Heartbeat, cfg.Heartbeat)
	assert.Equal(t, Defaults().Reconnect, cfg.Reconnect)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  api_url: https://bot.example.com
  ws_url: wss://bot.example.com/ws
heartbeat:
  interval: 5s
  timeout: 20s
reconnect:
  strategy: fixed
  fixed_delay: 3s
`)
	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://bot.example.com", cfg.Remote.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, 20*time.Second, cfg.Heartbeat.Timeout)
	assert.Equal(t, models.ReconnectFixed, cfg.Reconnect.Strategy)
	assert.Equal(t, 3*time.Second, cfg.Reconnect.FixedDelay)
	// untouched keys keep their defaults
	assert.Equal(t, 500, cfg.Store.DebugLogCapacity)
	assert.Equal(t, "sqlite", cfg.Storage.DBType)
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{MConfig: Defaults()}
	env := map[string]string{
		EnvServerURL: "http://10.0.0.5:8000",
		EnvWSURL:     "ws://10.0.0.5:8000/ws",
		EnvKiteKey:   "kitekey",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://10.0.0.5:8000", cfg.Remote.APIURL)
	assert.Equal(t, "ws://10.0.0.5:8000/ws", cfg.Remote.WSURL)
	assert.Equal(t, "kitekey", cfg.Kite.APIKey)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	t.Setenv(EnvKiteKey, "fromenv")
	cfg, err := NewConfig(writeConfig(t, "name: mirror\n"))
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Kite.APIKey)
	assert.Equal(t, "mirror", cfg.Name)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *models.MConfig){
		"empty name":        func(c *models.MConfig) { c.Name = "" },
		"privileged port":   func(c *models.MConfig) { c.Port = 80 },
		"bad log level":     func(c *models.MConfig) { c.LogLevel = "LOUD" },
		"http ws url":       func(c *models.MConfig) { c.Remote.WSURL = "http://host/ws" },
		"missing api host":  func(c *models.MConfig) { c.Remote.APIURL = "/api" },
		"timeout too short": func(c *models.MConfig) { c.Heartbeat.Timeout = c.Heartbeat.Interval },
		"max below base":    func(c *models.MConfig) { c.Reconnect.MaxDelay = 0 },
		"unknown strategy":  func(c *models.MConfig) { c.Reconnect.Strategy = "linear" },
		"zero capacity":     func(c *models.MConfig) { c.Store.DebugLogCapacity = 0 },
		"postgres no dsn":   func(c *models.MConfig) { c.Storage.DBType = "postgres" },
		"unknown db":        func(c *models.MConfig) { c.Storage.DBType = "mongo" },
		"negative retries":  func(c *models.MConfig) { c.Network.MaxRetries = -1 },
		"ftp proxy":         func(c *models.MConfig) { c.Network.Proxy = "ftp://proxy:21" },
		"grpc on dashboard": func(c *models.MConfig) { c.GrpcPort = c.Port },
		"privileged grpc":   func(c *models.MConfig) { c.GrpcPort = 443 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(cfg)
			assert.Error(t, (&Config{MConfig: cfg}).Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := &Config{MConfig: Defaults()}
	cfg.Port = 9100
	cfg.Reconnect.MaxDelay = 45 * time.Second

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, loaded.Port)
	assert.Equal(t, 45*time.Second, loaded.Reconnect.MaxDelay)
}
