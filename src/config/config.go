package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"bot-mirror/src/helpers"
	"bot-mirror/src/models"
	"bot-mirror/src/utils"

	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvServerURL = "BOTMIRROR_SERVER_URL"
	EnvWSURL     = "BOTMIRROR_WS_URL"
	EnvKiteKey   = "KITE_API_KEY"
	EnvLogLevel  = "BOTMIRROR_LOG_LEVEL"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Defaults returns a configuration usable against a bot on localhost.
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:      "bot-mirror",
		Host:      "127.0.0.1",
		Port:      8090,
		GrpcPort:  50051,
		LogLevel:  "INFO",
		LogFormat: "console",
		Remote: models.MRemoteConfig{
			APIURL: "http://127.0.0.1:8000",
			WSURL:  "ws://127.0.0.1:8000/ws",
		},
		Heartbeat: models.MHeartbeatConfig{
			Interval: utils.DefaultHeartbeatInterval,
			Timeout:  utils.DefaultHeartbeatTimeout,
		},
		Reconnect: models.MReconnectConfig{
			Strategy:   models.ReconnectExponential,
			BaseDelay:  utils.DefaultReconnectBase,
			MaxDelay:   utils.DefaultReconnectMax,
			FixedDelay: utils.DefaultReconnectFixed,
		},
		Store: models.MStoreConfig{
			DebugLogCapacity:     utils.DefaultDebugLogCapacity,
			NotificationCapacity: utils.DefaultNotificationCapacity,
			NoticeCapacity:       utils.DefaultNoticeCapacity,
		},
		Network: models.MNetworkConfig{
			RequestTimeout: 10,
			MaxRetries:     2,
			UserAgent:      "bot-mirror/1.0",
		},
		Storage: models.MStorageConfig{
			DBType:    "sqlite",
			DBPath:    "bot-mirror.db",
			Namespace: utils.DefaultParamsNamespace,
		},
		Market: models.MMarketConfig{MIC: "xnse"},
	}
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file layered over Defaults and
// the environment.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data over the defaults
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: modelConfig}

	// 3. Environment wins over the file
	config.ApplyEnv(os.Getenv)

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyEnv copies non-empty overrides from getenv into the configuration.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvServerURL); v != "" {
		c.Remote.APIURL = v
	}
	if v := getenv(EnvWSURL); v != "" {
		c.Remote.WSURL = v
	}
	if v := getenv(EnvKiteKey); v != "" {
		c.Kite.APIKey = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	// Validate dashboard server configuration
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	// 0 disables the gRPC health endpoint
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port) {
		return fmt.Errorf("invalid gRPC port number: %d", c.GrpcPort)
	}

	// Validate remote endpoints
	if err := checkURL("remote.api_url", c.Remote.APIURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("remote.ws_url", c.Remote.WSURL, "ws", "wss"); err != nil {
		return err
	}

	// Validate connection timings
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat interval must be greater than 0")
	}
	if c.Heartbeat.Timeout <= c.Heartbeat.Interval {
		return fmt.Errorf("heartbeat timeout (%v) must exceed the interval (%v)", c.Heartbeat.Timeout, c.Heartbeat.Interval)
	}
	switch c.Reconnect.Strategy {
	case models.ReconnectExponential:
		if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
			return fmt.Errorf("reconnect delays must satisfy 0 < base_delay <= max_delay")
		}
	case models.ReconnectFixed:
		if c.Reconnect.FixedDelay <= 0 {
			return fmt.Errorf("reconnect fixed_delay must be greater than 0")
		}
	default:
		return fmt.Errorf("unknown reconnect strategy %q", c.Reconnect.Strategy)
	}

	// Validate store capacities
	if c.Store.DebugLogCapacity <= 0 || c.Store.NotificationCapacity <= 0 || c.Store.NoticeCapacity <= 0 {
		return fmt.Errorf("store capacities must be greater than 0")
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unknown database type %q", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.Proxy != "" && !helpers.ValidateProxy(c.Network.Proxy) {
		return fmt.Errorf("invalid proxy %q", c.Network.Proxy)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s %q is not a valid URL", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %v, got %q", field, schemes, u.Scheme)
}
