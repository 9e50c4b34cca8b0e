package models

import "time"

// MConfig Structure
type MConfig struct {
	Name           string           `yaml:"name"`
	Host           string           `yaml:"host"`
	Port           int              `yaml:"port"`
	GrpcPort       int              `yaml:"grpc_port"`
	LogLevel       string           `yaml:"log_level"`
	LogFormat      string           `yaml:"log_format"`
	TracingEnabled bool             `yaml:"tracing_enabled"`
	Remote         MRemoteConfig    `yaml:"remote"`
	Heartbeat      MHeartbeatConfig `yaml:"heartbeat"`
	Reconnect      MReconnectConfig `yaml:"reconnect"`
	Store          MStoreConfig     `yaml:"store"`
	Network        MNetworkConfig   `yaml:"network"`
	Storage        MStorageConfig   `yaml:"storage"`
	Kite           MKiteConfig      `yaml:"kite"`
	Market         MMarketConfig    `yaml:"market"`
}

// MRemoteConfig points at the trading bot backend.
type MRemoteConfig struct {
	APIURL string `yaml:"api_url"`
	WSURL  string `yaml:"ws_url"`
}

type MHeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Reconnect strategies
const (
	ReconnectExponential = "exponential"
	ReconnectFixed       = "fixed"
)

type MReconnectConfig struct {
	Strategy   string        `yaml:"strategy"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	FixedDelay time.Duration `yaml:"fixed_delay"`
}

type MStoreConfig struct {
	DebugLogCapacity     int `yaml:"debug_log_capacity"`
	NotificationCapacity int `yaml:"notification_capacity"`
	NoticeCapacity       int `yaml:"notice_capacity"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
	Proxy          string `yaml:"proxy"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	Namespace          string `yaml:"namespace"`
}

type MKiteConfig struct {
	APIKey string `yaml:"api_key"`
}

type MMarketConfig struct {
	MIC string `yaml:"mic"`
}
