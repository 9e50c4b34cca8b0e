package utils

import "time"

// -----------------------------------------------------------------------------

// Store capacities
const (
	DefaultDebugLogCapacity     = 500
	DefaultNotificationCapacity = 50
	DefaultNoticeCapacity       = 20
)

// -----------------------------------------------------------------------------

// Connection timings
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatTimeout  = 45 * time.Second
	DefaultReconnectBase     = 1 * time.Second
	DefaultReconnectMax      = 30 * time.Second
	DefaultReconnectFixed    = 2 * time.Second
)

// -----------------------------------------------------------------------------

// Close codes sent by the client
const (
	CloseNormal          = 1000
	CloseLivenessTimeout = 4000
	ReasonLiveness       = "liveness-timeout"
)

// DefaultParamsNamespace prefixes the persisted strategy parameter key.
const DefaultParamsNamespace = "tradingBot"
