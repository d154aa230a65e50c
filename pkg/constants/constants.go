// Package constants defines application-wide constants for timeouts and limits.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// WebSocket constants
const (
	// WebSocketPongWait is how long to wait for the next pong before
	// treating the connection as gone
	WebSocketPongWait = 60 * time.Second

	// WebSocketPingInterval is the interval for server pings; must be
	// shorter than WebSocketPongWait
	WebSocketPingInterval = 54 * time.Second

	// WebSocketWriteWait is the deadline for a single frame write
	WebSocketWriteWait = 10 * time.Second

	// WebSocketSendBuffer is the per-connection outbound queue size;
	// a client that falls this far behind is disconnected
	WebSocketSendBuffer = 256

	// WebSocketMaxMessageSize bounds inbound frames (signaling payloads
	// carry SDP blobs, so this is generous)
	WebSocketMaxMessageSize = 64 * 1024

	// DefaultMaxConnections caps concurrent realtime channels
	DefaultMaxConnections = 1000
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 30 * 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Presence constants
const (
	// PresenceTTL is the Redis presence key lifetime; the mirror is
	// refreshed while the registry entry lives
	PresenceTTL = 5 * time.Minute

	// PresenceRefreshInterval is how often mirror lifetimes are
	// extended for live connections; must stay well under PresenceTTL
	PresenceRefreshInterval = 1 * time.Minute
)

// Message constants
const (
	// DefaultHistoryLimit is the page size for history queries
	DefaultHistoryLimit = 50

	// MaxMessageLength bounds chat message text
	MaxMessageLength = 4096
)

// Storage constants
const (
	// MaxUploadSize bounds attachment uploads
	MaxUploadSize = 25 << 20 // 25 MiB
)
