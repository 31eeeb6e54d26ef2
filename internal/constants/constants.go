package constants

import "time"

// Network defaults
const (
	DefaultHost        = "localhost:8080"
	DefaultPort        = "8080"
	DefaultServerURL   = "http://localhost:8080"
	WSBufferSize       = 4096
	MaxWSMessageSize   = 2 * 1024 * 1024 // full-page snapshots dominate
	WSWriteTimeout     = 10 * time.Second
	WSHandshakeTimeout = 10 * time.Second
	SendQueueSize      = 64
)

// Session settings
const (
	CodeLength    = 6
	CodeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, no 1/I
	SessionTTL    = 30 * time.Minute
	SweepInterval = 30 * time.Second
)

// Join rate limiting
const (
	JoinWindow          = time.Minute
	MaxJoinAttempts     = 5
	LimiterGCInterval   = 5 * time.Minute
	MaxConnectionsPerIP = 10
)

// Audit trail
const (
	AuditCapacity = 1000
)

// API endpoints
const (
	EndpointWebSocket = "/ws"
	EndpointHealth    = "/healthz"
	EndpointStatus    = "/statusz"
	EndpointMetrics   = "/metrics"
)

// Time formats
const (
	TimeFormatShort = "15:04:05"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
)

// Messages
const (
	MsgSessionNotFound   = "session not found or expired"
	MsgAgentSlotOccupied = "an agent is already connected to this session"
	MsgInvalidSecret     = "invalid session secret"
	MsgRateLimited       = "too many join attempts, retry later"
	MsgConnectionLimit   = "connection limit exceeded"
	MsgOriginRejected    = "origin not allowed"
)

// Version is set at build time via -ldflags.
var Version = "dev"
