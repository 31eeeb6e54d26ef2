package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"coview/internal/constants"
)

// Environment variable names.
const (
	EnvHost            = "COVIEW_HOST"
	EnvPort            = "PORT"
	EnvSecret          = "COVIEW_SECRET"
	EnvOpsUser         = "COVIEW_OPS_USER"
	EnvOpsPassword     = "COVIEW_OPS_PASSWORD"
	EnvOpsPasswordHash = "COVIEW_OPS_PASSWORD_HASH"
	EnvAllowedOrigins  = "COVIEW_ALLOWED_ORIGINS"
	EnvTrustedProxies  = "COVIEW_TRUSTED_PROXIES"
	EnvSessionTTL      = "COVIEW_SESSION_TTL"
	EnvJoinWindow      = "COVIEW_JOIN_WINDOW"
	EnvJoinMaxAttempts = "COVIEW_JOIN_MAX_ATTEMPTS"
	EnvMaxConnsPerIP   = "COVIEW_MAX_CONNS_PER_IP"
	EnvAuditCapacity   = "COVIEW_AUDIT_CAPACITY"
	EnvSweepInterval   = "COVIEW_SWEEP_INTERVAL"
	EnvEnableTLS       = "COVIEW_ENABLE_TLS"
	EnvCertFile        = "COVIEW_CERT_FILE"
	EnvKeyFile         = "COVIEW_KEY_FILE"
	EnvLogLevel        = "COVIEW_LOG_LEVEL"
	EnvLogJSON         = "COVIEW_LOG_JSON"
)

var ErrMissingSecret = errors.New("COVIEW_SECRET must be set")

type Config struct {
	Host      string
	Port      string
	EnableTLS bool
	CertFile  string
	KeyFile   string

	Secret          string
	OpsUser         string
	OpsPassword     string
	OpsPasswordHash string

	AllowedOrigins []string
	TrustedProxies []string

	SessionTTL        time.Duration
	JoinWindow        time.Duration
	JoinMaxAttempts   int
	MaxConnsPerIP     int
	AuditCapacity     int
	SweepInterval     time.Duration
	LimiterGCInterval time.Duration

	LogLevel string
	LogJSON  bool
}

// Load builds the runtime configuration from the environment. Call after
// godotenv has had its chance to populate the process env.
func Load() (*Config, error) {
	secret := os.Getenv(EnvSecret)
	if secret == "" {
		return nil, ErrMissingSecret
	}

	cfg := &Config{
		Host:      getEnv(EnvHost, constants.DefaultHost),
		Port:      getEnv(EnvPort, constants.DefaultPort),
		EnableTLS: getBool(EnvEnableTLS, false),
		CertFile:  getEnv(EnvCertFile, "certs/server.crt"),
		KeyFile:   getEnv(EnvKeyFile, "certs/server.key"),

		Secret:          secret,
		OpsUser:         getEnv(EnvOpsUser, "operator"),
		OpsPassword:     os.Getenv(EnvOpsPassword),
		OpsPasswordHash: os.Getenv(EnvOpsPasswordHash),

		AllowedOrigins: splitList(os.Getenv(EnvAllowedOrigins)),
		TrustedProxies: splitList(os.Getenv(EnvTrustedProxies)),

		SessionTTL:        getDuration(EnvSessionTTL, constants.SessionTTL),
		JoinWindow:        getDuration(EnvJoinWindow, constants.JoinWindow),
		JoinMaxAttempts:   getInt(EnvJoinMaxAttempts, constants.MaxJoinAttempts),
		MaxConnsPerIP:     getInt(EnvMaxConnsPerIP, constants.MaxConnectionsPerIP),
		AuditCapacity:     getInt(EnvAuditCapacity, constants.AuditCapacity),
		SweepInterval:     getDuration(EnvSweepInterval, constants.SweepInterval),
		LimiterGCInterval: constants.LimiterGCInterval,

		LogLevel: getEnv(EnvLogLevel, "info"),
		LogJSON:  getBool(EnvLogJSON, false),
	}

	cfg.Host = strings.TrimPrefix(cfg.Host, "http://")
	cfg.Host = strings.TrimPrefix(cfg.Host, "https://")

	return cfg, nil
}

// getEnv returns the environment variable value or default if empty.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		logrus.Warnf("⚠️  Invalid value for %s: %q, using default", key, val)
		return defaultVal
	}
	return parsed
}

func getInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		logrus.Warnf("⚠️  Invalid value for %s: %q, using default", key, val)
		return defaultVal
	}
	return parsed
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		logrus.Warnf("⚠️  Invalid value for %s: %q, using default", key, val)
		return defaultVal
	}
	return parsed
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
