package security

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type joinRecord struct {
	attempts    int
	windowStart time.Time
}

// JoinLimiter throttles join attempts per origin key using a fixed window.
// It sits in front of credential validation so that every guess, right or
// wrong, costs the caller a slot.
type JoinLimiter struct {
	mu      sync.Mutex
	records map[string]*joinRecord
	window  time.Duration
	max     int
	now     func() time.Time
}

func NewJoinLimiter(window time.Duration, maxAttempts int) *JoinLimiter {
	return &JoinLimiter{
		records: make(map[string]*joinRecord),
		window:  window,
		max:     maxAttempts,
		now:     time.Now,
	}
}

// Check consumes one attempt for the key. A window whose start has aged out
// is reset transparently; a denied check reports how long until the window
// reopens.
func (l *JoinLimiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) >= l.window {
		rec = &joinRecord{windowStart: now}
		l.records[key] = rec
	}

	if rec.attempts >= l.max {
		retry := l.window - now.Sub(rec.windowStart)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}

	rec.attempts++
	return Decision{Allowed: true, Remaining: l.max - rec.attempts}
}

// Sweep reclaims records older than twice the window. Driven by the
// lifecycle sweeper, not by Check, so idle keys cannot pin memory.
func (l *JoinLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) > 2*l.window {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

// ConnectionLimiter caps concurrent connections per IP, checked before the
// websocket upgrade.
type ConnectionLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	maxConn     int
}

func NewConnectionLimiter(maxConn int) *ConnectionLimiter {
	return &ConnectionLimiter{
		connections: make(map[string]int),
		maxConn:     maxConn,
	}
}

func (cl *ConnectionLimiter) TryConnect(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.connections[ip] >= cl.maxConn {
		return false
	}
	cl.connections[ip]++
	return true
}

func (cl *ConnectionLimiter) Disconnect(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.connections[ip] > 0 {
		cl.connections[ip]--
		if cl.connections[ip] == 0 {
			delete(cl.connections, ip)
		}
	}
}

var (
	trustedProxies   []*net.IPNet
	trustedProxiesMu sync.RWMutex
)

func init() {
	SetTrustedProxies(nil)
}

// SetTrustedProxies installs the CIDRs whose forwarding headers are
// believed. Empty input falls back to the loopback and RFC1918 ranges.
func SetTrustedProxies(cidrs []string) {
	if len(cidrs) == 0 {
		cidrs = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	}

	var networks []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			networks = append(networks, network)
		}
	}

	trustedProxiesMu.Lock()
	trustedProxies = networks
	trustedProxiesMu.Unlock()
}

func isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}

	trustedProxiesMu.RLock()
	defer trustedProxiesMu.RUnlock()
	for _, network := range trustedProxies {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// GetClientIP extracts client IP, only trusting proxy headers from trusted sources.
func GetClientIP(r *http.Request) string {
	directIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	if directIP == "" {
		directIP = r.RemoteAddr
	}

	if isTrustedProxy(directIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(clientIP) != nil {
				return clientIP
			}
		}
		if xri := r.Header.Get("X-Real-Ip"); xri != "" {
			xri = strings.TrimSpace(xri)
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return directIP
}
