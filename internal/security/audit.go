package security

import (
	"fmt"
	"sync"
	"time"

	"coview/internal/constants"
)

// AuditEntry is one immutable line of the engine's security trail.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Details   string    `json:"details"`
}

// Audit keeps a bounded in-memory trail of engine events. When full, the
// oldest entry goes first. There is no persistence; the trail lives and
// dies with the process.
type Audit struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	capacity int
	now      func() time.Time
}

func NewAudit(capacity int) *Audit {
	if capacity <= 0 {
		capacity = constants.AuditCapacity
	}
	return &Audit{
		entries:  make([]AuditEntry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Record appends an entry, evicting the oldest when over capacity.
func (a *Audit) Record(event, details string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.entries) >= a.capacity {
		a.entries = a.entries[1:]
	}
	a.entries = append(a.entries, AuditEntry{
		Timestamp: a.now(),
		Event:     event,
		Details:   details,
	})
}

// Recent returns up to n entries, newest last.
func (a *Audit) Recent(n int) []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n <= 0 || n > len(a.entries) {
		n = len(a.entries)
	}
	out := make([]AuditEntry, n)
	copy(out, a.entries[len(a.entries)-n:])
	return out
}

// Len reports the number of retained entries.
func (a *Audit) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *Audit) SessionCreated(code, ip string) {
	a.Record("session_created", fmt.Sprintf("session %s created by %s", code, ip))
}

func (a *Audit) AgentJoined(code, ip string) {
	a.Record("agent_joined", fmt.Sprintf("agent %s joined session %s", ip, code))
}

func (a *Audit) JoinDenied(code, ip, reason string) {
	a.Record("join_denied", fmt.Sprintf("join to %q from %s denied: %s", code, ip, reason))
}

func (a *Audit) RateLimited(ip string, retryAfter time.Duration) {
	a.Record("rate_limited", fmt.Sprintf("join attempts from %s throttled, retry in %s", ip, retryAfter))
}

func (a *Audit) SessionEnded(code, reason string) {
	a.Record("session_ended", fmt.Sprintf("session %s ended: %s", code, reason))
}

func (a *Audit) PresenterLeft(code string) {
	a.Record("presenter_left", fmt.Sprintf("presenter disconnected, session %s closed", code))
}

func (a *Audit) AgentLeft(code string) {
	a.Record("agent_left", fmt.Sprintf("agent disconnected from session %s", code))
}

func (a *Audit) ConnectionLimit(ip string) {
	a.Record("connection_limit", fmt.Sprintf("connection limit exceeded for %s", ip))
}

func (a *Audit) OriginRejected(origin, ip string) {
	a.Record("origin_rejected", fmt.Sprintf("origin %q from %s not allow-listed", origin, ip))
}
