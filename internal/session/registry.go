package session

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"coview/internal/protocol"
	"coview/internal/security"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrAgentAlreadyConnected = errors.New("agent already connected")
)

// Registry is the authoritative owner of all live sessions. Every operation
// runs entirely under one mutex, peer notification included — sends are
// non-blocking enqueues, so holding the lock keeps join-vs-end and
// sweep-vs-disconnect races deterministic.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	audit    *security.Audit
	now      func() time.Time
}

func NewRegistry(ttl time.Duration, audit *security.Audit) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		audit:    audit,
		now:      time.Now,
	}
}

// Create allocates a fresh code and registers the presenter under it.
func (r *Registry) Create(presenter Conn, presenterAddr string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = newCode()
		if _, taken := r.sessions[code]; !taken {
			break
		}
	}

	now := r.now()
	r.sessions[code] = &Session{
		Code:          code,
		Presenter:     presenter,
		PresenterAddr: presenterAddr,
		CreatedAt:     now,
		ExpiresAt:     now.Add(r.ttl),
	}

	r.audit.SessionCreated(code, presenterAddr)
	logrus.Infof("🆕 Session created: %s (presenter %s)", code, presenterAddr)
	return code
}

// Lookup returns a copy of the session state, or false when the code is not
// live. It never mutates.
func (r *Registry) Lookup(code string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Join attaches an agent to a live session. A slot holding an open agent
// connection rejects the join; a slot vacated by disconnect is re-joinable.
// On success the agent receives session-joined (plus the stored page
// snapshot, if any) and the presenter receives agent-joined, all before the
// lock is released.
func (r *Registry) Join(code string, agent Conn, agentAddr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return ErrSessionNotFound
	}
	if s.agentOpen() {
		return ErrAgentAlreadyConnected
	}

	s.Agent = agent
	s.AgentAddr = agentAddr

	agent.Send(protocol.NewSessionJoined(code))
	if s.HasSnapshot {
		agent.Send(protocol.NewFullPage(s.PageSnapshot, s.PasswordFieldLength))
	}
	if s.Presenter.IsOpen() {
		s.Presenter.Send(protocol.NewAgentJoined())
	}

	r.audit.AgentJoined(code, agentAddr)
	logrus.Infof("🤝 Agent joined session %s from %s", code, agentAddr)
	return nil
}

// SetSnapshot stores the presenter's latest full-page payload and forwards
// it to the agent if one is connected.
func (r *Registry) SetSnapshot(code, html string, passwordFieldLength int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return
	}
	s.PageSnapshot = html
	s.PasswordFieldLength = passwordFieldLength
	s.HasSnapshot = true

	if s.agentOpen() {
		s.Agent.Send(protocol.NewFullPage(html, passwordFieldLength))
	}
}

// SetCursor stores the presenter's pointer position and forwards it to the
// agent if one is connected.
func (r *Registry) SetCursor(code string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return
	}
	s.Cursor = &Cursor{X: x, Y: y}

	if s.agentOpen() {
		s.Agent.Send(protocol.NewCursorMove(x, y))
	}
}

// RelayVoice forwards a presenter transcript to the agent. No state is kept.
func (r *Registry) RelayVoice(code, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[code]; ok && s.agentOpen() {
		s.Agent.Send(protocol.NewVoiceMessage(text))
	}
}

// RelayAIResponse forwards an agent response to the presenter.
func (r *Registry) RelayAIResponse(code, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[code]; ok && s.Presenter.IsOpen() {
		s.Presenter.Send(protocol.NewAIResponse(text))
	}
}

// End notifies both peers and deletes the session. Deleting an already-gone
// code is a no-op.
func (r *Registry) End(code, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked(code, reason, false)
}

func (r *Registry) endLocked(code, reason string, closeConns bool) {
	s, ok := r.sessions[code]
	if !ok {
		return
	}

	ended := protocol.NewSessionEnded(reason)
	if s.Presenter.IsOpen() {
		s.Presenter.Send(ended)
	}
	if s.agentOpen() {
		s.Agent.Send(ended)
	}
	if closeConns {
		s.Presenter.Close()
		if s.Agent != nil {
			s.Agent.Close()
		}
	}

	delete(r.sessions, code)
	r.audit.SessionEnded(code, reason)
	logrus.Infof("🏁 Session ended: %s (%s)", code, reason)
}

// RemoveExpired evicts every session whose expiry has passed, notifying and
// closing both peers. Returns the number of sessions evicted.
func (r *Registry) RemoveExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for code, s := range r.sessions {
		if s.ExpiresAt.After(now) {
			continue
		}
		r.endLocked(code, protocol.ReasonExpired, true)
		logrus.Infof("🗑 Expired session cleaned up: %s", code)
		removed++
	}
	return removed
}

// PresenterGone tears the session down: it cannot usefully outlive its
// presenter. The agent, if connected, is told first.
func (r *Registry) PresenterGone(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return
	}
	if s.agentOpen() {
		s.Agent.Send(protocol.NewClientDisconnected())
	}

	delete(r.sessions, code)
	r.audit.PresenterLeft(code)
	logrus.Infof("👋 Presenter left, session closed: %s", code)
}

// AgentGone vacates the agent slot; the session stays joinable until it
// ends or expires.
func (r *Registry) AgentGone(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return
	}
	s.Agent = nil
	s.AgentAddr = ""

	if s.Presenter.IsOpen() {
		s.Presenter.Send(protocol.NewAgentDisconnected())
	}

	r.audit.AgentLeft(code)
	logrus.Infof("👋 Agent left session %s, slot reopened", code)
}

// Shutdown ends every live session with the given reason and closes all
// connections. Used on process shutdown.
func (r *Registry) Shutdown(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code := range r.sessions {
		r.endLocked(code, reason, true)
	}
}
