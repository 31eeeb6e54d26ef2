package relay

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"coview/internal/constants"
	"coview/internal/observability"
	"coview/internal/protocol"
	"coview/internal/security"
	"coview/internal/session"
)

// Peer is one connection's routing context: the transport handle plus its
// session binding. The binding is empty until a create or join succeeds and
// is only ever touched by the connection's own read loop.
type Peer struct {
	Conn session.Conn
	Addr string
	Code string
	Role session.Role
}

// Bound reports whether the peer belongs to a session.
func (p *Peer) Bound() bool {
	return p.Code != ""
}

func (p *Peer) bind(code string, role session.Role) {
	p.Code = code
	p.Role = role
}

func (p *Peer) unbind() {
	p.Code = ""
	p.Role = ""
}

// Router dispatches inbound messages against the registry, enforcing the
// role and membership rules for each message kind. Violations are dropped
// with a diagnostic log only; peers see nothing. Join failures are the one
// surfaced error path.
type Router struct {
	registry  *session.Registry
	limiter   *security.JoinLimiter
	validator *security.Validator
	audit     *security.Audit
	metrics   *observability.Metrics
}

func NewRouter(registry *session.Registry, limiter *security.JoinLimiter, validator *security.Validator, audit *security.Audit, metrics *observability.Metrics) *Router {
	return &Router{
		registry:  registry,
		limiter:   limiter,
		validator: validator,
		audit:     audit,
		metrics:   metrics,
	}
}

// Dispatch routes one raw inbound payload for the peer. Unparseable input
// is logged and swallowed; the connection stays open.
func (rt *Router) Dispatch(p *Peer, raw []byte) {
	msg, err := protocol.Parse(raw)
	if err != nil {
		rt.metrics.MalformedInput.Inc()
		logrus.Debugf("🚫 Malformed message from %s: %v", p.Addr, err)
		return
	}

	switch msg.Type {
	case protocol.TypeCreateSession:
		rt.handleCreate(p)

	case protocol.TypeJoinSession:
		rt.handleJoin(p, msg)

	case protocol.TypeFullPage:
		if !rt.require(p, session.RolePresenter, msg.Type) {
			return
		}
		rt.registry.SetSnapshot(p.Code, msg.HTML, msg.PasswordLength)
		rt.metrics.MessagesRelayed.WithLabelValues(string(msg.Type)).Inc()

	case protocol.TypeCursorMove:
		if !rt.require(p, session.RolePresenter, msg.Type) {
			return
		}
		rt.registry.SetCursor(p.Code, msg.X, msg.Y)
		rt.metrics.MessagesRelayed.WithLabelValues(string(msg.Type)).Inc()

	case protocol.TypeVoiceMessage:
		if !rt.require(p, session.RolePresenter, msg.Type) {
			return
		}
		rt.registry.RelayVoice(p.Code, msg.Text)
		rt.metrics.MessagesRelayed.WithLabelValues(string(msg.Type)).Inc()

	case protocol.TypeEndSession:
		if !p.Bound() {
			logrus.Debugf("🚫 Dropped %s from unbound peer %s", msg.Type, p.Addr)
			return
		}
		rt.registry.End(p.Code, protocol.ReasonEnded)
		p.unbind()

	case protocol.TypeAIResponse:
		if !rt.require(p, session.RoleAgent, msg.Type) {
			return
		}
		rt.registry.RelayAIResponse(p.Code, msg.Text)
		rt.metrics.MessagesRelayed.WithLabelValues(string(msg.Type)).Inc()

	default:
		logrus.Debugf("🚫 Dropped unknown message type %q from %s", msg.Type, p.Addr)
	}
}

func (rt *Router) handleCreate(p *Peer) {
	if p.Bound() {
		logrus.Debugf("🚫 Dropped create-session from already-bound peer %s", p.Addr)
		return
	}

	code := rt.registry.Create(p.Conn, p.Addr)
	p.bind(code, session.RolePresenter)
	p.Conn.Send(protocol.NewSessionCreated(code))
	rt.metrics.SessionsCreated.Inc()
}

// handleJoin runs the guarded join pipeline: the limiter is consulted
// before the credential check so failed guesses still burn an attempt.
func (rt *Router) handleJoin(p *Peer, msg protocol.Message) {
	if p.Bound() {
		logrus.Debugf("🚫 Dropped join-session from already-bound peer %s", p.Addr)
		return
	}

	decision := rt.limiter.Check(p.Addr)
	if !decision.Allowed {
		rt.audit.RateLimited(p.Addr, decision.RetryAfter)
		rt.metrics.JoinAttempts.WithLabelValues("rate_limited").Inc()
		logrus.Warnf("⛔ Rate limit exceeded for %s (retry in %s)", p.Addr, decision.RetryAfter)
		p.Conn.Send(protocol.NewError(fmt.Sprintf("%s (retry in %ds)",
			constants.MsgRateLimited, int(decision.RetryAfter.Seconds()))))
		return
	}

	if !rt.validator.ValidateSecret(msg.Secret) {
		rt.audit.JoinDenied(msg.Code, p.Addr, "invalid secret")
		rt.metrics.JoinAttempts.WithLabelValues("invalid_secret").Inc()
		logrus.Warnf("🔐 Invalid join secret from %s", p.Addr)
		p.Conn.Send(protocol.NewError(constants.MsgInvalidSecret))
		return
	}

	if err := rt.registry.Join(msg.Code, p.Conn, p.Addr); err != nil {
		switch err {
		case session.ErrAgentAlreadyConnected:
			rt.audit.JoinDenied(msg.Code, p.Addr, "agent slot occupied")
			rt.metrics.JoinAttempts.WithLabelValues("slot_occupied").Inc()
			p.Conn.Send(protocol.NewError(constants.MsgAgentSlotOccupied))
		default:
			rt.audit.JoinDenied(msg.Code, p.Addr, "session not found")
			rt.metrics.JoinAttempts.WithLabelValues("not_found").Inc()
			p.Conn.Send(protocol.NewError(constants.MsgSessionNotFound))
		}
		return
	}

	p.bind(msg.Code, session.RoleAgent)
	rt.metrics.JoinAttempts.WithLabelValues("joined").Inc()
}

// Disconnected handles the peer's transport going away. Idempotent against
// sessions already ended or swept.
func (rt *Router) Disconnected(p *Peer) {
	if !p.Bound() {
		return
	}

	switch p.Role {
	case session.RolePresenter:
		rt.registry.PresenterGone(p.Code)
	case session.RoleAgent:
		rt.registry.AgentGone(p.Code)
	}
	p.unbind()
}

func (rt *Router) require(p *Peer, role session.Role, t protocol.Type) bool {
	if !p.Bound() || p.Role != role {
		logrus.Debugf("🚫 Dropped %s from %s (role=%q, bound=%v)", t, p.Addr, p.Role, p.Bound())
		return false
	}
	return true
}
