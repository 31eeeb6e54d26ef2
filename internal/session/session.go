package session

import "time"

// Role identifies which side of a pairing a connection speaks for.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleAgent     Role = "agent"
)

// Conn is the engine's view of a peer connection. Send is fire-and-forget:
// a closed or congested destination drops the payload rather than erroring
// the caller.
type Conn interface {
	Send(v interface{})
	Close()
	IsOpen() bool
	RemoteAddr() string
	ID() string
}

// Cursor is the presenter's last reported pointer position.
type Cursor struct {
	X float64
	Y float64
}

// Session pairs one presenter with at most one agent under a short code.
// The presenter is fixed for the session's whole life; the agent slot may
// be vacated and re-filled. Records are owned exclusively by the Registry
// and mutated only under its lock.
type Session struct {
	Code      string
	Presenter Conn
	Agent     Conn

	PresenterAddr string
	AgentAddr     string

	PageSnapshot        string
	PasswordFieldLength int
	HasSnapshot         bool
	Cursor              *Cursor

	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) agentOpen() bool {
	return s.Agent != nil && s.Agent.IsOpen()
}

// Snapshot is a copy of a session's state at lookup time. Callers never see
// the live record.
type Snapshot struct {
	Code                string
	PresenterAddr       string
	AgentAddr           string
	AgentConnected      bool
	PageSnapshot        string
	PasswordFieldLength int
	HasSnapshot         bool
	Cursor              *Cursor
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Code:                s.Code,
		PresenterAddr:       s.PresenterAddr,
		AgentAddr:           s.AgentAddr,
		AgentConnected:      s.agentOpen(),
		PageSnapshot:        s.PageSnapshot,
		PasswordFieldLength: s.PasswordFieldLength,
		HasSnapshot:         s.HasSnapshot,
		CreatedAt:           s.CreatedAt,
		ExpiresAt:           s.ExpiresAt,
	}
	if s.Cursor != nil {
		c := *s.Cursor
		snap.Cursor = &c
	}
	return snap
}
