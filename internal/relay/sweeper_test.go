package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coview/internal/observability"
	"coview/internal/protocol"
	"coview/internal/security"
	"coview/internal/session"
)

func TestSweeperEvictsExpiredSessions(t *testing.T) {
	audit := security.NewAudit(100)
	registry := session.NewRegistry(time.Millisecond, audit)
	limiter := security.NewJoinLimiter(time.Minute, 5)
	metrics := observability.New(func() float64 { return float64(registry.Len()) })

	presenter := newFakeConn("p", "192.0.2.1")
	registry.Create(presenter, presenter.addr)
	require.Equal(t, 1, registry.Len())

	sw := NewSweeper(registry, limiter, metrics, 5*time.Millisecond, time.Hour)
	sw.Start()
	defer sw.Stop()

	require.Eventually(t, func() bool { return registry.Len() == 0 },
		time.Second, 5*time.Millisecond, "expired session never swept")

	assert.Contains(t, presenter.sentEvents(),
		protocol.NewSessionEnded(protocol.ReasonExpired))
	assert.False(t, presenter.IsOpen())
}

func TestSweeperStopsCleanly(t *testing.T) {
	audit := security.NewAudit(100)
	registry := session.NewRegistry(time.Minute, audit)
	limiter := security.NewJoinLimiter(time.Minute, 5)
	metrics := observability.New(func() float64 { return 0 })

	sw := NewSweeper(registry, limiter, metrics, time.Millisecond, time.Millisecond)
	sw.Start()
	time.Sleep(10 * time.Millisecond)
	sw.Stop() // must not hang or panic
}
