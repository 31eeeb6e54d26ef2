package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"coview/internal/constants"
	"coview/internal/relay"
	"coview/internal/security"
)

// HandleWebSocket upgrades the connection and runs its read loop. The
// origin allow-list is enforced by CheckOrigin before the upgrade, so a
// rejected origin never reaches the router.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := security.GetClientIP(r)

	if !s.ConnLimiter.TryConnect(clientIP) {
		s.Audit.ConnectionLimit(clientIP)
		logrus.Warnf("⛔ Connection limit exceeded: %s", clientIP)
		http.Error(w, constants.MsgConnectionLimit, http.StatusTooManyRequests)
		return
	}
	defer s.ConnLimiter.Disconnect(clientIP)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  constants.WSBufferSize,
		WriteBufferSize: constants.WSBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if s.Validator.OriginAllowed(r) {
				return true
			}
			s.Audit.OriginRejected(r.Header.Get("Origin"), clientIP)
			logrus.Warnf("⛔ Origin rejected: %q from %s", r.Header.Get("Origin"), clientIP)
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Debugf("❌ WebSocket upgrade error from %s: %v", clientIP, err)
		return
	}
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))

	peer := newPeer(conn, clientIP)
	binding := &relay.Peer{Conn: peer, Addr: clientIP}
	logrus.Debugf("🔌 Peer connected: %s (%s)", clientIP, peer.ID())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.Router.Dispatch(binding, raw)
	}

	peer.Close()
	s.Router.Disconnected(binding)
	logrus.Debugf("🔌 Peer disconnected: %s (%s)", clientIP, peer.ID())
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": constants.Version,
	})
}

// HandleStatus serves a small operator dashboard payload: uptime, live
// session count, and the audit tail.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"version":        constants.Version,
		"uptime":         time.Since(s.startedAt).Round(time.Second).String(),
		"activeSessions": s.Registry.Len(),
		"recentAudit":    s.Audit.Recent(20),
	})
}
