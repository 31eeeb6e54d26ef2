package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coview/internal/config"
	"coview/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Secret:            "letmein",
		OpsUser:           "operator",
		OpsPassword:       "opspass",
		SessionTTL:        time.Minute,
		JoinWindow:        time.Minute,
		JoinMaxAttempts:   5,
		MaxConnsPerIP:     10,
		AuditCapacity:     100,
		SweepInterval:     time.Second,
		LimiterGCInterval: time.Minute,
	}
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(testConfig())
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialPeer(t *testing.T, wsURL string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketSessionRoundTrip(t *testing.T) {
	s, wsURL := startTestServer(t)

	presenter := dialPeer(t, wsURL, nil)
	require.NoError(t, presenter.WriteJSON(protocol.Message{Type: protocol.TypeCreateSession}))

	created := readEvent(t, presenter)
	require.Equal(t, string(protocol.TypeSessionCreated), created["type"])
	code, _ := created["code"].(string)
	require.Len(t, code, 6)
	assert.Equal(t, 1, s.Registry.Len())

	require.NoError(t, presenter.WriteJSON(protocol.Message{
		Type: protocol.TypeFullPage,
		HTML: "<html>shared</html>",
	}))

	agent := dialPeer(t, wsURL, nil)
	require.NoError(t, agent.WriteJSON(protocol.Message{
		Type:   protocol.TypeJoinSession,
		Code:   code,
		Secret: "letmein",
	}))

	joined := readEvent(t, agent)
	assert.Equal(t, string(protocol.TypeSessionJoined), joined["type"])
	assert.Equal(t, code, joined["code"])

	page := readEvent(t, agent)
	assert.Equal(t, string(protocol.TypeFullPage), page["type"])
	assert.Equal(t, "<html>shared</html>", page["html"])

	assert.Equal(t, string(protocol.TypeAgentJoined), readEvent(t, presenter)["type"])

	require.NoError(t, agent.WriteJSON(protocol.Message{
		Type: protocol.TypeAIResponse,
		Text: "try reloading the page",
	}))
	response := readEvent(t, presenter)
	assert.Equal(t, string(protocol.TypeAIResponse), response["type"])
	assert.Equal(t, "try reloading the page", response["text"])

	// Presenter walks away: the agent is told and the code dies with it.
	presenter.Close()
	assert.Equal(t, string(protocol.TypeClientDisconnected), readEvent(t, agent)["type"])

	require.Eventually(t, func() bool { return s.Registry.Len() == 0 },
		2*time.Second, 10*time.Millisecond)

	late := dialPeer(t, wsURL, nil)
	require.NoError(t, late.WriteJSON(protocol.Message{
		Type:   protocol.TypeJoinSession,
		Code:   code,
		Secret: "letmein",
	}))
	errEvent := readEvent(t, late)
	assert.Equal(t, string(protocol.TypeError), errEvent["type"])
}

func TestWebSocketJoinWrongSecret(t *testing.T) {
	_, wsURL := startTestServer(t)

	presenter := dialPeer(t, wsURL, nil)
	require.NoError(t, presenter.WriteJSON(protocol.Message{Type: protocol.TypeCreateSession}))
	code := readEvent(t, presenter)["code"].(string)

	agent := dialPeer(t, wsURL, nil)
	require.NoError(t, agent.WriteJSON(protocol.Message{
		Type:   protocol.TypeJoinSession,
		Code:   code,
		Secret: "guessing",
	}))

	errEvent := readEvent(t, agent)
	assert.Equal(t, string(protocol.TypeError), errEvent["type"])
	assert.NotEmpty(t, errEvent["message"])
}

func TestWebSocketMalformedInputKeepsConnectionOpen(t *testing.T) {
	_, wsURL := startTestServer(t)

	conn := dialPeer(t, wsURL, nil)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)))

	// The connection must survive the garbage and still serve a create.
	require.NoError(t, conn.WriteJSON(protocol.Message{Type: protocol.TypeCreateSession}))
	created := readEvent(t, conn)
	assert.Equal(t, string(protocol.TypeSessionCreated), created["type"])
}

func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	s := NewServer(cfg)
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://app.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	conn.Close()
}

func TestOperatorAuthOnStatus(t *testing.T) {
	s := NewServer(testConfig())
	handler := OperatorAuth(s.Validator)(http.HandlerFunc(s.HandleStatus))

	r := httptest.NewRequest(http.MethodGet, "/statusz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	r = httptest.NewRequest(http.MethodGet, "/statusz", nil)
	r.SetBasicAuth("operator", "wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/statusz", nil)
	r.SetBasicAuth("operator", "opspass")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "activeSessions")
}

func TestHealthEndpointIsPublic(t *testing.T) {
	s := NewServer(testConfig())

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.HandleHealth(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
