package protocol

import (
	"encoding/json"
	"fmt"
)

// Type discriminates every message crossing the wire. The router switches
// over the full inbound set; adding a kind means adding a constant, a
// variant below, and a dispatch arm.
type Type string

// Inbound message kinds.
const (
	TypeCreateSession Type = "create-session"
	TypeJoinSession   Type = "join-session"
	TypeFullPage      Type = "full-page"
	TypeCursorMove    Type = "cursor-move"
	TypeVoiceMessage  Type = "voice-message"
	TypeAIResponse    Type = "ai-response"
	TypeEndSession    Type = "end-session"
)

// Outbound event kinds.
const (
	TypeSessionCreated     Type = "session-created"
	TypeSessionJoined      Type = "session-joined"
	TypeAgentJoined        Type = "agent-joined"
	TypeClientDisconnected Type = "client-disconnected"
	TypeAgentDisconnected  Type = "agent-disconnected"
	TypeSessionEnded       Type = "session-ended"
	TypeError              Type = "error"
)

// Session end reasons carried by SessionEnded.
const (
	ReasonExpired  = "expired"
	ReasonEnded    = "ended"
	ReasonShutdown = "shutdown"
)

// Message is the inbound envelope: the type discriminant plus the union of
// all type-specific fields. Field names match the browser-side payloads.
type Message struct {
	Type           Type    `json:"type"`
	Code           string  `json:"code"`
	Secret         string  `json:"secret"`
	HTML           string  `json:"html"`
	PasswordLength int     `json:"passwordLength"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Text           string  `json:"text"`
}

// Parse decodes one inbound envelope. A missing type field is malformed.
func Parse(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("message has no type")
	}
	return m, nil
}

// Outbound events, one struct per kind so each serializes exactly the
// fields its consumers expect.

type SessionCreated struct {
	Type Type   `json:"type"`
	Code string `json:"code"`
}

type SessionJoined struct {
	Type Type   `json:"type"`
	Code string `json:"code"`
}

type FullPage struct {
	Type           Type   `json:"type"`
	HTML           string `json:"html"`
	PasswordLength int    `json:"passwordLength"`
}

type CursorMove struct {
	Type Type    `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type VoiceMessage struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

type AIResponse struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

type Signal struct {
	Type Type `json:"type"`
}

type SessionEnded struct {
	Type   Type   `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type Error struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

func NewSessionCreated(code string) SessionCreated {
	return SessionCreated{Type: TypeSessionCreated, Code: code}
}

func NewSessionJoined(code string) SessionJoined {
	return SessionJoined{Type: TypeSessionJoined, Code: code}
}

func NewFullPage(html string, passwordLength int) FullPage {
	return FullPage{Type: TypeFullPage, HTML: html, PasswordLength: passwordLength}
}

func NewCursorMove(x, y float64) CursorMove {
	return CursorMove{Type: TypeCursorMove, X: x, Y: y}
}

func NewVoiceMessage(text string) VoiceMessage {
	return VoiceMessage{Type: TypeVoiceMessage, Text: text}
}

func NewAIResponse(text string) AIResponse {
	return AIResponse{Type: TypeAIResponse, Text: text}
}

func NewAgentJoined() Signal {
	return Signal{Type: TypeAgentJoined}
}

func NewClientDisconnected() Signal {
	return Signal{Type: TypeClientDisconnected}
}

func NewAgentDisconnected() Signal {
	return Signal{Type: TypeAgentDisconnected}
}

func NewSessionEnded(reason string) SessionEnded {
	return SessionEnded{Type: TypeSessionEnded, Reason: reason}
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
