package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"join-session","code":"ABC234","secret":"s"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeJoinSession, msg.Type)
	assert.Equal(t, "ABC234", msg.Code)
	assert.Equal(t, "s", msg.Secret)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`{broken`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"code":"ABC234"}`))
	assert.Error(t, err, "missing type field is malformed")

	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestOutboundEventShapes(t *testing.T) {
	raw, err := json.Marshal(NewSessionEnded(ReasonExpired))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session-ended","reason":"expired"}`, string(raw))

	raw, err = json.Marshal(NewSessionEnded(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session-ended"}`, string(raw), "empty reason is omitted")

	raw, err = json.Marshal(NewFullPage("<p>hi</p>", 12))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"full-page","html":"<p>hi</p>","passwordLength":12}`, string(raw))

	raw, err = json.Marshal(NewAgentJoined())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"agent-joined"}`, string(raw))
}
