package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleTimeUnmarshal(t *testing.T) {
	// Unix milliseconds
	var ft FlexibleTime
	require.NoError(t, json.Unmarshal([]byte("1700000000000"), &ft))
	assert.Equal(t, time.UnixMilli(1700000000000).Unix(), ft.Unix())

	// RFC3339 string
	var ft2 FlexibleTime
	require.NoError(t, json.Unmarshal([]byte(`"2026-01-15T10:30:00Z"`), &ft2))
	assert.Equal(t, 2026, ft2.Year())

	// Neither
	var ft3 FlexibleTime
	assert.Error(t, json.Unmarshal([]byte(`{"bad": true}`), &ft3))
	assert.Error(t, json.Unmarshal([]byte(`"not-a-time"`), &ft3))
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(MessageTypeChatMessage, ChatSendPayload{ReceiverID: "u2", Content: "hey"})
	assert.Equal(t, MessageTypeChatMessage, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewReply(t *testing.T) {
	original := NewMessage(MessageTypeChatMessage, nil)
	original.ID = "msg-1"
	reply := NewReply(original, MessageTypeChatAck, ChatAckPayload{MessageID: "m1", Delivered: true})

	assert.Equal(t, MessageTypeChatAck, reply.Type)
	assert.Equal(t, "msg-1", reply.ReplyTo)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("rate_limited", "slow down")
	assert.Equal(t, MessageTypeError, msg.Type)

	payload, ok := msg.Payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "rate_limited", payload.Code)
	assert.Equal(t, "slow down", payload.Message)
}

func TestParsePayload(t *testing.T) {
	raw := []byte(`{"type":"chat_message","payload":{"receiver_id":"u2","content":"hello"},"timestamp":1700000000000}`)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))

	var payload ChatSendPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, "u2", payload.ReceiverID)
	assert.Equal(t, "hello", payload.Content)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 3)

	// Burst allows the first three immediately.
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// Tokens refill over time.
	time.Sleep(150 * time.Millisecond)
	assert.True(t, rl.Allow())
}
