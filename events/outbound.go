package events

import (
	"time"

	"github.com/bytedance/sonic"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Relay error codes sent to the client.
const (
	ErrCodeUpstreamConnectFailed = "UPSTREAM_CONNECT_FAILED"
	ErrCodeUpstreamClosed        = "UPSTREAM_CLOSED"
	ErrCodeHandshakeTimeout      = "HANDSHAKE_TIMEOUT"
	ErrCodeBufferFull            = "BUFFER_FULL"
	ErrCodeSessionFailed         = "SESSION_FAILED"
)

const relayErrorType = "relay_error"

// NewEventID returns an id for relay-originated events.
func NewEventID() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return "evt_" + id
}

type InputAudioBufferAppend struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`
	Audio   string `json:"audio"`
}

// NewInputAudioBufferAppend wraps one base64 PCM16 frame.
func NewInputAudioBufferAppend(audio string) *InputAudioBufferAppend {
	return &InputAudioBufferAppend{
		Type:    TypeInputAudioBufferAppend,
		EventID: NewEventID(),
		Audio:   audio,
	}
}

type ConversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

type ConversationItemCreate struct {
	Type    string           `json:"type"`
	EventID string           `json:"event_id,omitempty"`
	Item    ConversationItem `json:"item"`
}

// NewFunctionCallOutput builds the conversation.item.create carrying the
// serialized tool result for callID.
func NewFunctionCallOutput(callID string, result any) (*ConversationItemCreate, error) {
	output, err := sonic.MarshalString(result)
	if err != nil {
		return nil, err
	}
	return &ConversationItemCreate{
		Type:    TypeConversationItemCreate,
		EventID: NewEventID(),
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}, nil
}

type ResponseCreate struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`
}

func NewResponseCreate() *ResponseCreate {
	return &ResponseCreate{Type: TypeResponseCreate, EventID: NewEventID()}
}

// NewRelayError builds an error event originated by the relay itself.
func NewRelayError(code, message string) *Error {
	return &Error{
		Type:    TypeError,
		EventID: NewEventID(),
		Error: ErrorDetail{
			Type:    relayErrorType,
			Code:    code,
			Message: message,
		},
	}
}

// SystemAction tells the client which local action a tool call executed.
type SystemAction struct {
	Type      string `json:"type"`
	EventID   string `json:"event_id,omitempty"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Action    string `json:"action"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func (e *SystemAction) EventType() string { return TypeSystemAction }

func NewSystemAction(callID, name string, success bool, message, action string, data any, at time.Time) *SystemAction {
	return &SystemAction{
		Type:      TypeSystemAction,
		EventID:   NewEventID(),
		CallID:    callID,
		Name:      name,
		Success:   success,
		Message:   message,
		Action:    action,
		Data:      data,
		Timestamp: at.UnixMilli(),
	}
}

// Marshal encodes an outbound event.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}
