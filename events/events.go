package events

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Upstream event types the relay inspects. Everything else is forwarded as Unknown.
const (
	TypeSessionCreated                  = "session.created"
	TypeSessionUpdated                  = "session.updated"
	TypeResponseAudioDelta              = "response.audio.delta"
	TypeResponseAudioDone               = "response.audio.done"
	TypeInputAudioTranscriptionComplete = "conversation.item.input_audio_transcription.completed"
	TypeFunctionCallArgumentsDone       = "response.function_call_arguments.done"
	TypeSpeechStarted                   = "input_audio_buffer.speech_started"
	TypeError                           = "error"
)

// Client-bound and upstream-bound event types produced by this module.
const (
	TypeSessionUpdate          = "session.update"
	TypeInputAudioBufferAppend = "input_audio_buffer.append"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeSystemAction           = "system.action"
)

// Event is one decoded frame of the realtime protocol.
type Event interface {
	EventType() string
}

type envelope struct {
	Type string `json:"type"`
}

type SessionCreated struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`
	Session struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Voice string `json:"voice,omitempty"`
	} `json:"session"`
}

func (e *SessionCreated) EventType() string { return TypeSessionCreated }

// ResponseAudioDelta carries one base64 PCM16 chunk of synthesized speech.
type ResponseAudioDelta struct {
	Type         string `json:"type"`
	EventID      string `json:"event_id,omitempty"`
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

func (e *ResponseAudioDelta) EventType() string { return TypeResponseAudioDelta }

type ResponseAudioDone struct {
	Type         string `json:"type"`
	EventID      string `json:"event_id,omitempty"`
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
}

func (e *ResponseAudioDone) EventType() string { return TypeResponseAudioDone }

// TranscriptionCompleted carries the final transcript of a user turn.
type TranscriptionCompleted struct {
	Type         string `json:"type"`
	EventID      string `json:"event_id,omitempty"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

func (e *TranscriptionCompleted) EventType() string { return TypeInputAudioTranscriptionComplete }

// FunctionCallArgumentsDone is emitted once the model has produced the complete
// JSON arguments of a tool call.
type FunctionCallArgumentsDone struct {
	Type        string `json:"type"`
	EventID     string `json:"event_id,omitempty"`
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
}

func (e *FunctionCallArgumentsDone) EventType() string { return TypeFunctionCallArgumentsDone }

type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// Error is the error event, either sent by upstream or originated by the relay.
type Error struct {
	Type    string      `json:"type"`
	EventID string      `json:"event_id,omitempty"`
	Error   ErrorDetail `json:"error"`
}

func (e *Error) EventType() string { return TypeError }

// Unknown preserves any event kind the relay does not interpret.
type Unknown struct {
	Type string
	Raw  []byte
}

func (e *Unknown) EventType() string { return e.Type }

// Parse decodes a text frame into its typed variant.
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}

	var evt Event
	switch env.Type {
	case TypeSessionCreated:
		evt = &SessionCreated{}
	case TypeResponseAudioDelta:
		evt = &ResponseAudioDelta{}
	case TypeResponseAudioDone:
		evt = &ResponseAudioDone{}
	case TypeInputAudioTranscriptionComplete:
		evt = &TranscriptionCompleted{}
	case TypeFunctionCallArgumentsDone:
		evt = &FunctionCallArgumentsDone{}
	case TypeError:
		evt = &Error{}
	case TypeSystemAction:
		evt = &SystemAction{}
	default:
		return &Unknown{Type: env.Type, Raw: data}, nil
	}

	if err := sonic.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return evt, nil
}
