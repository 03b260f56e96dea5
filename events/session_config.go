package events

import (
	"github.com/bytedance/sonic"
)

// SessionConfig is the static configuration carried by session.update.
type SessionConfig struct {
	Modalities              []string                 `json:"modalities"`
	Instructions            string                   `json:"instructions"`
	Voice                   string                   `json:"voice"`
	InputAudioFormat        string                   `json:"input_audio_format"`
	OutputAudioFormat       string                   `json:"output_audio_format"`
	InputAudioTranscription *InputAudioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection           `json:"turn_detection,omitempty"`
	Tools                   []Tool                   `json:"tools"`
	ToolChoice              string                   `json:"tool_choice"`
	Temperature             float64                  `json:"temperature"`
	MaxResponseOutputTokens MaxTokens                `json:"max_response_output_tokens"`
}

type InputAudioTranscription struct {
	Model string `json:"model"`
}

// TurnDetection holds the server-side VAD parameters.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// Tool is a function declaration offered to the model.
type Tool struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// MaxTokens encodes as an integer, or as "inf" when zero.
type MaxTokens int

func (m MaxTokens) MarshalJSON() ([]byte, error) {
	if m <= 0 {
		return []byte(`"inf"`), nil
	}
	return sonic.Marshal(int(m))
}

type SessionUpdate struct {
	Type    string         `json:"type"`
	EventID string         `json:"event_id,omitempty"`
	Session *SessionConfig `json:"session"`
}

func NewSessionUpdate(cfg *SessionConfig) *SessionUpdate {
	return &SessionUpdate{
		Type:    TypeSessionUpdate,
		EventID: NewEventID(),
		Session: cfg,
	}
}
