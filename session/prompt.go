package session

import (
	"github.com/spayyavula/spark-ide-ai/config"
	"github.com/spayyavula/spark-ide-ai/events"
	"github.com/spayyavula/spark-ide-ai/functions"
)

const defaultInstructions = `You are ARIA, an advanced Audio Operating System. You can control various system functions through voice commands.

## Core capabilities

1. File Management: create and delete files and folders, search for files
2. Application Control: open applications
3. System Settings: adjust volume, brightness, wifi, bluetooth and dark mode
4. Information Retrieval: weather, time, date and system status
5. Task Management: set reminders
6. Media Control: play, pause, stop and skip music or video

## Behaviour

- Respond naturally and perform the requested actions through the available functions.
- Always confirm what you are doing and give short spoken feedback.
- When a function reports a failure, tell the user what went wrong in one sentence and suggest what they can try instead.
- Never claim an action succeeded unless the function result says so.
- Be helpful and efficient.

## Available system functions

- open_application: Open any application
- create_file: Create files or folders
- delete_file: Delete files or folders
- get_system_info: Get system status, time or date
- set_reminder: Create reminders or alarms
- control_media: Play, pause, skip music or video
- adjust_settings: Change volume, brightness and similar settings
- search_files: Find files and folders
- get_weather: Get weather information
`

// BuildSessionConfig derives the session.update payload shared by every
// session of this process.
func BuildSessionConfig(cfg *config.Config) *events.SessionConfig {
	return &events.SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      defaultInstructions,
		Voice:             cfg.Voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		InputAudioTranscription: &events.InputAudioTranscription{
			Model: cfg.TranscriptionModel,
		},
		TurnDetection: &events.TurnDetection{
			Type:              "server_vad",
			Threshold:         cfg.VADThreshold,
			PrefixPaddingMS:   cfg.VADPrefixPaddingMS,
			SilenceDurationMS: cfg.VADSilenceMS,
		},
		Tools:                   functions.Declarations(),
		ToolChoice:              "auto",
		Temperature:             cfg.Temperature,
		MaxResponseOutputTokens: 0, // inf
	}
}
