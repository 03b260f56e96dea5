package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spayyavula/spark-ide-ai/events"
)

func action(name, act string, success bool, data map[string]any) *events.SystemAction {
	return events.NewSystemAction("call_1", name, success, "", act, data, time.Now())
}

func settings(setting, value string) *events.SystemAction {
	return action("adjust_settings", "adjust_settings", true, map[string]any{"setting": setting, "value": value})
}

func TestControllerDefaults(t *testing.T) {
	c := NewController(nil)
	s := c.Snapshot()

	require.Len(t, s.Apps, 5)
	require.Equal(t, 75, s.Volume)
	require.Equal(t, 80, s.Brightness)
	require.True(t, s.DarkMode)
	require.False(t, s.Listening)
	require.Equal(t, Disconnected, s.Connection)
	require.Empty(t, s.History)
}

func TestOpenAppActivatesMatch(t *testing.T) {
	c := NewController(nil)

	c.Apply(action("open_application", "open_app", true, map[string]any{"app": "Music"}))
	c.Apply(action("open_application", "open_app", true, map[string]any{"app": "cal"}))

	apps := map[string]App{}
	for _, a := range c.Snapshot().Apps {
		apps[a.ID] = a
	}
	require.True(t, apps["music"].Open)
	require.False(t, apps["music"].Active)
	require.True(t, apps["calendar"].Open)
	require.True(t, apps["calendar"].Active)
	require.False(t, apps["files"].Open)
}

func TestAdjustSettings(t *testing.T) {
	tests := []struct {
		name       string
		actions    []*events.SystemAction
		volume     int
		brightness int
		darkMode   bool
	}{
		{"volume up", []*events.SystemAction{settings("volume", "up")}, 85, 80, true},
		{"volume decrease", []*events.SystemAction{settings("volume", "decrease")}, 65, 80, true},
		{"volume clamps high", []*events.SystemAction{settings("volume", "up"), settings("volume", "up"), settings("volume", "up")}, 100, 80, true},
		{"volume numeric", []*events.SystemAction{settings("volume", "40%")}, 40, 80, true},
		{"volume numeric clamps", []*events.SystemAction{settings("volume", "250")}, 100, 80, true},
		{"volume garbage", []*events.SystemAction{settings("volume", "loud")}, 75, 80, true},
		{"brightness down", []*events.SystemAction{settings("brightness", "down")}, 75, 70, true},
		{"brightness ignores numbers", []*events.SystemAction{settings("brightness", "20")}, 75, 80, true},
		{"dark mode off", []*events.SystemAction{settings("dark_mode", "off")}, 75, 80, false},
		{"dark mode enable", []*events.SystemAction{settings("dark_mode", "off"), settings("dark_mode", "Enable")}, 75, 80, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(nil)
			for _, a := range tt.actions {
				c.Apply(a)
			}
			s := c.Snapshot()
			require.Equal(t, tt.volume, s.Volume)
			require.Equal(t, tt.brightness, s.Brightness)
			require.Equal(t, tt.darkMode, s.DarkMode)
		})
	}
}

func TestFailedActionIsRecordedOnly(t *testing.T) {
	c := NewController(nil)

	failed := settings("volume", "up")
	failed.Success = false
	failed.Action = events.TypeError
	c.Apply(failed)

	s := c.Snapshot()
	require.Equal(t, 75, s.Volume)
	require.Len(t, s.History, 1)
	require.False(t, s.History[0].Success)
}

func TestHistoryKeepsNewestTen(t *testing.T) {
	c := NewController(nil)
	for i := range 12 {
		a := action("get_weather", "weather_info", true, nil)
		a.CallID = fmt.Sprintf("call_%d", i)
		c.Apply(a)
	}

	h := c.Snapshot().History
	require.Len(t, h, 10)
	require.Equal(t, "call_11", h[0].CallID)
	require.Equal(t, "call_2", h[9].CallID)
}

type recordingObserver struct {
	NopObserver
	actions     []string
	transcripts []string
	speaking    []bool
	connection  []ConnectionState
}

func (o *recordingObserver) OnSystemAction(a events.SystemAction) {
	o.actions = append(o.actions, a.Action)
}
func (o *recordingObserver) OnTranscript(text string) { o.transcripts = append(o.transcripts, text) }
func (o *recordingObserver) OnSpeakingChange(on bool) { o.speaking = append(o.speaking, on) }
func (o *recordingObserver) OnConnectionChange(s ConnectionState) {
	o.connection = append(o.connection, s)
}

func TestObserverNotifications(t *testing.T) {
	obs := &recordingObserver{}
	c := NewController(obs)

	c.HandleEvent(&events.TranscriptionCompleted{Transcript: "open music"})
	c.HandleEvent(action("open_application", "open_app", true, map[string]any{"app": "music"}))
	c.HandleEvent(&events.ResponseAudioDone{})
	c.SetSpeaking(true)
	c.SetSpeaking(true)
	c.SetSpeaking(false)
	c.SetConnection(Connecting)
	c.SetConnection(Connected)
	c.SetConnection(Connected)

	require.Equal(t, []string{"open music"}, obs.transcripts)
	require.Equal(t, "open music", c.Snapshot().Transcript)
	require.Equal(t, []string{"open_app"}, obs.actions)
	require.Equal(t, []bool{true, false}, obs.speaking)
	require.Equal(t, []ConnectionState{Connecting, Connected}, obs.connection)
}

func TestListeningToggle(t *testing.T) {
	c := NewController(nil)
	require.False(t, c.Listening())
	require.True(t, c.ToggleListening())
	require.True(t, c.Listening())
	c.SetListening(false)
	require.False(t, c.Snapshot().Listening)
}

func TestReportErrorKeepsLatest(t *testing.T) {
	c := NewController(nil)
	require.Nil(t, c.Snapshot().LastError)

	c.ReportError(RelayError{Code: events.ErrCodeBufferFull, Message: "Buffer full"})
	c.ReportError(RelayError{Code: events.ErrCodeHandshakeTimeout, Message: "Handshake timeout"})

	require.Equal(t, events.ErrCodeHandshakeTimeout, c.Snapshot().LastError.Code)
}
