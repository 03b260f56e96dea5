package client

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spayyavula/spark-ide-ai/events"
)

// ConnectionState is the client view of the relay connection.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

const (
	historySize   = 10
	settingStep   = 10
	minSetting    = 0
	maxSetting    = 100
	defaultVolume = 75
	defaultBright = 80
)

// Observer receives controller notifications. Calls are made synchronously
// from the goroutine that changed the state.
type Observer interface {
	OnSystemAction(action events.SystemAction)
	OnTranscript(text string)
	OnSpeakingChange(speaking bool)
	OnConnectionChange(state ConnectionState)
	OnError(err RelayError)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) OnSystemAction(events.SystemAction) {}
func (NopObserver) OnTranscript(string) {}
func (NopObserver) OnSpeakingChange(bool) {}
func (NopObserver) OnConnectionChange(ConnectionState) {}
func (NopObserver) OnError(RelayError) {}

// RelayError is an error event reported by the relay, such as
// UPSTREAM_CLOSED or HANDSHAKE_TIMEOUT.
type RelayError struct {
	Code    string
	Message string
}

type App struct {
	ID     string
	Name   string
	Open   bool
	Active bool
}

// Action is one entry of the action history.
type Action struct {
	CallID    string
	Name      string
	Action    string
	Success   bool
	Message   string
	Data      any
	Timestamp time.Time
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Apps       []App
	Volume     int
	Brightness int
	DarkMode   bool
	Transcript string
	Speaking   bool
	Listening  bool
	Connection ConnectionState
	LastError  *RelayError
	History    []Action // newest first
}

// Controller holds the local view state driven by relay events.
type Controller struct {
	observer Observer

	// Read by the capture path without taking mu
	listening atomic.Bool

	mu         sync.RWMutex
	apps       []App
	volume     int
	brightness int
	darkMode   bool
	transcript string
	speaking   bool
	connection ConnectionState
	lastError  *RelayError
	history    []Action
}

func NewController(observer Observer) *Controller {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Controller{
		observer: observer,
		apps: []App{
			{ID: "files", Name: "Files"},
			{ID: "calendar", Name: "Calendar"},
			{ID: "music", Name: "Music"},
			{ID: "messages", Name: "Messages"},
			{ID: "settings", Name: "Settings"},
		},
		volume:     defaultVolume,
		brightness: defaultBright,
		darkMode:   true,
		connection: Disconnected,
		history:    make([]Action, 0, historySize),
	}
}

// HandleEvent updates state from one decoded relay event. Audio events are
// left to the player.
func (c *Controller) HandleEvent(evt events.Event) {
	switch e := evt.(type) {
	case *events.SystemAction:
		c.Apply(e)
	case *events.TranscriptionCompleted:
		c.mu.Lock()
		c.transcript = e.Transcript
		c.mu.Unlock()
		c.observer.OnTranscript(e.Transcript)
	}
}

// Apply records a system action and mutates local state for successful ones.
func (c *Controller) Apply(a *events.SystemAction) {
	c.mu.Lock()
	c.record(a)
	if a.Success {
		switch a.Action {
		case "open_app":
			c.openApp(field(a.Data, "app"))
		case "adjust_settings":
			c.adjust(field(a.Data, "setting"), field(a.Data, "value"))
		}
	}
	c.mu.Unlock()

	c.observer.OnSystemAction(*a)
}

func (c *Controller) record(a *events.SystemAction) {
	entry := Action{
		CallID:    a.CallID,
		Name:      a.Name,
		Action:    a.Action,
		Success:   a.Success,
		Message:   a.Message,
		Data:      a.Data,
		Timestamp: time.UnixMilli(a.Timestamp),
	}
	if len(c.history) == historySize {
		c.history = c.history[:historySize-1]
	}
	c.history = append([]Action{entry}, c.history...)
}

func (c *Controller) openApp(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	for i := range c.apps {
		app := &c.apps[i]
		if strings.Contains(strings.ToLower(app.Name), name) || strings.Contains(app.ID, name) {
			app.Open = true
			app.Active = true
		} else {
			app.Active = false
		}
	}
}

func (c *Controller) adjust(setting, value string) {
	value = strings.ToLower(value)
	switch setting {
	case "volume":
		switch {
		case increases(value):
			c.volume = clamp(c.volume + settingStep)
		case decreases(value):
			c.volume = clamp(c.volume - settingStep)
		default:
			if n, ok := leadingInt(value); ok {
				c.volume = clamp(n)
			}
		}
	case "brightness":
		switch {
		case increases(value):
			c.brightness = clamp(c.brightness + settingStep)
		case decreases(value):
			c.brightness = clamp(c.brightness - settingStep)
		}
	case "dark_mode":
		c.darkMode = strings.Contains(value, "on") || strings.Contains(value, "enable")
	}
}

func increases(v string) bool { return strings.Contains(v, "up") || strings.Contains(v, "increase") }
func decreases(v string) bool { return strings.Contains(v, "down") || strings.Contains(v, "decrease") }

func clamp(v int) int {
	return max(minSetting, min(maxSetting, v))
}

// leadingInt parses the integer prefix of s, so "40%" reads as 40.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && s[end] == '-') {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// field reads a string-ish value out of a decoded JSON object.
func field(data any, key string) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// SetListening flips the capture gate.
func (c *Controller) SetListening(on bool) {
	c.listening.Store(on)
}

// Listening reports whether captured audio should be sent.
func (c *Controller) Listening() bool {
	return c.listening.Load()
}

// ToggleListening flips the capture gate and returns the new value.
func (c *Controller) ToggleListening() bool {
	for {
		cur := c.listening.Load()
		if c.listening.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

func (c *Controller) SetSpeaking(speaking bool) {
	c.mu.Lock()
	changed := c.speaking != speaking
	c.speaking = speaking
	c.mu.Unlock()

	if changed {
		c.observer.OnSpeakingChange(speaking)
	}
}

func (c *Controller) SetConnection(state ConnectionState) {
	c.mu.Lock()
	changed := c.connection != state
	c.connection = state
	c.mu.Unlock()

	if changed {
		c.observer.OnConnectionChange(state)
	}
}

// ReportError records a relay error and passes it to the observer.
func (c *Controller) ReportError(err RelayError) {
	c.mu.Lock()
	c.lastError = &err
	c.mu.Unlock()

	c.observer.OnError(err)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Apps:       append([]App(nil), c.apps...),
		Volume:     c.volume,
		Brightness: c.brightness,
		DarkMode:   c.darkMode,
		Transcript: c.transcript,
		Speaking:   c.speaking,
		Listening:  c.listening.Load(),
		Connection: c.connection,
		LastError:  c.lastError,
		History:    append([]Action(nil), c.history...),
	}
}
