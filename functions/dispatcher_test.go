package functions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spayyavula/spark-ide-ai/logging"
)

type fixedRandom int

func (f fixedRandom) Intn(n int) int { return int(f) % n }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type fixedSystemInfo struct{}

func (fixedSystemInfo) Battery() string { return "88%" }
func (fixedSystemInfo) Memory() string  { return "16 GB available" }
func (fixedSystemInfo) CPU() string     { return "12% usage" }
func (fixedSystemInfo) Network() string { return "Connected to WiFi" }

type weatherFunc func(ctx context.Context, location string) (Weather, error)

func (f weatherFunc) Weather(ctx context.Context, location string) (Weather, error) {
	return f(ctx, location)
}

func newTestDispatcher(weather WeatherProvider) *Dispatcher {
	return NewDispatcher(Dependencies{
		Weather:    weather,
		SystemInfo: fixedSystemInfo{},
		Clock:      fixedClock(time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)),
		Rand:       fixedRandom(1),
		Logger:     logging.Discard(),
	})
}

func TestDispatchAllTools(t *testing.T) {
	d := newTestDispatcher(nil)

	cases := []struct {
		name    string
		args    string
		action  string
		message string
	}{
		{OpenApplication, `{"app_name":"Music"}`, "open_app", "Opening Music"},
		{CreateFile, `{"name":"notes.txt","type":"file","content":"hi"}`, "create_file", `Created file "notes.txt" successfully`},
		{DeleteFile, `{"path":"/tmp/old.txt","confirm":true}`, "delete_file", `Deleted "/tmp/old.txt" successfully`},
		{GetSystemInfo, `{"info_type":"battery"}`, "system_info", "Here's your battery information"},
		{SetReminder, `{"title":"Standup","time":"9am"}`, "set_reminder", `Reminder "Standup" set for 9am`},
		{ControlMedia, `{"action":"pause"}`, "control_media", "Media pause executed"},
		{AdjustSettings, `{"setting":"brightness","value":"down"}`, "adjust_settings", "brightness adjusted to down"},
		{SearchFiles, `{"query":"report"}`, "search_files", `Found files matching "report"`},
		{GetWeather, `{"location":"Paris"}`, "get_weather", "Here's the weather for Paris"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := d.Dispatch(context.Background(), FunctionCall{Name: tc.name, CallID: "call_1", Arguments: tc.args})
			require.True(t, res.Success, res.Message)
			require.Equal(t, tc.action, res.Action)
			require.Equal(t, tc.message, res.Message)
			require.NotNil(t, res.Data)
		})
	}
}

func TestDispatchAdjustSettingsScenario(t *testing.T) {
	d := newTestDispatcher(nil)

	res := d.Dispatch(context.Background(), FunctionCall{
		Name:      AdjustSettings,
		CallID:    "call_abc",
		Arguments: `{"setting":"volume","value":"up"}`,
	})

	require.Equal(t, Result{
		Success: true,
		Message: "volume adjusted to up",
		Action:  "adjust_settings",
		Data:    SettingsData{Setting: "volume", Value: "up"},
	}, res)
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(nil)

	res := d.Dispatch(context.Background(), FunctionCall{Name: "bogus_tool", CallID: "c", Arguments: `{}`})
	require.False(t, res.Success)
	require.Equal(t, ActionError, res.Action)
	require.Nil(t, res.Data)
	require.Equal(t, "Unknown function: bogus_tool", res.Message)
}

func TestDispatchMalformedArguments(t *testing.T) {
	d := newTestDispatcher(nil)

	for _, call := range []FunctionCall{
		{Name: OpenApplication, Arguments: `{"app_name":`},
		{Name: OpenApplication, Arguments: `{}`},
		{Name: CreateFile, Arguments: `{"name":"x","type":"symlink"}`},
		{Name: GetSystemInfo, Arguments: `{"info_type":"gpu"}`},
		{Name: ControlMedia, Arguments: `{"action":"rewind"}`},
		{Name: AdjustSettings, Arguments: `{"setting":"volume"}`},
		{Name: SetReminder, Arguments: `{"title":"x"}`},
		{Name: SearchFiles, Arguments: `{"query":{"nested":true}}`},
	} {
		res := d.Dispatch(context.Background(), call)
		require.False(t, res.Success, call)
		require.Equal(t, ActionError, res.Action, call)
		require.Nil(t, res.Data, call)
		require.Contains(t, res.Message, "Error executing "+call.Name, call)
	}
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	d := newTestDispatcher(weatherFunc(func(context.Context, string) (Weather, error) {
		panic("provider exploded")
	}))

	res := d.Dispatch(context.Background(), FunctionCall{Name: GetWeather, Arguments: `{"location":"Oslo"}`})
	require.False(t, res.Success)
	require.Equal(t, ActionError, res.Action)
	require.Nil(t, res.Data)
	require.Contains(t, res.Message, "provider exploded")
}

func TestGetSystemInfoAll(t *testing.T) {
	d := newTestDispatcher(nil)

	res := d.Dispatch(context.Background(), FunctionCall{Name: GetSystemInfo, Arguments: `{"info_type":"all"}`})
	require.True(t, res.Success)

	info, ok := res.Data.(map[string]string)
	require.True(t, ok)
	require.Len(t, info, 6)
	for _, key := range []string{"time", "date", "battery", "memory", "cpu", "network"} {
		require.NotEmpty(t, info[key], key)
	}
	require.Equal(t, "2:05:07 PM", info["time"])
	require.Equal(t, "3/9/2024", info["date"])
	require.Equal(t, "88%", info["battery"])
}

func TestGetSystemInfoSingleField(t *testing.T) {
	d := newTestDispatcher(nil)

	res := d.Dispatch(context.Background(), FunctionCall{Name: GetSystemInfo, Arguments: `{"info_type":"cpu"}`})
	require.Equal(t, map[string]string{"cpu": "12% usage"}, res.Data)
}

func TestGetWeatherUsesProvider(t *testing.T) {
	d := newTestDispatcher(weatherFunc(func(_ context.Context, location string) (Weather, error) {
		return Weather{Location: location, Condition: "foggy", Temperature: "9°C", Humidity: "90%", Wind: "3 km/h"}, nil
	}))

	res := d.Dispatch(context.Background(), FunctionCall{Name: GetWeather, Arguments: `{"location":"London"}`})
	require.True(t, res.Success)
	require.Equal(t, Weather{Location: "London", Condition: "foggy", Temperature: "9°C", Humidity: "90%", Wind: "3 km/h"}, res.Data)
}

func TestGetWeatherFallsBackWhenProviderFails(t *testing.T) {
	d := newTestDispatcher(weatherFunc(func(context.Context, string) (Weather, error) {
		return Weather{}, errors.New("quota exceeded")
	}))

	res := d.Dispatch(context.Background(), FunctionCall{Name: GetWeather, Arguments: `{"location":"Rome"}`})
	require.True(t, res.Success)

	w, ok := res.Data.(Weather)
	require.True(t, ok)
	require.Equal(t, "Rome", w.Location)
	require.Equal(t, "cloudy", w.Condition)
	require.Equal(t, "11°C", w.Temperature)
	require.NotEmpty(t, w.Humidity)
	require.NotEmpty(t, w.Wind)
}

func TestAdjustSettingsAcceptsNumericValue(t *testing.T) {
	d := newTestDispatcher(nil)

	res := d.Dispatch(context.Background(), FunctionCall{Name: AdjustSettings, Arguments: `{"setting":"volume","value":40}`})
	require.True(t, res.Success)
	require.Equal(t, SettingsData{Setting: "volume", Value: "40"}, res.Data)
}

func TestSearchResults(t *testing.T) {
	require.Equal(t, []string{"document_q.txt", "project_q.pdf"}, searchResults("q", "", fixedRandom(1)))
	require.Equal(t, []string{"project_q.pdf"}, searchResults("q", ".pdf", fixedRandom(2)))
	require.Equal(t, []string{}, searchResults("q", "exe", fixedRandom(0)))
}

func TestDeclarationsCoverDispatcher(t *testing.T) {
	tools := Declarations()
	require.Len(t, tools, 9)

	d := newTestDispatcher(nil)
	for _, tool := range tools {
		require.Equal(t, "function", tool.Type)
		require.Equal(t, "object", tool.Parameters.Type)
		require.NotEmpty(t, tool.Parameters.Required, tool.Name)

		res := d.Dispatch(context.Background(), FunctionCall{Name: tool.Name, Arguments: `{}`})
		require.NotEqual(t, "Unknown function: "+tool.Name, res.Message)
	}
}

func TestParseWeatherReply(t *testing.T) {
	w, err := parseWeatherReply("```json\n{\"condition\":\"sunny\",\"temperature\":\"21°C\",\"humidity\":\"40%\",\"wind\":\"8 km/h\"}\n```")
	require.NoError(t, err)
	require.Equal(t, "sunny", w.Condition)

	_, err = parseWeatherReply("I could not find the weather.")
	require.Error(t, err)

	_, err = parseWeatherReply(`{"condition":"sunny"}`)
	require.Error(t, err)
}
