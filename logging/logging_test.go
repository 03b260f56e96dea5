package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Writer: &buf})

	logger.Info("dialing upstream",
		"api_key", "abc123",
		"Authorization", "Bearer abc123",
		"header", "Bearer xyz",
		"openai", "sk-live-1234",
		"model", "gpt-4o-realtime-preview",
	)

	out := buf.String()
	require.NotContains(t, out, "abc123")
	require.NotContains(t, out, "xyz")
	require.NotContains(t, out, "sk-live-1234")
	require.Contains(t, out, "model=gpt-4o-realtime-preview")
	require.Contains(t, out, "[FILTERED]")
}

type header string

func (h header) String() string { return "Authorization: " + string(h) }

func TestRedactsRenderedErrorsAndStringers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Writer: &buf})

	logger.Warn("upstream dial failed",
		slog.Any("err", errors.New("handshake rejected: Authorization: Bearer sk-live-9876")),
		slog.Any("hdr", header("Bearer live-abc")),
		slog.Any("cause", errors.New("dial tcp: connection refused")),
	)

	out := buf.String()
	require.NotContains(t, out, "sk-live-9876")
	require.NotContains(t, out, "live-abc")
	require.Contains(t, out, "connection refused")
}

func TestRedactsSensitiveValueSubstrings(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Writer: &buf, Format: "json"})

	logger.Info("🔧 function call",
		slog.String("arguments", `{"password":"hunter2"}`),
		slog.String("note", "refresh Token expired"),
		slog.String("function", "open_application"),
	)

	out := buf.String()
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "expired")
	require.Contains(t, out, `"function":"open_application"`)
	require.Contains(t, out, `"arguments":"[FILTERED]"`)
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelWarn, Writer: &buf, Format: "json"})

	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}
