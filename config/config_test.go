package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "wss://api.openai.com/v1/realtime", cfg.RealtimeURL)
	require.Equal(t, "alloy", cfg.Voice)
	require.Equal(t, "whisper-1", cfg.TranscriptionModel)
	require.InDelta(t, 0.8, cfg.Temperature, 1e-9)
	require.InDelta(t, 0.5, cfg.VADThreshold, 1e-9)
	require.Equal(t, 300, cfg.VADPrefixPaddingMS)
	require.Equal(t, 1000, cfg.VADSilenceMS)
	require.Equal(t, EarlyFramesBuffer, cfg.EarlyFramePolicy)
	require.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("REALTIME_URL", "ws://127.0.0.1:1234/v1/realtime")
	t.Setenv("MAX_SESSIONS", "3")
	t.Setenv("SESSION_TIMEOUT", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("HANDSHAKE_TIMEOUT", "2")
	t.Setenv("EARLY_FRAME_POLICY", "drop")
	t.Setenv("VAD_THRESHOLD", "0.7")
	t.Setenv("WEATHER_TIMEOUT", "1")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "ws://127.0.0.1:1234/v1/realtime", cfg.RealtimeURL)
	require.Equal(t, 3, cfg.MaxSessions)
	require.Equal(t, 5*time.Minute, cfg.SessionTimeout)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 2*time.Second, cfg.HandshakeTimeout)
	require.Equal(t, EarlyFramesDrop, cfg.EarlyFramePolicy)
	require.InDelta(t, 0.7, cfg.VADThreshold, 1e-9)
	require.Equal(t, time.Second, cfg.WeatherTimeout)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "eighty",
		"TEMPERATURE":        "hot",
		"VAD_THRESHOLD":      "2",
		"EARLY_FRAME_POLICY": "queue",
		"LOG_FORMAT":         "xml",
		"KEEPALIVE_PERIOD":   "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "test-key")
			t.Setenv(key, value)

			_, err := LoadConfig()
			require.ErrorContains(t, err, key)
		})
	}
}

func TestLoadConfigRejectsNonPositiveLimits(t *testing.T) {
	for _, tt := range []struct {
		key   string
		value string
	}{
		{"MAX_SESSIONS", "0"},
		{"MAX_SESSIONS", "-3"},
		{"MAX_BUFFER_SIZE", "0"},
		{"KEEPALIVE_PERIOD", "-1"},
		{"HANDSHAKE_TIMEOUT", "0"},
	} {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "test-key")
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			require.ErrorContains(t, err, "invalid "+tt.key+": must be positive")
		})
	}
}
