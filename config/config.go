package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Early client frame policies.
const (
	EarlyFramesBuffer = "buffer"
	EarlyFramesDrop   = "drop"
)

// Config holds all server configuration
type Config struct {
	Port           int
	MaxSessions    int
	SessionTimeout time.Duration
	AllowedOrigins []string

	// Upstream realtime API
	OpenAIAPIKey       string
	RealtimeURL        string
	RealtimeModel      string
	Voice              string
	TranscriptionModel string
	Temperature        float64
	VADThreshold       float64
	VADPrefixPaddingMS int
	VADSilenceMS       int

	RedisURL      string
	RedisPassword string

	KeepAlivePeriod  time.Duration
	HandshakeTimeout time.Duration
	MaxBufferSize    int    // Maximum bytes of client frames held before the session is ready
	EarlyFramePolicy string // "buffer" or "drop"

	LogLevel  string
	LogFormat string

	// Optional live weather lookups
	GeminiAPIKey   string
	WeatherModel   string
	WeatherTimeout time.Duration
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:               8080,
		MaxSessions:        100,
		SessionTimeout:     30 * time.Minute,
		AllowedOrigins:     []string{"*"},
		RealtimeURL:        "wss://api.openai.com/v1/realtime",
		RealtimeModel:      "gpt-4o-realtime-preview-2024-12-17",
		Voice:              "alloy",
		TranscriptionModel: "whisper-1",
		Temperature:        0.8,
		VADThreshold:       0.5,
		VADPrefixPaddingMS: 300,
		VADSilenceMS:       1000,
		RedisURL:           "localhost:6379",
		KeepAlivePeriod:    30 * time.Second,
		HandshakeTimeout:   15 * time.Second,
		MaxBufferSize:      1024 * 1024, // 1MB default
		EarlyFramePolicy:   EarlyFramesBuffer,
		LogLevel:           "info",
		LogFormat:          "text",
		WeatherModel:       "gemini-2.5-flash",
		WeatherTimeout:     5 * time.Second,
	}

	// Required: OPENAI_API_KEY
	config.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if config.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	if u := os.Getenv("REALTIME_URL"); u != "" {
		config.RealtimeURL = u
	}
	if m := os.Getenv("REALTIME_MODEL"); m != "" {
		config.RealtimeModel = m
	}
	if v := os.Getenv("REALTIME_VOICE"); v != "" {
		config.Voice = v
	}
	if m := os.Getenv("TRANSCRIPTION_MODEL"); m != "" {
		config.TranscriptionModel = m
	}

	// Optional: TEMPERATURE
	if temp := os.Getenv("TEMPERATURE"); temp != "" {
		t, err := strconv.ParseFloat(temp, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TEMPERATURE: %w", err)
		}
		config.Temperature = t
	}

	// Optional: VAD_THRESHOLD
	if threshold := os.Getenv("VAD_THRESHOLD"); threshold != "" {
		t, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_THRESHOLD: %w", err)
		}
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("invalid VAD_THRESHOLD: must be between 0 and 1")
		}
		config.VADThreshold = t
	}

	// Optional: VAD_PREFIX_PADDING_MS
	if padding := os.Getenv("VAD_PREFIX_PADDING_MS"); padding != "" {
		p, err := strconv.Atoi(padding)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_PREFIX_PADDING_MS: %w", err)
		}
		config.VADPrefixPaddingMS = p
	}

	// Optional: VAD_SILENCE_DURATION_MS
	if silence := os.Getenv("VAD_SILENCE_DURATION_MS"); silence != "" {
		s, err := strconv.Atoi(silence)
		if err != nil {
			return nil, fmt.Errorf("invalid VAD_SILENCE_DURATION_MS: %w", err)
		}
		config.VADSilenceMS = s
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		if m <= 0 {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: must be positive")
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		if k <= 0 {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: must be positive")
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	// Optional: HANDSHAKE_TIMEOUT (in seconds)
	if handshake := os.Getenv("HANDSHAKE_TIMEOUT"); handshake != "" {
		h, err := strconv.Atoi(handshake)
		if err != nil {
			return nil, fmt.Errorf("invalid HANDSHAKE_TIMEOUT: %w", err)
		}
		if h <= 0 {
			return nil, fmt.Errorf("invalid HANDSHAKE_TIMEOUT: must be positive")
		}
		config.HandshakeTimeout = time.Duration(h) * time.Second
	}

	// Optional: MAX_BUFFER_SIZE (in bytes)
	if bufferSize := os.Getenv("MAX_BUFFER_SIZE"); bufferSize != "" {
		b, err := strconv.Atoi(bufferSize)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BUFFER_SIZE: %w", err)
		}
		if b <= 0 {
			return nil, fmt.Errorf("invalid MAX_BUFFER_SIZE: must be positive")
		}
		config.MaxBufferSize = b
	}

	// Optional: EARLY_FRAME_POLICY ("buffer" or "drop")
	if policy := os.Getenv("EARLY_FRAME_POLICY"); policy != "" {
		switch policy {
		case EarlyFramesBuffer, EarlyFramesDrop:
			config.EarlyFramePolicy = policy
		default:
			return nil, fmt.Errorf("invalid EARLY_FRAME_POLICY: must be 'buffer' or 'drop'")
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	// Optional: LOG_FORMAT ("text" or "json")
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		switch format {
		case "text", "json":
			config.LogFormat = format
		default:
			return nil, fmt.Errorf("invalid LOG_FORMAT: must be 'text' or 'json'")
		}
	}

	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if model := os.Getenv("WEATHER_MODEL"); model != "" {
		config.WeatherModel = model
	}

	// Optional: WEATHER_TIMEOUT (in seconds)
	if weatherTimeout := os.Getenv("WEATHER_TIMEOUT"); weatherTimeout != "" {
		w, err := strconv.Atoi(weatherTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WEATHER_TIMEOUT: %w", err)
		}
		config.WeatherTimeout = time.Duration(w) * time.Second
	}

	return config, nil
}
