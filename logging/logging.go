// Package logging builds the redacting slog loggers handed to the relay,
// the upstream proxy and the dispatcher.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const filtered = "[FILTERED]"

var (
	sensitiveKeys   = []string{"token", "password", "secret", "apikey", "api_key", "authorization"}
	sensitiveValues = []string{"token", "password", "secret"}
)

type Options struct {
	Level  slog.Level
	Format string // "text" or "json"
	Writer io.Writer
}

// New returns a level-gated logger that filters sensitive attributes.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: redact,
	}

	var h slog.Handler
	if opts.Format == "json" {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, filtered)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if isSensitiveValue(a.Value.String()) {
			return slog.String(a.Key, filtered)
		}
	case slog.KindAny:
		if text, ok := rendered(a.Value.Any()); ok && isSensitiveValue(text) {
			return slog.String(a.Key, filtered)
		}
	}
	return a
}

// rendered returns the text an error or Stringer attribute prints as.
func rendered(v any) (string, bool) {
	switch x := v.(type) {
	case error:
		return x.Error(), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func isSensitiveValue(v string) bool {
	if strings.Contains(v, "Bearer ") || strings.HasPrefix(v, "sk-") {
		return true
	}
	lower := strings.ToLower(v)
	for _, s := range sensitiveValues {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
