package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spayyavula/spark-ide-ai/config"
	"github.com/spayyavula/spark-ide-ai/events"
	"github.com/spayyavula/spark-ide-ai/session"
)

// RelayPath is where clients open the relay WebSocket.
const RelayPath = "/realtime-audio-os"

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
	"Access-Control-Allow-Methods": "POST, GET, OPTIONS",
}

type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	logger         *slog.Logger
}

func NewServerWebsocket(cfg *config.Config, sessionManager *session.Manager, logger *slog.Logger) *Server {
	s := &Server{
		sessionManager: sessionManager,
		config:         cfg,
		logger:         logger.With(slog.String("component", "server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024, // 64KB for audio chunks
			WriteBufferSize:   64 * 1024, // 64KB for audio chunks
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.Handler(),
		// Only the header read is bounded; relay connections are long lived
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler routes relay, health and CORS preflight requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RelayPath, s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			for k, v := range corsHeaders {
				w.Header().Set(k, v)
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info("🚀 relay server starting", slog.Int("port", s.config.Port))
	s.logger.Info("📡 relay endpoint", slog.String("url", fmt.Sprintf("ws://localhost:%d%s", s.config.Port, RelayPath)))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("🛑 shutting down server")
	s.sessionManager.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	clientSession, err := s.sessionManager.CreateSession(r.Context(), conn)
	if err != nil {
		s.logger.Warn("failed to create session", slog.Any("err", err))
		s.reject(conn, err)
		return
	}

	s.logger.Info("✅ client connected", slog.String("session_id", clientSession.ID), slog.String("remote", r.RemoteAddr))

	// Session handles messages in goroutines and removes itself on close
	clientSession.Start()
}

// reject reports a session failure before closing the connection.
func (s *Server) reject(conn *websocket.Conn, cause error) {
	defer conn.Close()

	message := "Failed to create session"
	if errors.Is(cause, session.ErrMaxSessions) {
		message = "Relay is at capacity, try again later"
	}
	data, err := events.Marshal(events.NewRelayError(events.ErrCodeSessionFailed, message))
	if err != nil {
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ""))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.sessionManager.GetActiveSessionCount())
}
