package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spayyavula/spark-ide-ai/config"
	"github.com/spayyavula/spark-ide-ai/events"
	"github.com/spayyavula/spark-ide-ai/realtime"
)

// ErrMaxSessions is returned when the relay is at capacity.
var ErrMaxSessions = errors.New("maximum sessions reached")

const registryTimeout = 2 * time.Second

// Manager manages all client sessions
type Manager struct {
	sessions      map[string]*ClientSession
	mu            sync.RWMutex
	registry      Registry
	config        *config.Config
	sessionConfig *events.SessionConfig
	dispatcher    Dispatcher
	logger        *slog.Logger
}

// NewManager creates a session manager. A nil registry disables mirroring.
func NewManager(cfg *config.Config, registry Registry, dispatcher Dispatcher, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NopRegistry{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:      make(map[string]*ClientSession),
		registry:      registry,
		config:        cfg,
		sessionConfig: BuildSessionConfig(cfg),
		dispatcher:    dispatcher,
		logger:        logger.With(slog.String("component", "relay")),
	}
}

// CreateSession creates a new client session. The caller starts it.
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	sm.mu.Lock()
	if len(sm.sessions) >= sm.config.MaxSessions {
		sm.mu.Unlock()
		return nil, ErrMaxSessions
	}

	sessionID := uuid.New().String()

	session := NewClientSession(sessionID, clientConn, Options{
		Upstream: realtime.Options{
			URL:    sm.config.RealtimeURL,
			Model:  sm.config.RealtimeModel,
			APIKey: sm.config.OpenAIAPIKey,
		},
		SessionConfig:    sm.sessionConfig,
		Dispatcher:       sm.dispatcher,
		EarlyFramePolicy: sm.config.EarlyFramePolicy,
		MaxBufferSize:    sm.config.MaxBufferSize,
		KeepAlivePeriod:  sm.config.KeepAlivePeriod,
		HandshakeTimeout: sm.config.HandshakeTimeout,
		Logger:           sm.logger,
		OnStateChange:    sm.onStateChange,
	})

	sm.sessions[sessionID] = session
	active := len(sm.sessions)
	sm.mu.Unlock()

	regCtx, cancel := context.WithTimeout(ctx, registryTimeout)
	defer cancel()
	if err := sm.registry.Register(regCtx, sessionID, session.CreatedAt); err != nil {
		sm.logger.Warn("⚠️ failed to register session", slog.String("session_id", sessionID), slog.Any("err", err))
	}

	sm.logger.Info("🆕 session created", slog.String("session_id", sessionID), slog.Int("active", active))
	return session, nil
}

func (sm *Manager) onStateChange(id string, state State) {
	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()

	if state != StateClosed {
		if err := sm.registry.SetState(ctx, id, state); err != nil {
			sm.logger.Debug("registry update failed", slog.String("session_id", id), slog.Any("err", err))
		}
		return
	}

	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if err := sm.registry.Remove(ctx, id); err != nil {
		sm.logger.Debug("registry remove failed", slog.String("session_id", id), slog.Any("err", err))
	}
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession closes a session. Its registry entry goes with it.
func (sm *Manager) RemoveSession(sessionID string) {
	session, exists := sm.GetSession(sessionID)
	if !exists {
		return
	}
	session.Close()
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions removes sessions that have been inactive
func (sm *Manager) CleanupInactiveSessions() {
	now := time.Now()

	sm.mu.RLock()
	var stale []*ClientSession
	for _, session := range sm.sessions {
		if now.Sub(session.LastActivity()) > sm.config.SessionTimeout {
			stale = append(stale, session)
		}
	}
	sm.mu.RUnlock()

	for _, session := range stale {
		sm.logger.Info("🧹 closing inactive session", slog.String("session_id", session.ID))
		session.Close()
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions()
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.RLock()
	sessions := make([]*ClientSession, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}
	sm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(cs *ClientSession) {
			defer wg.Done()
			cs.Close()
		}(session)
	}
	wg.Wait()

	if err := sm.registry.Close(); err != nil {
		sm.logger.Warn("⚠️ registry close failed", slog.Any("err", err))
	}
}
