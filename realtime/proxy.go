package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spayyavula/spark-ide-ai/events"
)

// ErrProxyClosed is returned when writing to a closed or unconnected proxy.
var ErrProxyClosed = errors.New("proxy is closed or not connected")

const (
	betaHeader   = "OpenAI-Beta"
	betaRealtime = "realtime=v1"
	writeTimeout = 10 * time.Second
)

// Options configure the upstream connection.
type Options struct {
	URL            string // e.g. wss://api.openai.com/v1/realtime
	Model          string
	APIKey         string
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Proxy manages one connection to the realtime API
type Proxy struct {
	opts   Options
	conn   *websocket.Conn
	logger *slog.Logger

	// Callbacks for handling upstream traffic
	OnMessage func(messageType int, data []byte)
	OnClose   func(err error) // Upstream went away while the proxy was open

	writeMu sync.Mutex
	mu      sync.RWMutex
	closed  bool
}

// NewProxy creates an unconnected proxy.
func NewProxy(opts Options) *Proxy {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Proxy{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "upstream")),
	}
}

// Endpoint returns the dial URL with the model query parameter.
func (p *Proxy) Endpoint() (string, error) {
	u, err := url.Parse(p.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime URL: %w", err)
	}
	if p.opts.Model != "" {
		q := u.Query()
		q.Set("model", p.opts.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Setup opens the upstream socket and sends session.update as the very
// first frame.
func (p *Proxy) Setup(ctx context.Context, session *events.SessionConfig) error {
	endpoint, err := p.Endpoint()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.opts.APIKey)
	header.Set(betaHeader, betaRealtime)

	dialCtx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to realtime API (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect to realtime API: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return ErrProxyClosed
	}
	p.conn = conn
	p.mu.Unlock()

	p.logger.Info("✅ connected to realtime API", slog.String("model", p.opts.Model))

	if err := p.SendJSON(events.NewSessionUpdate(session)); err != nil {
		return fmt.Errorf("failed to send session.update: %w", err)
	}
	p.logger.Debug("📤 sent session.update")
	return nil
}

// StartReceiving begins pumping upstream frames into OnMessage.
func (p *Proxy) StartReceiving(ctx context.Context) {
	go func() {
		for {
			p.mu.RLock()
			if p.closed || p.conn == nil {
				p.mu.RUnlock()
				return
			}
			conn := p.conn
			p.mu.RUnlock()

			mt, data, err := conn.ReadMessage()
			if err != nil {
				if !p.IsClosed() && ctx.Err() == nil {
					p.logger.Warn("🔌 upstream receive ended", slog.Any("err", err))
					if p.OnClose != nil {
						p.OnClose(err)
					}
				}
				return
			}

			if p.OnMessage != nil {
				p.OnMessage(mt, data)
			}
		}
	}()
}

// Send forwards a frame verbatim.
func (p *Proxy) Send(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.write(messageType, data)
}

// SendJSON encodes and sends one event.
func (p *Proxy) SendJSON(v any) error {
	data, err := events.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.Send(websocket.TextMessage, data)
}

// SendFunctionOutput delivers a tool result and then asks the model to
// continue. Both frames are written under one lock so nothing can slip
// between them.
func (p *Proxy) SendFunctionOutput(callID string, result any) error {
	item, err := events.NewFunctionCallOutput(callID, result)
	if err != nil {
		return fmt.Errorf("encode function output: %w", err)
	}
	itemData, err := events.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode function output: %w", err)
	}
	createData, err := events.Marshal(events.NewResponseCreate())
	if err != nil {
		return fmt.Errorf("encode response.create: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.write(websocket.TextMessage, itemData); err != nil {
		return fmt.Errorf("failed to send function output: %w", err)
	}
	if err := p.write(websocket.TextMessage, createData); err != nil {
		return fmt.Errorf("failed to send response.create: %w", err)
	}

	p.logger.Debug("📤 sent function output", slog.String("call_id", callID))
	return nil
}

// write must be called with writeMu held.
func (p *Proxy) write(messageType int, data []byte) error {
	p.mu.RLock()
	conn := p.conn
	closed := p.closed
	p.mu.RUnlock()

	if closed || conn == nil {
		return ErrProxyClosed
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(messageType, data)
}

// IsClosed reports whether Close has been called.
func (p *Proxy) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close terminates the upstream connection
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return nil
	}

	p.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	p.writeMu.Unlock()

	return conn.Close()
}
