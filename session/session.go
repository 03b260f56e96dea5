package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spayyavula/spark-ide-ai/config"
	"github.com/spayyavula/spark-ide-ai/events"
	"github.com/spayyavula/spark-ide-ai/functions"
	"github.com/spayyavula/spark-ide-ai/realtime"
)

// State is the lifecycle state of a relay session.
type State string

const (
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	maxMessageSize  = 512 * 1024
)

// Dispatcher runs tool calls requested by the model.
type Dispatcher interface {
	Dispatch(ctx context.Context, call functions.FunctionCall) functions.Result
}

// Options configure one relay session.
type Options struct {
	Upstream         realtime.Options
	SessionConfig    *events.SessionConfig
	Dispatcher       Dispatcher
	EarlyFramePolicy string
	MaxBufferSize    int
	KeepAlivePeriod  time.Duration
	HandshakeTimeout time.Duration
	Logger           *slog.Logger

	// OnStateChange is called after every lifecycle transition.
	OnStateChange func(id string, state State)
}

type outbound struct {
	messageType int
	data        []byte
}

// ClientSession bridges one client connection and its upstream realtime
// connection.
type ClientSession struct {
	ID          string
	ClientConn  *websocket.Conn
	Upstream    *realtime.Proxy
	EarlyFrames *FrameBuffer // Client frames received before the session is ready
	CreatedAt   time.Time

	opts         Options
	logger       *slog.Logger
	lastActivity time.Time
	state        State
	handshake    *time.Timer
	dropped      atomic.Int64

	// Single writer goroutine for the client leg
	writeChan chan outbound
	final     []byte // Terminal frame written before the close frame
	pumpDone  chan struct{}

	// gate orders client frames against the early frame flush
	gate sync.Mutex
	// transitions serializes state changes with their notifications
	transitions sync.Mutex
	mu          sync.RWMutex
	closeOnce   sync.Once
	CloseChan   chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewClientSession prepares a session for an upgraded client connection.
// Nothing is dialed until Start.
func NewClientSession(id string, clientConn *websocket.Conn, opts Options) *ClientSession {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With(slog.String("session_id", id))
	opts.Upstream.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())

	clientConn.SetReadLimit(maxMessageSize)
	clientConn.EnableWriteCompression(true)
	_ = clientConn.SetCompressionLevel(6)

	now := time.Now()
	return &ClientSession{
		ID:           id,
		ClientConn:   clientConn,
		Upstream:     realtime.NewProxy(opts.Upstream),
		EarlyFrames:  NewFrameBuffer(opts.MaxBufferSize),
		CreatedAt:    now,
		opts:         opts,
		logger:       logger,
		lastActivity: now,
		state:        StateConnecting,
		writeChan:    make(chan outbound, writeBufferSize),
		pumpDone:     make(chan struct{}),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the bidirectional message handling. The client leg is read
// while the upstream connection is still being established.
func (cs *ClientSession) Start() {
	go cs.writePump()
	go cs.handleClientMessages()
	go cs.connectUpstream()
}

func (cs *ClientSession) connectUpstream() {
	cs.Upstream.OnMessage = cs.handleUpstreamMessage
	cs.Upstream.OnClose = func(err error) {
		cs.logger.Warn("🔌 upstream closed", slog.Any("err", err))
		cs.fail(events.ErrCodeUpstreamClosed, "Upstream connection closed")
	}

	if err := cs.Upstream.Setup(cs.ctx, cs.opts.SessionConfig); err != nil {
		if cs.IsClosed() {
			return
		}
		cs.logger.Error("❌ upstream connect failed", slog.Any("err", err))
		cs.fail(events.ErrCodeUpstreamConnectFailed, err.Error())
		return
	}

	if cs.opts.HandshakeTimeout > 0 {
		cs.mu.Lock()
		cs.handshake = time.AfterFunc(cs.opts.HandshakeTimeout, cs.handshakeExpired)
		cs.mu.Unlock()
	}

	cs.Upstream.StartReceiving(cs.ctx)
}

func (cs *ClientSession) handshakeExpired() {
	cs.gate.Lock()
	defer cs.gate.Unlock()

	if cs.State() != StateConnecting {
		return
	}
	cs.logger.Error("⏱️ session.created not received in time", slog.Duration("timeout", cs.opts.HandshakeTimeout))
	cs.fail(events.ErrCodeHandshakeTimeout, fmt.Sprintf("Upstream session not ready after %s", cs.opts.HandshakeTimeout))
}

// handleUpstreamMessage forwards every upstream frame to the client unchanged
// and then acts on the few event kinds the relay interprets.
func (cs *ClientSession) handleUpstreamMessage(messageType int, data []byte) {
	cs.touch()
	cs.queueMessage(messageType, data)

	if messageType != websocket.TextMessage {
		return
	}

	evt, err := events.Parse(data)
	if err != nil {
		cs.logger.Debug("⚠️ unparsed upstream frame", slog.Any("err", err))
		return
	}

	switch e := evt.(type) {
	case *events.SessionCreated:
		cs.logger.Info("✅ upstream session created", slog.String("upstream_session", e.Session.ID))
		cs.activate()
	case *events.FunctionCallArgumentsDone:
		cs.handleFunctionCall(e)
	case *events.Error:
		cs.logger.Warn("⚠️ upstream error event", slog.String("code", e.Error.Code), slog.String("message", e.Error.Message))
	}
}

// activate flushes early client frames upstream and opens the gate.
func (cs *ClientSession) activate() {
	cs.gate.Lock()
	defer cs.gate.Unlock()

	if cs.State() != StateConnecting {
		return
	}

	cs.mu.Lock()
	if cs.handshake != nil {
		cs.handshake.Stop()
	}
	cs.mu.Unlock()

	frames := cs.EarlyFrames.Drain()
	for _, f := range frames {
		if err := cs.Upstream.Send(f.MessageType, f.Data); err != nil {
			cs.logger.Error("❌ failed to flush early frame", slog.Any("err", err))
			cs.fail(events.ErrCodeUpstreamClosed, "Upstream connection closed")
			return
		}
	}
	if len(frames) > 0 {
		cs.logger.Debug("📤 flushed early client frames", slog.Int("frames", len(frames)))
	}

	cs.transition(StateConnecting, StateActive)
}

func (cs *ClientSession) handleFunctionCall(e *events.FunctionCallArgumentsDone) {
	res := cs.opts.Dispatcher.Dispatch(cs.ctx, functions.FunctionCall{
		Name:      e.Name,
		CallID:    e.CallID,
		Arguments: e.Arguments,
	})

	if err := cs.Upstream.SendFunctionOutput(e.CallID, res); err != nil {
		cs.logger.Error("❌ failed to send function output", slog.String("call_id", e.CallID), slog.Any("err", err))
		return
	}

	action := events.NewSystemAction(e.CallID, e.Name, res.Success, res.Message, res.Action, res.Data, time.Now())
	data, err := events.Marshal(action)
	if err != nil {
		cs.logger.Error("❌ failed to encode system action", slog.Any("err", err))
		return
	}
	cs.queueMessage(websocket.TextMessage, data)
}

// writePump handles all outgoing client messages in a single goroutine
func (cs *ClientSession) writePump() {
	var ping <-chan time.Time
	if cs.opts.KeepAlivePeriod > 0 {
		ticker := time.NewTicker(cs.opts.KeepAlivePeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer close(cs.pumpDone)

	for {
		select {
		case <-cs.CloseChan:
			cs.flushAndClose()
			return
		case msg := <-cs.writeChan:
			if err := cs.write(msg.messageType, msg.data); err != nil {
				cs.logger.Debug("client write failed", slog.Any("err", err))
				go cs.Close()
				return
			}
		case <-ping:
			if err := cs.ClientConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cs.logger.Debug("client ping failed", slog.Any("err", err))
				go cs.Close()
				return
			}
		}
	}
}

// flushAndClose writes whatever is still queued, the terminal frame if any,
// and a close frame.
func (cs *ClientSession) flushAndClose() {
	for drained := false; !drained; {
		select {
		case msg := <-cs.writeChan:
			if err := cs.write(msg.messageType, msg.data); err != nil {
				return
			}
		default:
			drained = true
		}
	}

	if cs.final != nil {
		if err := cs.write(websocket.TextMessage, cs.final); err != nil {
			return
		}
	}

	_ = cs.ClientConn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

func (cs *ClientSession) write(messageType int, data []byte) error {
	_ = cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cs.ClientConn.WriteMessage(messageType, data)
}

// queueMessage adds a frame to the write queue. It blocks while the queue is
// full and gives up once the session closes.
func (cs *ClientSession) queueMessage(messageType int, data []byte) bool {
	select {
	case <-cs.CloseChan:
		return false
	default:
	}

	select {
	case cs.writeChan <- outbound{messageType: messageType, data: data}:
		return true
	case <-cs.CloseChan:
		return false
	}
}

func (cs *ClientSession) queueError(code, message string) {
	data, err := events.Marshal(events.NewRelayError(code, message))
	if err != nil {
		cs.logger.Error("❌ failed to encode relay error", slog.Any("err", err))
		return
	}
	cs.queueMessage(websocket.TextMessage, data)
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	cs.extendReadDeadline()
	cs.ClientConn.SetPongHandler(func(string) error {
		cs.extendReadDeadline()
		return nil
	})

	for {
		select {
		case <-cs.CloseChan:
			return
		default:
			messageType, message, err := cs.ClientConn.ReadMessage()
			if err != nil {
				if !cs.IsClosed() {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						cs.logger.Warn("❌ client read error", slog.Any("err", err))
					} else {
						cs.logger.Info("👋 client disconnected")
					}
				}
				return
			}

			cs.touch()
			cs.extendReadDeadline()
			cs.forwardClientFrame(messageType, message)
		}
	}
}

// forwardClientFrame sends one client frame upstream verbatim, or holds it
// back while the upstream session is not ready yet.
func (cs *ClientSession) forwardClientFrame(messageType int, data []byte) {
	cs.gate.Lock()
	defer cs.gate.Unlock()

	switch cs.State() {
	case StateActive:
		if err := cs.Upstream.Send(messageType, data); err != nil && !errors.Is(err, realtime.ErrProxyClosed) {
			cs.logger.Error("❌ failed to forward client frame", slog.Any("err", err))
		}

	case StateConnecting:
		if cs.opts.EarlyFramePolicy == config.EarlyFramesDrop {
			cs.dropped.Add(1)
			cs.logger.Debug("🗑️ dropped early client frame", slog.Int("bytes", len(data)))
			return
		}
		if err := cs.EarlyFrames.Append(Frame{MessageType: messageType, Data: data}); err != nil {
			cs.dropped.Add(1)
			cs.logger.Warn("⚠️ early frame buffer full", slog.Int("max_bytes", cs.EarlyFrames.MaxSize()))
			cs.queueError(events.ErrCodeBufferFull,
				fmt.Sprintf("Early frame buffer full (max %d bytes)", cs.EarlyFrames.MaxSize()))
		}

	default:
		// Closing
	}
}

func (cs *ClientSession) extendReadDeadline() {
	if cs.opts.KeepAlivePeriod <= 0 {
		return
	}
	_ = cs.ClientConn.SetReadDeadline(time.Now().Add(2 * cs.opts.KeepAlivePeriod))
}

// fail ends the session with a relay error event sent to the client first.
func (cs *ClientSession) fail(code, message string) {
	data, err := events.Marshal(events.NewRelayError(code, message))
	if err != nil {
		data = nil
	}
	cs.shutdown(data)
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.shutdown(nil)
	return nil
}

func (cs *ClientSession) shutdown(final []byte) {
	cs.closeOnce.Do(func() {
		cs.setState(StateClosing)

		cs.mu.Lock()
		if cs.handshake != nil {
			cs.handshake.Stop()
		}
		cs.mu.Unlock()

		cs.cancel()

		if err := cs.Upstream.Close(); err != nil {
			cs.logger.Debug("upstream close", slog.Any("err", err))
		}

		cs.final = final
		close(cs.CloseChan)

		select {
		case <-cs.pumpDone:
		case <-time.After(writeTimeout):
		}

		cs.EarlyFrames.Clear()
		_ = cs.ClientConn.Close()

		cs.setState(StateClosed)
		cs.logger.Info("🔌 session closed", slog.Duration("duration", time.Since(cs.CreatedAt)))
	})
}

func (cs *ClientSession) setState(state State) {
	cs.transitions.Lock()
	defer cs.transitions.Unlock()

	cs.mu.Lock()
	cs.state = state
	cs.mu.Unlock()
	cs.notifyState(state)
}

// transition moves the session from one state to another only if it is
// still in the first one. A session closed concurrently stays closed.
func (cs *ClientSession) transition(from, to State) bool {
	cs.transitions.Lock()
	defer cs.transitions.Unlock()

	cs.mu.Lock()
	if cs.state != from {
		cs.mu.Unlock()
		return false
	}
	cs.state = to
	cs.mu.Unlock()
	cs.notifyState(to)
	return true
}

func (cs *ClientSession) notifyState(state State) {
	if cs.opts.OnStateChange != nil {
		cs.opts.OnStateChange(cs.ID, state)
	}
}

// State returns the current lifecycle state
func (cs *ClientSession) State() State {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.state
}

// IsClosed returns whether the session is closing or closed
func (cs *ClientSession) IsClosed() bool {
	switch cs.State() {
	case StateClosing, StateClosed:
		return true
	}
	return false
}

// LastActivity returns when a frame last crossed either leg
func (cs *ClientSession) LastActivity() time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.lastActivity
}

// DroppedFrames counts early client frames that were discarded.
func (cs *ClientSession) DroppedFrames() int64 {
	return cs.dropped.Load()
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.lastActivity = time.Now()
	cs.mu.Unlock()
}
