package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spayyavula/spark-ide-ai/audio"
	"github.com/spayyavula/spark-ide-ai/events"
)

const (
	defaultDialTimeout = 10 * time.Second
	writeWait          = 10 * time.Second
)

// Options configure a Client.
type Options struct {
	URL    string
	Header http.Header

	// Sink receives decoded PCM16 speech. When nil audio deltas are ignored.
	Sink           io.Writer
	PlaybackBuffer int

	Observer    Observer
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Client is a voice client of the relay. It owns the socket, the playback
// pipeline and the Controller state.
type Client struct {
	conn       *websocket.Conn
	controller *Controller
	player     *audio.Player
	logger     *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the relay and starts reading events. Listening starts
// once the upstream session is created.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	c := &Client{
		controller: NewController(opts.Observer),
		logger:     opts.Logger.With(slog.String("component", "client")),
		done:       make(chan struct{}),
	}
	if opts.Sink != nil {
		c.player = audio.NewPlayer(opts.Sink, audio.PlayerOptions{
			BufferSize:       opts.PlaybackBuffer,
			OnSpeakingChange: c.controller.SetSpeaking,
		})
	}

	c.controller.SetConnection(Connecting)
	c.logger.Info("🔌 connecting to relay", slog.String("url", opts.URL))

	dialer := websocket.Dialer{
		HandshakeTimeout:  opts.DialTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.controller.SetConnection(Disconnected)
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	c.conn = conn

	if c.player != nil {
		c.player.Start()
	}
	go c.readLoop()

	return c, nil
}

// Controller returns the state driven by this client.
func (c *Client) Controller() *Controller {
	return c.controller
}

// Done is closed once the relay connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer func() {
		c.controller.SetListening(false)
		c.controller.SetConnection(Disconnected)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("👋 relay closed the connection")
			} else if !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("read ended", slog.String("error", err.Error()))
			}
			return
		}

		evt, err := events.Parse(data)
		if err != nil {
			c.logger.Warn("⚠️ undecodable event", slog.String("error", err.Error()))
			continue
		}
		c.handle(evt)
	}
}

func (c *Client) handle(evt events.Event) {
	switch e := evt.(type) {
	case *events.SessionCreated:
		c.logger.Info("✅ session ready", slog.String("session_id", e.Session.ID))
		c.controller.SetConnection(Connected)
		c.controller.SetListening(true)

	case *events.ResponseAudioDelta:
		if c.player == nil {
			return
		}
		if err := c.player.Enqueue(e.Delta); err != nil {
			c.logger.Warn("⚠️ dropped audio delta", slog.String("error", err.Error()))
		}

	case *events.ResponseAudioDone:
		if c.player != nil {
			c.player.ResponseDone()
		}

	case *events.Error:
		c.logger.Error("❌ relay error",
			slog.String("code", e.Error.Code),
			slog.String("message", e.Error.Message))
		c.controller.ReportError(RelayError{Code: e.Error.Code, Message: e.Error.Message})

	case *events.Unknown:
		if e.Type == events.TypeSpeechStarted && c.player != nil {
			c.player.Interrupt()
		}

	default:
		c.controller.HandleEvent(evt)
	}
}

// Send encodes v as one text frame.
func (c *Client) Send(v any) error {
	data, err := events.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes an already encoded frame.
func (c *Client) SendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// StreamAudio captures PCM16 from src and sends it while listening. It
// returns when src is exhausted, ctx is done or a send fails.
func (c *Client) StreamAudio(ctx context.Context, src io.Reader) error {
	capture := audio.NewCapture(src, audio.DefaultFrameSize, c.controller)
	return capture.Run(ctx, c.SendRaw)
}

// ToggleListening pauses or resumes sending captured audio.
func (c *Client) ToggleListening() bool {
	on := c.controller.ToggleListening()
	c.logger.Info("🎙️ listening toggled", slog.Bool("listening", on))
	return on
}

// Close ends the session and waits for queued playback to finish.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(writeWait):
		}
		err = c.conn.Close()
		<-c.done

		if c.player != nil {
			if perr := c.player.Close(); perr != nil && err == nil {
				err = perr
			}
		}
	})
	return err
}
