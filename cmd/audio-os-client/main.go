// Command audio-os-client streams a PCM16 file through the relay and plays
// the spoken replies through sox.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/spayyavula/spark-ide-ai/audio"
	"github.com/spayyavula/spark-ide-ai/client"
	"github.com/spayyavula/spark-ide-ai/events"
	"github.com/spayyavula/spark-ide-ai/logging"
)

// soxSink pipes raw PCM16 into a sox playback process.
type soxSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newSoxSink() (*soxSink, error) {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", fmt.Sprint(audio.SampleRate),
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sox stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sox: %w", err)
	}
	return &soxSink{cmd: cmd, stdin: stdin}, nil
}

func (s *soxSink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *soxSink) Close() error {
	_ = s.stdin.Close()
	return s.cmd.Wait()
}

// logObserver prints what the assistant did.
type logObserver struct {
	logger *slog.Logger
}

func (o logObserver) OnSystemAction(a events.SystemAction) {
	o.logger.Info("⚙️ system action",
		slog.String("name", a.Name),
		slog.String("action", a.Action),
		slog.Bool("success", a.Success),
		slog.String("message", a.Message))
}

func (o logObserver) OnTranscript(text string) {
	fmt.Printf("📝 %s\n", text)
}

func (o logObserver) OnSpeakingChange(speaking bool) {
	o.logger.Debug("🔊 speaking", slog.Bool("speaking", speaking))
}

func (o logObserver) OnConnectionChange(state client.ConnectionState) {
	o.logger.Info("📊 connection", slog.String("state", string(state)))
}

func (o logObserver) OnError(err client.RelayError) {
	fmt.Printf("⚠️ relay error %s: %s\n", err.Code, err.Message)
}

type options struct {
	serverURL string
	audioFile string
	wait      time.Duration
	mute      bool
	keys      bool
	logLevel  string
}

func main() {
	var opts options

	flagSet := pflag.NewFlagSet("audio-os-client", pflag.ContinueOnError)
	flagSet.StringVar(&opts.serverURL, "server", "ws://localhost:8080/realtime-audio-os", "relay WebSocket URL")
	flagSet.StringVarP(&opts.audioFile, "file", "f", "user.pcm", "24kHz mono PCM16 file to send (raw or WAV)")
	flagSet.DurationVar(&opts.wait, "wait", 30*time.Second, "how long to wait for replies after sending")
	flagSet.BoolVar(&opts.mute, "mute", false, "do not play replies")
	flagSet.BoolVar(&opts.keys, "keys", false, "read keys from the terminal: space toggles listening, q quits")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	lvl, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(logging.Options{Level: lvl})

	if err := run(logger, opts); err != nil {
		logger.Error("❌ client failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, opts options) error {
	pcm, err := loadAudioFile(logger, opts.audioFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientOpts := client.Options{
		URL:      opts.serverURL,
		Observer: logObserver{logger: logger},
		Logger:   logger,
	}
	if !opts.mute {
		sink, err := newSoxSink()
		if err != nil {
			return fmt.Errorf("%w (is sox installed?)", err)
		}
		defer sink.Close()
		clientOpts.Sink = sink
	}

	c, err := client.Dial(ctx, clientOpts)
	if err != nil {
		return err
	}
	defer c.Close()

	// Frames captured before the session is ready would be discarded.
	for !c.Controller().Listening() {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return fmt.Errorf("relay closed before the session was ready")
		case <-time.After(50 * time.Millisecond):
		}
	}

	if opts.keys {
		restore, err := watchKeys(ctx, c, stop)
		if err != nil {
			return err
		}
		defer restore()
	}

	logger.Info("📤 sending audio", slog.String("file", opts.audioFile), slog.Int("bytes", len(pcm)))
	if err := c.StreamAudio(ctx, &pacedReader{r: bytes.NewReader(pcm)}); err != nil {
		return err
	}
	logger.Info("✅ audio sent, waiting for replies")

	select {
	case <-ctx.Done():
		logger.Info("👋 interrupted, closing")
	case <-c.Done():
		logger.Info("connection closed")
	case <-time.After(opts.wait):
	}

	s := c.Controller().Snapshot()
	logger.Info("final state",
		slog.Int("volume", s.Volume),
		slog.Int("brightness", s.Brightness),
		slog.Bool("dark_mode", s.DarkMode),
		slog.Int("actions", len(s.History)))
	return nil
}

// watchKeys puts the terminal in raw mode and maps space to
// ToggleListening and q or Ctrl-C to stop.
func watchKeys(ctx context.Context, c *client.Client, stop context.CancelFunc) (func(), error) {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return nil, errors.New("--keys needs an interactive terminal")
	}
	oldState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return nil, fmt.Errorf("set terminal raw mode: %w", err)
	}

	go func() {
		key := make([]byte, 1)
		for ctx.Err() == nil {
			if _, err := os.Stdin.Read(key); err != nil {
				return
			}
			switch key[0] {
			case ' ':
				c.ToggleListening()
			case 'q', 3:
				stop()
				return
			}
		}
	}()

	return func() { _ = term.Restore(stdinFd, oldState) }, nil
}

// pacedReader releases one capture frame per frame duration so a file
// streams like a live microphone.
type pacedReader struct {
	r    io.Reader
	last time.Time
}

func (p *pacedReader) Read(b []byte) (int, error) {
	frame := time.Duration(len(b)/audio.BytesPerSample) * time.Second / audio.SampleRate
	if !p.last.IsZero() {
		time.Sleep(time.Until(p.last.Add(frame)))
	}
	p.last = time.Now()
	return p.r.Read(b)
}

// loadAudioFile loads PCM or WAV file and returns raw PCM bytes
func loadAudioFile(logger *slog.Logger, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Check if it's a WAV file (starts with "RIFF")
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		logger.Info("📁 detected WAV file, skipping header")
		return data[44:], nil
	}

	logger.Info("📁 detected raw PCM file")
	return data, nil
}
