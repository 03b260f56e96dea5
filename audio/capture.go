package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spayyavula/spark-ide-ai/events"
)

// Audio format expected by the realtime API for pcm16.
const (
	SampleRate     = 24000
	BytesPerSample = 2
	// DefaultFrameSize is 4096 samples of mono PCM16.
	DefaultFrameSize = 4096 * BytesPerSample
)

// ErrCaptureConsumed is returned when Run is called a second time.
var ErrCaptureConsumed = errors.New("capture already consumed")

// Gate reports whether captured audio should be sent.
type Gate interface {
	Listening() bool
}

// Switch is a Gate flipped by a single writer.
type Switch struct {
	on atomic.Bool
}

func (s *Switch) Set(on bool)     { s.on.Store(on) }
func (s *Switch) Listening() bool { return s.on.Load() }

// Capture turns a PCM16 source into input_audio_buffer.append frames.
//
// The source is read continuously in fixed-size frames. Frames read while
// the gate is closed are discarded, so pausing never closes the device.
type Capture struct {
	src       io.Reader
	frameSize int
	gate      Gate
	consumed  atomic.Bool
}

func NewCapture(src io.Reader, frameSize int, gate Gate) *Capture {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &Capture{src: src, frameSize: frameSize, gate: gate}
}

// FrameSize returns the frame size in bytes.
func (c *Capture) FrameSize() int {
	return c.frameSize
}

// Run reads frames until the source ends or ctx is done and hands every
// frame captured while listening to send, already encoded as a client
// frame. A trailing partial frame is discarded. Run can only be called once.
func (c *Capture) Run(ctx context.Context, send func(frame []byte) error) error {
	if !c.consumed.CompareAndSwap(false, true) {
		return ErrCaptureConsumed
	}

	pcm := make([]byte, c.frameSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := io.ReadFull(c.src, pcm); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read audio source: %w", err)
		}

		if !c.gate.Listening() {
			continue
		}

		frame, err := EncodeFrame(pcm)
		if err != nil {
			return err
		}
		if err := send(frame); err != nil {
			return fmt.Errorf("send audio frame: %w", err)
		}
	}
}

// EncodeFrame wraps raw PCM16 in an input_audio_buffer.append event.
func EncodeFrame(pcm []byte) ([]byte, error) {
	evt := events.NewInputAudioBufferAppend(base64.StdEncoding.EncodeToString(pcm))
	data, err := events.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode audio frame: %w", err)
	}
	return data, nil
}
