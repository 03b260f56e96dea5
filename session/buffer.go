package session

import (
	"errors"
	"sync"
)

// ErrBufferFull is returned when the buffer exceeds its maximum size
var ErrBufferFull = errors.New("early frame buffer full")

// Frame is one client WebSocket message kept with its message type.
type Frame struct {
	MessageType int
	Data        []byte
}

// FrameBuffer holds client frames that arrive before the upstream session is
// ready, in arrival order.
type FrameBuffer struct {
	frames    []Frame
	totalSize int
	maxSize   int
	mu        sync.Mutex
}

// NewFrameBuffer creates a buffer with the specified maximum size in bytes
func NewFrameBuffer(maxSize int) *FrameBuffer {
	return &FrameBuffer{
		frames:  make([]Frame, 0),
		maxSize: maxSize,
	}
}

// MaxSize returns the maximum buffer size
func (fb *FrameBuffer) MaxSize() int {
	return fb.maxSize
}

// Append adds a frame to the buffer
// Returns ErrBufferFull if adding the frame would exceed maxSize
func (fb *FrameBuffer) Append(f Frame) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	newSize := fb.totalSize + len(f.Data)
	if newSize > fb.maxSize {
		return ErrBufferFull
	}

	fb.frames = append(fb.frames, f)
	fb.totalSize = newSize
	return nil
}

// Drain returns every buffered frame in order and empties the buffer
func (fb *FrameBuffer) Drain() []Frame {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if len(fb.frames) == 0 {
		return nil
	}

	frames := fb.frames
	fb.frames = make([]Frame, 0)
	fb.totalSize = 0
	return frames
}

// Clear empties the buffer without returning data
func (fb *FrameBuffer) Clear() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.frames = make([]Frame, 0)
	fb.totalSize = 0
}

// Size returns the current total buffered bytes
func (fb *FrameBuffer) Size() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.totalSize
}

// Len returns the number of buffered frames
func (fb *FrameBuffer) Len() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.frames)
}
