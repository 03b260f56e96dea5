package audio

import (
	"io"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Buffer is a bounded PCM byte queue. Writers block while it is full and
// readers block while it is empty.
type Buffer struct {
	b      *ringbuffer.RingBuffer
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

func NewBuffer(size int) *Buffer {
	b := &Buffer{
		b: ringbuffer.New(size),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Write queues all of p, waiting for free space as needed.
func (buf *Buffer) Write(p []byte) (int, error) {
	buf.mu.Lock()
	defer buf.mu.Unlock()

	written := 0
	for written < len(p) {
		if buf.closed {
			return written, io.ErrClosedPipe
		}
		free := buf.b.Free()
		if free == 0 {
			buf.cond.Wait()
			continue
		}
		chunk := p[written:]
		if len(chunk) > free {
			chunk = chunk[:free]
		}
		n, _ := buf.b.Write(chunk)
		written += n
		if n > 0 {
			buf.cond.Broadcast()
		}
	}
	return written, nil
}

// Read returns whatever is buffered, up to len(p). It returns io.EOF once the
// buffer is closed and drained.
func (buf *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	for buf.b.IsEmpty() && !buf.closed {
		buf.cond.Wait()
	}

	if buf.b.IsEmpty() {
		return 0, io.EOF
	}

	n, _ := buf.b.Read(p)
	if n > 0 {
		buf.cond.Broadcast()
	}
	return n, nil
}

// Len returns the number of buffered bytes.
func (buf *Buffer) Len() int {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return buf.b.Length()
}

// Reset discards buffered audio and returns how many bytes were dropped.
func (buf *Buffer) Reset() int {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	n := buf.b.Length()
	buf.b.Reset()
	buf.cond.Broadcast()
	return n
}

func (buf *Buffer) Close() error {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.closed = true
	buf.cond.Broadcast()
	return nil
}
