package audio

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

const defaultChunkSize = 4800 // 100ms of mono PCM16 at 24kHz

// PlayerOptions configure a Player.
type PlayerOptions struct {
	BufferSize int // bytes of decoded PCM held ahead of the sink
	ChunkSize  int // bytes handed to the sink per write

	// OnSpeakingChange is called when playback of a response starts and once
	// it has fully drained after the response is done. It must not call back
	// into the Player.
	OnSpeakingChange func(speaking bool)
}

// Player plays base64 PCM16 chunks through a sink in arrival order.
type Player struct {
	buf       *Buffer
	sink      io.Writer
	chunkSize int
	onChange  func(bool)

	mu        sync.Mutex
	pending   int // decoded bytes not yet written to the sink
	speaking  bool
	finishing bool
	started   bool
	sinkErr   error

	startOnce sync.Once
	done      chan struct{}
}

func NewPlayer(sink io.Writer, opts PlayerOptions) *Player {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10 * SampleRate * BytesPerSample
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	return &Player{
		buf:       NewBuffer(opts.BufferSize),
		sink:      sink,
		chunkSize: opts.ChunkSize,
		onChange:  opts.OnSpeakingChange,
		done:      make(chan struct{}),
	}
}

// Start runs the sink pump. It is safe to call more than once.
func (p *Player) Start() {
	p.startOnce.Do(func() {
		p.mu.Lock()
		p.started = true
		p.mu.Unlock()
		go p.pump()
	})
}

// Enqueue decodes one response.audio.delta payload and queues it. It blocks
// while the playback buffer is full.
func (p *Player) Enqueue(delta string) error {
	pcm, err := base64.StdEncoding.DecodeString(delta)
	if err != nil {
		return fmt.Errorf("decode audio delta: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	p.pending += len(pcm)
	if !p.speaking {
		p.speaking = true
		p.notify(true)
	}
	p.mu.Unlock()

	if n, err := p.buf.Write(pcm); err != nil {
		p.played(len(pcm) - n)
		return err
	}
	return nil
}

// ResponseDone marks the current response as complete. Speaking is cleared
// once everything queued so far has reached the sink.
func (p *Player) ResponseDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.speaking {
		return
	}
	if p.pending == 0 {
		p.stopSpeaking()
		return
	}
	p.finishing = true
}

// Interrupt drops queued audio and clears speaking immediately.
func (p *Player) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending -= p.buf.Reset()
	if p.pending < 0 {
		p.pending = 0
	}
	if p.speaking {
		p.stopSpeaking()
	}
}

func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Err returns the first sink write error.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sinkErr
}

// Close stops accepting audio and waits for queued audio to drain when the
// pump is running.
func (p *Player) Close() error {
	_ = p.buf.Close()

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if started {
		<-p.done
	}
	return p.Err()
}

func (p *Player) pump() {
	defer close(p.done)

	chunk := make([]byte, p.chunkSize)
	for {
		n, err := p.buf.Read(chunk)
		if n > 0 {
			if _, werr := p.sink.Write(chunk[:n]); werr != nil {
				p.mu.Lock()
				if p.sinkErr == nil {
					p.sinkErr = werr
				}
				p.mu.Unlock()
			}
			p.played(n)
		}
		if err != nil {
			return
		}
	}
}

func (p *Player) played(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending -= n
	if p.pending < 0 {
		p.pending = 0
	}
	if p.finishing && p.pending == 0 {
		p.stopSpeaking()
	}
}

// stopSpeaking must be called with mu held.
func (p *Player) stopSpeaking() {
	p.finishing = false
	if !p.speaking {
		return
	}
	p.speaking = false
	p.notify(false)
}

func (p *Player) notify(speaking bool) {
	if p.onChange != nil {
		p.onChange(speaking)
	}
}
