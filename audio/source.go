package audio

import (
	"fmt"
	"io"
	"sync"

	"maxiwhisper/log"
	"maxiwhisper/session"
)

// DefaultBufferSeconds bounds how much audio a source holds when the reader
// falls behind. Older audio is dropped first.
const DefaultBufferSeconds = 10

// Mic opens capture devices on a Context. It implements session.Opener.
type Mic struct {
	Context Context
	Device  *DeviceInfo
	Gain    int
	// BufferSeconds caps buffered audio; 0 uses DefaultBufferSeconds.
	BufferSeconds int
}

func (m *Mic) Open(sampleRate int) (session.Source, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	dev, err := m.Context.NewCapture(m.Device, CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   1,
		Gain:       m.Gain,
	})
	if err != nil {
		return nil, fmt.Errorf("capture device: %w", err)
	}

	secs := m.BufferSeconds
	if secs <= 0 {
		secs = DefaultBufferSeconds
	}
	src := newSource(dev, sampleRate*2*secs)
	dev.SetCallback(src.push)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	return src, nil
}

// source adapts a callback-driven capture device to a blocking reader.
type source struct {
	dev   CaptureDevice
	limit int

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	closed  bool
	dropped int

	closeOnce sync.Once
}

func newSource(dev CaptureDevice, limit int) *source {
	s := &source{dev: dev, limit: limit}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *source) push(data []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, data...)
	if over := len(s.buf) - s.limit; over > 0 {
		over += over % 2 // keep sample alignment
		s.buf = s.buf[over:]
		s.dropped += over
	}
	s.cond.Signal()
}

// Read blocks until audio is available. After Close it drains what is left
// and then returns io.EOF.
func (s *source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *source) Close() error {
	s.closeOnce.Do(func() {
		s.dev.ClearCallback()
		s.dev.Stop()
		s.dev.Close()

		s.mu.Lock()
		s.closed = true
		dropped := s.dropped
		s.cond.Broadcast()
		s.mu.Unlock()

		if dropped > 0 {
			log.Warnf("audio: reader fell behind, dropped %d bytes", dropped)
		}
	})
	return nil
}
