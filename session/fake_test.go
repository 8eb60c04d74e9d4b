package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

type fakeSource struct {
	closed chan struct{}
	once   sync.Once
}

func newFakeSource() *fakeSource { return &fakeSource{closed: make(chan struct{})} }

func (s *fakeSource) Read(p []byte) (int, error) {
	<-s.closed
	return 0, io.EOF
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	err     error
	sources []*fakeSource
}

func (o *fakeOpener) Open(int) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	s := newFakeSource()
	o.sources = append(o.sources, s)
	return s, nil
}

// fakeStream forwards scripted events in order. When the audio reader hits
// EOF it ends the stream with a Termination unless the backend hangs.
type fakeStream struct {
	in        chan Event
	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	s := &fakeStream{
		in:     make(chan Event, 16),
		events: make(chan Event),
		closed: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *fakeStream) pump() {
	defer close(s.events)
	for {
		select {
		case ev := <-s.in:
			if ev == nil {
				return
			}
			select {
			case s.events <- ev:
			case <-s.closed:
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *fakeStream) Events() <-chan Event { return s.events }

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) emit(ev Event) {
	select {
	case s.in <- ev:
	case <-s.closed:
	}
}

// end closes the event channel after everything emitted so far.
func (s *fakeStream) end() { s.emit(nil) }

type fakeBackend struct {
	mu      sync.Mutex
	err     error
	hang    bool
	streams []*fakeStream
	opened  chan *fakeStream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{opened: make(chan *fakeStream, 8)}
}

func (b *fakeBackend) Open(ctx context.Context, p Params, audio io.Reader) (Stream, error) {
	b.mu.Lock()
	err, hang := b.err, b.hang
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := newFakeStream()
	go func() {
		io.Copy(io.Discard, audio)
		if hang {
			return
		}
		s.emit(TerminationEvent{AudioDuration: time.Second})
		s.end()
	}()
	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	b.opened <- s
	return s, nil
}

type fakeSink struct {
	mu          sync.Mutex
	incremental []string
	final       []string
	emergency   []string
}

func (s *fakeSink) Incremental(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incremental = append(s.incremental, text)
}

func (s *fakeSink) Final(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = append(s.final, text)
}

func (s *fakeSink) Emergency(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergency = append(s.emergency, text)
}

func (s *fakeSink) snapshot() (inc, fin, emg []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.incremental...),
		append([]string(nil), s.final...),
		append([]string(nil), s.emergency...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	ready   int
	stopped int
	texts   []string
	errs    []error
}

func (n *fakeNotifier) Ready() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready++
}

func (n *fakeNotifier) Transcript(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func (n *fakeNotifier) Stopped() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped++
}

func (n *fakeNotifier) Failed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *fakeNotifier) counts() (ready, stopped, failed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready, n.stopped, len(n.errs)
}

var errBoom = errors.New("boom")
