// Package session owns the lifecycle of a single dictation session: it opens
// the microphone, streams it to a recognition backend, folds the returned
// fragments into a transcript and hands snapshots to the persistence sink
// and the UI.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"maxiwhisper/log"
	"maxiwhisper/transcript"
)

const DefaultStopTimeout = 3 * time.Second

var ErrStreamEnded = errors.New("stream ended unexpectedly")

type Config struct {
	SampleRate  int
	FormatTurns bool
	// Tail keeps the microphone open this long after Stop so trailing
	// words reach the backend.
	Tail time.Duration
	// StopTimeout bounds the wait for the backend to flush after the
	// microphone is closed.
	StopTimeout time.Duration
}

// Controller allows at most one session at a time. All methods are safe for
// concurrent use; Stop is the only one that blocks, for at most
// Tail+StopTimeout.
type Controller struct {
	audio   Opener
	backend Backend
	sink    Sink
	notify  Notifier
	cfg     Config

	mu    sync.Mutex
	state State
	mode  Mode
	cur   *run
}

type run struct {
	id      string
	acc     *transcript.Accumulator
	src     Source
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	streamMu     sync.Mutex
	stream       Stream
	streamClosed bool

	stopping  atomic.Bool
	finished  atomic.Bool
	emergency sync.Once
	audioDur  atomic.Int64
}

func New(audio Opener, backend Backend, sink Sink, notify Notifier, cfg Config) *Controller {
	if notify == nil {
		notify = nopNotifier{}
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Controller{
		audio:   audio,
		backend: backend,
		sink:    sink,
		notify:  notify,
		cfg:     cfg,
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state, Mode: c.mode}
	if c.cur != nil {
		st.ID = c.cur.id
	}
	return st
}

// Start begins a session in the given mode. It returns false, leaving any
// running session untouched, unless the controller is idle.
func (c *Controller) Start(mode Mode) bool {
	if mode == None {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		log.Warnf("start (%s) ignored: session %s is %s", mode, c.cur.id, c.state)
		return false
	}

	src, err := c.audio.Open(c.cfg.SampleRate)
	if err != nil {
		err = fmt.Errorf("open audio: %w", err)
		log.Errorf("%v", err)
		c.notify.Failed(err)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:      uuid.NewString(),
		acc:     transcript.New(),
		src:     src,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	c.state, c.mode, c.cur = Connecting, mode, r
	log.SessionStart(r.id, mode.String())

	go c.work(ctx, r)
	return true
}

// work is the single consumer of backend events for one run.
func (c *Controller) work(ctx context.Context, r *run) {
	defer close(r.done)
	defer r.closeStream()

	stream, err := c.backend.Open(ctx, Params{
		SampleRate:  c.cfg.SampleRate,
		FormatTurns: c.cfg.FormatTurns,
	}, r.src)
	if err != nil {
		c.fail(r, fmt.Errorf("connect: %w", err))
		return
	}
	if !r.setStream(stream) {
		return
	}

	for ev := range stream.Events() {
		switch e := ev.(type) {
		case BeginEvent:
			c.begin(r, e)
		case FragmentEvent:
			c.fragment(r, e.Fragment)
		case TerminationEvent:
			r.audioDur.Store(int64(e.AudioDuration))
			log.Infof("Session ended (%.1fs)", e.AudioDuration.Seconds())
		case ErrorEvent:
			c.fail(r, e.Err)
			return
		}
	}

	if !r.stopping.Load() {
		c.fail(r, ErrStreamEnded)
	}
}

func (c *Controller) begin(r *run, e BeginEvent) {
	c.mu.Lock()
	ready := c.cur == r && c.state == Connecting
	if ready {
		c.state = Active
	}
	c.mu.Unlock()

	log.SessionBegin(r.id, e.ID, time.Since(r.started), e.ExpiresAt)
	if ready {
		c.notify.Ready()
	}
}

func (c *Controller) fragment(r *run, f transcript.Fragment) {
	if r.finished.Load() {
		return
	}
	r.acc.Apply(f)
	text := r.acc.Snapshot()
	if text == "" {
		return
	}
	c.sink.Incremental(text)
	c.notify.Transcript(text)
}

// fail saves what was heard so far and, unless Stop already owns the
// teardown, returns the controller to Idle.
func (c *Controller) fail(r *run, err error) {
	if r.finished.Load() {
		log.Debugf("session %s: error after finish: %v", r.id, err)
		return
	}
	log.Errorf("session %s: %v", r.id, err)
	c.saveEmergency(r, err.Error())
	c.notify.Failed(err)

	c.mu.Lock()
	owned := c.cur == r && c.state != Stopping
	if owned {
		c.state = Stopping
		r.stopping.Store(true)
	}
	c.mu.Unlock()
	if !owned {
		return
	}

	r.finished.Store(true)
	r.src.Close()
	r.cancel()
	c.endLog(r, false, "")
	c.finish(r)
}

// Stop closes the microphone, waits for the backend to flush and writes the
// final transcript. It returns false when no session is recording.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if c.state != Connecting && c.state != Active {
		st := c.state
		c.mu.Unlock()
		log.Warnf("stop ignored: session is %s", st)
		return false
	}
	r := c.cur
	c.state = Stopping
	r.stopping.Store(true)
	c.mu.Unlock()

	if c.cfg.Tail > 0 {
		time.Sleep(c.cfg.Tail)
	}
	r.src.Close()

	timedOut := false
	timer := time.NewTimer(c.cfg.StopTimeout)
	select {
	case <-r.done:
		timer.Stop()
	case <-timer.C:
		timedOut = true
		log.Warnf("session %s: backend did not finish within %s", r.id, c.cfg.StopTimeout)
		r.closeStream()
	}

	r.finished.Store(true)
	r.cancel()

	saved := ""
	if text := r.acc.Snapshot(); text == "" {
		log.Info("No transcript to save")
	} else {
		c.sink.Final(text)
		saved = text
	}
	c.endLog(r, timedOut, saved)
	c.finish(r)
	return true
}

// Emergency writes the current transcript to an emergency file and tears the
// session down without a final write. Used before the process exits. A
// session that is already stopping is left to Stop, which writes the final
// file; Emergency then reports false.
func (c *Controller) Emergency(reason string) bool {
	c.mu.Lock()
	r := c.cur
	if r == nil || c.state == Stopping {
		c.mu.Unlock()
		return false
	}
	c.state = Stopping
	r.stopping.Store(true)
	c.mu.Unlock()

	c.saveEmergency(r, reason)
	r.finished.Store(true)
	r.src.Close()
	r.closeStream()
	r.cancel()
	c.endLog(r, false, "")
	c.finish(r)
	return true
}

func (c *Controller) saveEmergency(r *run, reason string) {
	r.emergency.Do(func() {
		text := r.acc.Snapshot()
		if text == "" {
			log.Infof("session %s: no transcript to save (%s)", r.id, reason)
			return
		}
		log.EmergencySave(r.id, reason, len(text))
		c.sink.Emergency(text)
	})
}

// finish returns the controller to Idle and reports the stop. Both happen
// under the lock so a Start that follows never sees a stale Stopped.
func (c *Controller) finish(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != r {
		return
	}
	c.state = Idle
	c.mode = None
	c.cur = nil
	c.notify.Stopped()
}

func (c *Controller) endLog(r *run, timedOut bool, saved string) {
	log.SessionEnd(r.id, log.SessionEndData{
		Turns:    r.acc.Turns(),
		Chars:    len(saved),
		AudioS:   time.Duration(r.audioDur.Load()).Seconds(),
		TotalMs:  float64(time.Since(r.started).Milliseconds()),
		TimedOut: timedOut,
	})
}

// setStream records the open stream. It reports false, closing the stream,
// when the run was torn down while connecting.
func (r *run) setStream(s Stream) bool {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	if r.streamClosed {
		s.Close()
		return false
	}
	r.stream = s
	return true
}

func (r *run) closeStream() {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	if r.streamClosed {
		return
	}
	r.streamClosed = true
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			log.Debugf("session %s: close stream: %v", r.id, err)
		}
	}
}
