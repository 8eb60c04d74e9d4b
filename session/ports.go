package session

import (
	"context"
	"io"
	"time"

	"maxiwhisper/transcript"
)

type State int

const (
	Idle State = iota
	Connecting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

type Mode int

const (
	None Mode = iota
	PushToTalk
	Toggle
)

func (m Mode) String() string {
	switch m {
	case PushToTalk:
		return "ptt"
	case Toggle:
		return "toggle"
	}
	return "none"
}

// Status is a point-in-time view of the controller.
type Status struct {
	State State
	Mode  Mode
	ID    string
}

// Recording reports whether a session is connecting or streaming.
func (s Status) Recording() bool {
	return s.State == Connecting || s.State == Active
}

// Event is a message delivered by a streaming backend, in arrival order.
type Event interface{ event() }

type BeginEvent struct {
	ID        string
	ExpiresAt time.Time
}

type FragmentEvent struct {
	Fragment transcript.Fragment
}

type TerminationEvent struct {
	AudioDuration time.Duration
}

type ErrorEvent struct {
	Err error
}

func (BeginEvent) event()       {}
func (FragmentEvent) event()    {}
func (TerminationEvent) event() {}
func (ErrorEvent) event()       {}

// Params describe the audio stream handed to a backend.
type Params struct {
	SampleRate  int
	FormatTurns bool
}

// Stream is an open backend session. Events is closed once the backend
// stops receiving. Close is idempotent.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Backend opens a streaming recognition session fed from audio until the
// reader returns io.EOF.
type Backend interface {
	Open(ctx context.Context, p Params, audio io.Reader) (Stream, error)
}

// Source is a PCM16 mono audio source. Close is idempotent and makes Read
// return io.EOF once buffered audio is drained.
type Source interface {
	io.ReadCloser
}

type Opener interface {
	Open(sampleRate int) (Source, error)
}

// Sink persists transcript text. Implementations log their own failures.
type Sink interface {
	Incremental(text string)
	Final(text string)
	Emergency(text string)
}

// Notifier receives UI updates. Calls must not block, and Stopped is made
// with the controller's lock held, so implementations must not call back
// into the controller.
type Notifier interface {
	Ready()
	Transcript(text string)
	Stopped()
	Failed(err error)
}

type nopNotifier struct{}

func (nopNotifier) Ready()            {}
func (nopNotifier) Transcript(string) {}
func (nopNotifier) Stopped()          {}
func (nopNotifier) Failed(error)      {}
