// Package input turns raw key presses and releases into session commands,
// arbitrating between the push-to-talk and toggle bindings.
package input

import (
	"fmt"
	"slices"
	"sync"

	"maxiwhisper/keys"
	"maxiwhisper/session"
)

type Action int

const (
	NoAction Action = iota
	Start
	Stop
	Quit
)

func (a Action) String() string {
	switch a {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Quit:
		return "quit"
	}
	return "none"
}

// Command is what the caller should do in response to a key event. Hint,
// when set, is a message for the user explaining an ignored key.
type Command struct {
	Action Action
	Mode   session.Mode
	Hint   string
}

type Bindings struct {
	PushToTalk keys.Combo
	Toggle     keys.Combo
	Quit       keys.Key
}

// Summary renders the key help line shown at startup.
func (b Bindings) Summary() string {
	ptt := "Push-to-talk disabled"
	if !b.PushToTalk.Empty() {
		ptt = b.PushToTalk.String() + ": Hold to speak"
	}
	toggle := "Toggle disabled"
	if !b.Toggle.Empty() {
		toggle = b.Toggle.String() + ": Toggle recording"
	}
	s := ptt + " | " + toggle
	if b.Quit != "" {
		s += " | " + b.Quit.String() + ": Quit"
	}
	return s
}

// Resolver tracks which keys are held. Press and Release are called from the
// key listener loop; SetBindings may be called from any goroutine.
type Resolver struct {
	mu      sync.Mutex
	b       Bindings
	pressed map[keys.Key]bool
}

func NewResolver(b Bindings) *Resolver {
	return &Resolver{b: b, pressed: make(map[keys.Key]bool)}
}

func (r *Resolver) Bindings() Bindings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.b
}

// SetBindings swaps the key bindings. Held keys are kept.
func (r *Resolver) SetBindings(b Bindings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.b = b
}

// Press records k as held. Repeated presses of a held key are ignored.
// The toggle combo is checked first so that a toggle combo containing the
// push-to-talk keys wins, unless a push-to-talk session is already running.
func (r *Resolver) Press(k keys.Key, st session.Status) Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pressed[k] {
		return Command{}
	}
	r.pressed[k] = true

	if r.b.Toggle.Contains(k) && r.b.Toggle.HeldIn(r.pressed) {
		switch {
		case st.State == session.Idle:
			return Command{Action: Start, Mode: session.Toggle}
		case st.Mode == session.Toggle && st.Recording():
			return Command{Action: Stop}
		case st.Mode == session.PushToTalk:
			return Command{Hint: "Already recording in push-to-talk mode."}
		}
		return Command{}
	}

	if r.b.PushToTalk.Contains(k) && r.b.PushToTalk.HeldIn(r.pressed) {
		switch {
		case st.State == session.Idle && st.Mode == session.None:
			return Command{Action: Start, Mode: session.PushToTalk}
		case st.Mode == session.Toggle:
			return Command{Hint: fmt.Sprintf("Already recording in toggle mode. Use %s to stop.", r.b.Toggle)}
		}
	}
	return Command{}
}

// Release forgets k. Releasing a push-to-talk key stops a push-to-talk
// session; toggle sessions are unaffected. Releasing the quit key quits.
func (r *Resolver) Release(k keys.Key, st session.Status) Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pressed, k)

	if r.b.Quit != "" && k == r.b.Quit {
		return Command{Action: Quit}
	}
	if r.b.PushToTalk.Contains(k) && st.Mode == session.PushToTalk && st.Recording() {
		return Command{Action: Stop}
	}
	return Command{}
}

// Held reports the keys currently held in name order, for diagnostics.
func (r *Resolver) Held() []keys.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	held := make([]keys.Key, 0, len(r.pressed))
	for k := range r.pressed {
		held = append(held, k)
	}
	slices.Sort(held)
	return held
}
