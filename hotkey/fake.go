package hotkey

import "maxiwhisper/keys"

// Fake is a Listener driven by Press and Release calls.
type Fake struct {
	events chan KeyEvent
}

func NewFake() *Fake {
	return &Fake{events: make(chan KeyEvent, 64)}
}

func (f *Fake) Register(...keys.Combo) error { return nil }
func (f *Fake) Unregister()                  {}
func (f *Fake) Events() <-chan KeyEvent      { return f.events }

func (f *Fake) Press(k keys.Key)   { f.events <- KeyEvent{Key: k, Pressed: true} }
func (f *Fake) Release(k keys.Key) { f.events <- KeyEvent{Key: k} }
