// Package hotkey reports global key presses and releases.
package hotkey

import (
	"sync"

	"maxiwhisper/keys"
)

type KeyEvent struct {
	Key     keys.Key
	Pressed bool
}

// Listener delivers key events for at least the keys of the combos it was
// registered with. Platforms that can observe the whole keyboard may report
// other keys too.
type Listener interface {
	Register(combos ...keys.Combo) error
	Unregister()
	Events() <-chan KeyEvent
}

// held folds physical keys that share a name (left and right Ctrl) into one
// logical key: it is pressed when the first goes down and released when the
// last comes up.
type held struct {
	mu sync.Mutex
	n  map[keys.Key]int
}

func newHeld() *held {
	return &held{n: make(map[keys.Key]int)}
}

// press reports whether k became held.
func (h *held) press(k keys.Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n[k]++
	return h.n[k] == 1
}

// release reports whether k is no longer held.
func (h *held) release(k keys.Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n[k] == 0 {
		return false
	}
	h.n[k]--
	if h.n[k] == 0 {
		delete(h.n, k)
		return true
	}
	return false
}
