//go:build darwin || windows

package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"

	"maxiwhisper/keys"
)

var namedKeys = map[keys.Key]hotkey.Key{
	keys.Space: hotkey.KeySpace, keys.Enter: hotkey.KeyReturn,
	keys.Esc: hotkey.KeyEscape, keys.Tab: hotkey.KeyTab,
	keys.Delete: hotkey.KeyDelete,
	keys.Up: hotkey.KeyUp, keys.Down: hotkey.KeyDown,
	keys.Left: hotkey.KeyLeft, keys.Right: hotkey.KeyRight,
	keys.F1: hotkey.KeyF1, keys.F2: hotkey.KeyF2, keys.F3: hotkey.KeyF3,
	keys.F4: hotkey.KeyF4, keys.F5: hotkey.KeyF5, keys.F6: hotkey.KeyF6,
	keys.F7: hotkey.KeyF7, keys.F8: hotkey.KeyF8, keys.F9: hotkey.KeyF9,
	keys.F10: hotkey.KeyF10, keys.F11: hotkey.KeyF11, keys.F12: hotkey.KeyF12,
}

var letterKeys = []hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = []hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

func platformKey(k keys.Key) (hotkey.Key, bool) {
	if hk, ok := namedKeys[k]; ok {
		return hk, true
	}
	s := string(k)
	if len(s) == 1 {
		switch c := s[0]; {
		case c >= 'a' && c <= 'z':
			return letterKeys[c-'a'], true
		case c >= '0' && c <= '9':
			return digitKeys[c-'0'], true
		}
	}
	return 0, false
}

type binding struct {
	hk    *hotkey.Hotkey
	combo keys.Combo
}

// xListener registers each combo with the OS. The OS only reports the combo
// as a whole, so a combo press is replayed as its modifiers followed by the
// main key, and a release in the reverse order.
type xListener struct {
	events   chan KeyEvent
	held     *held
	bindings []binding
	stop     chan struct{}
	once     sync.Once
}

func New() Listener {
	return &xListener{
		events: make(chan KeyEvent, 64),
		held:   newHeld(),
	}
}

func (l *xListener) Register(combos ...keys.Combo) error {
	l.stop = make(chan struct{})
	for _, c := range combos {
		if c.Empty() {
			continue
		}
		var mods []hotkey.Modifier
		var main keys.Key
		for _, k := range c {
			if k.IsModifier() {
				m, ok := modifiers[k]
				if !ok {
					return fmt.Errorf("modifier %s: %w", k, keys.ErrUnknownKey)
				}
				mods = append(mods, m)
				continue
			}
			if main != "" {
				return fmt.Errorf("combo %s has more than one non-modifier key", c)
			}
			main = k
		}
		key, ok := platformKey(main)
		if !ok {
			return fmt.Errorf("key %q not supported on this platform: %w", main, keys.ErrUnknownKey)
		}
		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			l.Unregister()
			return fmt.Errorf("register %s: %w", c, err)
		}
		b := binding{hk: hk, combo: c}
		l.bindings = append(l.bindings, b)
		go l.forward(b)
	}
	return nil
}

func (l *xListener) forward(b binding) {
	for {
		select {
		case <-l.stop:
			return
		case <-b.hk.Keydown():
			for _, k := range b.combo {
				if l.held.press(k) && !l.send(KeyEvent{Key: k, Pressed: true}) {
					return
				}
			}
		case <-b.hk.Keyup():
			for i := len(b.combo) - 1; i >= 0; i-- {
				k := b.combo[i]
				if l.held.release(k) && !l.send(KeyEvent{Key: k}) {
					return
				}
			}
		}
	}
}

func (l *xListener) send(ev KeyEvent) bool {
	select {
	case l.events <- ev:
		return true
	case <-l.stop:
		return false
	}
}

func (l *xListener) Unregister() {
	l.once.Do(func() {
		if l.stop != nil {
			close(l.stop)
		}
		for _, b := range l.bindings {
			b.hk.Unregister()
		}
	})
}

func (l *xListener) Events() <-chan KeyEvent {
	return l.events
}

func Diagnose() (string, error) {
	names := make([]string, 0, len(modifiers))
	for k := range modifiers {
		names = append(names, k.String())
	}
	return fmt.Sprintf("global hotkeys available (modifiers: %s)", strings.Join(names, ", ")), nil
}
