// Package keys names keyboard keys and key combinations independently of
// the platform listener that reports them.
package keys

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Key string

const (
	Ctrl      Key = "ctrl"
	Shift     Key = "shift"
	Alt       Key = "alt"
	Cmd       Key = "cmd"
	Esc       Key = "esc"
	Space     Key = "space"
	Enter     Key = "enter"
	Tab       Key = "tab"
	Backspace Key = "backspace"
	CapsLock  Key = "capslock"
	Insert    Key = "insert"
	Delete    Key = "delete"
	Home      Key = "home"
	End       Key = "end"
	PageUp    Key = "pageup"
	PageDown  Key = "pagedown"
	Up        Key = "up"
	Down      Key = "down"
	Left      Key = "left"
	Right     Key = "right"
	Pause     Key = "pause"
	Print     Key = "print"

	F1  Key = "f1"
	F2  Key = "f2"
	F3  Key = "f3"
	F4  Key = "f4"
	F5  Key = "f5"
	F6  Key = "f6"
	F7  Key = "f7"
	F8  Key = "f8"
	F9  Key = "f9"
	F10 Key = "f10"
	F11 Key = "f11"
	F12 Key = "f12"
)

var ErrUnknownKey = errors.New("unknown key")

var named = map[Key]string{
	Ctrl: "Ctrl", Shift: "Shift", Alt: "Alt", Cmd: "Cmd",
	Esc: "ESC", Space: "Space", Enter: "Enter", Tab: "Tab",
	Backspace: "Backspace", CapsLock: "CapsLock", Insert: "Insert",
	Delete: "Delete", Home: "Home", End: "End", PageUp: "PageUp",
	PageDown: "PageDown", Up: "Up", Down: "Down", Left: "Left",
	Right: "Right", Pause: "Pause", Print: "Print",
}

// aliases maps alternate spellings, including left/right variants, onto the
// canonical key so either physical modifier satisfies a binding.
var aliases = map[string]Key{
	"control": Ctrl, "ctrl_l": Ctrl, "ctrl_r": Ctrl, "lctrl": Ctrl, "rctrl": Ctrl,
	"shift_l": Shift, "shift_r": Shift, "lshift": Shift, "rshift": Shift,
	"alt_l": Alt, "alt_r": Alt, "alt_gr": Alt, "option": Alt, "opt": Alt,
	"super": Cmd, "win": Cmd, "meta": Cmd, "command": Cmd, "cmd_l": Cmd, "cmd_r": Cmd,
	"escape": Esc, "return": Enter, "del": Delete, "pgup": PageUp, "pgdn": PageDown,
	"page_up": PageUp, "page_down": PageDown, "caps_lock": CapsLock,
	"print_screen": Print, "printscreen": Print,
}

// Parse resolves a key name such as "f8", "Ctrl_L" or "a".
func Parse(s string) (Key, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownKey)
	}
	if k, ok := aliases[name]; ok {
		return k, nil
	}
	k := Key(name)
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

func (k Key) Valid() bool {
	if _, ok := named[k]; ok {
		return true
	}
	if isFunction(k) {
		return true
	}
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	return false
}

func (k Key) IsModifier() bool {
	switch k {
	case Ctrl, Shift, Alt, Cmd:
		return true
	}
	return false
}

// String returns the display name ("Ctrl", "F8", "ESC", "A").
func (k Key) String() string {
	if n, ok := named[k]; ok {
		return n
	}
	return strings.ToUpper(string(k))
}

func isFunction(k Key) bool {
	if len(k) < 2 || len(k) > 3 || k[0] != 'f' {
		return false
	}
	n := 0
	for _, c := range k[1:] {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n >= 1 && n <= 24
}

// Combo is a set of keys that must all be held together. Modifiers sort
// first. A nil Combo is a disabled binding and never matches.
type Combo []Key

// ParseCombo parses "ctrl+f8" style bindings. An empty string yields a
// disabled (nil) combo.
func ParseCombo(s string) (Combo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var c Combo
	for _, part := range strings.Split(s, "+") {
		k, err := Parse(part)
		if err != nil {
			return nil, fmt.Errorf("combo %q: %w", s, err)
		}
		if !c.Contains(k) {
			c = append(c, k)
		}
	}
	slices.SortStableFunc(c, func(a, b Key) int {
		switch {
		case a.IsModifier() && !b.IsModifier():
			return -1
		case !a.IsModifier() && b.IsModifier():
			return 1
		}
		return 0
	})
	return c, nil
}

// MustParseCombo is ParseCombo for literals known to be valid.
func MustParseCombo(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Combo) Empty() bool { return len(c) == 0 }

func (c Combo) Contains(k Key) bool { return slices.Contains(c, k) }

// HeldIn reports whether every key of a non-empty combo is held.
func (c Combo) HeldIn(held map[Key]bool) bool {
	if c.Empty() {
		return false
	}
	for _, k := range c {
		if !held[k] {
			return false
		}
	}
	return true
}

// Covers reports whether c includes every key of other.
func (c Combo) Covers(other Combo) bool {
	for _, k := range other {
		if !c.Contains(k) {
			return false
		}
	}
	return true
}

func (c Combo) Equal(other Combo) bool {
	return len(c) == len(other) && c.Covers(other)
}

// Config renders the combo the way it is written in config files.
func (c Combo) Config() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}

func (c Combo) String() string {
	if c.Empty() {
		return "disabled"
	}
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = k.String()
	}
	return strings.Join(parts, "+")
}
