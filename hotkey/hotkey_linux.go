//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"maxiwhisper/keys"
)

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const inputEventSize = 24

// evdevKeys maps linux/input-event-codes.h key codes to key names.
var evdevKeys = map[uint16]keys.Key{
	1: keys.Esc, 14: keys.Backspace, 15: keys.Tab, 28: keys.Enter,
	29: keys.Ctrl, 97: keys.Ctrl,
	42: keys.Shift, 54: keys.Shift,
	56: keys.Alt, 100: keys.Alt,
	125: keys.Cmd, 126: keys.Cmd,
	57: keys.Space, 58: keys.CapsLock,
	59: keys.F1, 60: keys.F2, 61: keys.F3, 62: keys.F4, 63: keys.F5,
	64: keys.F6, 65: keys.F7, 66: keys.F8, 67: keys.F9, 68: keys.F10,
	87: keys.F11, 88: keys.F12,
	99: keys.Print, 102: keys.Home, 103: keys.Up, 104: keys.PageUp,
	105: keys.Left, 106: keys.Right, 107: keys.End, 108: keys.Down,
	109: keys.PageDown, 110: keys.Insert, 111: keys.Delete, 119: keys.Pause,
}

func init() {
	for i, c := range "1234567890" {
		evdevKeys[uint16(2+i)] = keys.Key(string(c))
	}
	rows := []struct {
		first   uint16
		letters string
	}{
		{16, "qwertyuiop"},
		{30, "asdfghjkl"},
		{44, "zxcvbnm"},
	}
	for _, row := range rows {
		for i, c := range row.letters {
			evdevKeys[row.first+uint16(i)] = keys.Key(string(c))
		}
	}
}

type rawEvent struct {
	typ   uint16
	code  uint16
	value int32
}

func decode(buf []byte) []rawEvent {
	var out []rawEvent
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		out = append(out, rawEvent{
			typ:   binary.LittleEndian.Uint16(buf[i+16:]),
			code:  binary.LittleEndian.Uint16(buf[i+18:]),
			value: int32(binary.LittleEndian.Uint32(buf[i+20:])),
		})
	}
	return out
}

// evdevListener reads every keyboard under /dev/input directly, so it sees
// all keys regardless of the registered combos. Requires the user to be in
// the 'input' group.
type evdevListener struct {
	events chan KeyEvent
	held   *held
	files  []*os.File
	stop   chan struct{}
	once   sync.Once
}

func New() Listener {
	return &evdevListener{
		events: make(chan KeyEvent, 64),
		held:   newHeld(),
	}
}

func (l *evdevListener) Register(...keys.Combo) error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	l.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		l.files = append(l.files, f)
		go l.readEvents(f)
	}

	if len(l.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (l *evdevListener) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)

	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for _, ev := range decode(buf[:n]) {
			if ev.typ != evKey || ev.value == keyRepeat {
				continue
			}
			k, ok := evdevKeys[ev.code]
			if !ok {
				continue
			}
			var out KeyEvent
			switch ev.value {
			case keyPress:
				if !l.held.press(k) {
					continue
				}
				out = KeyEvent{Key: k, Pressed: true}
			case keyRelease:
				if !l.held.release(k) {
					continue
				}
				out = KeyEvent{Key: k}
			default:
				continue
			}
			select {
			case l.events <- out:
			case <-l.stop:
				return
			}
		}
	}
}

func (l *evdevListener) Unregister() {
	l.once.Do(func() {
		if l.stop != nil {
			close(l.stop)
		}
		for _, f := range l.files {
			f.Close()
		}
	})
}

func (l *evdevListener) Events() <-chan KeyEvent {
	return l.events
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
