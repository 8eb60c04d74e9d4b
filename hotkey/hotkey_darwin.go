package hotkey

import (
	"golang.design/x/hotkey"

	"maxiwhisper/keys"
)

var modifiers = map[keys.Key]hotkey.Modifier{
	keys.Ctrl:  hotkey.ModCtrl,
	keys.Shift: hotkey.ModShift,
	keys.Alt:   hotkey.ModOption,
	keys.Cmd:   hotkey.ModCmd,
}
