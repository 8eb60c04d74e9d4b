// Package clipboard copies text to the system clipboard. Copies are a
// convenience side channel: nothing reads the result back to decide what
// was transcribed.
package clipboard

import (
	"fmt"

	cb "github.com/atotto/clipboard"
)

// System is the OS clipboard.
type System struct{}

func (System) Copy(text string) error {
	return Copy(text)
}

func Copy(text string) error {
	if cb.Unsupported {
		return fmt.Errorf("clipboard unsupported (install xclip, xsel or wl-clipboard)")
	}
	return cb.WriteAll(text)
}

// Read returns the clipboard contents. Only diagnostics use it.
func Read() (string, error) {
	return cb.ReadAll()
}
