// Package paste sends the platform paste shortcut to the focused window.
package paste

// Keystroke implements persist.Paster.
type Keystroke struct{}

func (Keystroke) Paste() error {
	return Send()
}
