package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"maxiwhisper/keys"
)

func TestHeldFoldsDuplicateKeys(t *testing.T) {
	h := newHeld()

	assert.True(t, h.press(keys.Ctrl), "left ctrl down")
	assert.False(t, h.press(keys.Ctrl), "right ctrl down")
	assert.False(t, h.release(keys.Ctrl), "left ctrl up, right still held")
	assert.True(t, h.release(keys.Ctrl), "right ctrl up")
}

func TestHeldIgnoresStrayRelease(t *testing.T) {
	h := newHeld()
	assert.False(t, h.release(keys.F8))
	assert.True(t, h.press(keys.F8))
}

func TestFakeDeliversInOrder(t *testing.T) {
	f := NewFake()
	var l Listener = f
	assert.NoError(t, l.Register(keys.MustParseCombo("ctrl+f8")))

	f.Press(keys.Ctrl)
	f.Press(keys.F8)
	f.Release(keys.F8)

	assert.Equal(t, KeyEvent{Key: keys.Ctrl, Pressed: true}, <-l.Events())
	assert.Equal(t, KeyEvent{Key: keys.F8, Pressed: true}, <-l.Events())
	assert.Equal(t, KeyEvent{Key: keys.F8}, <-l.Events())
	l.Unregister()
}
