//go:build gui

package gui

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"maxiwhisper/session"
	"maxiwhisper/ui"
)

func TestStatusLine(t *testing.T) {
	since := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := since.Add(2500 * time.Millisecond)

	assert.Equal(t, "○ Ready", statusLine(ui.Update{}, now))
	assert.Equal(t, "● connecting...", statusLine(ui.Update{Recording: true}, now))
	assert.Equal(t, "● REC 2.5s  toggle",
		statusLine(ui.Update{Recording: true, Ready: true, Mode: session.Toggle, Since: since}, now))
	assert.Equal(t, "○ Error", statusLine(ui.Update{Err: errors.New("x").Error()}, now))
}

func TestBody(t *testing.T) {
	assert.Equal(t, "hello", body(ui.Update{Text: "hello", Hint: "ignored"}))
	assert.Equal(t, "use ctrl+f8", body(ui.Update{Hint: "use ctrl+f8"}))
	assert.Equal(t, "hello\nconnect: refused", body(ui.Update{Text: "hello", Err: "connect: refused"}))
	assert.Equal(t, "connect: refused", body(ui.Update{Err: "connect: refused"}))
}

func TestPalette(t *testing.T) {
	bg := color.RGBA{0x1e, 0x1e, 0x2e, 255}
	fg := color.RGBA{0xcd, 0xd6, 0xf4, 255}
	p := palette(color.RGBA{0xf3, 0x8b, 0xa8, 255}, bg, fg)

	assert.Len(t, p, 12)
	assert.Equal(t, bg, p[0])
	assert.Equal(t, fg, p[11])
}

func TestEyePixelsStaysInPalette(t *testing.T) {
	for _, awake := range []bool{false, true} {
		px := eyePixels(7, 0.03, awake)
		assert.Len(t, px, eyeRows)
		for _, row := range px {
			assert.Len(t, row, eyeCols)
			for _, v := range row {
				assert.True(t, v >= 0 && v < 12)
			}
		}
		assert.Equal(t, 1, px[eyeRows/2][eyeCols/2], "center is the brightest ring")
	}
}

func TestMix(t *testing.T) {
	a := color.RGBA{0, 0, 0, 255}
	b := color.RGBA{200, 100, 50, 255}
	assert.Equal(t, a, mix(a, b, 0))
	assert.Equal(t, b, mix(a, b, 1))
	assert.Equal(t, color.RGBA{100, 50, 25, 255}, mix(a, b, 0.5))
	assert.Equal(t, b, mix(a, b, 3), "clamped")
}
