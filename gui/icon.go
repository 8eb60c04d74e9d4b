//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"fyne.io/fyne/v2"
)

const iconSize = 22

// trayIcon draws a small dot in the accent color: bright core, accent ring,
// dark rim.
func trayIcon(accent color.RGBA) fyne.Resource {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	rim := mix(accent, color.RGBA{0, 0, 0, 255}, 0.7)
	core := mix(accent, color.RGBA{255, 255, 255, 255}, 0.4)

	center := float64(iconSize) / 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dist := math.Hypot(float64(x)-center+0.5, float64(y)-center+0.5)
			switch {
			case dist < 4:
				img.Set(x, y, core)
			case dist < 7:
				img.Set(x, y, mix(core, accent, (dist-4)/3))
			case dist < 9:
				img.Set(x, y, rim)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return fyne.NewStaticResource("tray.png", buf.Bytes())
}
