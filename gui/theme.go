//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"maxiwhisper/config"
)

// overlayTheme applies the [ui] colors and font size on top of the dark
// default theme.
type overlayTheme struct {
	bg, fg, accent color.RGBA
	textSize       float32
}

func newTheme(cfg config.UIConfig) *overlayTheme {
	return &overlayTheme{
		bg:       rgba(cfg.Background),
		fg:       rgba(cfg.Foreground),
		accent:   rgba(cfg.Accent),
		textSize: cfg.FontSize,
	}
}

func rgba(hex string) color.RGBA {
	r, g, b := config.RGB(hex)
	return color.RGBA{r, g, b, 255}
}

func (t *overlayTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground, theme.ColorNameOverlayBackground:
		return t.bg
	case theme.ColorNameForeground:
		return t.fg
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return t.accent
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (t *overlayTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *overlayTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *overlayTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText && t.textSize > 0 {
		return t.textSize
	}
	return theme.DefaultTheme().Size(name)
}
