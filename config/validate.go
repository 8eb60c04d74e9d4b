package config

import (
	"fmt"
	"slices"
)

var validModes = []string{"tui", "window", "none"}

func (c *Config) Validate() error {
	b, err := c.Bindings()
	if err != nil {
		return err
	}
	if b.PushToTalk.Empty() && b.Toggle.Empty() {
		return fmt.Errorf("invalid keys: push_to_talk and toggle are both disabled")
	}
	if !b.PushToTalk.Empty() && b.PushToTalk.Equal(b.Toggle) {
		return fmt.Errorf("invalid keys: push_to_talk and toggle are both %s", b.PushToTalk)
	}
	if b.PushToTalk.Contains(b.Quit) || b.Toggle.Contains(b.Quit) {
		return fmt.Errorf("invalid keys.quit: %s is part of a recording binding", b.Quit)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid audio.sample_rate: %d", c.Audio.SampleRate)
	}
	if c.Audio.Gain < 0 {
		return fmt.Errorf("invalid audio.gain: %d", c.Audio.Gain)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("invalid output.dir: empty")
	}

	if c.Session.StopTimeout <= 0 {
		return fmt.Errorf("invalid session.stop_timeout: %v", c.Session.StopTimeout)
	}
	if c.Session.DrainDelay < 0 {
		return fmt.Errorf("invalid session.drain_delay: %v", c.Session.DrainDelay)
	}

	if c.Backend.Host == "" {
		return fmt.Errorf("invalid backend.host: empty")
	}

	if !slices.Contains(validModes, c.UI.Mode) {
		return fmt.Errorf("invalid ui.mode: %s (must be tui, window, or none)", c.UI.Mode)
	}
	if c.UI.RefreshInterval <= 0 {
		return fmt.Errorf("invalid ui.refresh_interval: %v", c.UI.RefreshInterval)
	}
	for name, v := range map[string]string{
		"background": c.UI.Background,
		"foreground": c.UI.Foreground,
		"accent":     c.UI.Accent,
	} {
		if !isHexColor(v) {
			return fmt.Errorf("invalid ui.%s: %q (want #rrggbb)", name, v)
		}
	}
	if c.UI.Width <= 0 || c.UI.Height <= 0 {
		return fmt.Errorf("invalid ui size: %dx%d", c.UI.Width, c.UI.Height)
	}
	if c.UI.FontSize <= 0 {
		return fmt.Errorf("invalid ui.font_size: %v", c.UI.FontSize)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// RGB returns the components of a #rrggbb color validated by Validate.
func RGB(hex string) (r, g, b uint8) {
	if !isHexColor(hex) {
		return 0, 0, 0
	}
	parse := func(s string) uint8 {
		var v uint8
		for _, c := range s {
			v <<= 4
			switch {
			case c >= '0' && c <= '9':
				v |= uint8(c - '0')
			case c >= 'a' && c <= 'f':
				v |= uint8(c-'a') + 10
			case c >= 'A' && c <= 'F':
				v |= uint8(c-'A') + 10
			}
		}
		return v
	}
	return parse(hex[1:3]), parse(hex[3:5]), parse(hex[5:7])
}
