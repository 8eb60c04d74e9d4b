package config

import "time"

func Default() *Config {
	return &Config{
		Keys: KeysConfig{
			PushToTalk: "f8",
			Toggle:     "ctrl+f8",
			Quit:       "esc",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Gain:       1,
		},
		Output: OutputConfig{
			Dir: "maxiwhisper_records",
		},
		Session: SessionConfig{
			StopTimeout: 3 * time.Second,
			DrainDelay:  500 * time.Millisecond,
		},
		Backend: BackendConfig{
			Host:        "streaming.assemblyai.com",
			FormatTurns: true,
		},
		UI: UIConfig{
			Enabled:         true,
			Mode:            "tui",
			RefreshInterval: 60 * time.Millisecond,
			X:               -1,
			Y:               -1,
			Width:           420,
			Height:          140,
			Background:      "#1e1e2e",
			Foreground:      "#cdd6f4",
			Accent:          "#f38ba8",
			FontSize:        14,
			Sounds:          true,
		},
	}
}

const defaultFile = `# maxiwhisper configuration
# Key bindings are reloaded while running; other changes apply on restart.

[keys]
  push_to_talk = "f8"          # hold to record, release to stop ("" disables)
  toggle = "ctrl+f8"           # press to start, press again to stop ("" disables)
  quit = "esc"                 # released while the app has the keyboard: quit

[audio]
  sample_rate = 16000          # Hz, 16-bit mono PCM is streamed
  device = ""                  # capture device name or id ("" = system default)
  gain = 1                     # sample multiplier for quiet microphones

[output]
  dir = "maxiwhisper_records"  # relative to your home directory unless absolute
  auto_paste = false           # send Ctrl+V (Cmd+V on macOS) after copying

[session]
  stop_timeout = "3s"          # how long stop waits for the last words
  drain_delay = "500ms"        # microphone stays open this long after release

[backend]
  host = "streaming.assemblyai.com"
  format_turns = true          # punctuated, cased final turns

[ui]
  enabled = true
  mode = "tui"                 # "tui", "window" or "none"
  refresh_interval = "60ms"
  x = -1                       # window position, -1 = default
  y = -1
  width = 420
  height = 140
  background = "#1e1e2e"
  foreground = "#cdd6f4"
  accent = "#f38ba8"
  font_size = 14.0
  sounds = true                # start/stop/error tones
`
