// Package doctor runs environment checks: configuration, API key, output
// directory, keyboard access, microphone, clipboard and the streaming
// service.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maxiwhisper/assemblyai"
	"maxiwhisper/audio"
	"maxiwhisper/clipboard"
	"maxiwhisper/config"
	"maxiwhisper/hotkey"
	"maxiwhisper/keys"
	"maxiwhisper/session"
)

type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
	// Optional checks do not stop the run when they fail.
	Optional bool
}

// Run executes checks in order and reports whether all passed. A failing
// required check stops the run.
func Run(ctx context.Context, w io.Writer, checks []Check) bool {
	fmt.Fprintln(w, "maxiwhisper doctor - system diagnostics")
	fmt.Fprintln(w, "=======================================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		detail, err := c.Run(ctx)
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			allPass = false
			if !c.Optional {
				break
			}
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", detail)
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
	} else {
		fmt.Fprintln(w, "Some checks failed. See details above.")
	}
	return allPass
}

type Options struct {
	ConfigPath string
	// Interactive adds a check that waits for the push-to-talk key.
	Interactive bool
	// Online dials the streaming service with the API key.
	Online bool
}

// Checks builds the standard check list.
func Checks(opts Options) []Check {
	var cfg *config.Config
	checks := []Check{
		{Name: "Configuration", Run: func(context.Context) (string, error) {
			c, err := config.Load(opts.ConfigPath)
			if err != nil {
				return "", err
			}
			if err := c.Validate(); err != nil {
				return "", err
			}
			cfg = c
			b, _ := c.Bindings()
			return fmt.Sprintf("%s (ptt %s, toggle %s, quit %s)", opts.ConfigPath, b.PushToTalk, b.Toggle, b.Quit), nil
		}},
		{Name: "API key", Optional: true, Run: func(context.Context) (string, error) {
			key, err := config.APIKey()
			if err != nil {
				return "", fmt.Errorf("%w (set it in the environment or a .env file)", err)
			}
			return fmt.Sprintf("%s is set (%s)", config.APIKeyEnv, mask(key)), nil
		}},
		{Name: "Output directory", Run: func(context.Context) (string, error) {
			dir, err := cfg.OutputDir()
			if err != nil {
				return "", err
			}
			return CheckWritable(dir)
		}},
		{Name: "Keyboard access", Optional: true, Run: func(context.Context) (string, error) {
			return hotkey.Diagnose()
		}},
		{Name: "Microphone", Optional: true, Run: func(context.Context) (string, error) {
			return checkMicrophone(cfg, time.Second)
		}},
		{Name: "Clipboard", Optional: true, Run: func(context.Context) (string, error) {
			return CheckClipboard(clipboardFuncs{copy: clipboard.Copy, read: clipboard.Read}, 3*time.Second)
		}},
	}
	if opts.Online {
		checks = append(checks, Check{Name: "Streaming service", Optional: true, Run: func(ctx context.Context) (string, error) {
			key, err := config.APIKey()
			if err != nil {
				return "", err
			}
			return CheckBackend(ctx, assemblyai.New(key, cfg.Backend.Host), cfg.Audio.SampleRate, 10*time.Second)
		}})
	}
	if opts.Interactive {
		checks = append(checks, Check{Name: "Push-to-talk key", Optional: true, Run: func(ctx context.Context) (string, error) {
			b, err := cfg.Bindings()
			if err != nil {
				return "", err
			}
			l := hotkey.New()
			if err := l.Register(b.PushToTalk, b.Toggle); err != nil {
				return "", err
			}
			defer resetTerminal()
			defer l.Unregister()
			return WaitForCombo(ctx, l.Events(), b.PushToTalk, 10*time.Second)
		}})
	}
	return checks
}

func mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// CheckWritable creates dir if needed and writes and removes a probe file.
func CheckWritable(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".maxiwhisper-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return "", fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	os.Remove(probe)
	return dir + " is writable", nil
}

type clipboardFuncs struct {
	copy func(string) error
	read func() (string, error)
}

// CheckClipboard writes a marker and reads it back. Clipboard tools can hang
// when no display is reachable, hence the timeout.
func CheckClipboard(cb clipboardFuncs, timeout time.Duration) (string, error) {
	marker := fmt.Sprintf("maxiwhisper-doctor-%d", time.Now().UnixNano())
	ch := make(chan error, 1)
	go func() {
		if err := cb.copy(marker); err != nil {
			ch <- fmt.Errorf("write failed: %w", err)
			return
		}
		got, err := cb.read()
		if err != nil {
			ch <- fmt.Errorf("read failed: %w", err)
			return
		}
		if got != marker {
			ch <- fmt.Errorf("mismatch: wrote %q, got %q", marker, got)
			return
		}
		ch <- nil
	}()

	select {
	case err := <-ch:
		if err != nil {
			return "", err
		}
		return "clipboard write/read verified", nil
	case <-time.After(timeout):
		return "", fmt.Errorf("clipboard timed out (is a display server reachable?)")
	}
}

func checkMicrophone(cfg *config.Config, d time.Duration) (string, error) {
	actx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer actx.Close()

	dev, err := audio.FindDevice(actx, cfg.Audio.Device)
	if err != nil {
		return "", err
	}
	return MeasureSource(&audio.Mic{Context: actx, Device: dev, Gain: cfg.Audio.Gain}, cfg.Audio.SampleRate, d)
}

// MeasureSource records for d and reports how much audio arrived and how
// loud it was.
func MeasureSource(o session.Opener, sampleRate int, d time.Duration) (string, error) {
	src, err := o.Open(sampleRate)
	if err != nil {
		return "", err
	}
	time.AfterFunc(d, func() { src.Close() })

	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no audio captured in %s", d)
	}
	peak := 0
	for i := 0; i+1 < len(data); i += 2 {
		s := int(int16(uint16(data[i]) | uint16(data[i+1])<<8))
		peak = max(peak, s, -s)
	}
	secs := float64(len(data)) / float64(sampleRate*2)
	detail := fmt.Sprintf("captured %.1fs, peak level %.0f%%", secs, float64(peak)/32768*100)
	if peak < 330 {
		detail += " (very quiet: check input volume or audio.gain)"
	}
	return detail, nil
}

// CheckBackend opens a streaming session with no audio and waits for the
// service to acknowledge it.
func CheckBackend(ctx context.Context, b session.Backend, sampleRate int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pr, pw := io.Pipe()
	defer pw.Close()

	start := time.Now()
	stream, err := b.Open(ctx, session.Params{SampleRate: sampleRate}, pr)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return "", fmt.Errorf("stream closed before session began")
			}
			switch e := ev.(type) {
			case session.BeginEvent:
				return fmt.Sprintf("session %s began in %dms", e.ID, time.Since(start).Milliseconds()), nil
			case session.ErrorEvent:
				return "", e.Err
			}
		case <-ctx.Done():
			return "", fmt.Errorf("no response within %s", timeout)
		}
	}
}

// WaitForCombo waits until every key of combo is held.
func WaitForCombo(ctx context.Context, events <-chan hotkey.KeyEvent, combo keys.Combo, timeout time.Duration) (string, error) {
	if combo.Empty() {
		return "push-to-talk disabled", nil
	}
	fmt.Printf("  Press %s...\n", combo)
	held := map[keys.Key]bool{}
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			held[ev.Key] = ev.Pressed
			if combo.HeldIn(held) {
				return combo.String() + " detected", nil
			}
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for %s", combo)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
