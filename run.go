package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"maxiwhisper/assemblyai"
	"maxiwhisper/audio"
	"maxiwhisper/beep"
	"maxiwhisper/clipboard"
	"maxiwhisper/config"
	"maxiwhisper/hotkey"
	"maxiwhisper/input"
	"maxiwhisper/keys"
	"maxiwhisper/log"
	"maxiwhisper/paste"
	"maxiwhisper/persist"
	"maxiwhisper/session"
	"maxiwhisper/shutdown"
	"maxiwhisper/ui"
)

const (
	uiTUI    = "tui"
	uiWindow = "window"
	uiNone   = "none"
)

type runOptions struct {
	configPath string
	logPath    string
	device     string
	setup      bool
	ui         string
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (default: $"+config.ConfigEnv+" or the user config dir)")
	f.StringVar(&opts.logPath, "logpath", "", "log directory (default: OS-specific location, use ./ for current dir)")
	f.StringVar(&opts.device, "device", "", "capture device name or id (overrides audio.device)")
	f.BoolVar(&opts.setup, "setup", false, "pick the capture device interactively")
	f.StringVar(&opts.ui, "ui", "", "front end: tui, window or none (overrides ui.mode)")
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for the dictation keys (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), opts)
		},
	}
	addRunFlags(cmd, &opts)
	return cmd
}

// runtimeConfig is the loaded configuration with command-line overrides
// applied.
type runtimeConfig struct {
	cfg      *config.Config
	manager  *config.Manager
	bindings config.Bindings
	apiKey   string
	outDir   string
	uiMode   string
}

func loadRuntime(opts runOptions) (*runtimeConfig, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	key, err := config.APIKey()
	if err != nil {
		return nil, err
	}
	path, err := configPath(opts.configPath)
	if err != nil {
		return nil, err
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	cfg := mgr.Config()
	if opts.device != "" {
		cfg.Audio.Device = opts.device
	}
	mode := cfg.UI.Mode
	if opts.ui != "" {
		mode = opts.ui
	}
	if !cfg.UI.Enabled {
		mode = uiNone
	}
	switch mode {
	case uiTUI, uiNone:
	case uiWindow:
		if !windowSupported {
			return nil, errors.New("ui mode \"window\" needs a build with -tags gui")
		}
	default:
		return nil, fmt.Errorf("unknown ui mode %q (use tui, window or none)", mode)
	}

	b, err := cfg.Bindings()
	if err != nil {
		return nil, err
	}
	outDir, err := cfg.OutputDir()
	if err != nil {
		return nil, err
	}
	return &runtimeConfig{cfg: cfg, manager: mgr, bindings: b, apiKey: key, outDir: outDir, uiMode: mode}, nil
}

func runApp(parent context.Context, opts runOptions) error {
	rt, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	cfg := rt.cfg

	setupLogging(opts.logPath)
	defer log.Close()
	if rt.uiMode != uiTUI {
		log.SetConsole(os.Stderr)
	}

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()

	var dev *audio.DeviceInfo
	if opts.setup {
		dev, err = audio.SelectDevice(actx)
		if errors.Is(err, audio.ErrSelectionCanceled) {
			return nil
		}
	} else {
		dev, err = audio.FindDevice(actx, cfg.Audio.Device)
	}
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := shutdown.Context(parent)
	defer stop()

	feed := ui.NewFeed()
	notifiers := ui.Multi{feed}
	if rt.uiMode != uiTUI {
		notifiers = append(notifiers, ui.NewConsole(os.Stderr, term.IsTerminal(int(os.Stderr.Fd()))))
	}
	if cfg.UI.Sounds {
		go beep.Init()
		notifiers = append(notifiers, &beep.Cues{})
	} else {
		beep.Disable()
	}

	sinkCfg := persist.Config{
		Dir:       rt.outDir,
		Clipboard: clipboard.System{},
		OnSaved:   feed.Saved,
	}
	if cfg.Output.AutoPaste {
		if err := paste.Init(); err != nil {
			log.Warnf("auto-paste unavailable: %v", err)
		} else {
			sinkCfg.Paster = paste.Keystroke{}
		}
	}

	ctrl := session.New(
		&audio.Mic{Context: actx, Device: dev, Gain: cfg.Audio.Gain},
		assemblyai.New(rt.apiKey, cfg.Backend.Host),
		persist.New(sinkCfg),
		notifiers,
		sessionConfig(cfg),
	)

	resolver := input.NewResolver(input.Bindings(rt.bindings))
	rt.manager.OnChange(func(c *config.Config) {
		b, err := c.Bindings()
		if err != nil {
			return
		}
		resolver.SetBindings(input.Bindings(b))
		log.Infof("Key bindings reloaded: %s", input.Bindings(b).Summary())
	})
	if err := rt.manager.Watch(ctx); err != nil {
		log.Warnf("config reload disabled: %v", err)
	}
	defer rt.manager.Stop()

	listener := hotkey.New()
	if err := listener.Register(registeredCombos(rt.bindings)...); err != nil {
		return fmt.Errorf("registering hotkeys: %w", err)
	}
	defer listener.Unregister()

	loop := &dictation{
		ctrl:     ctrl,
		resolver: resolver,
		feed:     feed,
		events:   listener.Events(),
	}

	banner(rt, dev)

	switch rt.uiMode {
	case uiTUI:
		return runWithTUI(ctx, loop, feed, rt, dev)
	case uiWindow:
		loopCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		return runWindow(feed, cfg.UI, cancel, func() { loop.run(loopCtx) })
	}
	loop.run(ctx)
	return nil
}

func runWithTUI(ctx context.Context, loop *dictation, feed *ui.Feed, rt *runtimeConfig, dev *audio.DeviceInfo) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := ui.NewProgram(feed, ui.Options{
		Title:    "maxiwhisper " + version,
		Bindings: input.Bindings(rt.bindings).Summary(),
		Device:   deviceName(dev),
		Refresh:  rt.cfg.UI.RefreshInterval,
		Theme: ui.Theme{
			Background: rt.cfg.UI.Background,
			Foreground: rt.cfg.UI.Foreground,
			Accent:     rt.cfg.UI.Accent,
		},
		OnQuit: cancel,
	})
	log.SetConsole(prog)
	defer log.SetConsole(nil)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.run(loopCtx)
		prog.Quit()
	}()

	err := prog.Run()
	cancel()
	<-loopDone
	if err != nil {
		return fmt.Errorf("terminal view: %w", err)
	}
	return nil
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		SampleRate:  cfg.Audio.SampleRate,
		FormatTurns: cfg.Backend.FormatTurns,
		Tail:        cfg.Session.DrainDelay,
		StopTimeout: cfg.Session.StopTimeout,
	}
}

func registeredCombos(b config.Bindings) []keys.Combo {
	combos := []keys.Combo{b.PushToTalk, b.Toggle}
	if b.Quit != "" {
		combos = append(combos, keys.Combo{b.Quit})
	}
	return combos
}

func deviceName(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "system default"
	}
	if audio.IsBluetooth(dev.Name) {
		return dev.Name + " (BT!)"
	}
	return dev.Name
}

func banner(rt *runtimeConfig, dev *audio.DeviceInfo) {
	log.Infof("maxiwhisper %s", version)
	log.Info(input.Bindings(rt.bindings).Summary())
	log.Infof("mic: %s", deviceName(dev))
	log.Infof("Saving transcripts to %s", rt.outDir)
	if dev != nil && audio.IsBluetooth(dev.Name) {
		log.Warn("Bluetooth microphones switch the headset to a low quality profile while recording")
	}
}

// dictation feeds key events through the resolver into the controller. It
// runs on a single goroutine; only Stop is handed off, because it blocks.
type dictation struct {
	ctrl     *session.Controller
	resolver *input.Resolver
	feed     *ui.Feed
	events   <-chan hotkey.KeyEvent

	stops sync.WaitGroup
}

// run returns after the quit key or ctx cancellation, once any active
// session has been saved.
func (d *dictation) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.shutdown("interrupted")
			return
		case ev, ok := <-d.events:
			if !ok {
				d.shutdown("key listener closed")
				return
			}
			if d.handle(ev) {
				d.shutdown("quit")
				return
			}
		}
	}
}

// handle applies one key event and reports whether the user asked to quit.
func (d *dictation) handle(ev hotkey.KeyEvent) bool {
	st := d.ctrl.Status()
	var cmd input.Command
	if ev.Pressed {
		cmd = d.resolver.Press(ev.Key, st)
	} else {
		cmd = d.resolver.Release(ev.Key, st)
	}

	if cmd.Hint != "" {
		log.Info(cmd.Hint)
		d.feed.Hint(cmd.Hint)
	}

	switch cmd.Action {
	case input.Start:
		log.Debugf("key %s: start %s (held %s)", ev.Key, cmd.Mode, keys.Combo(d.resolver.Held()))
		d.feed.Started(cmd.Mode)
		if !d.ctrl.Start(cmd.Mode) {
			d.feed.Stopped()
		}
	case input.Stop:
		log.Debugf("key %s: stop", ev.Key)
		d.stops.Add(1)
		go func() {
			defer d.stops.Done()
			d.ctrl.Stop()
		}()
	case input.Quit:
		return true
	}
	return false
}

// shutdown saves an active session to an emergency file and waits for any
// stop in progress, which is bounded by the stop timeout.
func (d *dictation) shutdown(reason string) {
	if d.ctrl.Emergency(reason) {
		log.Infof("Session interrupted (%s)", reason)
	}
	d.stops.Wait()
	log.Info("Goodbye")
}
