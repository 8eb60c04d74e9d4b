package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maxiwhisper/assemblyai"
	"maxiwhisper/audio"
	"maxiwhisper/beep"
	"maxiwhisper/clipboard"
	"maxiwhisper/hotkey"
	"maxiwhisper/input"
	"maxiwhisper/keys"
	"maxiwhisper/log"
	"maxiwhisper/persist"
	"maxiwhisper/session"
	"maxiwhisper/ui"
)

const scriptWaitTimeout = 30 * time.Second

func newScriptCmd() *cobra.Command {
	var opts runOptions
	var instant bool
	cmd := &cobra.Command{
		Use:   "script <wav-file>",
		Short: "Replay a WAV file as the microphone, driven by commands on stdin",
		Long: "Headless mode for testing. The WAV file (16-bit mono PCM at audio.sample_rate)\n" +
			"replaces the microphone and stdin replaces the keyboard, one command per line:\n\n" +
			"  PRESS <key>     key goes down (e.g. PRESS f8)\n" +
			"  RELEASE <key>   key comes up\n" +
			"  SLEEP <ms>      pause the script\n" +
			"  WAIT            wait until the current session has stopped\n" +
			"  WAIT_AUDIO      wait until the whole file has been played\n" +
			"  QUIT            save any active session and exit\n",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.Context(), opts, args[0], !instant, os.Stdin)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file")
	f.StringVar(&opts.logPath, "logpath", "", "log directory")
	f.BoolVar(&instant, "instant", false, "deliver the whole file at once instead of in real time")
	return cmd
}

type scriptCmd struct {
	op  string
	key keys.Key
	d   time.Duration
}

func parseScriptLine(line string) (scriptCmd, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return scriptCmd{}, false, nil
	}
	c := scriptCmd{op: strings.ToUpper(fields[0])}
	switch c.op {
	case "PRESS", "RELEASE":
		if len(fields) != 2 {
			return c, false, fmt.Errorf("%s needs a key", c.op)
		}
		k, err := keys.Parse(fields[1])
		if err != nil {
			return c, false, err
		}
		c.key = k
	case "SLEEP":
		if len(fields) != 2 {
			return c, false, fmt.Errorf("SLEEP needs milliseconds")
		}
		ms, err := strconv.Atoi(fields[1])
		if err != nil || ms < 0 {
			return c, false, fmt.Errorf("invalid SLEEP duration %q", fields[1])
		}
		c.d = time.Duration(ms) * time.Millisecond
	case "WAIT", "WAIT_AUDIO", "QUIT":
		if len(fields) != 1 {
			return c, false, fmt.Errorf("%s takes no arguments", c.op)
		}
	default:
		return c, false, fmt.Errorf("unknown command %q", fields[0])
	}
	return c, true, nil
}

// stopSignal reports each time a session has stopped.
type stopSignal chan struct{}

func (s stopSignal) Ready()            {}
func (s stopSignal) Transcript(string) {}
func (s stopSignal) Failed(error)      {}

func (s stopSignal) Stopped() {
	select {
	case s <- struct{}{}:
	default:
	}
}

func runScript(parent context.Context, opts runOptions, wavPath string, realtime bool, stdin io.Reader) error {
	opts.ui = uiNone
	rt, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	cfg := rt.cfg

	setupLogging(opts.logPath)
	defer log.Close()
	log.SetConsole(os.Stderr)
	beep.Disable()

	wav, err := audio.NewWAVContext(wavPath, realtime)
	if err != nil {
		return err
	}
	defer wav.Close()

	stopped := make(stopSignal, 1)
	feed := ui.NewFeed()
	ctrl := session.New(
		&audio.Mic{Context: wav, Gain: cfg.Audio.Gain},
		assemblyai.New(rt.apiKey, cfg.Backend.Host),
		persist.New(persist.Config{Dir: rt.outDir, Clipboard: clipboard.System{}, OnSaved: feed.Saved}),
		ui.Multi{feed, ui.NewConsole(os.Stderr, false), stopped},
		sessionConfig(cfg),
	)

	fake := hotkey.NewFake()
	loop := &dictation{
		ctrl:     ctrl,
		resolver: input.NewResolver(input.Bindings(rt.bindings)),
		feed:     feed,
		events:   fake.Events(),
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.run(ctx)
	}()

	err = drive(stdin, fake, stopped, wav.Played)
	cancel()
	<-done
	return err
}

// drive feeds script commands to the fake keyboard until QUIT or end of
// input.
func drive(r io.Reader, fake *hotkey.Fake, stopped <-chan struct{}, played func() <-chan struct{}) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		c, ok, err := parseScriptLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		switch c.op {
		case "PRESS":
			fake.Press(c.key)
		case "RELEASE":
			fake.Release(c.key)
		case "SLEEP":
			time.Sleep(c.d)
		case "WAIT":
			if err := waitFor(stopped, "session stop"); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		case "WAIT_AUDIO":
			if err := waitFor(played(), "end of audio"); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		case "QUIT":
			return nil
		}
	}
	return scanner.Err()
}

func waitFor(ch <-chan struct{}, what string) error {
	select {
	case <-ch:
		return nil
	case <-time.After(scriptWaitTimeout):
		return fmt.Errorf("timed out waiting for %s", what)
	}
}
