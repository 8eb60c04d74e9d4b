package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maxiwhisper/config"
	"maxiwhisper/log"
)

var version = "dev"

func execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts runOptions
	root := &cobra.Command{
		Use:   "maxiwhisper",
		Short: "Push-to-talk dictation with live streaming transcription",
		Long: "maxiwhisper records from the microphone while a key is held (or toggled),\n" +
			"streams the audio to AssemblyAI and keeps the transcript on disk and in the\n" +
			"clipboard as you speak.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), opts)
		},
	}
	addRunFlags(root, &opts)

	root.AddCommand(
		newRunCmd(),
		newScriptCmd(),
		newDevicesCmd(),
		newDoctorCmd(),
		newConfigCmd(),
		newBindingsCmd(),
		newVersionCmd(),
	)
	return root
}

// setupLogging resolves the log directory, opens the log files and routes
// runtime crash output to crash_log.txt. Failures only cost diagnostics.
func setupLogging(logPath string) {
	dir, err := log.ResolveDir(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to resolve log directory: %v\n", err)
		return
	}
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		return
	}

	crashPath := filepath.Join(log.Dir(), log.CrashFile)
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
}

func configPath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	return config.Path()
}

// wantsWindow reports whether args start the dictation loop with the overlay
// window, either through --ui or the config file. The window needs the main
// thread, so this is decided before any command runs.
func wantsWindow(args []string) bool {
	if !windowSupported {
		return false
	}
	var cfgFlag string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if i == 0 && !strings.HasPrefix(a, "-") && a != "run" {
			return false
		}
		name, val, hasVal := strings.Cut(a, "=")
		if !hasVal && i+1 < len(args) {
			val = args[i+1]
		}
		switch name {
		case "--ui":
			return val == uiWindow
		case "--config":
			cfgFlag = val
		}
	}
	path, err := configPath(cfgFlag)
	if err != nil {
		return false
	}
	cfg, err := config.Load(path)
	if err != nil {
		return false
	}
	return cfg.UI.Enabled && cfg.UI.Mode == uiWindow
}
