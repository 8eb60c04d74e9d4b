package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	TranscribeFile  = "transcribe_log.txt"
	CrashFile       = "crash_log.txt"
)

var (
	diagLog        zerolog.Logger
	diagWriter     *lumberjack.Logger
	transcribeFile *os.File
	console        io.Writer
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: MAXIWHISPER_LOG_PATH environment variable
	if envPath := os.Getenv("MAXIWHISPER_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetConsole mirrors diagnostics at info level and above to w in a human
// format. Pass nil when a full-screen UI owns the terminal.
func SetConsole(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	console = w
	if logReady {
		diagLog = newLogger()
	}
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	diagWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, DiagnosticsFile),
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     30,
	}

	var err error
	transcribePath := filepath.Join(dir, TranscribeFile)
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagWriter.Close()
		diagWriter = nil
		return err
	}

	diagLog = newLogger()
	logReady = true
	return nil
}

func newLogger() zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagWriter,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	if console != nil {
		term := zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
		out = zerolog.MultiLevelWriter(out, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: term},
			Level:  zerolog.InfoLevel,
		})
	}
	return zerolog.New(out).With().Timestamp().Int("pid", pid).Logger()
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagWriter != nil {
		diagWriter.Close()
		diagWriter = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// TranscriptionText appends a finished transcript to the history log.
func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(id, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("mode", mode).
		Msg("session_start")
}

// SessionBegin records the backend accepting a session. A zero expires is
// omitted.
func SessionBegin(id, remoteID string, connect time.Duration, expires time.Time) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("session", id).
		Str("remote_id", remoteID).
		Float64("connect_ms", float64(connect.Milliseconds()))
	if !expires.IsZero() {
		ev = ev.Time("expires_at", expires)
	}
	ev.Msg("session_begin")
}

type SessionEndData struct {
	Turns    int
	Chars    int
	AudioS   float64
	TotalMs  float64
	TimedOut bool
}

func SessionEnd(id string, d SessionEndData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Int("turns", d.Turns).
		Int("chars", d.Chars).
		Float64("audio_s", d.AudioS).
		Float64("total_ms", d.TotalMs).
		Bool("timed_out", d.TimedOut).
		Msg("session_end")
}

func EmergencySave(id, reason string, chars int) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("session", id).
		Str("reason", reason).
		Int("chars", chars).
		Msg("emergency_save")
}
