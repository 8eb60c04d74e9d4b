// Package persist writes transcripts to disk and to the clipboard.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"maxiwhisper/log"
)

const (
	CurrentFile     = "current_session.txt"
	TimestampLayout = "060102-150405"
	emergencyPrefix = "EMERGENCY_"
)

type Clipboard interface {
	Copy(text string) error
}

type Paster interface {
	Paste() error
}

type Config struct {
	Dir       string
	Clipboard Clipboard
	// Paster, when set, sends a paste keystroke after the final copy.
	Paster Paster
	Now    func() time.Time
	// OnSaved is told the path of every final or emergency file.
	OnSaved func(path string)
}

// Sink implements session.Sink. Every failure is logged and swallowed.
type Sink struct {
	cfg Config
}

func New(cfg Config) *Sink {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sink{cfg: cfg}
}

func (s *Sink) Dir() string { return s.cfg.Dir }

func FinalName(t time.Time) string {
	return t.Format(TimestampLayout) + ".txt"
}

func EmergencyName(t time.Time) string {
	return emergencyPrefix + t.Format(TimestampLayout) + ".txt"
}

// Incremental overwrites current_session.txt and refreshes the clipboard.
// It runs on every transcript update, so failures only reach the debug log.
func (s *Sink) Incremental(text string) {
	if text == "" {
		return
	}
	if err := s.write(CurrentFile, text); err != nil {
		log.Debugf("incremental save: %v", err)
	}
	s.copy(text, true)
}

func (s *Sink) Final(text string) {
	if text == "" {
		log.Info("No transcript to save")
		return
	}
	name := FinalName(s.cfg.Now())
	if err := s.write(name, text); err != nil {
		log.Errorf("save transcript: %v", err)
	} else {
		s.saved(name)
	}
	log.TranscriptionText(text)
	if s.copy(text, false) && s.cfg.Paster != nil {
		if err := s.cfg.Paster.Paste(); err != nil {
			log.Warnf("auto-paste: %v", err)
		}
	}
}

func (s *Sink) Emergency(text string) {
	if text == "" {
		return
	}
	name := EmergencyName(s.cfg.Now())
	if err := s.write(name, text); err != nil {
		log.Errorf("emergency save: %v", err)
	} else {
		s.saved(name)
		log.Infof("Emergency save completed to %s", name)
	}
	s.copy(text, false)
}

func (s *Sink) write(name, text string) error {
	if err := os.MkdirAll(s.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return WriteFileAtomic(filepath.Join(s.cfg.Dir, name), []byte(text), 0644)
}

func (s *Sink) saved(name string) {
	path := filepath.Join(s.cfg.Dir, name)
	log.Infof("Saved to %s", path)
	if s.cfg.OnSaved != nil {
		s.cfg.OnSaved(path)
	}
}

func (s *Sink) copy(text string, quiet bool) bool {
	if s.cfg.Clipboard == nil {
		return false
	}
	if err := s.cfg.Clipboard.Copy(text); err != nil {
		if quiet {
			log.Debugf("clipboard: %v", err)
		} else {
			log.Warnf("clipboard: %v", err)
		}
		return false
	}
	return true
}
