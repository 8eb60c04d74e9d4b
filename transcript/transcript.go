// Package transcript merges streamed recognition fragments into the text of
// a single dictation session.
package transcript

import (
	"strings"
	"sync"
)

// Fragment is one recognition result. Non-final fragments are revised by
// later ones; a final fragment closes the current turn.
type Fragment struct {
	Text    string
	IsFinal bool
}

// Accumulator holds the finalized turns of a session plus the latest
// pending (non-final) text. Safe for one writer and many readers.
type Accumulator struct {
	mu        sync.Mutex
	finalized []string
	pending   string
}

func New() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Apply(f Fragment) {
	text := strings.TrimSpace(f.Text)
	a.mu.Lock()
	defer a.mu.Unlock()
	if f.IsFinal {
		if text != "" {
			a.finalized = append(a.finalized, text)
		}
		a.pending = ""
		return
	}
	a.pending = text
}

// Snapshot returns the finalized turns joined by single spaces, followed by
// the pending text when it is non-empty and not a repeat of the last turn.
func (a *Accumulator) Snapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	for _, turn := range a.finalized {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(turn)
	}
	if a.pending != "" && (len(a.finalized) == 0 || a.finalized[len(a.finalized)-1] != a.pending) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.pending)
	}
	return strings.TrimSpace(b.String())
}

// Turns reports how many turns have been finalized.
func (a *Accumulator) Turns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.finalized)
}
