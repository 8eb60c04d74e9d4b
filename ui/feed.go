// Package ui presents session progress: a notifier feed that front ends
// consume, a console notifier and the terminal view.
package ui

import (
	"sync"
	"time"

	"maxiwhisper/session"
)

// Update is a full snapshot of what a front end should show.
type Update struct {
	Recording bool
	Ready     bool
	Mode      session.Mode
	Since     time.Time
	Text      string
	Hint      string
	Err       string
	Saved     string
}

// Feed implements session.Notifier. Updates are coalesced: a slow reader
// only ever sees the latest snapshot, and no call blocks.
type Feed struct {
	mu  sync.Mutex
	cur Update
	ch  chan Update
	now func() time.Time
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan Update, 1), now: time.Now}
}

func (f *Feed) Updates() <-chan Update { return f.ch }

// Current returns the latest snapshot.
func (f *Feed) Current() Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

// Started marks a session as starting in mode. The transcript of the
// previous session is cleared.
func (f *Feed) Started(mode session.Mode) {
	f.update(func(u *Update) {
		*u = Update{Recording: true, Mode: mode, Since: f.now(), Saved: u.Saved}
	})
}

func (f *Feed) Ready() {
	f.update(func(u *Update) {
		u.Ready = true
		u.Err = ""
	})
}

func (f *Feed) Transcript(text string) {
	f.update(func(u *Update) { u.Text = text })
}

func (f *Feed) Stopped() {
	f.update(func(u *Update) {
		u.Recording = false
		u.Ready = false
		u.Mode = session.None
	})
}

func (f *Feed) Failed(err error) {
	f.update(func(u *Update) { u.Err = err.Error() })
}

// Hint shows a transient message such as a rejected key press.
func (f *Feed) Hint(msg string) {
	f.update(func(u *Update) { u.Hint = msg })
}

// Saved records the path of the last written transcript.
func (f *Feed) Saved(path string) {
	f.update(func(u *Update) { u.Saved = path })
}

func (f *Feed) update(fn func(*Update)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.cur)
	snap := f.cur
	// Replace any snapshot the reader has not taken yet.
	select {
	case <-f.ch:
	default:
	}
	f.ch <- snap
}

// Multi fans notifications out to several notifiers in order.
type Multi []session.Notifier

func (m Multi) Ready() {
	for _, n := range m {
		n.Ready()
	}
}

func (m Multi) Transcript(text string) {
	for _, n := range m {
		n.Transcript(text)
	}
}

func (m Multi) Stopped() {
	for _, n := range m {
		n.Stopped()
	}
}

func (m Multi) Failed(err error) {
	for _, n := range m {
		n.Failed(err)
	}
}
