package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"maxiwhisper/log"
)

// Console reports session progress as log lines; with a terminal writer it
// also keeps the live transcript on one rewritten line.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	live bool
	last int
}

var liveStyle = lipgloss.NewStyle().Faint(true)

// NewConsole logs through the log package. If live is set, partial
// transcripts are redrawn in place on out.
func NewConsole(out io.Writer, live bool) *Console {
	return &Console{out: out, live: live}
}

func (c *Console) Ready() {
	log.Info("● Recording... speak now")
}

func (c *Console) Transcript(text string) {
	if !c.live || c.out == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	line := tail(text, 100)
	pad := max(0, c.last-len(line))
	fmt.Fprintf(c.out, "\r%s%s", liveStyle.Render(line), strings.Repeat(" ", pad))
	c.last = len(line)
}

func (c *Console) Stopped() {
	c.endLine()
	log.Info("○ Ready")
}

func (c *Console) Failed(err error) {
	c.endLine()
	log.Errorf("✗ %v", err)
}

func (c *Console) endLine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last > 0 && c.out != nil {
		fmt.Fprintln(c.out)
	}
	c.last = 0
}

// tail keeps the last n runes of s, marking the cut with an ellipsis.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
