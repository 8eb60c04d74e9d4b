package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type updateMsg Update
type logMsg struct{ Text string }
type tickMsg time.Time

// Theme colors are #rrggbb strings.
type Theme struct {
	Background string
	Foreground string
	Accent     string
}

type Options struct {
	Title    string
	Bindings string
	Device   string
	Refresh  time.Duration
	Theme    Theme
	// OnQuit runs when the user presses Ctrl+C or q in the terminal view.
	OnQuit func()
}

type styles struct {
	title, rec, idle, muted, text, hint, err lipgloss.Style
}

func newStyles(t Theme) styles {
	fg := lipgloss.Color(t.Foreground)
	accent := lipgloss.Color(t.Accent)
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Background)).Background(accent).Padding(0, 1),
		rec:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		idle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		text:  lipgloss.NewStyle().Foreground(fg),
		hint:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

type model struct {
	opts          Options
	st            styles
	cur           Update
	logLine       string
	now           time.Time
	frame         int
	width, height int
}

func newModel(opts Options) model {
	if opts.Refresh <= 0 {
		opts.Refresh = 60 * time.Millisecond
	}
	if opts.Title == "" {
		opts.Title = "maxiwhisper"
	}
	return model{opts: opts, st: newStyles(opts.Theme), now: time.Now()}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.opts.OnQuit != nil {
				m.opts.OnQuit()
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		m.now = time.Time(msg)
		return m, m.tick()

	case updateMsg:
		m.cur = Update(msg)

	case logMsg:
		m.logLine = msg.Text
	}
	return m, nil
}

var spinner = []string{"◐", "◓", "◑", "◒"}

func (m model) status() string {
	switch {
	case m.cur.Recording && m.cur.Ready:
		elapsed := m.now.Sub(m.cur.Since).Seconds()
		return m.st.rec.Render(fmt.Sprintf("● REC %.1fs  %s", max(elapsed, 0), m.cur.Mode))
	case m.cur.Recording:
		return m.st.rec.Render(spinner[m.frame%len(spinner)] + " connecting...")
	default:
		return m.st.idle.Render("○ STANDBY")
	}
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrap := max(width-2, 10)

	var b strings.Builder
	b.WriteString(m.st.title.Render(m.opts.Title) + "  " + m.status() + "\n")
	if m.opts.Bindings != "" {
		b.WriteString(m.st.muted.Render(m.opts.Bindings) + "\n")
	}
	if m.opts.Device != "" {
		b.WriteString(m.st.muted.Render("mic: "+m.opts.Device) + "\n")
	}
	b.WriteString("\n")

	if m.cur.Text != "" {
		for _, line := range wrapText(m.cur.Text, wrap) {
			b.WriteString(m.st.text.Render(line) + "\n")
		}
	} else {
		b.WriteString(m.st.idle.Render("No transcript yet") + "\n")
	}
	b.WriteString("\n")

	if m.cur.Err != "" {
		b.WriteString(m.st.err.Render("✗ "+m.cur.Err) + "\n")
	}
	if m.cur.Hint != "" {
		b.WriteString(m.st.hint.Render(m.cur.Hint) + "\n")
	}
	if m.cur.Saved != "" {
		b.WriteString(m.st.muted.Render("saved "+m.cur.Saved) + "\n")
	}
	if m.logLine != "" {
		b.WriteString(m.st.muted.Render(m.logLine) + "\n")
	}
	return b.String()
}

// wrapText breaks text at spaces so no line is wider than width runes.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	rs := []rune(text)
	for len(rs) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if rs[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(rs[:splitAt]))
		rs = []rune(strings.TrimLeft(string(rs[splitAt:]), " "))
	}
	if len(rs) > 0 {
		lines = append(lines, string(rs))
	}
	return lines
}

// Program is the terminal front end.
type Program struct {
	p    *tea.Program
	feed *Feed
	done chan struct{}
}

func NewProgram(feed *Feed, opts Options, teaOpts ...tea.ProgramOption) *Program {
	return &Program{
		p:    tea.NewProgram(newModel(opts), teaOpts...),
		feed: feed,
		done: make(chan struct{}),
	}
}

// Run blocks until the view exits, forwarding feed updates meanwhile.
func (p *Program) Run() error {
	go func() {
		for {
			select {
			case u := <-p.feed.Updates():
				p.p.Send(updateMsg(u))
			case <-p.done:
				return
			}
		}
	}()
	defer close(p.done)
	_, err := p.p.Run()
	return err
}

func (p *Program) Quit() { p.p.Quit() }

// Write shows the last line written as the status line, so the program can
// serve as the console writer for the log package while it owns the
// terminal.
func (p *Program) Write(b []byte) (int, error) {
	line := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}
	if line != "" {
		// Send blocks until the event loop runs; logging must not.
		go p.p.Send(logMsg{Text: line})
	}
	return len(b), nil
}
