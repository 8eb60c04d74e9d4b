//go:build gui

// Package gui is a small always-on-top window that mirrors the live
// transcript.
package gui

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"

	"maxiwhisper/config"
	"maxiwhisper/ui"
)

const (
	eyeCell     = 3
	bottomInset = 20
	// linger keeps the window up after a session so the last words can be
	// read.
	linger = 2 * time.Second
)

type App struct {
	cfg     config.UIConfig
	feed    *ui.Feed
	onReady func()
	// OnQuit runs when Quit is chosen from the tray menu.
	OnQuit func()

	fyneApp fyne.App
	window  fyne.Window
	eye     *EyeWidget
	status  *canvas.Text
	text    *widget.Label
	scroll  *container.Scroll
	posX    int
	posY    int
	hiding  bool
	// shown counts show calls so a pending hide can tell it is stale.
	shown int
	done  chan struct{}
}

// NewApp returns a window fed by feed. onReady runs in its own goroutine
// once the window exists; the app quits when it returns.
func NewApp(feed *ui.Feed, cfg config.UIConfig, onReady func()) *App {
	return &App{cfg: cfg, feed: feed, onReady: onReady, done: make(chan struct{})}
}

// Run blocks on the fyne event loop. It must be called from the main
// goroutine.
func Run(a *App) error {
	th := newTheme(a.cfg)
	a.fyneApp = app.NewWithID("io.maxiwhisper.overlay")
	a.fyneApp.Settings().SetTheme(th)

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("maxiwhisper",
			fyne.NewMenuItem("Quit", a.quitFromMenu),
		)
		desk.SetSystemTrayMenu(menu)
		if icon := trayIcon(th.accent); icon != nil {
			desk.SetSystemTrayIcon(icon)
		}
	}

	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("maxiwhisper")
	}

	a.eye = NewEyeWidget(eyeCell, th)
	a.status = canvas.NewText("○ Ready", th.fg)
	a.status.TextStyle = fyne.TextStyle{Bold: true}
	a.text = widget.NewLabel("")
	a.text.Wrapping = fyne.TextWrapWord
	a.scroll = container.NewVScroll(a.text)

	header := container.NewHBox(a.eye, container.NewCenter(a.status))
	a.window.SetContent(container.NewBorder(header, nil, nil, nil, a.scroll))
	a.window.SetFixedSize(true)
	a.window.SetPadded(true)

	size := fyne.NewSize(float32(a.cfg.Width), float32(a.cfg.Height))
	a.window.Resize(size)
	a.posX, a.posY = a.position(size)

	go a.follow()
	go func() {
		a.onReady()
		a.Quit()
	}()

	// The window stays hidden until a session starts.
	a.fyneApp.Run()
	close(a.done)
	a.eye.Stop()
	return nil
}

// position returns the configured origin, or bottom center of the primary
// monitor's work area when x or y is negative.
func (a *App) position(size fyne.Size) (int, int) {
	x, y := a.cfg.X, a.cfg.Y
	if x >= 0 && y >= 0 {
		return x, y
	}
	screenW, screenH := 1920, 1080
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, screenH = monitor.GetWorkarea()
	}
	if x < 0 {
		x = (screenW - int(size.Width)) / 2
	}
	if y < 0 {
		y = screenH - int(size.Height) - bottomInset
	}
	return x, y
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) quitFromMenu() {
	if a.OnQuit != nil {
		go a.OnQuit()
		return
	}
	a.fyneApp.Quit()
}

func (a *App) follow() {
	tick := time.NewTicker(a.cfg.RefreshInterval)
	defer tick.Stop()

	var cur ui.Update
	for {
		select {
		case <-a.done:
			return
		case u := <-a.feed.Updates():
			grew := len(u.Text) > len(cur.Text)
			cur = u
			fyne.Do(func() { a.apply(u, grew) })
		case <-tick.C:
			if cur.Recording {
				status := statusLine(cur, time.Now())
				fyne.Do(func() { a.setStatus(status) })
			}
		}
	}
}

func (a *App) apply(u ui.Update, grew bool) {
	switch {
	case u.Recording && u.Ready:
		a.eye.setState(eyeListening)
		a.show()
	case u.Recording:
		a.eye.setState(eyeConnecting)
		a.show()
	default:
		a.eye.setState(eyeIdle)
		a.hideLater()
	}
	if grew {
		a.eye.Pulse()
	}

	a.setStatus(statusLine(u, time.Now()))
	a.text.SetText(body(u))
	a.scroll.ScrollToBottom()
}

func (a *App) setStatus(s string) {
	a.status.Text = s
	a.status.Refresh()
}

func statusLine(u ui.Update, now time.Time) string {
	switch {
	case u.Recording && u.Ready:
		return fmt.Sprintf("● REC %.1fs  %s", now.Sub(u.Since).Seconds(), u.Mode)
	case u.Recording:
		return "● connecting..."
	case u.Err != "":
		return "○ Error"
	}
	return "○ Ready"
}

func body(u ui.Update) string {
	switch {
	case u.Err != "":
		if u.Text == "" {
			return u.Err
		}
		return u.Text + "\n" + u.Err
	case u.Hint != "" && u.Text == "":
		return u.Hint
	}
	return u.Text
}

func (a *App) show() {
	a.shown++
	a.hiding = false
	if a.window == nil {
		return
	}
	// Position and float the window without stealing focus from the
	// application being dictated into.
	if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
		glfwWin.SetPos(a.posX, a.posY)
		glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
		glfwWin.SetAttrib(glfw.Floating, glfw.True)
		glfwWin.Show()
		return
	}
	a.window.Show()
}

func (a *App) hideLater() {
	if a.hiding {
		return
	}
	a.hiding = true
	gen := a.shown
	time.AfterFunc(linger, func() {
		fyne.Do(func() {
			if a.shown != gen || !a.hiding {
				return
			}
			a.hiding = false
			if a.window != nil {
				a.window.Hide()
			}
		})
	})
}
