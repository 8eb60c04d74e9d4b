//go:build gui

package main

import (
	"runtime"

	"maxiwhisper/config"
	"maxiwhisper/gui"
	"maxiwhisper/ui"
)

const windowSupported = true

// The window must run on the main thread; command execution starts there.
func init() {
	runtime.LockOSThread()
}

// runWindow blocks on the window's event loop and runs body alongside it.
// The window closes when body returns; onQuit is called from the tray menu.
func runWindow(feed *ui.Feed, cfg config.UIConfig, onQuit func(), body func()) error {
	app := gui.NewApp(feed, cfg, body)
	app.OnQuit = onQuit
	return gui.Run(app)
}
