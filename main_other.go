//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Global hotkeys need the main thread to run the platform event loop,
// unless the overlay window owns it.
func main() {
	if wantsWindow(os.Args[1:]) {
		os.Exit(execute())
	}
	code := 0
	mainthread.Init(func() { code = execute() })
	os.Exit(code)
}
