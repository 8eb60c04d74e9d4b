//go:build !windows

package doctor

import "os/exec"

// resetTerminal undoes echo changes left by key presses the listener also
// delivered to the terminal.
func resetTerminal() {
	exec.Command("stty", "sane").Run()
}
