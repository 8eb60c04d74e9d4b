//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

var signals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
