//go:build unix

package interp

import (
	"os/exec"
	"syscall"
)

// signalStatus reports the signal number that killed a child process,
// if it died from one, per spec.md §7's SignalDeath error kind.
func signalStatus(err *exec.ExitError) (int, bool) {
	status, ok := err.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return 0, false
	}
	return int(status.Signal()), true
}
