//go:build plan9 || js || windows

package interp

import "os/exec"

// signalStatus is a no-op on platforms without POSIX wait status bits.
func signalStatus(err *exec.ExitError) (int, bool) {
	return 0, false
}
