package interp

import "fmt"

// ExitStatus is a non-zero status code resulting from running a shell
// command, threaded through as an error so it can travel up through
// ordinary Go error returns to the point that needs to turn it into a
// process exit code.
type ExitStatus uint8

func (s ExitStatus) Error() string { return fmt.Sprintf("exit status %d", s) }

// ShellExit is returned by the exit builtin to signal that the whole
// shell, not just the current command, should stop running.
type ShellExit struct {
	Status uint8
}

func (e *ShellExit) Error() string { return fmt.Sprintf("exit status %d", e.Status) }

// SignalDeath reports that a child process was killed by a signal,
// per spec.md §7's SignalDeath error kind.
type SignalDeath struct {
	Signal int
}

func (e *SignalDeath) Error() string {
	return fmt.Sprintf("killed by signal %d", e.Signal)
}

// ExitCode computes the exit status a shell running cmd should report
// for err, per spec.md §6's exit code rules: 0 for nil, the wrapped
// status for ExitStatus/ShellExit, 128+signal for SignalDeath, and 1
// for anything else (a builtin or expansion failure).
func ExitCode(err error) uint8 {
	switch e := err.(type) {
	case nil:
		return 0
	case ExitStatus:
		return uint8(e)
	case *ShellExit:
		return e.Status
	case *SignalDeath:
		return uint8(128 + e.Signal)
	default:
		return 1
	}
}
