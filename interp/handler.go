package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// HandlerContext is the data passed to an ExecHandlerFunc: the pieces
// of the Runner's state an external command needs, grounded on the
// teacher's interp.HandlerContext.
type HandlerContext struct {
	Env    *Environment
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExecHandlerFunc runs an external command (argv[0] is neither a
// builtin nor a declared function). Returning nil means a zero exit
// status; return an ExitStatus for any other code, or a *SignalDeath
// when the process was killed by a signal.
type ExecHandlerFunc func(ctx context.Context, hc HandlerContext, args []string) error

// DefaultExecHandler returns the ExecHandlerFunc used outside of
// tests: it resolves argv[0] against $PATH and execs it, waiting up to
// killTimeout after a context cancellation before escalating from
// SIGINT to SIGKILL.
func DefaultExecHandler(killTimeout time.Duration) ExecHandlerFunc {
	return func(ctx context.Context, hc HandlerContext, args []string) error {
		path, err := lookPath(hc.Dir, hc.Env, args[0])
		if err != nil {
			fmt.Fprintln(hc.Stderr, err)
			var notExec *notExecutableError
			if errors.As(err, &notExec) {
				return ExitStatus(126)
			}
			return ExitStatus(127)
		}
		cmd := exec.Cmd{
			Path:   path,
			Args:   args,
			Env:    hc.Env.ExportedPairs(),
			Dir:    hc.Dir,
			Stdin:  hc.Stdin,
			Stdout: hc.Stdout,
			Stderr: hc.Stderr,
		}

		err = cmd.Start()
		if err == nil {
			stop := context.AfterFunc(ctx, func() {
				if killTimeout <= 0 {
					_ = cmd.Process.Signal(os.Kill)
					return
				}
				_ = cmd.Process.Signal(os.Interrupt)
				time.Sleep(killTimeout)
				_ = cmd.Process.Signal(os.Kill)
			})
			defer stop()
			err = cmd.Wait()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := signalStatus(exitErr); ok {
				return &SignalDeath{Signal: status}
			}
			return ExitStatus(uint8(exitErr.ExitCode()))
		}
		var pathErr *exec.Error
		if errors.As(err, &pathErr) {
			fmt.Fprintln(hc.Stderr, pathErr)
			return ExitStatus(127)
		}
		return err
	}
}

// notExecutableError reports that name resolved to a real, regular
// file that lacks any executable bit, the spec.md §6 exit-code-126
// case distinct from a plain not-found (127).
type notExecutableError struct{ path string }

func (e *notExecutableError) Error() string { return e.path + ": permission denied" }

// lookPath resolves name to an executable path: absolute/relative
// names containing a slash are checked directly against dir, anything
// else is searched for along $PATH.
func lookPath(dir string, env *Environment, name string) (string, error) {
	if strings.Contains(name, "/") {
		full := name
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, full)
		}
		return statExecutable(full, name)
	}
	pathVar := env.Get("PATH").Value
	for _, d := range filepath.SplitList(pathVar) {
		if d == "" {
			d = "."
		}
		full := filepath.Join(d, name)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			return "", &notExecutableError{path: full}
		}
		return full, nil
	}
	return "", fmt.Errorf("%s: command not found", name)
}

// statExecutable checks a single fully resolved path (the slash-containing
// name case, where there's no further $PATH entry to fall back to).
func statExecutable(full, name string) (string, error) {
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s: not found", name)
	}
	if info.Mode()&0o111 == 0 {
		return "", &notExecutableError{path: full}
	}
	return full, nil
}
