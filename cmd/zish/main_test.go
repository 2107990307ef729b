package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/zish-sh/zish/interp"
)

func newMainTestRunner() (*interp.Runner, *bytes.Buffer, *bytes.Buffer) {
	env := interp.NewEnvironment([]string{"zish"})
	r := interp.NewRunner(env)
	var out, errOut bytes.Buffer
	r.Stdout = &out
	r.Stderr = &errOut
	return r, &out, &errOut
}

func TestRunExecutesSourceAndReturnsNilOnSuccess(t *testing.T) {
	r, out, _ := newMainTestRunner()
	err := run(context.Background(), r, []byte("echo hello"), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "hello\n" {
		t.Errorf("got %q, want %q", got, "hello\n")
	}
}

func TestRunReturnsExitStatusOnFailure(t *testing.T) {
	r, _, _ := newMainTestRunner()
	err := run(context.Background(), r, []byte("exit 7"), "")
	var es interp.ExitStatus
	if !errorsAsExitStatus(err, &es) {
		t.Fatalf("run error = %v, want an interp.ExitStatus", err)
	}
	if es != 7 {
		t.Errorf("ExitStatus = %d, want 7", es)
	}
}

func TestRunReturnsParseErrorForMalformedSource(t *testing.T) {
	r, _, _ := newMainTestRunner()
	err := run(context.Background(), r, []byte("if then fi"), "")
	if err == nil {
		t.Fatal("expected a parse error for malformed source")
	}
	var es interp.ExitStatus
	if errorsAsExitStatus(err, &es) {
		t.Fatalf("a parse error should not present as an interp.ExitStatus, got %v", es)
	}
}

func TestRunPathReadsAndRunsFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/script.sh"
	if err := os.WriteFile(path, []byte("echo from-file"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, out, _ := newMainTestRunner()
	if err := runPath(context.Background(), r, path); err != nil {
		t.Fatalf("runPath: %v", err)
	}
	if got := out.String(); got != "from-file\n" {
		t.Errorf("got %q, want %q", got, "from-file\n")
	}
}

func TestRunPathMissingFileReturnsError(t *testing.T) {
	r, _, _ := newMainTestRunner()
	err := runPath(context.Background(), r, "/nonexistent/path/to/script.sh")
	if err == nil {
		t.Fatal("expected an error for a missing script file")
	}
}

// errorsAsExitStatus mirrors main()'s own errors.As(err, &es) check,
// kept local so the test doesn't need to import errors just for this.
func errorsAsExitStatus(err error, target *interp.ExitStatus) bool {
	es, ok := err.(interp.ExitStatus)
	if !ok {
		return false
	}
	*target = es
	return true
}
