package interp

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

func newBuiltinTestRunner() (*Runner, streams, *bytes.Buffer, *bytes.Buffer) {
	env := NewEnvironment([]string{"zish"})
	r := NewRunner(env)
	var out, errOut bytes.Buffer
	st := streams{stdin: strings.NewReader(""), stdout: &out, stderr: &errOut}
	return r, st, &out, &errOut
}

func runBuiltinArgs(t *testing.T, r *Runner, st streams, args ...string) (int, bool) {
	t.Helper()
	status, exit, handled := r.runBuiltin(context.Background(), args, st)
	if exit != nil {
		t.Fatalf("unexpected ShellExit for %v: %+v", args, exit)
	}
	return status, handled
}

func TestIsBuiltin(t *testing.T) {
	for _, name := range []string{"cd", "export", "unset", "alias", "unalias", "set", "local", ":", "true", "false", "echo", "exit", "pwd", "[", "[["} {
		if !IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = false, want true", name)
		}
	}
	if IsBuiltin("ls") {
		t.Error("IsBuiltin(\"ls\") = true, want false (ls is an external command)")
	}
}

func TestBuiltinColonTrueFalse(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	if status, handled := runBuiltinArgs(t, r, st, ":"); !handled || status != 0 {
		t.Errorf(": got status %d handled %v, want 0 true", status, handled)
	}
	if status, handled := runBuiltinArgs(t, r, st, "true"); !handled || status != 0 {
		t.Errorf("true got status %d handled %v, want 0 true", status, handled)
	}
	if status, handled := runBuiltinArgs(t, r, st, "false"); !handled || status != 1 {
		t.Errorf("false got status %d handled %v, want 1 true", status, handled)
	}
}

func TestBuiltinEchoPlain(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	runBuiltinArgs(t, r, st, "echo", "hello", "world")
	if got := out.String(); got != "hello world\n" {
		t.Errorf("got %q, want %q", got, "hello world\n")
	}
}

func TestBuiltinEchoNoNewline(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	runBuiltinArgs(t, r, st, "echo", "-n", "hello")
	if got := out.String(); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestBuiltinPwd(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	runBuiltinArgs(t, r, st, "pwd")
	if got := out.String(); got != r.Env.Dir()+"\n" {
		t.Errorf("got %q, want %q", got, r.Env.Dir()+"\n")
	}
}

func TestBuiltinCdDefaultsToHome(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	home := t.TempDir()
	r.Env.Set("HOME", home)
	status, _ := runBuiltinArgs(t, r, st, "cd")
	if status != 0 {
		t.Fatalf("cd got status %d, want 0", status)
	}
	if r.Env.Dir() != home {
		t.Errorf("Dir() = %q, want %q", r.Env.Dir(), home)
	}
}

func TestBuiltinCdRelativePath(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	base := t.TempDir()
	r.Env.Chdir(base)
	sub := base + "/child"
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	status, _ := runBuiltinArgs(t, r, st, "cd", "child")
	if status != 0 {
		t.Fatalf("cd child got status %d, want 0", status)
	}
	if r.Env.Dir() != sub {
		t.Errorf("Dir() = %q, want %q", r.Env.Dir(), sub)
	}
}

func TestBuiltinCdDashSwitchesAndPrints(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	first := t.TempDir()
	second := t.TempDir()
	r.Env.Chdir(first)
	r.Env.Chdir(second)
	status, _ := runBuiltinArgs(t, r, st, "cd", "-")
	if status != 0 {
		t.Fatalf("cd - got status %d, want 0", status)
	}
	if r.Env.Dir() != first {
		t.Errorf("Dir() = %q, want %q (cd - should return to the previous directory)", r.Env.Dir(), first)
	}
	if got := out.String(); got != first+"\n" {
		t.Errorf("cd - should print the directory it switched to: got %q, want %q", got, first+"\n")
	}
}

func TestBuiltinCdNotADirectory(t *testing.T) {
	r, st, _, errOut := newBuiltinTestRunner()
	dir := t.TempDir()
	file := dir + "/plain.txt"
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	status, _ := runBuiltinArgs(t, r, st, "cd", file)
	if status == 0 {
		t.Error("cd on a plain file should fail")
	}
	if errOut.String() == "" {
		t.Error("cd on a plain file should report an error")
	}
}

func TestBuiltinExportBareName(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	r.Env.Set("FOO", "bar")
	status, _ := runBuiltinArgs(t, r, st, "export", "FOO")
	if status != 0 {
		t.Fatalf("got status %d, want 0", status)
	}
	found := false
	for _, kv := range r.Env.ExportedPairs() {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Errorf("ExportedPairs() = %v, want it to contain FOO=bar", r.Env.ExportedPairs())
	}
}

func TestBuiltinExportNameEqualsValue(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	status, _ := runBuiltinArgs(t, r, st, "export", "FOO=baz")
	if status != 0 {
		t.Fatalf("got status %d, want 0", status)
	}
	if got := r.Env.Get("FOO").Value; got != "baz" {
		t.Errorf("Get(FOO) = %q, want %q", got, "baz")
	}
	found := false
	for _, kv := range r.Env.ExportedPairs() {
		if kv == "FOO=baz" {
			found = true
		}
	}
	if !found {
		t.Errorf("ExportedPairs() = %v, want it to contain FOO=baz", r.Env.ExportedPairs())
	}
}

func TestBuiltinExportNoArgsLists(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	r.Env.Set("FOO", "bar")
	r.Env.Export("FOO")
	runBuiltinArgs(t, r, st, "export")
	if got := out.String(); !strings.Contains(got, "export FOO=bar\n") {
		t.Errorf("export with no args should list exported vars, got %q", got)
	}
}

func TestBuiltinUnset(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	r.Env.Set("FOO", "bar")
	runBuiltinArgs(t, r, st, "unset", "FOO")
	if got := r.Env.Get("FOO").Value; got != "" {
		t.Errorf("Get(FOO) after unset = %q, want empty", got)
	}
}

func TestBuiltinAliasSetAndList(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	runBuiltinArgs(t, r, st, "alias", "ll=echo listing")
	words, ok := r.Env.LookupAlias("ll")
	if !ok {
		t.Fatal("alias ll was not registered")
	}
	if got := strings.Join(words, " "); got != "echo listing" {
		t.Errorf("alias words = %q, want %q", got, "echo listing")
	}

	out.Reset()
	runBuiltinArgs(t, r, st, "alias")
	if got := out.String(); !strings.Contains(got, "alias ll='echo listing'\n") {
		t.Errorf("alias with no args should list aliases, got %q", got)
	}
}

func TestBuiltinUnalias(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	r.Env.SetAlias("ll", []string{"echo", "listing"})
	runBuiltinArgs(t, r, st, "unalias", "ll")
	if _, ok := r.Env.LookupAlias("ll"); ok {
		t.Error("alias ll should be gone after unalias")
	}
}

func TestBuiltinSetDoubleDashReassignsPositional(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	r.Env.SetPositional([]string{"old1", "old2"})
	runBuiltinArgs(t, r, st, "set", "--", "a", "b", "c")
	got := r.Env.Positional()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Positional() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Positional()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuiltinSetNoArgsListsVars(t *testing.T) {
	r, st, out, _ := newBuiltinTestRunner()
	r.Env.Set("FOO", "bar")
	runBuiltinArgs(t, r, st, "set")
	if got := out.String(); !strings.Contains(got, "FOO=bar\n") {
		t.Errorf("set with no args should list vars, got %q", got)
	}
}

func TestBuiltinLocal(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	r.Env.PushFrame()
	defer r.Env.PopFrame()
	runBuiltinArgs(t, r, st, "local", "x=1")
	if got := r.Env.Get("x").Value; got != "1" {
		t.Errorf("Get(x) = %q, want %q", got, "1")
	}
}

// TestBuiltinLocalOutsideFunctionErrors is a regression test for
// spec.md §4.6: `local` must error when used outside a function
// instead of silently writing into the global frame.
func TestBuiltinLocalOutsideFunctionErrors(t *testing.T) {
	r, st, _, errOut := newBuiltinTestRunner()
	status, handled := runBuiltinArgs(t, r, st, "local", "x=1")
	if !handled {
		t.Fatal("local should be handled")
	}
	if status == 0 {
		t.Error("local outside a function should return a non-zero status")
	}
	if errOut.String() == "" {
		t.Error("local outside a function should report an error")
	}
	if got := r.Env.Get("x").Value; got != "" {
		t.Errorf("Get(x) = %q, want unset (local must not write the global frame when it errors)", got)
	}
}

func TestBuiltinExitDefaultsToLastStatus(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	r.Env.SetLastStatus(7)
	status, exit, handled := r.runBuiltin(context.Background(), []string{"exit"}, st)
	if !handled {
		t.Fatal("exit should be handled")
	}
	if exit == nil || exit.Status != 7 {
		t.Errorf("exit = %+v, want Status 7", exit)
	}
	if status != 7 {
		t.Errorf("status = %d, want 7", status)
	}
}

func TestBuiltinExitExplicitStatus(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	_, exit, handled := r.runBuiltin(context.Background(), []string{"exit", "42"}, st)
	if !handled {
		t.Fatal("exit should be handled")
	}
	if exit == nil || exit.Status != 42 {
		t.Errorf("exit = %+v, want Status 42", exit)
	}
}

func TestBuiltinExitInvalidStatus(t *testing.T) {
	r, st, _, errOut := newBuiltinTestRunner()
	status, exit, handled := r.runBuiltin(context.Background(), []string{"exit", "not-a-number"}, st)
	if !handled {
		t.Fatal("exit should be handled")
	}
	if exit != nil {
		t.Errorf("an invalid exit status should not produce a ShellExit, got %+v", exit)
	}
	if status != 2 {
		t.Errorf("status = %d, want 2", status)
	}
	if errOut.String() == "" {
		t.Error("an invalid exit status should report an error")
	}
}

func TestBuiltinExitTooManyArgs(t *testing.T) {
	r, st, _, errOut := newBuiltinTestRunner()
	status, exit, handled := r.runBuiltin(context.Background(), []string{"exit", "1", "2"}, st)
	if !handled {
		t.Fatal("exit should be handled")
	}
	if exit != nil {
		t.Errorf("too many exit args should not produce a ShellExit, got %+v", exit)
	}
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
	if errOut.String() == "" {
		t.Error("too many exit args should report an error")
	}
}

func TestBuiltinBracketMissingCloseBracket(t *testing.T) {
	r, st, _, errOut := newBuiltinTestRunner()
	status, handled := runBuiltinArgs(t, r, st, "[", "-n", "x")
	if !handled {
		t.Fatal("[ should be handled")
	}
	if status != 2 {
		t.Errorf("status = %d, want 2", status)
	}
	if errOut.String() == "" {
		t.Error("[ without a trailing ] should report an error")
	}
}

func TestBuiltinBracketTrue(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	status, handled := runBuiltinArgs(t, r, st, "[", "-n", "x", "]")
	if !handled {
		t.Fatal("[ should be handled")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestBuiltinDoubleBracketRegex(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	status, handled := runBuiltinArgs(t, r, st, "[[", "foo", "=~", "^f.o$")
	if !handled {
		t.Fatal("[[ should be handled")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestRunBuiltinNotABuiltinFallsThrough(t *testing.T) {
	r, st, _, _ := newBuiltinTestRunner()
	_, _, handled := r.runBuiltin(context.Background(), []string{"ls"}, st)
	if handled {
		t.Error("ls is not a builtin, runBuiltin should report handled=false")
	}
}
