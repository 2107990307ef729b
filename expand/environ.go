// Package expand implements the word-expansion pipeline described in
// spec.md §4.3: tilde, parameter, command, and arithmetic expansion,
// followed by field splitting, pathname expansion, and quote removal.
package expand

import "github.com/zish-sh/zish/syntax"

// Variable is the value and attributes of a shell variable, as seen
// by the expander. interp.Environment implements the read/write
// interfaces below over its own richer, frame-scoped representation.
type Variable struct {
	Value    string
	Set      bool
	Exported bool
	ReadOnly bool
}

// Environ is the read side of the environment the expander consults:
// variable lookup, positional parameters, and the handful of special
// parameters ($?, $#, $$, $0, $@, $*).
type Environ interface {
	Get(name string) Variable
	Positional() []string
	Special(name byte) (string, bool)
	IFS() string
}

// WriteEnviron additionally allows the expander to apply ${N:=word}
// assignments and track which names it created.
type WriteEnviron interface {
	Environ
	Set(name, value string)
}

// Config bundles everything the expander needs beyond the Word being
// expanded: the environment, and callbacks for the two operations that
// require running other code (command substitution spawns a subshell;
// glob expansion reads the filesystem).
type Config struct {
	Env Environ

	// CmdSubst runs the given command and returns its captured stdout;
	// the expander strips trailing newlines from the result. Grounded
	// on Runner's CmdSubst handler in the teacher's interp package.
	CmdSubst func(body syntax.Command) (string, error)

	// Assign is called for ${NAME:=word}, letting the expander push
	// the assignment back into the environment it doesn't own.
	Assign func(name, value string)

	// Glob lists the entries of dir (globField in expand.go joins dir with
	// the pattern's directory component). It is a seam purely so
	// tests can run without touching the real filesystem.
	Glob func(dir string) ([]string, error)
}
