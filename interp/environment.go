package interp

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/zish-sh/zish/expand"
)

// alias is one registered `alias name='words'` entry.
type alias struct {
	args []string
}

// frame holds the variables local to one function call, chained to its
// parent so lookups fall through to enclosing scopes and eventually to
// the global frame. Only `local` pushes a name into the top frame;
// ordinary assignment walks up to whichever frame already defines the
// name, or writes into the global frame if none does.
type frame struct {
	parent *frame
	vars   map[string]expand.Variable
}

func newFrame(parent *frame) *frame {
	return &frame{parent: parent, vars: make(map[string]expand.Variable)}
}

// Environment is the shell's variable, alias, function, and
// working-directory state (spec.md §3's Environment type, §4.4's
// operations). It implements expand.WriteEnviron so the expand package
// can read and write it without depending on interp.
type Environment struct {
	global     *frame
	top        *frame // top == global outside of any function call
	positional []string
	name0      string // $0
	lastStatus int
	lastBgPID  int

	funcs   map[string]*FuncValue
	aliases map[string]alias

	dir    string
	oldDir string
}

// FuncValue is a registered shell function body, stored opaquely here
// (syntax.Command) so this package doesn't need to import syntax just
// for the environment; Runner type-asserts it back.
type FuncValue struct {
	Body any
}

// NewEnvironment builds an Environment seeded from the process's own
// environment variables, matching a freshly started login shell.
func NewEnvironment(args []string) *Environment {
	g := newFrame(nil)
	e := &Environment{
		global:  g,
		top:     g,
		funcs:   make(map[string]*FuncValue),
		aliases: make(map[string]alias),
	}
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		g.vars[kv[:i]] = expand.Variable{Value: kv[i+1:], Set: true, Exported: true}
	}
	if len(args) > 0 {
		e.name0 = args[0]
		e.positional = args[1:]
	}
	if dir, err := os.Getwd(); err == nil {
		e.dir = dir
	}
	if _, ok := e.lookup("IFS"); !ok {
		g.vars["IFS"] = expand.Variable{Value: " \t\n", Set: true}
	}
	if _, ok := e.lookup("PWD"); !ok {
		g.vars["PWD"] = expand.Variable{Value: e.dir, Set: true, Exported: true}
	}
	shlvl, _ := strconv.Atoi(strings.TrimSpace(g.vars["SHLVL"].Value))
	g.vars["SHLVL"] = expand.Variable{Value: strconv.Itoa(shlvl + 1), Set: true, Exported: true}
	return e
}

func (e *Environment) lookup(name string) (expand.Variable, bool) {
	for f := e.top; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return expand.Variable{}, false
}

// Get implements expand.Environ.
func (e *Environment) Get(name string) expand.Variable {
	v, _ := e.lookup(name)
	return v
}

// Set implements expand.WriteEnviron: it writes into whichever frame
// already holds name, or the global frame for a brand new name.
func (e *Environment) Set(name, value string) {
	for f := e.top; f != nil; f = f.parent {
		if old, ok := f.vars[name]; ok {
			if old.ReadOnly {
				return
			}
			old.Value = value
			old.Set = true
			f.vars[name] = old
			return
		}
	}
	e.global.vars[name] = expand.Variable{Value: value, Set: true}
}

// SetLocal declares name in the current call frame (the `local`
// builtin), shadowing any outer variable of the same name for the rest
// of the function call.
func (e *Environment) SetLocal(name, value string) {
	e.top.vars[name] = expand.Variable{Value: value, Set: true}
}

// Export marks name exported, creating it unset-empty if it doesn't
// exist yet (`export NAME` with no assignment).
func (e *Environment) Export(name string) {
	for f := e.top; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			v.Exported = true
			f.vars[name] = v
			return
		}
	}
	e.global.vars[name] = expand.Variable{Exported: true}
}

// Unset removes name from whichever frame defines it.
func (e *Environment) Unset(name string) {
	for f := e.top; f != nil; f = f.parent {
		if _, ok := f.vars[name]; ok {
			delete(f.vars, name)
			return
		}
	}
}

// Positional implements expand.Environ.
func (e *Environment) Positional() []string { return e.positional }

// SetPositional replaces the positional parameters, used when calling a
// function or running a script with arguments.
func (e *Environment) SetPositional(args []string) []string {
	old := e.positional
	e.positional = args
	return old
}

// Special implements expand.Environ's $?, $#, $$, $0, $!, $- lookups.
func (e *Environment) Special(name byte) (string, bool) {
	switch name {
	case '?':
		return strconv.Itoa(e.lastStatus), true
	case '#':
		return strconv.Itoa(len(e.positional)), true
	case '$':
		return strconv.Itoa(os.Getpid()), true
	case '0':
		return e.name0, true
	case '!':
		if e.lastBgPID == 0 {
			return "", false
		}
		return strconv.Itoa(e.lastBgPID), true
	case '-':
		return "", true
	}
	return "", false
}

// IFS implements expand.Environ.
func (e *Environment) IFS() string {
	v, ok := e.lookup("IFS")
	if !ok {
		return " \t\n"
	}
	return v.Value
}

// LastStatus returns $?.
func (e *Environment) LastStatus() int { return e.lastStatus }

// SetLastStatus records the exit status of the most recently run
// command, becoming $?.
func (e *Environment) SetLastStatus(status int) { e.lastStatus = status }

// Dir returns the current working directory.
func (e *Environment) Dir() string { return e.dir }

// Chdir updates cwd/OLDPWD/PWD together, per spec.md §4.6's cd builtin.
func (e *Environment) Chdir(dir string) {
	e.oldDir = e.dir
	e.dir = dir
	e.Set("OLDPWD", e.oldDir)
	e.Set("PWD", dir)
}

// OldDir returns the directory `cd -` switches back to.
func (e *Environment) OldDir() string { return e.oldDir }

// PushFrame enters a new function call scope.
func (e *Environment) PushFrame() { e.top = newFrame(e.top) }

// InFunction reports whether the current scope is inside a function
// call frame, i.e. whether `local` is legal here.
func (e *Environment) InFunction() bool { return e.top != e.global }

// PopFrame leaves the current function call scope.
func (e *Environment) PopFrame() {
	if e.top.parent != nil {
		e.top = e.top.parent
	}
}

// copyFrame duplicates a frame and its entire parent chain, so that a
// write into any ancestor frame of the copy lands in the copy's own
// map rather than the original's.
func copyFrame(f *frame) *frame {
	if f == nil {
		return nil
	}
	nf := &frame{parent: copyFrame(f.parent), vars: make(map[string]expand.Variable, len(f.vars))}
	for name, v := range f.vars {
		nf.vars[name] = v
	}
	return nf
}

// Snapshot returns a logical copy-on-write copy of e for a subshell or
// command substitution to run against, per spec.md §9 ("subshells get
// a logical copy-on-write snapshot") and SPEC_FULL.md §6. The frame
// stack and its variable maps are duplicated so assignments made
// against the snapshot never mutate e; funcs/aliases entries are
// value types or treated as immutable once defined, so their maps are
// copied shallowly.
func (e *Environment) Snapshot() *Environment {
	newTop := copyFrame(e.top)
	newGlobal := newTop
	for newGlobal.parent != nil {
		newGlobal = newGlobal.parent
	}
	funcs := make(map[string]*FuncValue, len(e.funcs))
	for name, fn := range e.funcs {
		funcs[name] = fn
	}
	aliases := make(map[string]alias, len(e.aliases))
	for name, a := range e.aliases {
		aliases[name] = a
	}
	positional := make([]string, len(e.positional))
	copy(positional, e.positional)
	return &Environment{
		global:     newGlobal,
		top:        newTop,
		positional: positional,
		name0:      e.name0,
		lastStatus: e.lastStatus,
		lastBgPID:  e.lastBgPID,
		funcs:      funcs,
		aliases:    aliases,
		dir:        e.dir,
		oldDir:     e.oldDir,
	}
}

// LookupFunc returns a registered function's body.
func (e *Environment) LookupFunc(name string) (*FuncValue, bool) {
	f, ok := e.funcs[name]
	return f, ok
}

// DefineFunc registers or replaces a function.
func (e *Environment) DefineFunc(name string, body any) {
	e.funcs[name] = &FuncValue{Body: body}
}

// LookupAlias resolves an alias name to its replacement word list.
func (e *Environment) LookupAlias(name string) ([]string, bool) {
	a, ok := e.aliases[name]
	if !ok {
		return nil, false
	}
	return a.args, true
}

// SetAlias defines or replaces an alias.
func (e *Environment) SetAlias(name string, words []string) {
	e.aliases[name] = alias{args: words}
}

// UnsetAlias removes an alias.
func (e *Environment) UnsetAlias(name string) {
	delete(e.aliases, name)
}

// AliasNames returns every defined alias name, sorted, for `alias`
// with no arguments.
func (e *Environment) AliasNames() []string {
	names := make([]string, 0, len(e.aliases))
	for n := range e.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExportedPairs returns "NAME=value" for every exported variable,
// sorted, for building a child process's environment and for `export`
// with no arguments.
func (e *Environment) ExportedPairs() []string {
	seen := make(map[string]bool)
	var out []string
	for f := e.top; f != nil; f = f.parent {
		for name, v := range f.vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if v.Exported {
				out = append(out, name+"="+v.Value)
			}
		}
	}
	sort.Strings(out)
	return out
}

// VarNames returns every variable name visible in the current scope,
// sorted, for the `set` builtin with no arguments.
func (e *Environment) VarNames() []string {
	seen := make(map[string]bool)
	for f := e.top; f != nil; f = f.parent {
		for name := range f.vars {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
