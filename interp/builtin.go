package interp

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// atoi is like strconv.ParseInt(s, 10, 64) but ignores errors and trims
// whitespace, grounded on the teacher's interp/builtin.go atoi helper.
func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// builtinNames is spec.md §4.6's builtin list plus the pwd supplement
// documented in SPEC_FULL.md §6.
var builtinNames = map[string]bool{
	"cd": true, "export": true, "unset": true, "alias": true, "unalias": true,
	"set": true, "local": true, ":": true, "true": true, "false": true,
	"echo": true, "exit": true, "pwd": true, "[": true, "[[": true,
}

// IsBuiltin reports whether name is one of this shell's builtins.
func IsBuiltin(name string) bool {
	return builtinNames[name]
}

// runBuiltin dispatches a builtin by name. It returns handled=false if
// name isn't a builtin, so the caller falls through to function lookup
// and external exec. A non-nil *ShellExit (from the "exit" builtin)
// must be propagated upward exactly like a function or command's own
// exit, per the ShellExit control-flow convention used throughout
// runner.go.
func (r *Runner) runBuiltin(ctx context.Context, args []string, st streams) (status int, exit *ShellExit, handled bool) {
	name := args[0]
	rest := args[1:]
	if !IsBuiltin(name) {
		return 0, nil, false
	}
	switch name {
	case ":", "true":
		return 0, nil, true
	case "false":
		return 1, nil, true
	case "exit":
		status := r.Env.LastStatus()
		switch len(rest) {
		case 0:
		case 1:
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				fmt.Fprintf(st.stderr, "zish: exit: invalid exit status %q\n", rest[0])
				return 2, nil, true
			}
			status = n
		default:
			fmt.Fprintln(st.stderr, "zish: exit: too many arguments")
			return 1, nil, true
		}
		return status, &ShellExit{Status: uint8(status)}, true
	case "cd":
		return r.builtinCd(rest, st), nil, true
	case "pwd":
		fmt.Fprintln(st.stdout, r.Env.Dir())
		return 0, nil, true
	case "export":
		return r.builtinExport(rest, st), nil, true
	case "unset":
		for _, n := range rest {
			r.Env.Unset(n)
		}
		return 0, nil, true
	case "local":
		return r.builtinLocal(rest, st), nil, true
	case "set":
		return r.builtinSet(rest, st), nil, true
	case "alias":
		return r.builtinAlias(rest, st), nil, true
	case "unalias":
		for _, n := range rest {
			r.Env.UnsetAlias(n)
		}
		return 0, nil, true
	case "echo":
		return r.builtinEcho(rest, st), nil, true
	case "[":
		if len(rest) == 0 || rest[len(rest)-1] != "]" {
			fmt.Fprintln(st.stderr, "zish: [: missing matching ]")
			return 2, nil, true
		}
		v, err := EvalTest(rest[:len(rest)-1], false)
		if err != nil {
			fmt.Fprintln(st.stderr, "zish:", err)
			return 2, nil, true
		}
		return boolStatus(v), nil, true
	case "[[":
		if len(rest) > 0 && rest[len(rest)-1] == "]]" {
			rest = rest[:len(rest)-1]
		}
		v, err := EvalTest(rest, true)
		if err != nil {
			fmt.Fprintln(st.stderr, "zish:", err)
			return 2, nil, true
		}
		return boolStatus(v), nil, true
	}
	return 0, nil, false
}

func boolStatus(v bool) int {
	if v {
		return 0
	}
	return 1
}

func (r *Runner) builtinCd(args []string, st streams) int {
	var target string
	switch len(args) {
	case 0:
		target = r.Env.Get("HOME").Value
	case 1:
		target = args[0]
		if target == "-" {
			target = r.Env.OldDir()
			fmt.Fprintln(st.stdout, target)
		}
	default:
		fmt.Fprintln(st.stderr, "zish: cd: too many arguments")
		return 2
	}
	if target == "" {
		fmt.Fprintln(st.stderr, "zish: cd: no directory")
		return 1
	}
	if !strings.HasPrefix(target, "/") {
		target = r.Env.Dir() + "/" + target
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(st.stderr, "zish: cd: %s: not a directory\n", target)
		return 1
	}
	r.Env.Chdir(target)
	return 0
}

func (r *Runner) builtinExport(args []string, st streams) int {
	if len(args) == 0 {
		for _, kv := range r.Env.ExportedPairs() {
			fmt.Fprintf(st.stdout, "export %s\n", kv)
		}
		return 0
	}
	for _, arg := range args {
		name, value, hasEq := strings.Cut(arg, "=")
		if hasEq {
			r.Env.Set(name, value)
		}
		r.Env.Export(name)
	}
	return 0
}

func (r *Runner) builtinLocal(args []string, st streams) int {
	if !r.Env.InFunction() {
		fmt.Fprintln(st.stderr, "zish: local: can only be used in a function")
		return 1
	}
	for _, arg := range args {
		name, value, _ := strings.Cut(arg, "=")
		r.Env.SetLocal(name, value)
	}
	return 0
}

func (r *Runner) builtinSet(args []string, st streams) int {
	if len(args) == 0 {
		for _, n := range r.Env.VarNames() {
			fmt.Fprintf(st.stdout, "%s=%s\n", n, r.Env.Get(n).Value)
		}
		return 0
	}
	// Positional-parameter assignment: `set -- a b c`.
	if args[0] == "--" {
		r.Env.SetPositional(args[1:])
		return 0
	}
	r.Env.SetPositional(args)
	return 0
}

func (r *Runner) builtinAlias(args []string, st streams) int {
	if len(args) == 0 {
		for _, name := range r.Env.AliasNames() {
			words, _ := r.Env.LookupAlias(name)
			fmt.Fprintf(st.stdout, "alias %s='%s'\n", name, strings.Join(words, " "))
		}
		return 0
	}
	status := 0
	for _, arg := range args {
		name, value, hasEq := strings.Cut(arg, "=")
		if !hasEq {
			words, ok := r.Env.LookupAlias(name)
			if !ok {
				fmt.Fprintf(st.stderr, "zish: alias: %s not found\n", name)
				status = 1
				continue
			}
			fmt.Fprintf(st.stdout, "alias %s='%s'\n", name, strings.Join(words, " "))
			continue
		}
		r.Env.SetAlias(name, strings.Fields(value))
	}
	return status
}

func (r *Runner) builtinEcho(args []string, st streams) int {
	newline := true
	for len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	fmt.Fprint(st.stdout, strings.Join(args, " "))
	if newline {
		fmt.Fprintln(st.stdout)
	}
	return 0
}

