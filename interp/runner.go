package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zish-sh/zish/expand"
	"github.com/zish-sh/zish/pattern"
	"github.com/zish-sh/zish/syntax"
	"github.com/zish-sh/zish/token"
)

// Runner interprets a parsed program against an Environment, per
// spec.md §4.5's executor state machine. It is not safe for concurrent
// use from more than one goroutine at a time, though a single Run call
// may itself fan out pipeline stages concurrently.
type Runner struct {
	Env  *Environment
	Exec ExecHandlerFunc

	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// Interactive gates alias expansion per spec.md §9's explicit
	// choice of pre-parse expansion only in interactive mode; cmd/zish
	// sets this before entering its REPL loop.
	Interactive bool
}

// NewRunner builds a Runner with the default process-exec handler.
func NewRunner(env *Environment) *Runner {
	return &Runner{
		Env:    env,
		Exec:   DefaultExecHandler(defaultKillTimeout),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

const defaultKillTimeout = 0

// streams is the set of file descriptors a command sees, threaded
// explicitly through execution so that pipeline stages running
// concurrently don't share mutable Runner fields.
type streams struct {
	stdin          io.Reader
	stdout, stderr io.Writer
}

func (r *Runner) rootStreams() streams {
	return streams{stdin: r.Stdin, stdout: r.Stdout, stderr: r.Stderr}
}

// Run executes file's top-level command list and returns the resulting
// exit status, updating $?. It never returns an error for ordinary
// command failures (those become exit statuses); only a context
// cancellation aborts early.
func (r *Runner) Run(ctx context.Context, file *syntax.File) int {
	if file.Body == nil {
		return 0
	}
	status, shellExit := r.exec(ctx, file.Body, r.rootStreams())
	r.Env.SetLastStatus(status)
	if shellExit != nil {
		return int(shellExit.Status)
	}
	return status
}

// exec runs one Command node, returning its exit status and, if the
// exit builtin was invoked, a non-nil *ShellExit that callers must
// propagate upward without running anything further.
func (r *Runner) exec(ctx context.Context, cmd syntax.Command, st streams) (int, *ShellExit) {
	if err := ctx.Err(); err != nil {
		return 130, &ShellExit{Status: 130}
	}
	switch c := cmd.(type) {
	case *syntax.SimpleCmd:
		return r.execSimple(ctx, c, st)
	case *syntax.Pipeline:
		return r.execPipeline(ctx, c, st)
	case *syntax.AndOr:
		return r.execAndOr(ctx, c, st)
	case *syntax.Sequence:
		return r.execSequence(ctx, c, st)
	case *syntax.Subshell:
		return r.execSubshell(ctx, c, st)
	case *syntax.Group:
		return r.exec(ctx, c.Body, st)
	case *syntax.IfClause:
		return r.execIf(ctx, c, st)
	case *syntax.WhileClause:
		return r.execWhile(ctx, c, st)
	case *syntax.ForClause:
		return r.execFor(ctx, c, st)
	case *syntax.CaseClause:
		return r.execCase(ctx, c, st)
	case *syntax.FuncDecl:
		r.Env.DefineFunc(c.Name, c.Body)
		return 0, nil
	default:
		fmt.Fprintf(st.stderr, "zish: unsupported command node %T\n", c)
		return 1, nil
	}
}

func (r *Runner) execSequence(ctx context.Context, s *syntax.Sequence, st streams) (int, *ShellExit) {
	status := 0
	for _, item := range s.Items {
		var exit *ShellExit
		status, exit = r.exec(ctx, item, st)
		if exit != nil {
			return status, exit
		}
	}
	return status, nil
}

func (r *Runner) execAndOr(ctx context.Context, a *syntax.AndOr, st streams) (int, *ShellExit) {
	status, exit := r.exec(ctx, a.Left, st)
	if exit != nil {
		return status, exit
	}
	switch a.Op {
	case token.AndAnd:
		if status != 0 {
			return status, nil
		}
	case token.OrOr:
		if status == 0 {
			return status, nil
		}
	}
	return r.exec(ctx, a.Right, st)
}

func (r *Runner) execIf(ctx context.Context, ifc *syntax.IfClause, st streams) (int, *ShellExit) {
	status, exit := r.exec(ctx, ifc.Cond, st)
	if exit != nil {
		return status, exit
	}
	if status == 0 {
		return r.exec(ctx, ifc.Then, st)
	}
	for _, elif := range ifc.Elifs {
		status, exit = r.exec(ctx, elif.Cond, st)
		if exit != nil {
			return status, exit
		}
		if status == 0 {
			return r.exec(ctx, elif.Body, st)
		}
	}
	if ifc.Else != nil {
		return r.exec(ctx, ifc.Else, st)
	}
	return 0, nil
}

func (r *Runner) execWhile(ctx context.Context, w *syntax.WhileClause, st streams) (int, *ShellExit) {
	status := 0
	for {
		condStatus, exit := r.exec(ctx, w.Cond, st)
		if exit != nil {
			return condStatus, exit
		}
		done := condStatus == 0
		if w.Until {
			done = condStatus != 0
		}
		if !done {
			return status, nil
		}
		status, exit = r.exec(ctx, w.Body, st)
		if exit != nil {
			return status, exit
		}
		if err := ctx.Err(); err != nil {
			return status, &ShellExit{Status: 130}
		}
	}
}

func (r *Runner) execFor(ctx context.Context, f *syntax.ForClause, st streams) (int, *ShellExit) {
	words, err := expand.Fields(r.expandConfig(st), f.Words)
	if err != nil {
		fmt.Fprintln(st.stderr, "zish:", err)
		return 1, nil
	}
	status := 0
	for _, w := range words {
		r.Env.Set(f.Name, w)
		var exit *ShellExit
		status, exit = r.exec(ctx, f.Body, st)
		if exit != nil {
			return status, exit
		}
	}
	return status, nil
}

func (r *Runner) execCase(ctx context.Context, c *syntax.CaseClause, st streams) (int, *ShellExit) {
	subject, err := expand.CasePattern(r.expandConfig(st), c.Subject)
	if err != nil {
		fmt.Fprintln(st.stderr, "zish:", err)
		return 1, nil
	}
	for _, item := range c.Items {
		for _, pw := range item.Patterns {
			pat, err := expand.CasePattern(r.expandConfig(st), pw)
			if err != nil {
				fmt.Fprintln(st.stderr, "zish:", err)
				return 1, nil
			}
			re, err := pattern.Compile(pat)
			if err != nil {
				continue
			}
			if re.MatchString(subject) {
				if item.Body == nil {
					return 0, nil
				}
				return r.exec(ctx, item.Body, st)
			}
		}
	}
	return 0, nil
}

func (r *Runner) execSubshell(ctx context.Context, s *syntax.Subshell, st streams) (int, *ShellExit) {
	child := *r
	child.Env = r.Env.Snapshot()
	status, exit := child.exec(ctx, s.Body, st)
	if exit != nil {
		// A subshell's own "exit" only ends the subshell.
		return int(exit.Status), nil
	}
	return status, nil
}

// execPipeline runs a (possibly single-stage) pipeline, connecting
// consecutive stages' stdout/stdin with os.Pipe and running every
// stage concurrently via errgroup, grounded on the teacher's use of
// errgroup.Group for its own background-job bookkeeping.
func (r *Runner) execPipeline(ctx context.Context, p *syntax.Pipeline, st streams) (int, *ShellExit) {
	status, exit := r.runPipelineStages(ctx, p.Stages, st)
	if p.Negated {
		if status == 0 {
			status = 1
		} else {
			status = 0
		}
	}
	return status, exit
}

func (r *Runner) runPipelineStages(ctx context.Context, stages []syntax.Command, st streams) (int, *ShellExit) {
	if len(stages) == 1 {
		return r.exec(ctx, stages[0], st)
	}

	g, gctx := errgroup.WithContext(ctx)
	statuses := make([]int, len(stages))
	exits := make([]*ShellExit, len(stages))

	stageIO := make([]streams, len(stages))
	stageIO[0] = streams{stdin: st.stdin, stderr: st.stderr}
	var closers []io.Closer
	for i := 0; i < len(stages)-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			fmt.Fprintln(st.stderr, "zish: pipe:", err)
			return 1, nil
		}
		stageIO[i].stdout = pw
		stageIO[i+1] = streams{stdin: pr, stderr: st.stderr}
		closers = append(closers, pr, pw)
	}
	stageIO[len(stages)-1].stdout = st.stdout

	for i, stage := range stages {
		i, stage := i, stage
		g.Go(func() error {
			s, exit := r.exec(gctx, stage, stageIO[i])
			statuses[i] = s
			exits[i] = exit
			if wc, ok := stageIO[i].stdout.(io.Closer); ok && i < len(stages)-1 {
				wc.Close()
			}
			if rc, ok := stageIO[i].stdin.(io.Closer); ok && i > 0 {
				rc.Close()
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, c := range closers {
		c.Close()
	}
	for _, exit := range exits {
		if exit != nil {
			return statuses[len(stages)-1], exit
		}
	}
	return statuses[len(stages)-1], nil
}

// execSimple runs variable assignments, redirections, and either a
// builtin, a function call, or an external command, per spec.md §4.5's
// simple-command rules.
func (r *Runner) execSimple(ctx context.Context, c *syntax.SimpleCmd, st streams) (int, *ShellExit) {
	cfg := r.expandConfig(st)

	if len(c.Args) == 0 {
		// A bare assignment/redirection command: assignments persist
		// in the current environment (no subshell to undo them).
		for _, as := range c.Assigns {
			val := ""
			if as.Value != nil {
				v, err := expand.Word(cfg, as.Value)
				if err != nil {
					fmt.Fprintln(st.stderr, "zish:", err)
					return 1, nil
				}
				val = v
			}
			r.Env.Set(as.Name, val)
		}
		newIO, restore, err := r.applyRedirects(c.Redirs, st, cfg)
		if err != nil {
			fmt.Fprintln(st.stderr, "zish:", err)
			return 1, nil
		}
		defer restore()
		_ = newIO
		return 0, nil
	}

	var args []string
	var err error
	if lit, ok := c.Args[0].Lit(); ok && lit == "[[" {
		// [[ operands are neither field-split nor globbed.
		for _, w := range c.Args {
			s, werr := expand.CasePattern(cfg, w)
			if werr != nil {
				err = werr
				break
			}
			args = append(args, s)
		}
	} else {
		args, err = expand.Fields(cfg, c.Args)
	}
	if err != nil {
		fmt.Fprintln(st.stderr, "zish:", err)
		return 1, nil
	}
	if len(args) == 0 {
		return 0, nil
	}
	if r.Interactive {
		args = r.expandAlias(args)
	}

	newIO, restore, err := r.applyRedirects(c.Redirs, st, cfg)
	if err != nil {
		fmt.Fprintln(st.stderr, "zish:", err)
		return 1, nil
	}
	defer restore()

	if len(c.Assigns) > 0 {
		// Assignments preceding a command apply only for its duration
		// (exported into the child process, not left behind).
		saved := make(map[string]expand.Variable, len(c.Assigns))
		for _, as := range c.Assigns {
			saved[as.Name] = r.Env.Get(as.Name)
			val := ""
			if as.Value != nil {
				v, err := expand.Word(cfg, as.Value)
				if err != nil {
					fmt.Fprintln(newIO.stderr, "zish:", err)
					return 1, nil
				}
				val = v
			}
			r.Env.Set(as.Name, val)
			r.Env.Export(as.Name)
		}
		defer func() {
			for name, old := range saved {
				if old.Set {
					r.Env.Set(name, old.Value)
				} else {
					r.Env.Unset(name)
				}
			}
		}()
	}

	if fn, ok := r.Env.LookupFunc(args[0]); ok {
		return r.callFunc(ctx, fn, args, newIO)
	}
	if status, exit, handled := r.runBuiltin(ctx, args, newIO); handled {
		return status, exit
	}

	hc := HandlerContext{Env: r.Env, Dir: r.Env.Dir(), Stdin: toReader(newIO.stdin), Stdout: newIO.stdout, Stderr: newIO.stderr}
	err = r.Exec(ctx, hc, args)
	switch e := err.(type) {
	case nil:
		return 0, nil
	case ExitStatus:
		return int(e), nil
	case *SignalDeath:
		fmt.Fprintln(newIO.stderr, e.Error())
		return 128 + e.Signal, nil
	default:
		fmt.Fprintln(newIO.stderr, "zish:", err)
		return 127, nil
	}
}

// expandAlias replaces args[0] with its registered alias word list,
// a single time (non-recursive, per spec.md §9's Open Question
// decision), so `alias ll='ls -l'` followed by `ll /tmp` runs
// `ls -l /tmp`. Only the leading word is ever checked, matching the
// restricted simple-command-name form of alias expansion.
func (r *Runner) expandAlias(args []string) []string {
	words, ok := r.Env.LookupAlias(args[0])
	if !ok {
		return args
	}
	out := make([]string, 0, len(words)+len(args)-1)
	out = append(out, words...)
	out = append(out, args[1:]...)
	return out
}

func (r *Runner) callFunc(ctx context.Context, fn *FuncValue, args []string, st streams) (int, *ShellExit) {
	body, ok := fn.Body.(syntax.Command)
	if !ok {
		fmt.Fprintln(st.stderr, "zish: corrupt function body")
		return 1, nil
	}
	oldPositional := r.Env.SetPositional(args[1:])
	r.Env.PushFrame()
	status, exit := r.exec(ctx, body, st)
	r.Env.PopFrame()
	r.Env.SetPositional(oldPositional)
	if exit != nil {
		// exit inside a function ends the whole shell, matching a
		// top-level exit; only a subshell boundary absorbs it.
		return status, exit
	}
	return status, nil
}

// applyRedirects opens each redirection's target and returns the
// resulting streams plus a restore func that closes any files it
// opened. Heredocs are expanded here (unless their delimiter was
// quoted) using cfg so $vars inside the body are substituted.
func (r *Runner) applyRedirects(redirs []*syntax.Redirect, st streams, cfg expand.Config) (streams, func(), error) {
	out := st
	var opened []io.Closer

	for _, rd := range redirs {
		switch rd.Op {
		case token.Less:
			name, err := expand.Word(cfg, rd.Target)
			if err != nil {
				return out, noop, err
			}
			f, err := os.Open(name)
			if err != nil {
				return out, noop, err
			}
			opened = append(opened, f)
			if rd.FD == 0 {
				out.stdin = f
			}
		case token.Great:
			name, err := expand.Word(cfg, rd.Target)
			if err != nil {
				return out, noop, err
			}
			f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return out, noop, err
			}
			opened = append(opened, f)
			assignOut(&out, rd.FD, f)
		case token.DGreat:
			name, err := expand.Word(cfg, rd.Target)
			if err != nil {
				return out, noop, err
			}
			f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				return out, noop, err
			}
			opened = append(opened, f)
			assignOut(&out, rd.FD, f)
		case token.AmpGreat:
			name, err := expand.Word(cfg, rd.Target)
			if err != nil {
				return out, noop, err
			}
			f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return out, noop, err
			}
			opened = append(opened, f)
			out.stdout = f
			out.stderr = f
		case token.DLess, token.DLessDash:
			var body string
			if len(rd.Heredoc.Lines) > 0 {
				body = strings.Join(rd.Heredoc.Lines, "\n") + "\n"
			}
			if !rd.Heredoc.Quoted {
				expanded, err := expandHeredocBody(cfg, body)
				if err != nil {
					return out, noop, err
				}
				body = expanded
			}
			out.stdin = strings.NewReader(body)
		}
	}

	restore := func() {
		for i := len(opened) - 1; i >= 0; i-- {
			opened[i].Close()
		}
	}
	return out, restore, nil
}

func noop() {}

func assignOut(s *streams, fd int, f io.Writer) {
	switch fd {
	case 2:
		s.stderr = f
	default:
		s.stdout = f
	}
}

func toReader(r io.Reader) io.Reader {
	if r == nil {
		return bytes.NewReader(nil)
	}
	return r
}

// expandConfig builds an expand.Config bound to this Runner's
// environment and st, wiring command substitution and globbing through
// to the Runner itself.
func (r *Runner) expandConfig(st streams) expand.Config {
	return expand.Config{
		Env: r.Env,
		CmdSubst: func(body syntax.Command) (string, error) {
			return r.captureOutput(body, st)
		},
		Assign: func(name, value string) {
			r.Env.Set(name, value)
		},
		Glob: func(dir string) ([]string, error) {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil, err
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			return names, nil
		},
	}
}

// captureOutput runs body as a subshell with stdout redirected to an
// in-memory buffer, implementing $(...) and `...` command substitution.
func (r *Runner) captureOutput(body syntax.Command, st streams) (string, error) {
	var buf bytes.Buffer
	child := *r
	child.Env = r.Env.Snapshot()
	sub := streams{stdin: st.stdin, stdout: &buf, stderr: st.stderr}
	child.exec(context.Background(), body, sub)
	return buf.String(), nil
}

// expandHeredocBody applies parameter/command/arithmetic expansion to
// an unquoted-delimiter heredoc body, with no field splitting or
// globbing (the body is always one literal blob).
func expandHeredocBody(cfg expand.Config, body string) (string, error) {
	w, err := syntax.DecodeHeredocBody(body)
	if err != nil {
		return "", err
	}
	return expand.CasePattern(cfg, w)
}
