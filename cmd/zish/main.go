// zish is a small POSIX-flavored interactive shell built on top of the
// syntax/expand/interp packages in this module.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/zish-sh/zish/interp"
	"github.com/zish-sh/zish/syntax"
)

// version has no release process to source a real value from, so it's
// a fixed constant rather than something stamped by a build pipeline.
const version = "0.1.0"

var (
	command    = flag.String("c", "", "command to be executed")
	showVer    = flag.Bool("version", false, "print version and exit")
	showVerAbb = flag.Bool("v", false, "print version and exit (shorthand)")
)

func main() {
	flag.Parse()
	if *showVer || *showVerAbb {
		fmt.Println("zish version " + version)
		return
	}
	err := runAll()
	var es interp.ExitStatus
	if errors.As(err, &es) {
		os.Exit(int(es))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAll() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	env := interp.NewEnvironment(append([]string{"zish"}, args...))
	r := interp.NewRunner(env)

	if *command != "" {
		return run(ctx, r, []byte(*command), "")
	}
	if len(args) == 0 {
		if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			r.Interactive = true
			return runInteractive(ctx, r)
		}
		src, err := io.ReadAll(r.Stdin)
		if err != nil {
			return err
		}
		return run(ctx, r, src, "")
	}
	return runPath(ctx, r, args[0])
}

func run(ctx context.Context, r *interp.Runner, src []byte, name string) error {
	file, err := syntax.NewParser().ParseBytes(src, name)
	if err != nil {
		return err
	}
	status := r.Run(ctx, file)
	if status != 0 {
		return interp.ExitStatus(status)
	}
	return nil
}

func runPath(ctx context.Context, r *interp.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	src, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	return run(ctx, r, src, path)
}

// runInteractive reads and runs one statement sequence per line,
// printing the PS1 prompt before each line, grounded on the teacher's
// cmd/gosh/main.go runInteractive loop (the teacher streams statements
// incrementally via parser.InteractiveSeq; this parser only exposes a
// whole-source Parse, so each prompt reads and parses one full line).
func runInteractive(ctx context.Context, r *interp.Runner) error {
	ps1 := r.Env.Get("PS1").Value
	if ps1 == "" {
		ps1 = "$ "
	}
	scanner := bufio.NewScanner(r.Stdin)
	fmt.Fprint(r.Stdout, ps1)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Fprint(r.Stdout, ps1)
			continue
		}
		file, perr := syntax.NewParser().Parse(strings.NewReader(line), "")
		if perr != nil {
			fmt.Fprintln(r.Stderr, "zish:", perr)
			fmt.Fprint(r.Stdout, ps1)
			continue
		}
		status := r.Run(ctx, file)
		r.Env.SetLastStatus(status)
		fmt.Fprint(r.Stdout, ps1)
	}
	return scanner.Err()
}
