package interp

import (
	"fmt"
	"os"
	"regexp"
)

// testParser evaluates the `[`/`[[` argument list as a small recursive
// descent grammar over already-expanded string tokens, grounded on the
// teacher's bashTest/binTest/unTest split in interp/test.go but working
// directly over []string rather than a syntax.TestExpr AST, since our
// builtins receive plain argv.
//
// Grammar (spec.md §4.6):
//
//	expr   := or
//	or     := and ( ("-o" | "||") and )*
//	and    := unary ( ("-a" | "&&") unary )*
//	unary  := "!" unary | primary
//	primary := "(" or ")" | unop word | word binop word | word
type testParser struct {
	args  []string
	pos   int
	bash  bool // true for [[, enabling =~ and not field-splitting (already not split by the caller)
	err   error
}

// EvalTest evaluates a `[`/`[[` argument list (with the trailing `]`
// or `]]` already stripped by the caller) and returns true/false, or an error
// for a malformed expression.
func EvalTest(args []string, bash bool) (bool, error) {
	p := &testParser{args: args, bash: bash}
	if len(p.args) == 0 {
		return false, nil
	}
	v := p.or()
	if p.err != nil {
		return false, p.err
	}
	if p.pos != len(p.args) {
		return false, fmt.Errorf("test: unexpected argument %q", p.args[p.pos])
	}
	return v, nil
}

func (p *testParser) peek() (string, bool) {
	if p.pos >= len(p.args) {
		return "", false
	}
	return p.args[p.pos], true
}

func (p *testParser) take() string {
	v := p.args[p.pos]
	p.pos++
	return v
}

func (p *testParser) fail(format string, a ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, a...)
	}
}

func (p *testParser) or() bool {
	v := p.and()
	for {
		tok, ok := p.peek()
		if !ok || (tok != "-o" && tok != "||") {
			return v
		}
		p.take()
		rhs := p.and()
		v = v || rhs
	}
}

func (p *testParser) and() bool {
	v := p.unary()
	for {
		tok, ok := p.peek()
		if !ok || (tok != "-a" && tok != "&&") {
			return v
		}
		p.take()
		rhs := p.unary()
		v = v && rhs
	}
}

func (p *testParser) unary() bool {
	tok, ok := p.peek()
	if ok && tok == "!" {
		p.take()
		return !p.unary()
	}
	return p.primary()
}

func (p *testParser) primary() bool {
	tok, ok := p.peek()
	if !ok {
		p.fail("test: expected an expression")
		return false
	}
	if tok == "(" {
		p.take()
		v := p.or()
		if t, ok := p.peek(); !ok || t != ")" {
			p.fail("test: missing matching )")
			return v
		}
		p.take()
		return v
	}
	if isUnaryTestOp(tok) {
		p.take()
		operand, ok := p.peek()
		if !ok {
			p.fail("test: %s: missing argument", tok)
			return false
		}
		p.take()
		return evalUnary(tok, operand)
	}

	// lone word, or word binop word
	lhs := p.take()
	if tok, ok := p.peek(); ok && isBinaryTestOp(tok) {
		op := p.take()
		if op == "=~" && !p.bash {
			p.fail("test: =~ is only valid in [[ ]]")
			return false
		}
		rhs, ok := p.peek()
		if !ok {
			p.fail("test: %s: missing argument", op)
			return false
		}
		p.take()
		return evalBinary(op, lhs, rhs)
	}
	return lhs != ""
}

func isUnaryTestOp(s string) bool {
	switch s {
	case "-f", "-d", "-e", "-z", "-n", "-r", "-w", "-x", "-s", "-L", "-h", "-p":
		return true
	}
	return false
}

func isBinaryTestOp(s string) bool {
	switch s {
	case "=", "==", "!=", "-eq", "-ne", "-lt", "-le", "-gt", "-ge", "=~":
		return true
	}
	return false
}

func evalUnary(op, x string) bool {
	switch op {
	case "-z":
		return x == ""
	case "-n":
		return x != ""
	case "-e":
		return statFor(x) != nil
	case "-f":
		info := statFor(x)
		return info != nil && info.Mode().IsRegular()
	case "-d":
		info := statFor(x)
		return info != nil && info.IsDir()
	case "-s":
		info := statFor(x)
		return info != nil && info.Size() > 0
	case "-r", "-w", "-x":
		return statFor(x) != nil
	case "-L", "-h":
		info, err := os.Lstat(x)
		return err == nil && info.Mode()&os.ModeSymlink != 0
	case "-p":
		info := statFor(x)
		return info != nil && info.Mode()&os.ModeNamedPipe != 0
	}
	return false
}

func evalBinary(op, x, y string) bool {
	switch op {
	case "=", "==":
		return x == y
	case "!=":
		return x != y
	case "=~":
		re, err := regexp.Compile(y)
		return err == nil && re.MatchString(x)
	case "-eq":
		return atoi(x) == atoi(y)
	case "-ne":
		return atoi(x) != atoi(y)
	case "-lt":
		return atoi(x) < atoi(y)
	case "-le":
		return atoi(x) <= atoi(y)
	case "-gt":
		return atoi(x) > atoi(y)
	case "-ge":
		return atoi(x) >= atoi(y)
	}
	return false
}

func statFor(name string) os.FileInfo {
	info, err := os.Stat(name)
	if err != nil {
		return nil
	}
	return info
}
