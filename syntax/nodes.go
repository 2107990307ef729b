// Copyright and license: this module has no upstream license header to
// carry forward.

// Package syntax implements the zish lexer, parser, and abstract
// syntax tree. Lexer, parser, and AST definitions live together in one
// package, matching how mvdan.cc/sh/v3's own syntax package is laid out.
package syntax

import "github.com/zish-sh/zish/token"

// Word is a sequence of literal, parameter, command-substitution,
// arithmetic, and tilde fragments that together expand to zero or
// more argument strings. Fragment quoting is preserved on each Part,
// which the expand package needs to decide field-splitting and
// globbing eligibility.
type Word struct {
	Parts []WordPart
}

func (w *Word) Pos() token.Position {
	if len(w.Parts) == 0 {
		return token.Position{}
	}
	return w.Parts[0].Pos()
}

// Lit returns the word's text if every part is an unquoted or quoted
// literal, and ok is false otherwise. Used where a word's plain text is
// needed without expansion, such as recognizing a literal `[[`.
func (w *Word) Lit() (string, bool) {
	s := ""
	for _, p := range w.Parts {
		lp, ok := p.(*Lit)
		if !ok {
			return "", false
		}
		s += lp.Value
	}
	return s, true
}

// WordPart is one fragment of a Word.
type WordPart interface {
	Pos() token.Position
	wordPart()
}

// Lit is a literal run of text, tagged with the quoting it came from.
type Lit struct {
	ValuePos token.Position
	Value    string
	Quoting  token.Quoting
}

func (l *Lit) Pos() token.Position { return l.ValuePos }
func (*Lit) wordPart()             {}

// ParamOp is the modifier applied by a ${NAME<op>word} expansion.
type ParamOp int

const (
	ParamNone  ParamOp = iota
	ParamMinus         // ${N:-word}
	ParamEq            // ${N:=word}
	ParamQuest         // ${N:?word}
	ParamPlus          // ${N:+word}
)

// ParamExp is a parameter expansion: $NAME, ${NAME}, or one of the
// ${NAME:-word} family.
type ParamExp struct {
	ExpPos  token.Position
	Param   string
	Op      ParamOp
	Arg     *Word // the "word" operand of Op, nil if ParamNone
	Quoting token.Quoting
}

func (p *ParamExp) Pos() token.Position { return p.ExpPos }
func (*ParamExp) wordPart()             {}

// CmdSubst is a $(cmd) or `cmd` command substitution.
type CmdSubst struct {
	SubPos  token.Position
	Body    Command
	Quoting token.Quoting
}

func (c *CmdSubst) Pos() token.Position { return c.SubPos }
func (*CmdSubst) wordPart()             {}

// ArithExp is a $((expr)) arithmetic expansion. The raw text is kept
// opaque here; expand.Arith parses and evaluates it, per spec.md's
// assignment of arithmetic parsing to the Expander.
type ArithExp struct {
	ExpPos  token.Position
	Text    string
	Quoting token.Quoting
}

func (a *ArithExp) Pos() token.Position { return a.ExpPos }
func (*ArithExp) wordPart()             {}

// Tilde is a leading unquoted ~ or ~user fragment.
type Tilde struct {
	TildePos token.Position
	User     string // empty for plain ~
}

func (t *Tilde) Pos() token.Position { return t.TildePos }
func (*Tilde) wordPart()             {}

// Command is the tagged-variant AST node for anything that can be
// executed: a simple command, a pipeline, a list, or a control-flow
// construct.
type Command interface {
	Pos() token.Position
	commandNode()
}

// Assign is one NAME=value assignment prefix on a simple command.
type Assign struct {
	Name  string
	Value *Word // nil means NAME= (empty value)
}

// Redirect is a single redirection attached to a simple command.
type Redirect struct {
	FD      int
	Op      token.Kind
	Target  *Word // nil for heredocs, which use Heredoc instead
	Heredoc *Heredoc
}

// Heredoc is the body of a << or <<- redirection, captured by the
// parser up front rather than read lazily at execution time.
type Heredoc struct {
	Delim  string
	Quoted bool // delimiter was quoted: body is not expanded
	Lines  []string
}

// SimpleCmd is a single executable invocation: variable assignments,
// an argument list, and redirections, at least one of which must be
// present.
type SimpleCmd struct {
	CmdPos  token.Position
	Assigns []Assign
	Args    []*Word
	Redirs  []*Redirect
}

func (s *SimpleCmd) Pos() token.Position { return s.CmdPos }
func (*SimpleCmd) commandNode()          {}

// Pipeline is one or more SimpleCmds (or other Commands) connected by |.
type Pipeline struct {
	PipePos token.Position
	Stages  []Command
	Negated bool // leading !
}

func (p *Pipeline) Pos() token.Position { return p.PipePos }
func (*Pipeline) commandNode()          {}

// AndOr is a left-associative && or || chain node; Left may itself be
// an *AndOr to represent a longer chain built left-to-right.
type AndOr struct {
	Left, Right Command
	Op          token.Kind // AndAnd or OrOr
}

func (a *AndOr) Pos() token.Position { return a.Left.Pos() }
func (*AndOr) commandNode()          {}

// Sequence is a list of commands separated by ; or newline.
type Sequence struct {
	SeqPos token.Position
	Items  []Command
}

func (s *Sequence) Pos() token.Position { return s.SeqPos }
func (*Sequence) commandNode()          {}

// Subshell is a (...) group executed in-process against a snapshot of
// the environment, so its changes do not reach the parent.
type Subshell struct {
	SubPos token.Position
	Body   Command
}

func (s *Subshell) Pos() token.Position { return s.SubPos }
func (*Subshell) commandNode()          {}

// Group is a {...} group executed in the current process.
type Group struct {
	GroupPos token.Position
	Body     Command
}

func (g *Group) Pos() token.Position { return g.GroupPos }
func (*Group) commandNode()          {}

// ElifClause is one elif arm of an IfClause.
type ElifClause struct {
	Cond, Body Command
}

// IfClause is an if/elif/else/fi construct.
type IfClause struct {
	IfPos      token.Position
	Cond, Then Command
	Elifs      []ElifClause
	Else       Command // nil if no else branch
}

func (i *IfClause) Pos() token.Position { return i.IfPos }
func (*IfClause) commandNode()          {}

// WhileClause is a while/until loop.
type WhileClause struct {
	WhilePos   token.Position
	Cond, Body Command
	Until      bool
}

func (w *WhileClause) Pos() token.Position { return w.WhilePos }
func (*WhileClause) commandNode()          {}

// ForClause is a for name in words; do body; done loop.
type ForClause struct {
	ForPos token.Position
	Name   string
	Words  []*Word
	Body   Command
}

func (f *ForClause) Pos() token.Position { return f.ForPos }
func (*ForClause) commandNode()          {}

// CaseItem is one pattern-list/body arm of a CaseClause.
type CaseItem struct {
	Patterns []*Word
	Body     Command // nil for an empty arm
}

// CaseClause is a case/in/esac construct.
type CaseClause struct {
	CasePos token.Position
	Subject *Word
	Items   []CaseItem
}

func (c *CaseClause) Pos() token.Position { return c.CasePos }
func (*CaseClause) commandNode()          {}

// FuncDecl is a function definition: name() body or function name body.
type FuncDecl struct {
	FuncPos token.Position
	Name    string
	Body    Command // always *Group or *Subshell
}

func (f *FuncDecl) Pos() token.Position { return f.FuncPos }
func (*FuncDecl) commandNode()          {}

// File is the root of a parsed program or script.
type File struct {
	Name string // script path, or "" for -c / stdin
	Body Command
}
