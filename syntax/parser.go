package syntax

import (
	"fmt"
	"io"

	"github.com/zish-sh/zish/token"
)

// ParseErrorKind classifies a parse error per spec.md §4.2/§7.
type ParseErrorKind int

const (
	UnexpectedEOF ParseErrorKind = iota
	Unexpected
)

// ParseError is returned when the token stream cannot be parsed into
// a valid Command tree.
type ParseError struct {
	Kind     ParseErrorKind
	Pos      token.Position
	Found    string
	Expected string
}

func (e *ParseError) Error() string {
	if e.Kind == UnexpectedEOF {
		return fmt.Sprintf("%s: unexpected EOF, expected %s", e.Pos, e.Expected)
	}
	if e.Expected != "" {
		return fmt.Sprintf("%s: unexpected %s, expected %s", e.Pos, e.Found, e.Expected)
	}
	return fmt.Sprintf("%s: unexpected %s", e.Pos, e.Found)
}

// pendingHeredoc tracks a <</<<- redirection seen on the current
// line whose body hasn't been read yet; bodies are read in order once
// the line's terminating newline is reached, matching how real shells
// queue multiple heredocs on one line.
type pendingHeredoc struct {
	delim      string
	quoted     bool
	stripTabs  bool
	target     *Heredoc
}

// Parser turns a byte stream into a *File via recursive descent,
// following the grammar in spec.md §4.2.
type Parser struct {
	lex  *Lexer
	tok  token.Token
	name string

	pending []*pendingHeredoc
}

// NewParser creates a Parser. Call Parse to run it over a source.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads all of r and parses it into a File named name (stored
// as File.Name).
func (p *Parser) Parse(r io.Reader, name string) (*File, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return p.ParseBytes(src, name)
}

// ParseBytes parses src directly.
func (p *Parser) ParseBytes(src []byte, name string) (*File, error) {
	p.lex = NewLexer(src)
	p.name = name
	p.pending = nil
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseList(true)
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != token.EOF {
		return nil, &ParseError{Kind: Unexpected, Pos: p.tok.Pos, Found: describe(p.tok), Expected: "EOF"}
	}
	return &File{Name: name, Body: body}, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func describe(t token.Token) string {
	if t.Kind == token.Word || t.Kind == token.AssignmentWord {
		return fmt.Sprintf("%q", t.Value)
	}
	return t.Kind.String()
}

func (p *Parser) unexpected(expected string) error {
	if p.tok.Kind == token.EOF {
		return &ParseError{Kind: UnexpectedEOF, Pos: p.tok.Pos, Expected: expected}
	}
	return &ParseError{Kind: Unexpected, Pos: p.tok.Pos, Found: describe(p.tok), Expected: expected}
}

func (p *Parser) expect(k token.Kind, what string) (token.Token, error) {
	if p.tok.Kind != k {
		return token.Token{}, p.unexpected(what)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return t, nil
}

// skipNewlines consumes any run of Newline tokens, reading pending
// heredoc bodies at the first one crossed (spec.md §4.2, §GLOSSARY
// Here-document).
func (p *Parser) skipNewlines() error {
	for p.tok.Kind == token.Newline {
		hadPending := len(p.pending) > 0
		if err := p.readPendingHeredocs(); err != nil {
			return err
		}
		if hadPending {
			// readPendingHeredocs already advanced past the bodies.
			continue
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) readPendingHeredocs() error {
	if len(p.pending) == 0 {
		return nil
	}
	pend := p.pending
	p.pending = nil
	for _, ph := range pend {
		var lines []string
		for {
			line, hasNL := p.lex.RestLine()
			check := line
			if ph.stripTabs {
				for len(check) > 0 && check[0] == '\t' {
					check = check[1:]
				}
			}
			if check == ph.delim {
				break
			}
			if ph.stripTabs {
				line = check
			}
			lines = append(lines, line)
			if !hasNL {
				return &LexError{Kind: UnterminatedHeredoc, Pos: p.lex.curPos(), Msg: "unterminated here-document (want `" + ph.delim + "')"}
			}
		}
		ph.target.Lines = lines
	}
	// The lexer consumed raw bytes directly; resynchronize the token
	// stream at the position right after the delimiter line.
	return p.advance()
}

// atTerminator reports whether the current token ends a list in the
// current context (used to stop at control-flow terminators).
func (p *Parser) atTerminator() bool {
	switch p.tok.Kind {
	case token.EOF, token.Fi, token.Done, token.Esac, token.RBrace, token.RParen,
		token.Then, token.Else, token.Elif, token.Do:
		return true
	}
	return false
}

// parseList parses `list := and_or (( ';' | '&' | NL ) and_or)* (';' | '&' | NL)?`.
// topLevel allows the list to additionally stop at EOF without error.
func (p *Parser) parseList(topLevel bool) (Command, error) {
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	var items []Command
	for {
		if p.atTerminator() {
			break
		}
		cmd, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		items = append(items, cmd)
		switch p.tok.Kind {
		case token.Semi, token.Amp:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind == token.Semi {
				// The second ';' of a case arm's ";;" ends the list.
				goto out
			}
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
		case token.Newline:
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
		default:
			if p.atTerminator() {
				goto out
			}
			if !topLevel {
				return nil, p.unexpected("`;', newline, or a terminator")
			}
			return nil, p.unexpected("`;', `&', or newline")
		}
	}
out:
	if len(items) == 1 {
		return items[0], nil
	}
	if len(items) == 0 {
		return &Sequence{SeqPos: p.tok.Pos}, nil
	}
	return &Sequence{SeqPos: items[0].Pos(), Items: items}, nil
}

func (p *Parser) parseAndOr() (Command, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.AndAnd || p.tok.Kind == token.OrOr {
		op := p.tok.Kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		left = &AndOr{Left: left, Right: right, Op: op}
	}
	return left, nil
}

func (p *Parser) parsePipeline() (Command, error) {
	negated := false
	if p.tok.Kind == token.Bang {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	stages := []Command{first}
	for p.tok.Kind == token.Pipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		stages = append(stages, next)
	}
	if !negated && len(stages) == 1 {
		return stages[0], nil
	}
	return &Pipeline{PipePos: stages[0].Pos(), Stages: stages, Negated: negated}, nil
}

func (p *Parser) parseCommand() (Command, error) {
	switch p.tok.Kind {
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile(false)
	case token.Until:
		return p.parseWhile(true)
	case token.For:
		return p.parseFor()
	case token.Case:
		return p.parseCase()
	case token.LBrace:
		return p.parseGroup()
	case token.LParen:
		return p.parseSubshell()
	case token.Function:
		return p.parseFunctionKeyword()
	case token.Word:
		if fn, ok, err := p.tryParseFuncDef(); err != nil {
			return nil, err
		} else if ok {
			return fn, nil
		}
		return p.parseSimple()
	case token.AssignmentWord:
		return p.parseSimple()
	default:
		return nil, p.unexpected("a command")
	}
}

func (p *Parser) parseIf() (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	cond, err := p.parseList(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Then, "`then'"); err != nil {
		return nil, err
	}
	then, err := p.parseList(false)
	if err != nil {
		return nil, err
	}
	var elifs []ElifClause
	for p.tok.Kind == token.Elif {
		if err := p.advance(); err != nil {
			return nil, err
		}
		econd, err := p.parseList(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Then, "`then'"); err != nil {
			return nil, err
		}
		ebody, err := p.parseList(false)
		if err != nil {
			return nil, err
		}
		elifs = append(elifs, ElifClause{Cond: econd, Body: ebody})
	}
	var elseBody Command
	if p.tok.Kind == token.Else {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elseBody, err = p.parseList(false)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Fi, "`fi'"); err != nil {
		return nil, err
	}
	return &IfClause{IfPos: pos, Cond: cond, Then: then, Elifs: elifs, Else: elseBody}, nil
}

func (p *Parser) parseWhile(until bool) (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseList(false)
	if err != nil {
		return nil, err
	}
	body, err := p.parseDoBody()
	if err != nil {
		return nil, err
	}
	return &WhileClause{WhilePos: pos, Cond: cond, Body: body, Until: until}, nil
}

func (p *Parser) parseDoBody() (Command, error) {
	if _, err := p.expect(token.Do, "`do'"); err != nil {
		return nil, err
	}
	body, err := p.parseList(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Done, "`done'"); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *Parser) parseFor() (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Word, "a name")
	if err != nil {
		return nil, err
	}
	var words []*Word
	if p.tok.Kind == token.In || isUnquotedWord(p.tok, "in") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for p.tok.Kind == token.Word || p.tok.Kind == token.AssignmentWord {
			w, err := p.decodeWord(p.tok.Value, p.tok.Quoting)
			if err != nil {
				return nil, err
			}
			words = append(words, w)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.tok.Kind == token.Semi || p.tok.Kind == token.Newline {
			if err := p.skipSepAndNewlines(); err != nil {
				return nil, err
			}
		}
	} else if p.tok.Kind == token.Semi || p.tok.Kind == token.Newline {
		if err := p.skipSepAndNewlines(); err != nil {
			return nil, err
		}
	}
	body, err := p.parseDoBody()
	if err != nil {
		return nil, err
	}
	return &ForClause{ForPos: pos, Name: nameTok.Value, Words: words, Body: body}, nil
}

func (p *Parser) skipSepAndNewlines() error {
	if p.tok.Kind == token.Semi {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return p.skipNewlines()
}

func (p *Parser) parseCase() (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	subjTok, err := p.expect(token.Word, "a word")
	if err != nil {
		return nil, err
	}
	subj, err := p.decodeWord(subjTok.Value, subjTok.Quoting)
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != token.In && !isUnquotedWord(p.tok, "in") {
		return nil, p.unexpected("`in'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	var items []CaseItem
	for p.tok.Kind != token.Esac {
		if p.tok.Kind == token.LParen {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		var pats []*Word
		for {
			wtok, err := p.expect(token.Word, "a pattern")
			if err != nil {
				return nil, err
			}
			w, err := p.decodeWord(wtok.Value, wtok.Quoting)
			if err != nil {
				return nil, err
			}
			pats = append(pats, w)
			if p.tok.Kind == token.Pipe {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(token.RParen, "`)'"); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		var body Command
		if p.tok.Kind != token.Semi && p.tok.Kind != token.Esac {
			body, err = p.parseList(false)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, CaseItem{Patterns: pats, Body: body})
		if p.tok.Kind == token.Semi {
			// ';;' is lexed as two Semi tokens.
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind == token.Semi {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(token.Esac, "`esac'"); err != nil {
		return nil, err
	}
	return &CaseClause{CasePos: pos, Subject: subj, Items: items}, nil
}

func (p *Parser) parseGroup() (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseList(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace, "`}'"); err != nil {
		return nil, err
	}
	return &Group{GroupPos: pos, Body: body}, nil
}

func (p *Parser) parseSubshell() (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseList(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen, "`)'"); err != nil {
		return nil, err
	}
	return &Subshell{SubPos: pos, Body: body}, nil
}

func (p *Parser) parseFunctionKeyword() (Command, error) {
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Word, "a function name")
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == token.LParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "`)'"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseFuncBody()
	if err != nil {
		return nil, err
	}
	return &FuncDecl{FuncPos: pos, Name: nameTok.Value, Body: body}, nil
}

// tryParseFuncDef looks ahead for `name ( ) body` without consuming
// input if it turns out not to match (in which case the caller falls
// back to parseSimple on the same token).
func (p *Parser) tryParseFuncDef() (Command, bool, error) {
	if p.tok.Quoting != token.Unquoted {
		return nil, false, nil
	}
	snapshotLex := *p.lex
	snapshotTok := p.tok
	name := p.tok.Value
	pos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, false, err
	}
	if p.tok.Kind != token.LParen {
		*p.lex = snapshotLex
		p.tok = snapshotTok
		return nil, false, nil
	}
	if err := p.advance(); err != nil {
		return nil, false, err
	}
	if p.tok.Kind != token.RParen {
		*p.lex = snapshotLex
		p.tok = snapshotTok
		return nil, false, nil
	}
	if err := p.advance(); err != nil {
		return nil, false, err
	}
	body, err := p.parseFuncBody()
	if err != nil {
		return nil, false, err
	}
	return &FuncDecl{FuncPos: pos, Name: name, Body: body}, true, nil
}

func (p *Parser) parseFuncBody() (Command, error) {
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	switch p.tok.Kind {
	case token.LBrace:
		return p.parseGroup()
	case token.LParen:
		return p.parseSubshell()
	case token.Word:
		// After `name()` the lexer is not at command start, so '{'
		// arrives as a plain word; the group body starts a command.
		if isUnquotedWord(p.tok, "{") {
			p.lex.atCmdStart = true
			return p.parseGroup()
		}
	}
	return nil, p.unexpected("`{' or `('")
}

// isUnquotedWord reports whether t is the unquoted word s.
func isUnquotedWord(t token.Token, s string) bool {
	return t.Kind == token.Word && t.Quoting == token.Unquoted && t.Value == s
}

// parseSimple parses `simple := assignment* word* redir*`.
func (p *Parser) parseSimple() (Command, error) {
	pos := p.tok.Pos
	cmd := &SimpleCmd{CmdPos: pos}
	for {
		switch p.tok.Kind {
		case token.AssignmentWord:
			name, rest, _ := splitAssignment(p.tok.Value)
			var val *Word
			if rest != "" {
				w, err := p.decodeWord(rest, p.tok.Quoting)
				if err != nil {
					return nil, err
				}
				val = w
			}
			cmd.Assigns = append(cmd.Assigns, Assign{Name: name, Value: val})
			if err := p.advance(); err != nil {
				return nil, err
			}
		case token.Word:
			w, err := p.decodeWord(p.tok.Value, p.tok.Quoting)
			if err != nil {
				return nil, err
			}
			cmd.Args = append(cmd.Args, w)
			if err := p.advance(); err != nil {
				return nil, err
			}
		case token.Less, token.Great, token.DGreat, token.DLess, token.DLessDash, token.AmpGreat:
			if err := p.parseRedirect(cmd); err != nil {
				return nil, err
			}
		default:
			goto done
		}
	}
done:
	if len(cmd.Assigns) == 0 && len(cmd.Args) == 0 && len(cmd.Redirs) == 0 {
		return nil, p.unexpected("a command")
	}
	return cmd, nil
}

func defaultFD(op token.Kind) int {
	switch op {
	case token.Less, token.DLess, token.DLessDash:
		return 0
	default:
		return 1
	}
}

func (p *Parser) parseRedirect(cmd *SimpleCmd) error {
	op := p.tok.Kind
	fd := p.tok.IoNumber
	if fd == 0 {
		fd = defaultFD(op)
	}
	if err := p.advance(); err != nil {
		return err
	}
	if op == token.DLess || op == token.DLessDash {
		if p.tok.Kind != token.Word {
			return p.unexpected("a here-document delimiter")
		}
		raw := p.tok.Value
		quoted := p.tok.Quoting != token.Unquoted
		delim, _ := unquoteLiteral(raw)
		if err := p.advance(); err != nil {
			return err
		}
		hd := &Heredoc{Delim: delim, Quoted: quoted}
		p.pending = append(p.pending, &pendingHeredoc{
			delim:     delim,
			quoted:    quoted,
			stripTabs: op == token.DLessDash,
			target:    hd,
		})
		cmd.Redirs = append(cmd.Redirs, &Redirect{FD: fd, Op: op, Heredoc: hd})
		return nil
	}
	if p.tok.Kind != token.Word {
		return p.unexpected("a redirection target")
	}
	target, err := p.decodeWord(p.tok.Value, p.tok.Quoting)
	if err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	cmd.Redirs = append(cmd.Redirs, &Redirect{FD: fd, Op: op, Target: target})
	return nil
}

// unquoteLiteral strips quote characters from a raw heredoc delimiter
// without performing any expansion, used only to compute the
// delimiter text that terminates the heredoc body.
func unquoteLiteral(raw string) (string, bool) {
	var out []byte
	quoted := false
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case '\'':
			quoted = true
			i++
			for i < len(raw) && raw[i] != '\'' {
				out = append(out, raw[i])
				i++
			}
			i++
		case '"':
			quoted = true
			i++
			for i < len(raw) && raw[i] != '"' {
				if raw[i] == '\\' && i+1 < len(raw) {
					i++
				}
				out = append(out, raw[i])
				i++
			}
			i++
		case '\\':
			quoted = true
			i++
			if i < len(raw) {
				out = append(out, raw[i])
				i++
			}
		default:
			out = append(out, raw[i])
			i++
		}
	}
	return string(out), quoted
}
