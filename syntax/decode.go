package syntax

import (
	"strings"

	"github.com/zish-sh/zish/token"
)

// DecodeHeredocBody decodes the raw body text of an unquoted-delimiter
// here-document into Word fragments. It follows double-quoted escaping
// rules (only \$, \`, \\, \", and a trailing \-newline are special) since
// that is the closest of the ambient quoting contexts to how POSIX
// expands an unquoted heredoc body, but unlike a real double-quoted
// string it carries no surrounding quote characters to strip.
func DecodeHeredocBody(body string) (*Word, error) {
	p := NewParser()
	parts, _, err := p.decodeSpan(body, 0, len(body), token.DoubleQuoted, false)
	if err != nil {
		return nil, err
	}
	return &Word{Parts: parts}, nil
}

// decodeWord splits raw (the still-quoted text the lexer matched for
// one Word token) into WordPart fragments, tagging each with the
// quoting it came from per spec.md §3's Word invariant. Command
// substitutions are parsed recursively via a fresh Parser over the
// substitution's inner text.
func (p *Parser) decodeWord(raw string, _ token.Quoting) (*Word, error) {
	parts, _, err := p.decodeSpan(raw, 0, len(raw), token.Unquoted, true)
	if err != nil {
		return nil, err
	}
	return &Word{Parts: parts}, nil
}

// decodeSpan decodes s[pos:limit] under the given ambient quoting
// (Unquoted or DoubleQuoted; single-quoted spans never recurse back
// into decodeSpan). atWordStart enables tilde-expansion recognition,
// which only applies to the very first fragment of a whole word.
func (p *Parser) decodeSpan(s string, pos, limit int, quoting token.Quoting, atWordStart bool) ([]WordPart, int, error) {
	var parts []WordPart
	var lit strings.Builder
	first := atWordStart

	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &Lit{Value: lit.String(), Quoting: quoting})
			lit.Reset()
		}
	}

	for pos < limit {
		c := s[pos]
		switch {
		case first && c == '~' && quoting == token.Unquoted:
			end := pos + 1
			for end < limit && (isNameCont(s[end]) || s[end] == '-') {
				end++
			}
			// Every leading unquoted '~' becomes a Tilde whose User is
			// the run of name characters and '-' that follows it.
			flush()
			parts = append(parts, &Tilde{User: s[pos+1 : end]})
			pos = end
			first = false
			continue
		case c == '\\' && quoting != token.SingleQuoted:
			if quoting == token.DoubleQuoted {
				if pos+1 < limit && isDquoteEscapable(s[pos+1]) {
					if s[pos+1] == '\n' {
						pos += 2
						first = false
						continue
					}
					lit.WriteByte(s[pos+1])
					pos += 2
					first = false
					continue
				}
				lit.WriteByte(c)
				pos++
				first = false
				continue
			}
			// Unquoted backslash: escapes the next byte literally,
			// which behaves like single-quoting for expansion
			// purposes (no split, no glob), except for line
			// continuation which vanishes entirely.
			if pos+1 < limit && s[pos+1] == '\n' {
				pos += 2
				continue
			}
			flush()
			if pos+1 < limit {
				parts = append(parts, &Lit{Value: string(s[pos+1]), Quoting: token.SingleQuoted})
				pos += 2
			} else {
				pos++
			}
			first = false
			continue
		case c == '\'' && quoting == token.Unquoted:
			end := pos + 1
			for end < limit && s[end] != '\'' {
				end++
			}
			flush()
			parts = append(parts, &Lit{Value: s[pos+1 : end], Quoting: token.SingleQuoted})
			pos = end + 1
			first = false
			continue
		case c == '"' && quoting == token.Unquoted:
			end := matchDouble(s, pos+1, limit)
			inner, _, err := p.decodeSpan(s, pos+1, end, token.DoubleQuoted, false)
			if err != nil {
				return nil, 0, err
			}
			flush()
			if len(inner) == 0 {
				inner = []WordPart{&Lit{ValuePos: p.posAt(pos + 1), Quoting: token.DoubleQuoted}}
			}
			parts = append(parts, inner...)
			pos = end + 1
			first = false
			continue
		case c == '`':
			end := matchBacktick(s, pos+1, limit)
			body, err := p.parseSub(s[pos+1:end])
			if err != nil {
				return nil, 0, err
			}
			flush()
			parts = append(parts, &CmdSubst{SubPos: p.posAt(pos), Body: body, Quoting: quoting})
			pos = end + 1
			first = false
			continue
		case c == '$':
			part, next, err := p.decodeDollar(s, pos, limit, quoting)
			if err != nil {
				return nil, 0, err
			}
			if part != nil {
				flush()
				parts = append(parts, part)
			} else {
				lit.WriteByte('$')
			}
			pos = next
			first = false
			continue
		default:
			lit.WriteByte(c)
			pos++
			first = false
		}
	}
	flush()
	return parts, pos, nil
}

func isDquoteEscapable(b byte) bool {
	switch b {
	case '$', '`', '"', '\\', '\n':
		return true
	}
	return false
}

func (p *Parser) posAt(offset int) token.Position {
	return token.Position{Offset: offset}
}

// matchDouble returns the index of the unescaped '"' that closes a
// double-quoted span starting at pos (just after the opening quote).
func matchDouble(s string, pos, limit int) int {
	for pos < limit {
		switch s[pos] {
		case '\\':
			pos += 2
		case '"':
			return pos
		default:
			pos++
		}
	}
	return limit
}

func matchBacktick(s string, pos, limit int) int {
	for pos < limit {
		switch s[pos] {
		case '\\':
			pos += 2
		case '`':
			return pos
		default:
			pos++
		}
	}
	return limit
}

// decodeDollar handles the text starting at s[pos] == '$'. It returns
// the decoded WordPart (nil if '$' turned out not to start any
// recognized form, in which case it should be emitted as a literal
// '$'), and the index just past what was consumed.
func (p *Parser) decodeDollar(s string, pos, limit int, quoting token.Quoting) (WordPart, int, error) {
	start := pos
	pos++ // consume '$'
	if pos >= limit {
		return nil, pos, nil
	}
	b := s[pos]
	switch {
	case b == '(' && pos+1 < limit && s[pos+1] == '(':
		contentStart := pos + 2
		end, err := findClosingParens(s, contentStart, limit, 2)
		if err != nil {
			return nil, 0, err
		}
		text := s[contentStart : end-2]
		return &ArithExp{ExpPos: p.posAt(start), Text: text, Quoting: quoting}, end, nil
	case b == '(':
		contentStart := pos + 1
		end, err := findClosingParens(s, contentStart, limit, 1)
		if err != nil {
			return nil, 0, err
		}
		text := s[contentStart : end-1]
		body, err := p.parseSub(text)
		if err != nil {
			return nil, 0, err
		}
		return &CmdSubst{SubPos: p.posAt(start), Body: body, Quoting: quoting}, end, nil
	case b == '{':
		return p.decodeBraceParam(s, pos+1, limit, quoting, start)
	case isNameStart(b):
		end := pos
		for end < limit && isNameCont(s[end]) {
			end++
		}
		return &ParamExp{ExpPos: p.posAt(start), Param: s[pos:end], Quoting: quoting}, end, nil
	case b >= '0' && b <= '9':
		return &ParamExp{ExpPos: p.posAt(start), Param: string(b), Quoting: quoting}, pos + 1, nil
	case b == '?' || b == '#' || b == '$' || b == '@' || b == '*' || b == '!' || b == '-':
		return &ParamExp{ExpPos: p.posAt(start), Param: string(b), Quoting: quoting}, pos + 1, nil
	default:
		return nil, pos, nil
	}
}

func (p *Parser) decodeBraceParam(s string, pos, limit int, quoting token.Quoting, start int) (WordPart, int, error) {
	end := findClosingBrace(s, pos, limit)
	if end < 0 {
		return nil, 0, &LexError{Kind: UnterminatedSubstitution, Pos: p.posAt(start), Msg: "unterminated ${...}"}
	}
	inner := s[pos:end]
	name, op, argText := splitParamOp(inner)
	pe := &ParamExp{ExpPos: p.posAt(start), Param: name, Op: op, Quoting: quoting}
	if op != ParamNone {
		argParts, _, err := p.decodeSpan(argText, 0, len(argText), token.DoubleQuoted, false)
		if err != nil {
			return nil, 0, err
		}
		pe.Arg = &Word{Parts: argParts}
	}
	return pe, end + 1, nil
}

// splitParamOp splits ${NAME<op>word} body text (without braces) into
// its name, operator, and argument text.
func splitParamOp(inner string) (name string, op ParamOp, arg string) {
	if len(inner) > 0 {
		switch inner[0] {
		case '?', '#', '$', '@', '*', '!', '-':
			return string(inner[0]), ParamNone, ""
		}
	}
	i := 0
	for i < len(inner) && isNameCont(inner[i]) {
		i++
	}
	name = inner[:i]
	if i >= len(inner) {
		return name, ParamNone, ""
	}
	rest := inner[i:]
	switch {
	case strings.HasPrefix(rest, ":-"):
		return name, ParamMinus, rest[2:]
	case strings.HasPrefix(rest, ":="):
		return name, ParamEq, rest[2:]
	case strings.HasPrefix(rest, ":?"):
		return name, ParamQuest, rest[2:]
	case strings.HasPrefix(rest, ":+"):
		return name, ParamPlus, rest[2:]
	}
	return name, ParamNone, ""
}

// findClosingBrace finds the index of the unescaped '}' that closes a
// ${ ... } form starting at pos, honoring nested quotes.
func findClosingBrace(s string, pos, limit int) int {
	for pos < limit {
		switch s[pos] {
		case '\\':
			pos += 2
		case '\'':
			pos++
			for pos < limit && s[pos] != '\'' {
				pos++
			}
			pos++
		case '"':
			pos++
			for pos < limit && s[pos] != '"' {
				if s[pos] == '\\' {
					pos++
				}
				pos++
			}
			pos++
		case '}':
			return pos
		default:
			pos++
		}
	}
	return -1
}

// findClosingParens scans s[pos:limit] for the position just past the
// `need` contiguous closing parens that balance `need` already-open
// levels, honoring nested quotes, backticks, and nested $(...)/${...}.
func findClosingParens(s string, pos, limit, need int) (int, error) {
	depth := need
	for pos < limit {
		switch s[pos] {
		case '\\':
			pos += 2
		case '\'':
			pos++
			for pos < limit && s[pos] != '\'' {
				pos++
			}
			pos++
		case '"':
			pos++
			for pos < limit && s[pos] != '"' {
				if s[pos] == '\\' {
					pos++
				}
				pos++
			}
			pos++
		case '`':
			pos++
			for pos < limit && s[pos] != '`' {
				if s[pos] == '\\' {
					pos++
				}
				pos++
			}
			pos++
		case '(':
			depth++
			pos++
		case ')':
			depth--
			pos++
			if depth == 0 {
				return pos, nil
			}
		default:
			pos++
		}
	}
	return 0, &LexError{Kind: UnterminatedSubstitution, Msg: "unterminated substitution"}
}

// parseSub parses text as a full program, used for $(...) and `...`
// command substitution bodies.
func (p *Parser) parseSub(text string) (Command, error) {
	sub := NewParser()
	f, err := sub.ParseBytes([]byte(text), p.name)
	if err != nil {
		return nil, err
	}
	return f.Body, nil
}
