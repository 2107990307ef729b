package expand

import (
	"strconv"

	"github.com/zish-sh/zish/syntax"
)

// paramValue resolves a ParamExp to its string value (without applying
// field splitting; that happens later in the pipeline), per spec.md
// §4.3 rule 2 and the ${NAME:-word} family in §4.6's Glossary entry for
// parameter expansion.
func (e *expander) paramValue(pe *syntax.ParamExp) (string, error) {
	val, isSet := e.lookupParam(pe.Param)

	switch pe.Op {
	case syntax.ParamNone:
		return val, nil
	case syntax.ParamMinus:
		if isSet && val != "" {
			return val, nil
		}
		return e.expandArgWord(pe.Arg)
	case syntax.ParamEq:
		if isSet && val != "" {
			return val, nil
		}
		word, err := e.expandArgWord(pe.Arg)
		if err != nil {
			return "", err
		}
		if !isSpecialParam(pe.Param) {
			e.setVar(pe.Param, word)
		}
		return word, nil
	case syntax.ParamQuest:
		if isSet && val != "" {
			return val, nil
		}
		msg, err := e.expandArgWord(pe.Arg)
		if err != nil {
			return "", err
		}
		if msg == "" {
			msg = pe.Param + ": parameter not set"
		}
		return "", &ParamError{Name: pe.Param, Msg: msg}
	case syntax.ParamPlus:
		if isSet && val != "" {
			word, err := e.expandArgWord(pe.Arg)
			if err != nil {
				return "", err
			}
			return word, nil
		}
		return "", nil
	}
	return val, nil
}

// ParamError is the ${NAME:?word} failure: expanding a parameter the
// caller has explicitly demanded be set and non-empty.
type ParamError struct {
	Name string
	Msg  string
}

func (e *ParamError) Error() string { return e.Msg }

func isSpecialParam(name string) bool {
	if len(name) == 1 {
		switch name[0] {
		case '?', '#', '$', '@', '*', '!', '-':
			return true
		}
	}
	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		return true
	}
	return false
}

// lookupParam resolves a bare parameter name to its string value and
// whether it is set at all (distinguishing unset from set-but-empty,
// which the :- family needs).
func (e *expander) lookupParam(name string) (val string, isSet bool) {
	if name == "" {
		return "", false
	}
	if name[0] >= '0' && name[0] <= '9' {
		n, err := strconv.Atoi(name)
		if err != nil {
			return "", false
		}
		pos := e.cfg.Env.Positional()
		if n == 0 {
			if s, ok := e.cfg.Env.Special('0'); ok {
				return s, true
			}
			return "", false
		}
		if n < 1 || n > len(pos) {
			return "", false
		}
		return pos[n-1], true
	}
	if len(name) == 1 {
		switch name[0] {
		case '?', '#', '$', '!', '-', '0':
			if s, ok := e.cfg.Env.Special(name[0]); ok {
				return s, true
			}
			return "", false
		case '@', '*':
			return joinPositional(e.cfg.Env, name[0] == '*'), len(e.cfg.Env.Positional()) > 0
		}
	}
	v := e.cfg.Env.Get(name)
	return v.Value, v.Set
}

func joinPositional(env Environ, star bool) string {
	pos := env.Positional()
	if len(pos) == 0 {
		return ""
	}
	sep := " "
	if star {
		ifs := env.IFS()
		if len(ifs) > 0 {
			sep = ifs[:1]
		} else {
			sep = ""
		}
	}
	out := pos[0]
	for _, p := range pos[1:] {
		out += sep + p
	}
	return out
}

func (e *expander) setVar(name, value string) {
	if e.cfg.Assign != nil {
		e.cfg.Assign(name, value)
	}
}

// expandArgWord expands the argument word of a ${N<op>word} form as a
// single joined string (word is nil for a bare "${N:-}" form).
func (e *expander) expandArgWord(w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	fields, err := e.expandPartsJoined(w.Parts)
	if err != nil {
		return "", err
	}
	return fields, nil
}
