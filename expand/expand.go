package expand

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zish-sh/zish/pattern"
	"github.com/zish-sh/zish/syntax"
	"github.com/zish-sh/zish/token"
)

// ExpandError reports a failure in a step of the expansion pipeline
// that isn't already its own named error type (ArithError, ParamError).
type ExpandError struct {
	Msg string
}

func (e *ExpandError) Error() string { return e.Msg }

type expander struct {
	cfg Config
}

// chunk is one run of a word's expanded text, tagged with whether it
// came from a quoted context. atomic runs are never field-split or
// glob-expanded, implementing quote removal's effect on the later
// pipeline steps implicitly (the quote characters themselves are never
// present in chunk.text to begin with).
type chunk struct {
	text   string
	atomic bool
}

// Fields runs the full expansion pipeline (spec.md §4.3) over a list
// of words — the argument list of a simple command, for instance —
// and returns the flattened field list after tilde, parameter,
// command, and arithmetic expansion, field splitting, pathname
// expansion, and quote removal.
func Fields(cfg Config, words []*syntax.Word) ([]string, error) {
	e := &expander{cfg: cfg}
	var out []string
	for _, w := range words {
		fs, err := e.expandOne(w)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

// Word is like Fields for a single word, exported for callers (redirect
// targets, the right-hand side of an assignment) that expand exactly
// one word into one string: zero fields give "", and several fields
// are joined with single spaces.
func Word(cfg Config, w *syntax.Word) (string, error) {
	e := &expander{cfg: cfg}
	fs, err := e.expandOne(w)
	if err != nil {
		return "", err
	}
	switch len(fs) {
	case 0:
		return "", nil
	case 1:
		return fs[0], nil
	default:
		return strings.Join(fs, " "), nil
	}
}

// CasePattern expands w the way a case-clause pattern or item subject
// is expanded: tilde/parameter/command/arithmetic expansion and quote
// removal, but neither field splitting nor pathname expansion (a case
// pattern is always exactly one glob pattern, matched as a whole).
func CasePattern(cfg Config, w *syntax.Word) (string, error) {
	e := &expander{cfg: cfg}
	return e.expandPartsJoined(w.Parts)
}

func (e *expander) expandOne(w *syntax.Word) ([]string, error) {
	chunks, err := e.expandWordChunks(w)
	if err != nil {
		return nil, err
	}
	fields, atomicFlags := splitChunks(chunks, e.cfg.Env.IFS())
	var out []string
	for i, f := range fields {
		if atomicFlags[i] || !pattern.HasMeta(f) {
			out = append(out, f)
			continue
		}
		matches, err := e.globField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// expandWordChunks expands each WordPart of w in turn, without yet
// applying field splitting or globbing.
func (e *expander) expandWordChunks(w *syntax.Word) ([]chunk, error) {
	return e.expandParts(w.Parts)
}

func (e *expander) expandParts(parts []syntax.WordPart) ([]chunk, error) {
	var chunks []chunk
	for _, part := range parts {
		switch p := part.(type) {
		case *syntax.Lit:
			chunks = append(chunks, chunk{text: p.Value, atomic: p.Quoting != token.Unquoted})
		case *syntax.Tilde:
			chunks = append(chunks, chunk{text: e.resolveTilde(p.User), atomic: true})
		case *syntax.ParamExp:
			val, err := e.paramValue(p)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk{text: val, atomic: p.Quoting != token.Unquoted})
		case *syntax.CmdSubst:
			if e.cfg.CmdSubst == nil {
				return nil, &ExpandError{Msg: "command substitution is not available here"}
			}
			out, err := e.cfg.CmdSubst(p.Body)
			if err != nil {
				return nil, err
			}
			out = strings.TrimRight(out, "\n")
			chunks = append(chunks, chunk{text: out, atomic: p.Quoting != token.Unquoted})
		case *syntax.ArithExp:
			v, err := Arith(p.Text, e.arithVars())
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk{text: strconv.FormatInt(v, 10), atomic: p.Quoting != token.Unquoted})
		default:
			return nil, &ExpandError{Msg: "unrecognized word fragment"}
		}
	}
	return chunks, nil
}

// expandPartsJoined expands parts and concatenates every chunk's text,
// with no field splitting or globbing: used for the argument word of a
// ${NAME:-word} family expansion, and for case patterns.
func (e *expander) expandPartsJoined(parts []syntax.WordPart) (string, error) {
	chunks, err := e.expandParts(parts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.text)
	}
	return b.String(), nil
}

func (e *expander) resolveTilde(user string) string {
	switch user {
	case "":
		return e.cfg.Env.Get("HOME").Value
	case "+":
		return e.cfg.Env.Get("PWD").Value
	case "-":
		return e.cfg.Env.Get("OLDPWD").Value
	default:
		// ~user lookups against the system user database are out of
		// scope; leave the fragment literal.
		return "~" + user
	}
}

// splitChunks performs IFS field splitting over a chunk sequence,
// treating every atomic chunk as unsplittable regardless of its
// content, per spec.md §4.3 rule 5. It returns one bool per returned
// field recording whether that field contains any atomic content (used
// by the caller to decide whether the field is glob-eligible).
func splitChunks(chunks []chunk, ifs string) (fields []string, atomicField []bool) {
	var cur strings.Builder
	pending := false
	curAtomic := false

	flush := func() {
		fields = append(fields, cur.String())
		atomicField = append(atomicField, curAtomic)
		cur.Reset()
		pending = false
		curAtomic = false
	}

	isWS := func(b byte) bool { return b == ' ' || b == '\t' || b == '\n' }
	isIFS := func(b byte) bool { return strings.IndexByte(ifs, b) >= 0 }

	for _, c := range chunks {
		if c.atomic {
			cur.WriteString(c.text)
			pending = true
			curAtomic = true
			continue
		}
		if ifs == "" {
			cur.WriteString(c.text)
			if len(c.text) > 0 {
				pending = true
			}
			continue
		}
		i, n := 0, len(c.text)
		for i < n {
			b := c.text[i]
			if !isIFS(b) {
				cur.WriteByte(b)
				pending = true
				i++
				continue
			}
			if isWS(b) {
				j := i
				for j < n && isWS(c.text[j]) && isIFS(c.text[j]) {
					j++
				}
				if pending {
					flush()
				}
				i = j
				continue
			}
			flush()
			i++
		}
	}
	if pending {
		flush()
	}
	return fields, atomicField
}

// globField expands a single unquoted field containing glob
// metacharacters into the sorted list of matching pathnames, per
// spec.md §4.3 rule 6. A pattern matching nothing is returned
// unchanged, literally, rather than vanishing.
func (e *expander) globField(pat string) ([]string, error) {
	if e.cfg.Glob == nil || !pattern.HasMeta(pat) {
		return []string{pat}, nil
	}
	abs := strings.HasPrefix(pat, "/")
	segs := strings.Split(pat, "/")
	var dirs []string
	if abs {
		dirs = []string{"/"}
		segs = segs[1:]
	} else {
		dirs = []string{"."}
	}

	for _, seg := range segs {
		if seg == "" {
			continue
		}
		var next []string
		if !pattern.HasMeta(seg) {
			for _, d := range dirs {
				next = append(next, joinGlobPath(d, seg))
			}
			dirs = next
			continue
		}
		re, err := pattern.Compile(seg)
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			entries, err := e.cfg.Glob(d)
			if err != nil {
				continue
			}
			for _, name := range entries {
				if strings.HasPrefix(name, ".") && !strings.HasPrefix(seg, ".") {
					continue
				}
				if re.MatchString(name) {
					next = append(next, joinGlobPath(d, name))
				}
			}
		}
		dirs = next
	}

	if len(dirs) == 0 {
		return []string{pat}, nil
	}
	sort.Strings(dirs)
	if !abs {
		for i := range dirs {
			dirs[i] = strings.TrimPrefix(dirs[i], "./")
		}
	}
	return dirs, nil
}

func joinGlobPath(dir, name string) string {
	switch dir {
	case "/":
		return "/" + name
	case ".":
		return name
	default:
		return dir + "/" + name
	}
}

type envArithVars struct{ e *expander }

func (v envArithVars) GetArith(name string) int64 {
	val, _ := v.e.lookupParam(name)
	n, _ := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	return n
}

func (v envArithVars) SetArith(name string, val int64) {
	v.e.setVar(name, strconv.FormatInt(val, 10))
}

func (e *expander) arithVars() ArithVars { return envArithVars{e: e} }
