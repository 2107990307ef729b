// Package pattern translates zish's restricted shell glob syntax
// (*, ?, [...]) into regexp syntax, used for both pathname expansion
// and case-clause matching. Extended globbing beyond these three forms
// is an explicit Non-goal (spec.md §1), so unlike a full POSIX glob
// implementation this package has no brace sets, "**", or extglob
// operators — trimmed from the teacher's pattern.Regexp.
package pattern

import (
	"regexp"
	"strings"
)

// Regexp turns pat into a regular expression string matching the
// entire input, anchored with ^ and $. It never returns an error: any
// unmatched '[' is treated as a literal character, matching spec.md's
// glob rule of leaving unmatched patterns literal.
func Regexp(pat string) string {
	var b strings.Builder
	b.WriteByte('^')
	i := 0
	for i < len(pat) {
		c := pat[i]
		switch c {
		case '*':
			b.WriteString(".*")
			i++
		case '?':
			b.WriteByte('.')
			i++
		case '[':
			end := matchBracket(pat, i)
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
				continue
			}
			b.WriteString(translateBracket(pat[i : end+1]))
			i = end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteByte('$')
	return b.String()
}

// Compile is a convenience wrapper combining Regexp and regexp.Compile.
func Compile(pat string) (*regexp.Regexp, error) {
	return regexp.Compile(Regexp(pat))
}

// HasMeta reports whether pat contains any pattern-matching
// metacharacter, used to decide whether a word needs globbing at all.
func HasMeta(pat string) bool {
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// matchBracket finds the index of the ']' that closes a [...] class
// starting at pat[start] == '['. It returns -1 if there is none,
// meaning the '[' should be treated literally.
func matchBracket(pat string, start int) int {
	i := start + 1
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		i++
	}
	if i < len(pat) && pat[i] == ']' {
		i++ // a ']' right after the (optional negation) opener is literal
	}
	for i < len(pat) {
		if pat[i] == ']' {
			return i
		}
		i++
	}
	return -1
}

// translateBracket converts a shell [...] class (which may use a
// leading '!' for negation) into the regexp equivalent (using '^').
func translateBracket(cls string) string {
	inner := cls[1 : len(cls)-1]
	var b strings.Builder
	b.WriteByte('[')
	if strings.HasPrefix(inner, "!") {
		b.WriteByte('^')
		inner = inner[1:]
	} else if strings.HasPrefix(inner, "^") {
		b.WriteByte('^')
		inner = inner[1:]
	}
	// Escape regexp-significant bytes that aren't valid class syntax
	// in a shell glob (namely a literal backslash).
	b.WriteString(strings.ReplaceAll(inner, `\`, `\\`))
	b.WriteByte(']')
	return b.String()
}
