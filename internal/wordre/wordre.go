// Package wordre wraps regexp with word-boundary checks that understand
// Vietnamese letters.
//
// Go's \b only treats [0-9A-Za-z_] as word characters, so `\bở\b` never
// matches and `\bo\b` happily matches the "o" in "đo". Patterns compiled here
// omit \b and declare which edges must sit on a word boundary instead; the
// boundary is then checked against Unicode letters and digits.
//
// Patterns used with the FindAll/Replace methods must not use ^, because
// matching resumes on a suffix of the input.
package wordre

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Bound selects which edges of a match must lie on a word boundary.
type Bound int

const (
	None  Bound = 0
	Left  Bound = 1
	Right Bound = 2
	Both        = Left | Right
)

// Regexp is a compiled pattern plus its boundary requirements. It is safe for
// concurrent use.
type Regexp struct {
	re       *regexp.Regexp
	anchored *regexp.Regexp
	left     bool
	right    bool
}

// MustCompile compiles pattern and panics on error, like regexp.MustCompile.
func MustCompile(pattern string, b Bound) *Regexp {
	return &Regexp{
		re:       regexp.MustCompile(pattern),
		anchored: regexp.MustCompile(`^(?:` + pattern + `)`),
		left:     b&Left != 0,
		right:    b&Right != 0,
	}
}

// String returns the source pattern.
func (w *Regexp) String() string { return w.re.String() }

// IsWordRune reports whether r counts as a word character.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// Boundary reports whether byte offset i of s is a word boundary.
func Boundary(s string, i int) bool {
	prev, next := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		prev = IsWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		next = IsWordRune(r)
	}
	return prev != next
}

// FindAllStringSubmatchIndex returns the successive non-overlapping matches of
// the pattern that satisfy the boundary requirements. Offsets are absolute.
func (w *Regexp) FindAllStringSubmatchIndex(s string) [][]int {
	return w.find(s, -1)
}

// FindStringSubmatchIndex returns the leftmost valid match, or nil.
func (w *Regexp) FindStringSubmatchIndex(s string) []int {
	m := w.find(s, 1)
	if len(m) == 0 {
		return nil
	}
	return m[0]
}

// FindStringSubmatch returns the text of the leftmost valid match and its
// groups, or nil. Unmatched groups are empty strings.
func (w *Regexp) FindStringSubmatch(s string) []string {
	loc := w.FindStringSubmatchIndex(s)
	if loc == nil {
		return nil
	}
	return texts(s, loc)
}

// FindAllStringSubmatch is the text form of FindAllStringSubmatchIndex.
func (w *Regexp) FindAllStringSubmatch(s string) [][]string {
	locs := w.find(s, -1)
	out := make([][]string, 0, len(locs))
	for _, loc := range locs {
		out = append(out, texts(s, loc))
	}
	return out
}

// FindAllString returns the full text of every valid match.
func (w *Regexp) FindAllString(s string) []string {
	locs := w.find(s, -1)
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		out = append(out, s[loc[0]:loc[1]])
	}
	return out
}

// MatchString reports whether s contains a valid match.
func (w *Regexp) MatchString(s string) bool {
	return w.FindStringSubmatchIndex(s) != nil
}

// ReplaceAllString replaces every valid match with repl, expanding $1-style
// references as regexp.Expand does.
func (w *Regexp) ReplaceAllString(s, repl string) string {
	locs := w.find(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b []byte
	last := 0
	for _, loc := range locs {
		b = append(b, s[last:loc[0]]...)
		b = w.re.ExpandString(b, repl, s, loc)
		last = loc[1]
	}
	b = append(b, s[last:]...)
	return string(b)
}

// ReplaceAllStringFunc replaces every valid match with fn(match).
func (w *Regexp) ReplaceAllStringFunc(s string, fn func(string) string) string {
	locs := w.find(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(s[loc[0]:loc[1]]))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func (w *Regexp) find(s string, n int) [][]int {
	var out [][]int
	for off := 0; off <= len(s) && (n < 0 || len(out) < n); {
		loc := w.re.FindStringSubmatchIndex(s[off:])
		if loc == nil {
			break
		}
		shift(loc, off)
		start := loc[0]
		if w.left && !Boundary(s, start) {
			off = nextRune(s, start)
			continue
		}
		if w.right && !Boundary(s, loc[1]) {
			loc = w.shrink(s, start, loc[1])
			if loc == nil {
				off = nextRune(s, start)
				continue
			}
		}
		out = append(out, loc)
		if loc[1] > loc[0] {
			off = loc[1]
		} else {
			off = nextRune(s, loc[1])
		}
	}
	return out
}

// shrink looks for a shorter match starting at start whose end is a word
// boundary, emulating the backtracking a \b at the end of a pattern causes.
func (w *Regexp) shrink(s string, start, end int) []int {
	for limit := end; limit > start; {
		_, size := utf8.DecodeLastRuneInString(s[:limit])
		limit -= size
		loc := w.anchored.FindStringSubmatchIndex(s[start:limit])
		if loc == nil {
			return nil
		}
		shift(loc, start)
		if Boundary(s, loc[1]) {
			return loc
		}
		limit = loc[1]
	}
	return nil
}

func shift(loc []int, off int) {
	for i := range loc {
		if loc[i] >= 0 {
			loc[i] += off
		}
	}
}

func nextRune(s string, i int) int {
	if i >= len(s) {
		return len(s) + 1
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return i + size
}

func texts(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}
