// Package normalize canonicalizes free-text tokens into comparable keys and
// generates the alternative surface forms the match cascade tries.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// last "(...)" group, which must close the string and hold no parens
	parentheticalPattern = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)$`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Key returns the canonical lookup key of raw: compatibility folded,
// uppercased, with everything outside [A-Z0-9] removed.
func Key(raw string) string {
	upper := strings.ToUpper(norm.NFKC.String(raw))

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fold returns raw compatibility folded, lowercased and with runs of
// whitespace collapsed. Keyword containment tests operate on folded text.
func Fold(raw string) string {
	folded := cases.Lower(language.Und).String(norm.NFKC.String(raw))
	folded = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, folded)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(folded, " "))
}

// Title capitalizes each word of raw and lowercases the rest.
func Title(raw string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(raw))
}

// ExpandParenthetical splits "Name (ABBR)" into its outside and inside
// forms. Without a trailing parenthetical it returns raw unchanged.
func ExpandParenthetical(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	m := parentheticalPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return []string{raw}
	}

	var out []string
	for _, part := range m[1:] {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{raw}
	}
	return out
}

// Acronym is one row of an acronym expansion table.
type Acronym struct {
	Short string
	Long  string
}

// AcronymTable is an ordered acronym table; order decides the sequence of
// cumulative substitutions.
type AcronymTable []Acronym

// ExpandAcronyms returns raw together with every variant obtained by
// substituting whole acronyms from table: one variant per single
// substitution, the same with parentheses removed, and the cumulative
// substitution of all acronyms found. The result is sorted and unique.
func ExpandAcronyms(raw string, table AcronymTable) []string {
	set := map[string]struct{}{raw: {}}

	cumulative := raw
	for _, a := range table {
		single, ok := ReplaceToken(raw, a.Short, a.Long)
		if ok {
			set[single] = struct{}{}
			set[stripParens(single)] = struct{}{}
		}
		if next, ok := ReplaceToken(cumulative, a.Short, a.Long); ok {
			cumulative = next
		}
	}
	set[cumulative] = struct{}{}

	out := make([]string, 0, len(set))
	for s := range set {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// ReplaceToken replaces every whole-token, case-sensitive occurrence of
// token in s, so "all" is left alone when token is "ALL". A token is whole when it is not flanked by letters or
// digits. It reports whether anything was replaced.
func ReplaceToken(s, token, repl string) (string, bool) {
	if token == "" || len(token) > len(s) {
		return s, false
	}

	var b strings.Builder
	replaced := false
	i := 0
	for i <= len(s)-len(token) {
		j := strings.Index(s[i:], token)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(token)
		if isBoundary(s, start-1) && isBoundary(s, end) {
			b.WriteString(s[i:start])
			b.WriteString(repl)
			replaced = true
			i = end
			continue
		}
		b.WriteString(s[i : start+1])
		i = start + 1
	}
	if !replaced {
		return s, false
	}
	b.WriteString(s[i:])
	return b.String(), true
}

func isBoundary(s string, pos int) bool {
	if pos < 0 || pos >= len(s) {
		return true
	}
	c := s[pos]
	return !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'))
}

func stripParens(s string) string {
	s = strings.NewReplacer("(", "", ")", "").Replace(s)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
