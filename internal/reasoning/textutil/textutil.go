// Package textutil holds the tokenization and overlap helpers shared by the
// reasoning components. Tokens are lowercased, whitespace separated and
// stripped of surrounding punctuation.
package textutil

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Tokens splits s into lowercased tokens. Empty tokens are dropped.
func Tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, isEdgePunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) && r != '$' && r != '%'
}

// WordCount counts whitespace separated words without normalising them.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// TokenSet is a set of normalised tokens.
type TokenSet map[string]struct{}

func NewTokenSet(s string) TokenSet {
	return SetOf(Tokens(s))
}

func SetOf(tokens []string) TokenSet {
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func (s TokenSet) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// Intersect returns |s ∩ other|.
func (s TokenSet) Intersect(other TokenSet) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for t := range small {
		if large.Has(t) {
			n++
		}
	}
	return n
}

// Without returns a copy of s minus the given tokens.
func (s TokenSet) Without(drop TokenSet) TokenSet {
	out := make(TokenSet, len(s))
	for t := range s {
		if !drop.Has(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

func (s TokenSet) Add(other TokenSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// OverlapRatio is |a ∩ b| / |a|, or 0 when a is empty.
func OverlapRatio(a, b TokenSet) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(a.Intersect(b)) / float64(len(a))
}

// Stopwords ignored by near-duplicate suppression.
var Stopwords = SetOf([]string{"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for"})

// SplitSentences splits on ". " the way answers are written by the
// generator; trailing periods are kept on the last segment only.
func SplitSentences(s string) []string {
	parts := strings.Split(s, ". ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitClaims splits on every "." and keeps trimmed segments with at least
// minTokens tokens.
func SplitClaims(s string, minTokens int) []string {
	var out []string
	for _, seg := range strings.Split(s, ".") {
		seg = strings.TrimSpace(seg)
		if seg == "" || len(strings.Fields(seg)) < minTokens {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// Truncate cuts s to n bytes and appends "..." when it was longer.
// Cuts never split a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return CutRunes(s, n) + "..."
}

// CutRunes returns the longest prefix of s no longer than n bytes that ends
// on a rune boundary.
func CutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

var (
	capitalizedRunRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*\b`)

	// capitalised only because they open a sentence
	sentenceOpeners = SetOf([]string{
		"what", "who", "where", "when", "why", "how", "which", "is", "are", "was", "were",
		"do", "does", "did", "can", "could", "would", "should", "will", "tell", "show",
		"give", "list", "describe", "explain", "compare", "please", "and", "also", "but",
		"so", "the", "a", "an", "i", "it", "this", "that", "in", "on", "for", "of",
	})
)

// CapitalizedRuns returns runs of capitalised words, the proper-noun
// heuristic. Leading sentence openers such as "What" or "Tell" are dropped
// from each run and runs left empty are skipped.
func CapitalizedRuns(s string) []string {
	var out []string
	for _, run := range capitalizedRunRe.FindAllString(s, -1) {
		words := strings.Fields(run)
		for len(words) > 0 && sentenceOpeners.Has(strings.ToLower(words[0])) {
			words = words[1:]
		}
		if len(words) > 0 {
			out = append(out, strings.Join(words, " "))
		}
	}
	return out
}
