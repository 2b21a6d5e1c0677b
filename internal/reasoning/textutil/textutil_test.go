package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"what", "is", "its", "revenue"}, Tokens("What is its revenue?"))
	assert.Equal(t, []string{"$5m", "growth", "12%"}, Tokens("  $5M growth, (12%)  "))
	assert.Empty(t, Tokens(" ... "))
}

func TestOverlapRatio(t *testing.T) {
	a := NewTokenSet("fund investment strategy")
	b := NewTokenSet("The fund's strategy focuses on growth; strategy matters")

	assert.InDelta(t, 1.0/3.0, OverlapRatio(a, b), 1e-9)
	assert.Equal(t, 0.0, OverlapRatio(TokenSet{}, b))
}

func TestTokenSet_Without(t *testing.T) {
	set := NewTokenSet("the revenue and the margin").Without(Stopwords)
	assert.Equal(t, []string{"margin", "revenue"}, set.Sorted())
}

func TestSplitClaims(t *testing.T) {
	claims := SplitClaims("Acme grew revenue. Yes. The margin improved to 12%. ", 3)
	assert.Equal(t, []string{"Acme grew revenue", "The margin improved to 12%"}, claims)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One two", "Three four."}, SplitSentences("One two. Three four."))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	// "é" is two bytes; the cut backs off rather than splitting it
	assert.Equal(t, "a...", Truncate("aéb", 2))
}

func TestCapitalizedRuns(t *testing.T) {
	assert.Equal(t, []string{"Acme Corp"}, CapitalizedRuns("Tell me about Acme Corp"))
	assert.Equal(t, []string{"ACME CORP", "Berlin"}, CapitalizedRuns("Is ACME CORP based in Berlin?"))
	assert.Empty(t, CapitalizedRuns("What is the fund's strategy?"))
}
