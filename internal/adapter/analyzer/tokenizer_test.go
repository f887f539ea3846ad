package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizer_Tokenize_WithStemming(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("Suppliers are manufacturing our chips")
	assert.Equal(t, []string{"supplier", "manufactur", "chip"}, tokens)
}

func TestTokenizer_Tokenize_WithoutStemming(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("Suppliers are manufacturing our chips")
	assert.Equal(t, []string{"suppliers", "manufacturing", "chips"}, tokens)
}

func TestTokenizer_StopwordAndShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	assert.Equal(t, []string{"go"}, tok.Tokenize("a I go to the"))
}

func TestTokenizer_Terms(t *testing.T) {
	tok := NewTokenizer(true)

	terms := tok.Terms("supplier suppliers Supplier")
	assert.Len(t, terms, 1)
	assert.Contains(t, terms, "supplier")
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer(false)

	assert.Equal(t, 7, tok.CountTokens("hello world this is a test"))
	assert.Zero(t, tok.CountTokens("   "))
}

func TestTokenizer_Truncate(t *testing.T) {
	tok := NewTokenizer(false)
	text := "one two  three\nfour five six"

	tests := []struct {
		maxTokens int
		want      string
	}{
		{1, "one"},
		{3, "one two"},
		{4, "one two  three"},
		{100, text},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tok.Truncate(text, tt.maxTokens), "maxTokens=%d", tt.maxTokens)
	}

	assert.Equal(t, "", tok.Truncate("", 10))
	long := strings.Repeat("word ", 1000)
	assert.LessOrEqual(t, tok.CountTokens(tok.Truncate(long, 512)), 512)
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"Hon-Hai Precision", 3},
		{"TSMC (Taiwan)", 2},
		{"10-K filing", 3},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Len(t, splitWords(tt.input), tt.expected, "splitWords(%q)", tt.input)
	}
}

func TestPorterStemmer(t *testing.T) {
	s := NewPorterStemmer()
	tests := map[string]string{
		"caresses":      "caress",
		"ponies":        "poni",
		"running":       "run",
		"hopping":       "hop",
		"agreed":        "agre",
		"relational":    "relat",
		"conditional":   "condit",
		"hopeful":       "hope",
		"goodness":      "good",
		"adjustment":    "adjust",
		"manufacturing": "manufactur",
		"suppliers":     "supplier",
		"controll":      "control",
		"go":            "go",
		"café":          "café",
	}
	for in, want := range tests {
		assert.Equal(t, want, s.Stem(in), "Stem(%q)", in)
	}
}

func TestPorterStemmerDeterministic(t *testing.T) {
	s := NewPorterStemmer()
	for i := 0; i < 50; i++ {
		assert.Equal(t, "relat", s.Stem("relational"))
	}
}
