package analyzer

import (
	"strings"
	"unicode"
)

// tokensPerWord approximates subword tokenizer output for English prose.
const tokensPerWord = 1.3

// Tokenizer splits text into lowercase terms with optional stemming and
// stopword removal.
type Tokenizer struct {
	stemmer   *PorterStemmer
	stopwords map[string]struct{}
}

func NewTokenizer(useStemming bool) *Tokenizer {
	t := &Tokenizer{stopwords: defaultStopwords()}
	if useStemming {
		t.stemmer = NewPorterStemmer()
	}
	return t
}

// Tokenize returns the terms of text in order, duplicates included.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.stemmer != nil {
			word = t.stemmer.Stem(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Terms returns the distinct terms of text.
func (t *Tokenizer) Terms(text string) map[string]struct{} {
	tokens := t.Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// CountTokens estimates the model token count of text.
func (t *Tokenizer) CountTokens(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	return int(float64(len(words)) * tokensPerWord)
}

// Truncate cuts text after the last whole word that keeps the estimated
// token count within maxTokens. Whitespace inside the kept prefix is
// preserved. At least one word is kept when text is non-empty.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	maxWords := max(int(float64(maxTokens)/tokensPerWord), 1)

	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord && words == maxWords {
				return text[:i]
			}
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
		}
	}
	return text
}

// splitWords splits text at every rune that is not a letter, digit or
// underscore.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
		"us", "any", "these", "those", "into", "under", "over",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
