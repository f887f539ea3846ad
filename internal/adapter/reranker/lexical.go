package reranker

import (
	"context"

	"supplyrag/internal/adapter/analyzer"
)

// LexicalModel scores passages by stemmed query-term overlap. It runs
// offline and is used when no hosted relevance model is configured.
type LexicalModel struct {
	tokenizer *analyzer.Tokenizer
}

func NewLexicalModel() *LexicalModel {
	return &LexicalModel{tokenizer: analyzer.NewTokenizer(true)}
}

// Score is the fraction of distinct query terms found in the passage. A
// saturating term-frequency bonus, worth less than one matched term, breaks
// ties between passages matching the same number of terms.
func (m *LexicalModel) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := m.tokenizer.Terms(query)
	scores := make([]float64, len(passages))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	for i, p := range passages {
		tf := make(map[string]int)
		for _, tok := range m.tokenizer.Tokenize(p) {
			if _, ok := queryTerms[tok]; ok {
				tf[tok]++
			}
		}
		var bonus float64
		for _, n := range tf {
			bonus += float64(n) / float64(n+1)
		}
		n := float64(len(queryTerms))
		scores[i] = (float64(len(tf)) + 0.5*bonus/n) / n
	}
	return scores, nil
}

func (m *LexicalModel) ModelName() string {
	return "lexical-overlap"
}
