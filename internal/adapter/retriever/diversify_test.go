package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyrag/internal/adapter/analyzer"
	"supplyrag/internal/domain"
)

func scored(id, text string, score float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{Chunk: domain.Chunk{ID: id, Text: text}, RetrievalScore: score}
}

func ids(cs []domain.ScoredCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Chunk.ID
	}
	return out
}

func TestDiversifyPrefersNovelPassages(t *testing.T) {
	d := NewDiversifier(0.5, 0.9, analyzer.NewTokenizer(false))
	candidates := []domain.ScoredCandidate{
		scored("c1", "foundry wafer supplier contract", 1.0),
		scored("c2", "foundry wafer supplier agreement", 0.9),
		scored("c3", "logistics freight warehouse carrier", 0.8),
		scored("c4", "cloud hosting software license", 0.7),
	}

	// c2 outranks c3 but repeats most of c1.
	out := d.Diversify(candidates, 2)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"c1", "c3"}, ids(out))
}

func TestDiversifyDropsNearDuplicates(t *testing.T) {
	d := NewDiversifier(0.5, 0.8, analyzer.NewTokenizer(false))
	candidates := []domain.ScoredCandidate{
		scored("a", "Foxconn assembles devices for Apple", 0.9),
		scored("b", "Foxconn assembles devices for Apple.", 0.85),
		scored("c", "TSMC fabricates chips", 0.5),
	}

	out := d.Diversify(candidates, 3)
	assert.Equal(t, []string{"a", "c"}, ids(out))
}

func TestDiversifyUsesRerankScore(t *testing.T) {
	d := NewDiversifier(1.0, 1.0, analyzer.NewTokenizer(false))
	candidates := []domain.ScoredCandidate{
		scored("low", "alpha", 0.9).WithRerankScore(0.1),
		scored("high", "beta", 0.2).WithRerankScore(0.8),
	}

	out := d.Diversify(candidates, 2)
	assert.Equal(t, []string{"high", "low"}, ids(out))
	assert.Equal(t, "low", candidates[0].Chunk.ID, "input must not be reordered")
}

func TestDiversifyEmpty(t *testing.T) {
	d := NewDiversifier(0.7, 0.9, analyzer.NewTokenizer(false))
	assert.Empty(t, d.Diversify(nil, 5))
	assert.Empty(t, d.Diversify([]domain.ScoredCandidate{scored("x", "y", 1)}, 0))
}

func TestJaccard(t *testing.T) {
	set := func(ws ...string) map[string]struct{} {
		m := map[string]struct{}{}
		for _, w := range ws {
			m[w] = struct{}{}
		}
		return m
	}
	assert.Equal(t, 1.0, jaccard(set(), set()))
	assert.Equal(t, 0.0, jaccard(set("a"), set()))
	assert.InDelta(t, 1.0/3.0, jaccard(set("a", "b"), set("b", "c")), 1e-9)
}
