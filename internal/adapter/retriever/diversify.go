package retriever

import (
	"supplyrag/internal/adapter/analyzer"
	"supplyrag/internal/domain"
)

// Diversifier reorders ranked candidates with Maximal Marginal Relevance
// and drops near-duplicates, such as overlapping windows or boilerplate
// repeated across filings.
type Diversifier struct {
	lambda       float64
	dedupJaccard float64
	tokenizer    *analyzer.Tokenizer
}

// NewDiversifier creates a diversifier. lambda weighs relevance against
// novelty; candidates whose term overlap with an already selected one
// exceeds dedupJaccard are dropped.
func NewDiversifier(lambda, dedupJaccard float64, tokenizer *analyzer.Tokenizer) *Diversifier {
	return &Diversifier{
		lambda:       lambda,
		dedupJaccard: dedupJaccard,
		tokenizer:    tokenizer,
	}
}

// Diversify selects up to k candidates greedily by
// λ * relevance(c) - (1-λ) * max_similarity(c, selected).
// Relevance is the rerank score when present, else the retrieval score,
// min-max scaled to [0, 1]. The input is not modified.
func (d *Diversifier) Diversify(candidates []domain.ScoredCandidate, k int) []domain.ScoredCandidate {
	if len(candidates) == 0 || k <= 0 {
		return []domain.ScoredCandidate{}
	}
	k = min(k, len(candidates))

	relevance := scaledRelevance(candidates)
	terms := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		terms[i] = d.tokenizer.Terms(c.Chunk.Text)
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))
	for len(selected) < k {
		best := -1
		bestScore := -1e9
		for i := range candidates {
			if used[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				maxSim = max(maxSim, jaccard(terms[i], terms[s]))
			}
			if maxSim > d.dedupJaccard {
				continue
			}
			score := d.lambda*relevance[i] - (1-d.lambda)*maxSim
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		selected = append(selected, best)
	}

	out := make([]domain.ScoredCandidate, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

func scaledRelevance(candidates []domain.ScoredCandidate) []float64 {
	scores := make([]float64, len(candidates))
	lo, hi := 0.0, 0.0
	for i, c := range candidates {
		s := c.RetrievalScore
		if c.Reranked {
			s = c.RerankScore
		}
		scores[i] = s
		if i == 0 || s < lo {
			lo = s
		}
		if i == 0 || s > hi {
			hi = s
		}
	}
	for i := range scores {
		if hi > lo {
			scores[i] = (scores[i] - lo) / (hi - lo)
		} else {
			scores[i] = 1
		}
	}
	return scores
}

// jaccard is |a ∩ b| / |a ∪ b|. Two empty sets are identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
