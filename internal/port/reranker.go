package port

import (
	"context"

	"supplyrag/internal/domain"
)

// RelevanceModel scores (query, passage) pairs jointly.
type RelevanceModel interface {
	// Score returns one relevance score per passage, in input order.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName returns the name of the relevance model.
	ModelName() string
}

// Reranker reorders retrieved candidates by relevance to the query.
type Reranker interface {
	// Rerank returns at most topM new candidates sorted by descending
	// relevance. The input slice is not modified.
	Rerank(ctx context.Context, query string, candidates []domain.ScoredCandidate, topM int) ([]domain.ScoredCandidate, error)
}
