package port

import (
	"context"

	"supplyrag/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Retrieve returns up to k candidates ordered by descending similarity.
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredCandidate, error)
}
