package port

import (
	"context"

	"supplyrag/internal/domain"
)

// RelationshipExtractor turns ranked passages into relationship records.
type RelationshipExtractor interface {
	Extract(ctx context.Context, candidates []domain.ScoredCandidate) ([]domain.Relationship, error)
}
