package usecase

import (
	"context"
	"log/slog"

	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// Diversifier drops redundant passages from a ranked list.
type Diversifier interface {
	Diversify(candidates []domain.ScoredCandidate, k int) []domain.ScoredCandidate
}

// ExtractUseCase retrieves and ranks passages for a query and extracts
// relationships from them.
type ExtractUseCase struct {
	retrieve  *RetrieveUseCase
	diversify Diversifier
	pack      *PackUseCase
	extractor port.RelationshipExtractor
	budget    int
	log       *slog.Logger
}

// NewExtractUseCase creates an extract use case. diversify may be nil.
func NewExtractUseCase(retrieve *RetrieveUseCase, diversify Diversifier, pack *PackUseCase, extractor port.RelationshipExtractor, budget int, log *slog.Logger) *ExtractUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ExtractUseCase{
		retrieve:  retrieve,
		diversify: diversify,
		pack:      pack,
		extractor: extractor,
		budget:    budget,
		log:       log,
	}
}

// ExtractResult holds the passages shown to the model and what it found.
type ExtractResult struct {
	Candidates    []domain.ScoredCandidate
	Relationships []domain.Relationship
}

func (u *ExtractUseCase) Extract(ctx context.Context, query string) (*ExtractResult, error) {
	ranked, err := u.retrieve.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	packed := u.Prepare(ranked)
	rels, err := u.extractor.Extract(ctx, packed.Candidates)
	if err != nil {
		return nil, err
	}
	return &ExtractResult{Candidates: packed.Candidates, Relationships: rels}, nil
}

// Prepare diversifies ranked candidates and fits them into the prompt
// budget in the diversified order.
func (u *ExtractUseCase) Prepare(ranked []domain.ScoredCandidate) PackedContext {
	if u.diversify != nil {
		before := len(ranked)
		ranked = u.diversify.Diversify(ranked, len(ranked))
		if dropped := before - len(ranked); dropped > 0 {
			u.log.Debug("dropped redundant passages", slog.Int("dropped", dropped))
		}
	}
	packed := u.pack.Pack(ranked, u.budget)
	if packed.Dropped > 0 {
		u.log.Info("context budget reached",
			slog.Int("kept", len(packed.Candidates)),
			slog.Int("dropped", packed.Dropped),
			slog.Int("tokens", packed.UsedTokens))
	}
	return packed
}
