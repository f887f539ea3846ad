package usecase

import (
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// PackedContext is the subset of ranked candidates that fits the extraction
// prompt budget.
type PackedContext struct {
	Candidates   []domain.ScoredCandidate
	BudgetTokens int
	UsedTokens   int
	Dropped      int
}

// PackUseCase fits ranked candidates into a token budget.
type PackUseCase struct {
	tokenizer port.Tokenizer
}

func NewPackUseCase(tokenizer port.Tokenizer) *PackUseCase {
	return &PackUseCase{tokenizer: tokenizer}
}

// Pack keeps candidates in rank order, skipping any that would overflow
// the budget so a smaller lower-ranked passage can still fit. A budget of
// 0 or less keeps everything.
func (u *PackUseCase) Pack(candidates []domain.ScoredCandidate, budget int) PackedContext {
	packed := PackedContext{
		Candidates:   make([]domain.ScoredCandidate, 0, len(candidates)),
		BudgetTokens: budget,
	}
	for _, c := range candidates {
		tokens := max(u.tokenizer.CountTokens(c.Chunk.Text), 1)
		if budget > 0 && packed.UsedTokens+tokens > budget {
			packed.Dropped++
			continue
		}
		packed.Candidates = append(packed.Candidates, c)
		packed.UsedTokens += tokens
	}
	return packed
}
