package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"supplyrag/internal/adapter/analyzer"
	"supplyrag/internal/adapter/retry"
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// ProviderError reports a failed relevance-model batch.
type ProviderError struct {
	Batch int
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("rerank batch %d failed: %v", e.Batch, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type Options struct {
	MaxTokens int
	BatchSize int
	Policy    retry.Policy
}

// Reranker rescores retrieval candidates with a relevance model.
type Reranker struct {
	model     port.RelevanceModel
	tokenizer *analyzer.Tokenizer
	opts      Options
	log       *slog.Logger
}

func New(model port.RelevanceModel, opts Options, log *slog.Logger) (*Reranker, error) {
	if opts.MaxTokens <= 0 || opts.BatchSize <= 0 {
		return nil, fmt.Errorf("rerank max_tokens and batch_size must be positive, got %d and %d", opts.MaxTokens, opts.BatchSize)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reranker{
		model:     model,
		tokenizer: analyzer.NewTokenizer(false),
		opts:      opts,
		log:       log,
	}, nil
}

func (r *Reranker) ModelName() string {
	return r.model.ModelName()
}

// Rerank returns up to topM new candidates carrying a rerank score, highest
// first. Equal scores keep their retrieval order. The input is not
// modified, and an empty input never reaches the model.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.ScoredCandidate, topM int) ([]domain.ScoredCandidate, error) {
	if len(candidates) == 0 || topM <= 0 {
		return []domain.ScoredCandidate{}, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = r.tokenizer.Truncate(c.Chunk.Text, r.opts.MaxTokens)
	}

	scores := make([]float64, 0, len(passages))
	for batch, start := 0, 0; start < len(passages); batch, start = batch+1, start+r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(passages))

		var got []float64
		err := retry.Do(ctx, r.opts.Policy, func(ctx context.Context) error {
			var err error
			got, err = r.model.Score(ctx, query, passages[start:end])
			return err
		})
		if err != nil {
			return nil, &ProviderError{Batch: batch, Err: err}
		}
		if len(got) != end-start {
			return nil, &ProviderError{Batch: batch, Err: fmt.Errorf("model returned %d scores for %d passages", len(got), end-start)}
		}
		scores = append(scores, got...)
	}

	out := make([]domain.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.WithRerankScore(scores[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	if len(out) > topM {
		out = out[:topM]
	}

	r.log.Debug("reranked candidates",
		slog.String("model", r.model.ModelName()),
		slog.Int("candidates", len(candidates)),
		slog.Int("kept", len(out)))
	return out, nil
}
