package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"supplyrag/internal/adapter/ratelimit"
	"supplyrag/internal/adapter/retry"
	"supplyrag/internal/port"
)

// ErrZeroVector is returned when the provider yields a vector that cannot be
// normalized.
var ErrZeroVector = errors.New("zero-length embedding vector")

// EmbeddingProviderError reports a failed batch. The whole embedding
// operation fails with it; no partial result is returned.
type EmbeddingProviderError struct {
	Batch int
	Err   error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding batch %d failed: %v", e.Batch, e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error {
	return e.Err
}

// BatchEmbedder sends texts to a provider in consecutive batches, paced by a
// rate limiter, and L2-normalizes every returned vector.
type BatchEmbedder struct {
	provider  port.EmbeddingProvider
	limiter   *ratelimit.Limiter
	batchSize int
	policy    retry.Policy
	log       *slog.Logger
}

// NewBatchEmbedder creates a batch embedder. The limiter is shared by every
// call made through this embedder, including retries.
func NewBatchEmbedder(provider port.EmbeddingProvider, limiter *ratelimit.Limiter, batchSize int, policy retry.Policy, log *slog.Logger) (*BatchEmbedder, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &BatchEmbedder{
		provider:  provider,
		limiter:   limiter,
		batchSize: batchSize,
		policy:    policy,
		log:       log,
	}, nil
}

// ModelName returns the provider's model name.
func (e *BatchEmbedder) ModelName() string {
	return e.provider.ModelName()
}

// Embed returns one unit vector per text, row i for text i.
func (e *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	err := e.EmbedStream(ctx, texts, func(offset int, vecs [][]float32) error {
		out = append(out, vecs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedStream embeds texts batch by batch and hands each normalized batch
// to onBatch with the offset of its first text. Batches are delivered in
// order; an error from onBatch stops the stream.
func (e *BatchEmbedder) EmbedStream(ctx context.Context, texts []string, onBatch func(offset int, vecs [][]float32) error) error {
	dim := 0
	for batch, start := 0, 0; start < len(texts); batch, start = batch+1, start+e.batchSize {
		end := min(start+e.batchSize, len(texts))

		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return &EmbeddingProviderError{Batch: batch, Err: err}
		}

		for i, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return &EmbeddingProviderError{
					Batch: batch,
					Err:   fmt.Errorf("vector %d has dimension %d, expected %d", start+i, len(v), dim),
				}
			}
			if err := Normalize(v); err != nil {
				return &EmbeddingProviderError{Batch: batch, Err: fmt.Errorf("vector %d: %w", start+i, err)}
			}
		}

		e.log.Debug("embedded batch", slog.Int("batch", batch), slog.Int("size", end-start))

		if err := onBatch(start, vecs); err != nil {
			return err
		}
	}
	return nil
}

func (e *BatchEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	policy := e.policy
	policy.Pace = e.limiter.Acquire
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		vecs, err = e.provider.EmbedBatch(ctx, texts)
		if err != nil {
			e.log.Warn("embedding call failed", slog.String("model", e.provider.ModelName()), slog.String("error", err.Error()))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// Normalize scales v to unit L2 norm in place.
func Normalize(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return ErrZeroVector
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return nil
}
