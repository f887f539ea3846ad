package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"supplyrag/internal/adapter/cache"
	"supplyrag/internal/adapter/index"
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// DenseRetriever embeds a query and searches a loaded snapshot. It only
// reads shared state and is safe for concurrent use.
type DenseRetriever struct {
	embedder port.Embedder
	corpus   *index.EmbeddedCorpus
	cache    *cache.VectorCache
	log      *slog.Logger
}

// NewDenseRetriever fails when the embedder model differs from the model
// the snapshot was built with. cache may be nil.
func NewDenseRetriever(embedder port.Embedder, corpus *index.EmbeddedCorpus, vc *cache.VectorCache, log *slog.Logger) (*DenseRetriever, error) {
	if embedder == nil || corpus == nil {
		return nil, fmt.Errorf("dense retrieval needs an embedder and a loaded corpus")
	}
	if m := corpus.Manifest().Model; m != embedder.ModelName() {
		return nil, fmt.Errorf("snapshot was built with model %q but the query embedder uses %q", m, embedder.ModelName())
	}
	if log == nil {
		log = slog.Default()
	}
	return &DenseRetriever{embedder: embedder, corpus: corpus, cache: vc, log: log}, nil
}

// Retrieve returns up to k candidates by descending inner product.
func (r *DenseRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredCandidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", k)
	}

	vec, err := r.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.corpus.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	r.log.Debug("retrieved candidates", slog.Int("k", k), slog.Int("found", len(results)))
	return results, nil
}

func (r *DenseRetriever) queryVector(ctx context.Context, query string) ([]float32, error) {
	snapshot := r.corpus.Manifest().SnapshotID
	model := r.embedder.ModelName()
	if r.cache != nil {
		if v, ok := r.cache.Get(snapshot, model, query); ok {
			return v, nil
		}
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedding returned %d vectors for one query", len(embeddings))
	}

	if r.cache != nil {
		r.cache.Put(snapshot, model, query, embeddings[0])
	}
	return embeddings[0], nil
}
