package port

import "context"

// EmbeddingProvider is one external embedding service call.
type EmbeddingProvider interface {
	// EmbedBatch returns one raw vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// Embedder turns texts into unit-normalized vectors.
type Embedder interface {
	// Embed returns one normalized vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex searches embedding vectors by row position.
type VectorIndex interface {
	// Search finds the k nearest rows to the query.
	Search(query []float32, k int) ([]VectorHit, error)

	// Len returns the number of vectors in the index.
	Len() int
}

// VectorHit is one ANN search result.
type VectorHit struct {
	Row   int     // Row position in the index, -1 when there is no match
	Score float64 // Inner product (higher is better)
}

// StreamingEmbedder delivers normalized vectors batch by batch, in order.
type StreamingEmbedder interface {
	// EmbedStream calls onBatch with the offset of each batch's first text.
	EmbedStream(ctx context.Context, texts []string, onBatch func(offset int, vecs [][]float32) error) error

	// ModelName returns the name of the embedding model.
	ModelName() string
}
