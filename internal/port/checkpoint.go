package port

import "supplyrag/internal/domain"

// VectorCheckpoint persists embedded vectors between builds.
type VectorCheckpoint interface {
	// Lookup returns stored vectors keyed by chunk ID. A chunk whose text
	// changed since its vector was stored is absent from the result.
	Lookup(chunks []domain.Chunk) (map[string][]float32, error)

	// Save stores vectors[i] for chunks[i].
	Save(chunks []domain.Chunk, vectors [][]float32) error

	Close() error
}
