package index

import (
	"fmt"

	"supplyrag/internal/port"
)

// Flat is an exact inner-product index. It scans every row and serves as
// the ground truth when measuring HNSW recall.
type Flat struct {
	vectors [][]float32
	dim     int
}

func NewFlat(vectors [][]float32) (*Flat, error) {
	dim := 0
	for row, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, expected %d", row, len(v), dim)
		}
	}
	return &Flat{vectors: vectors, dim: dim}, nil
}

func (f *Flat) Len() int {
	return len(f.vectors)
}

// Search returns the k rows with the highest inner product.
func (f *Flat) Search(query []float32, k int) ([]port.VectorHit, error) {
	if len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", f.dim, len(query))
	}

	hits := make([]port.VectorHit, len(f.vectors))
	for row, v := range f.vectors {
		hits[row] = port.VectorHit{Row: row, Score: float64(dot(query, v))}
	}
	sortHits(hits)

	return hits[:min(k, len(hits))], nil
}
