package index

import (
	"errors"
	"fmt"
	"path/filepath"

	"supplyrag/internal/adapter/store"
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// ErrCorpusMismatch means the index, metadata and manifest of a snapshot
// disagree on row count or order.
var ErrCorpusMismatch = errors.New("index and metadata are out of sync")

// EmbeddedCorpus is a loaded snapshot: the vector index plus the chunk
// stored at each row. It is immutable after Open and safe for concurrent
// searches.
type EmbeddedCorpus struct {
	index    port.VectorIndex
	meta     []domain.MetaRecord
	manifest domain.Manifest
}

// Open loads the snapshot in dir and verifies row alignment. Searches use
// the ef_search recorded in the manifest.
func Open(dir string) (*EmbeddedCorpus, error) {
	return OpenWithEfSearch(dir, 0)
}

// OpenWithEfSearch is Open with the query-time ef_search overridden when
// efSearch > 0. The graph is not rebuilt.
func OpenWithEfSearch(dir string, efSearch int) (*EmbeddedCorpus, error) {
	manifest, err := store.ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	meta, err := store.ReadMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if efSearch > 0 {
		manifest.EfSearch = efSearch
	}
	idx, err := Load(filepath.Join(dir, store.IndexFile), manifest.EfSearch)
	if err != nil {
		return nil, err
	}
	return NewEmbeddedCorpus(idx, meta, manifest)
}

// NewEmbeddedCorpus pairs an index with its metadata. It fails with
// ErrCorpusMismatch unless index length, metadata length and manifest count
// agree and meta[i].Row == i for every row.
func NewEmbeddedCorpus(idx port.VectorIndex, meta []domain.MetaRecord, manifest domain.Manifest) (*EmbeddedCorpus, error) {
	if idx.Len() != len(meta) || len(meta) != manifest.Count {
		return nil, fmt.Errorf("%w: index has %d rows, metadata %d, manifest %d",
			ErrCorpusMismatch, idx.Len(), len(meta), manifest.Count)
	}
	for i, rec := range meta {
		if rec.Row != i {
			return nil, fmt.Errorf("%w: metadata line %d has row_index %d", ErrCorpusMismatch, i, rec.Row)
		}
	}
	return &EmbeddedCorpus{index: idx, meta: meta, manifest: manifest}, nil
}

// Manifest returns the snapshot description.
func (c *EmbeddedCorpus) Manifest() domain.Manifest {
	return c.manifest
}

// Len returns the number of rows.
func (c *EmbeddedCorpus) Len() int {
	return len(c.meta)
}

// Chunk returns the chunk stored at row.
func (c *EmbeddedCorpus) Chunk(row int) (domain.Chunk, bool) {
	if row < 0 || row >= len(c.meta) {
		return domain.Chunk{}, false
	}
	return c.meta[row].Chunk, true
}

// Search returns up to k candidates by descending inner product. Rows
// outside the corpus, including the -1 sentinel, are dropped.
func (c *EmbeddedCorpus) Search(query []float32, k int) ([]domain.ScoredCandidate, error) {
	hits, err := c.index.Search(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, h := range hits {
		chunk, ok := c.Chunk(h.Row)
		if !ok {
			continue
		}
		out = append(out, domain.ScoredCandidate{Chunk: chunk, RetrievalScore: h.Score})
	}
	return out, nil
}

// Close drops the index and metadata. It must not race with Search.
func (c *EmbeddedCorpus) Close() error {
	c.index = nil
	c.meta = nil
	return nil
}
