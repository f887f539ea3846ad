package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"supplyrag/internal/adapter/index"
	"supplyrag/internal/adapter/store"
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// ErrNoChunks is returned when the chunk store is empty.
var ErrNoChunks = errors.New("chunk store is empty; run chunk first")

// BuildOptions are the parameters recorded in the snapshot manifest.
type BuildOptions struct {
	Params      index.Params
	ChunkChars  int
	ChunkStride int
	Keep        int // Snapshots to keep after commit, 0 = keep all
}

// BuildUseCase embeds the chunk store and publishes a new index snapshot.
type BuildUseCase struct {
	embedder   port.StreamingEmbedder
	checkpoint port.VectorCheckpoint
	snapshots  *store.Snapshots
	opts       BuildOptions
	log        *slog.Logger
}

// NewBuildUseCase creates a build use case. checkpoint may be nil, in which
// case every chunk is embedded.
func NewBuildUseCase(embedder port.StreamingEmbedder, checkpoint port.VectorCheckpoint, snapshots *store.Snapshots, opts BuildOptions, log *slog.Logger) *BuildUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &BuildUseCase{
		embedder:   embedder,
		checkpoint: checkpoint,
		snapshots:  snapshots,
		opts:       opts,
		log:        log,
	}
}

// BuildResult contains the results of a build.
type BuildResult struct {
	SnapshotID string
	Dir        string
	Count      int
	Dim        int
	Reused     int
	Embedded   int
	Pruned     []string
}

// ProgressFunc reports embedded chunks out of the total still to embed.
type ProgressFunc func(done, total int)

// Run embeds every chunk in chunksFile, reusing checkpointed vectors,
// builds the HNSW graph in chunk order and commits the snapshot. CURRENT
// only moves once all snapshot files are written.
func (u *BuildUseCase) Run(ctx context.Context, chunksFile string, progress ProgressFunc) (*BuildResult, error) {
	chunks, err := store.ReadChunks(chunksFile)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	vectors, reused, err := u.embedAll(ctx, chunks, progress)
	if err != nil {
		return nil, err
	}

	u.log.Info("building HNSW graph", slog.Int("vectors", len(vectors)), slog.Int("m", u.opts.Params.M))
	idx, err := index.Build(vectors, u.opts.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	id, dir, err := u.snapshots.Create()
	if err != nil {
		return nil, err
	}
	if err := u.writeSnapshot(id, dir, idx, chunks); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if err := u.snapshots.Commit(id); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	result := &BuildResult{
		SnapshotID: id,
		Dir:        dir,
		Count:      len(chunks),
		Dim:        idx.Dim(),
		Reused:     reused,
		Embedded:   len(chunks) - reused,
	}

	if u.opts.Keep > 0 {
		removed, err := u.snapshots.Prune(u.opts.Keep)
		if err != nil {
			u.log.Warn("failed to prune snapshots", slog.String("error", err.Error()))
		}
		result.Pruned = removed
	}
	return result, nil
}

// embedAll returns one vector per chunk, in chunk order, and how many came
// from the checkpoint.
func (u *BuildUseCase) embedAll(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))

	cached := map[string][]float32{}
	if u.checkpoint != nil {
		var err error
		cached, err = u.checkpoint.Lookup(chunks)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read checkpoint: %w", err)
		}
	}

	var pending []int
	for i, c := range chunks {
		if v, ok := cached[c.ID]; ok {
			vectors[i] = v
			continue
		}
		pending = append(pending, i)
	}
	reused := len(chunks) - len(pending)
	if reused > 0 {
		u.log.Info("resuming from checkpoint", slog.Int("reused", reused), slog.Int("remaining", len(pending)))
	}

	texts := make([]string, len(pending))
	for i, row := range pending {
		texts[i] = chunks[row].Text
	}

	done := 0
	if progress != nil {
		progress(0, len(pending))
	}
	start := time.Now()
	err := u.embedder.EmbedStream(ctx, texts, func(offset int, vecs [][]float32) error {
		batch := make([]domain.Chunk, len(vecs))
		for j, v := range vecs {
			row := pending[offset+j]
			vectors[row] = v
			batch[j] = chunks[row]
		}
		if u.checkpoint != nil {
			if err := u.checkpoint.Save(batch, vecs); err != nil {
				return fmt.Errorf("failed to checkpoint vectors: %w", err)
			}
		}
		done += len(vecs)
		if progress != nil {
			progress(done, len(pending))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	u.log.Info("embedding complete",
		slog.String("model", u.embedder.ModelName()),
		slog.Int("embedded", len(pending)),
		slog.Duration("elapsed", time.Since(start)))
	return vectors, reused, nil
}

func (u *BuildUseCase) writeSnapshot(id, dir string, idx *index.HNSW, chunks []domain.Chunk) error {
	if err := idx.Save(filepath.Join(dir, store.IndexFile)); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	meta := make([]domain.MetaRecord, len(chunks))
	for i, c := range chunks {
		meta[i] = domain.MetaRecord{Chunk: c, Row: i}
	}
	if err := store.WriteMeta(dir, meta); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	manifest := domain.Manifest{
		SnapshotID:     id,
		CreatedAt:      time.Now().UTC(),
		Model:          u.embedder.ModelName(),
		Dim:            idx.Dim(),
		Count:          len(chunks),
		M:              u.opts.Params.M,
		EfConstruction: u.opts.Params.EfConstruction,
		EfSearch:       u.opts.Params.EfSearch,
		ChunkChars:     u.opts.ChunkChars,
		ChunkStride:    u.opts.ChunkStride,
	}
	if err := store.WriteManifest(dir, manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
