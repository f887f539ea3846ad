package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"supplyrag/internal/adapter/store"
	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// ChunkUseCase windows every parsed document into the chunk store.
type ChunkUseCase struct {
	chunker port.Chunker
	log     *slog.Logger
}

func NewChunkUseCase(chunker port.Chunker, log *slog.Logger) *ChunkUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ChunkUseCase{chunker: chunker, log: log}
}

// ChunkResult contains the results of a chunking run.
type ChunkResult struct {
	Documents int
	Skipped   int
	Chunks    int
	Errors    []string
}

// Run reads the parsed documents in file name order and replaces
// chunksFile with their chunks in the same order. A document that cannot
// be read or chunked is recorded in Errors and left out, as is a document
// whose ID was already taken by an earlier file.
func (u *ChunkUseCase) Run(parsedDir, chunksFile string) (*ChunkResult, error) {
	paths, err := store.ListDocuments(parsedDir)
	if err != nil {
		return nil, err
	}

	result := &ChunkResult{}
	all := make([]domain.Chunk, 0)
	seen := make(map[string]string)
	for _, path := range paths {
		doc, err := store.ReadDocument(path)
		if err != nil {
			u.log.Warn("failed to read parsed document", slog.String("path", path), slog.String("error", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if first, ok := seen[doc.ID]; ok {
			u.log.Warn("duplicate document id", slog.String("doc_id", doc.ID), slog.String("path", path), slog.String("first", first))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: document id %q already taken by %s", path, doc.ID, first))
			continue
		}
		seen[doc.ID] = path

		if len(doc.Pages) == 0 || strings.TrimSpace(doc.FullText()) == "" {
			u.log.Warn("skipping empty document", slog.String("doc_id", doc.ID))
			result.Skipped++
			continue
		}

		chunks, err := u.chunker.Chunk(doc)
		if err != nil {
			u.log.Warn("failed to chunk document", slog.String("doc_id", doc.ID), slog.String("error", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		all = append(all, chunks...)
		result.Documents++
	}

	if err := store.WriteChunks(chunksFile, all); err != nil {
		return nil, fmt.Errorf("failed to write chunks: %w", err)
	}
	result.Chunks = len(all)
	return result, nil
}
