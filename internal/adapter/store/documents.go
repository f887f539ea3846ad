package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"supplyrag/internal/domain"
)

const parsedExt = ".jsonl"

// ParsedPath returns where a parsed document with the given ID lives.
func ParsedPath(parsedDir, docID string) string {
	return filepath.Join(parsedDir, docID+parsedExt)
}

// WriteDocument stores a parsed document as one Page per line.
func WriteDocument(parsedDir string, doc domain.Document) error {
	return WriteJSONL(ParsedPath(parsedDir, doc.ID), doc.Pages)
}

// ListDocuments returns the parsed document files in name order.
func ListDocuments(parsedDir string) ([]string, error) {
	entries, err := os.ReadDir(parsedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list parsed documents: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), parsedExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(parsedDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadDocument loads one parsed document. Pages are ordered by page number
// and the document ID falls back to the file stem.
func ReadDocument(path string) (domain.Document, error) {
	pages, err := ReadJSONL[domain.Page](path)
	if err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{
		ID:    strings.TrimSuffix(filepath.Base(path), parsedExt),
		Pages: pages,
	}
	if len(pages) > 0 {
		if pages[0].DocID != "" {
			doc.ID = pages[0].DocID
		}
		doc.Title = pages[0].Title
	}
	sort.SliceStable(doc.Pages, func(i, j int) bool {
		return doc.Pages[i].Page < doc.Pages[j].Page
	})
	return doc, nil
}

// WriteChunks replaces the chunk store.
func WriteChunks(path string, chunks []domain.Chunk) error {
	return WriteJSONL(path, chunks)
}

// ReadChunks loads the chunk store in file order.
func ReadChunks(path string) ([]domain.Chunk, error) {
	chunks, err := ReadJSONL[domain.Chunk](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return chunks, nil
}
