package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"

	"supplyrag/internal/adapter/parser"
	"supplyrag/internal/adapter/store"
	"supplyrag/internal/port"
)

// ParseUseCase turns raw source files into parsed page records, one output
// file per document.
type ParseUseCase struct {
	walker    port.FileWalker
	parsedDir string
	workers   int
	force     bool
	log       *slog.Logger
}

func NewParseUseCase(walker port.FileWalker, parsedDir string, workers int, force bool, log *slog.Logger) *ParseUseCase {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &ParseUseCase{
		walker:    walker,
		parsedDir: parsedDir,
		workers:   workers,
		force:     force,
		log:       log,
	}
}

// ParseResult contains the results of a parse run.
type ParseResult struct {
	FilesParsed  int
	FilesSkipped int
	Pages        int
	Errors       []string
}

// Run parses every selected file under rawDir. A failing file is recorded
// and does not stop the run.
func (u *ParseUseCase) Run(ctx context.Context, rawDir string) (*ParseResult, error) {
	files, err := u.walker.Walk(rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	if err := os.MkdirAll(u.parsedDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parsed dir: %w", err)
	}

	result := &ParseResult{}
	var mu sync.Mutex
	addError := func(msg string) {
		mu.Lock()
		result.Errors = append(result.Errors, msg)
		mu.Unlock()
	}

	pool, err := ants.NewPool(u.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	owners := make(map[string]string)
	var wg sync.WaitGroup
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		// Two sources with the same stem would overwrite each other's output.
		docID := parser.DocID(file.Path)
		if owner, dup := owners[docID]; dup {
			addError(fmt.Sprintf("%s: document id %q already taken by %s", file.Path, docID, owner))
			continue
		}
		owners[docID] = file.Path

		out := store.ParsedPath(u.parsedDir, docID)
		if !u.force {
			if _, err := os.Stat(out); err == nil {
				mu.Lock()
				result.FilesSkipped++
				mu.Unlock()
				continue
			}
		}

		path := file.Path
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			pages, err := u.parseOne(path)
			if err != nil {
				u.log.Warn("failed to parse document", slog.String("path", path), slog.String("error", err.Error()))
				addError(fmt.Sprintf("%s: %v", path, err))
				return
			}
			mu.Lock()
			result.FilesParsed++
			result.Pages += pages
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			addError(fmt.Sprintf("%s: %v", path, err))
		}
	}
	wg.Wait()

	return result, nil
}

func (u *ParseUseCase) parseOne(path string) (int, error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return 0, err
	}
	if len(doc.Pages) == 0 {
		u.log.Warn("document has no text", slog.String("path", path))
	}
	if err := store.WriteDocument(u.parsedDir, doc); err != nil {
		return 0, fmt.Errorf("failed to write parsed document: %w", err)
	}
	u.log.Debug("parsed document", slog.String("doc_id", doc.ID), slog.Int("pages", len(doc.Pages)))
	return len(doc.Pages), nil
}
