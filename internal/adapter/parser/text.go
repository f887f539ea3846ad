package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"supplyrag/internal/adapter/fs"
	"supplyrag/internal/domain"
)

const pageBreak = "\f"

// DocID returns the document ID for a source file: its base name without
// extension.
func DocID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile reads a plain text or markdown file into a document.
func ParseFile(path string) (domain.Document, error) {
	content, err := fs.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseText(DocID(path), filepath.Base(path), content), nil
}

// ParseText splits content into pages on form feeds. Pages are numbered
// from 1 by position; blank pages keep their number but are omitted.
func ParseText(docID, title, content string) domain.Document {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	doc := domain.Document{ID: docID, Title: title}
	for i, text := range strings.Split(content, pageBreak) {
		if strings.TrimSpace(text) == "" {
			continue
		}
		doc.Pages = append(doc.Pages, domain.Page{
			DocID: docID,
			Title: title,
			Page:  i + 1,
			Text:  strings.TrimSpace(text),
		})
	}
	return doc
}
