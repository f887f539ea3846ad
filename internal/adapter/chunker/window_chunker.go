package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"iter"

	"supplyrag/internal/domain"
)

// WindowChunker splits a document's full text into overlapping fixed-size
// character windows.
type WindowChunker struct {
	windowChars int
	stride      int
}

// NewWindowChunker validates the window geometry. A stride larger than the
// window would leave gaps between chunks.
func NewWindowChunker(windowChars, stride int) (*WindowChunker, error) {
	if windowChars <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowChars)
	}
	if stride <= 0 || stride > windowChars {
		return nil, fmt.Errorf("stride must be in (0, %d], got %d", windowChars, stride)
	}
	return &WindowChunker{windowChars: windowChars, stride: stride}, nil
}

// Chunk returns the document's windows in order, with IDs derived from the
// document ID and window position.
func (c *WindowChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	seq := 0
	for text := range Windows(doc.FullText(), c.windowChars, c.stride) {
		chunks = append(chunks, domain.Chunk{
			ID:    ChunkID(doc.ID, seq),
			DocID: doc.ID,
			Text:  text,
			Seq:   seq,
		})
		seq++
	}
	return chunks, nil
}

// Windows yields text[off:off+windowChars] for off = 0, stride, 2*stride...
// measured in runes, clipped at the end of the text. It stops after the
// first window that reaches the end, and always yields at least one window.
// Callers must pass windowChars > 0 and 0 < stride <= windowChars.
func Windows(text string, windowChars, stride int) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		n := len(runes)
		for off := 0; ; off += stride {
			end := min(off+windowChars, n)
			if !yield(string(runes[off:end])) {
				return
			}
			if end >= n {
				return
			}
		}
	}
}

// ChunkID returns md5(docID:seq) as hex.
func ChunkID(docID string, seq int) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%s:%d", docID, seq)))
	return hex.EncodeToString(hash[:])
}
