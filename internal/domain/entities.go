package domain

import (
	"strings"
	"time"
)

// Page is one page of extracted document text.
type Page struct {
	DocID string `json:"doc_id"`
	Title string `json:"title"`
	Page  int    `json:"page"`
	Text  string `json:"text"`
}

// Document is an ordered sequence of pages. It is immutable once parsed.
type Document struct {
	ID    string
	Title string
	Pages []Page
}

// FullText joins the page texts with a newline, in page order.
func (d Document) FullText() string {
	texts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

// Chunk is one window of a document's concatenated text.
// ID is derived from (DocID, Seq), never from Text.
type Chunk struct {
	ID    string `json:"chunk_id"`
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
	Seq   int    `json:"seq"`
}

// MetaRecord is a chunk plus its row position in the vector index.
type MetaRecord struct {
	Chunk
	Row int `json:"row_index"`
}

// EmbeddedChunk pairs a chunk with its unit-normalized vector at build time.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
	Row    int
}

// ScoredCandidate is a per-query result. RerankScore is only meaningful
// once Reranked is set.
type ScoredCandidate struct {
	Chunk          Chunk
	RetrievalScore float64
	RerankScore    float64
	Reranked       bool
}

// WithRerankScore returns a copy of c carrying the given relevance score.
func (c ScoredCandidate) WithRerankScore(score float64) ScoredCandidate {
	c.RerankScore = score
	c.Reranked = true
	return c
}

// Relationship is one extracted buyer/supplier link.
type Relationship struct {
	Buyer          string  `json:"buyer"`
	Supplier       string  `json:"supplier"`
	RelationType   string  `json:"relation_type"`
	Role           string  `json:"role"`
	EvidenceSpan   string  `json:"evidence_span"`
	DocURL         string  `json:"doc_url"`
	EffectiveStart *string `json:"effective_start"`
	EffectiveEnd   *string `json:"effective_end"`
	Confidence     float64 `json:"confidence"`
}

// Manifest describes one index snapshot.
type Manifest struct {
	SnapshotID     string    `json:"snapshot_id"`
	CreatedAt      time.Time `json:"created_at"`
	Model          string    `json:"model"`
	Dim            int       `json:"dim"`
	Count          int       `json:"count"`
	M              int       `json:"m"`
	EfConstruction int       `json:"ef_construction"`
	EfSearch       int       `json:"ef_search"`
	ChunkChars     int       `json:"chunk_chars"`
	ChunkStride    int       `json:"chunk_stride"`
}
