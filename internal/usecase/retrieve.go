package usecase

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"supplyrag/internal/domain"
	"supplyrag/internal/port"
)

// RetrieveUseCase answers a query with dense retrieval followed by
// reranking.
type RetrieveUseCase struct {
	retriever port.Retriever
	reranker  port.Reranker
	topK      int
	topM      int
	log       *slog.Logger
}

// NewRetrieveUseCase creates a retrieve use case. reranker may be nil, in
// which case the first topM retrieval results are returned as ranked.
func NewRetrieveUseCase(retriever port.Retriever, reranker port.Reranker, topK, topM int, log *slog.Logger) *RetrieveUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &RetrieveUseCase{
		retriever: retriever,
		reranker:  reranker,
		topK:      topK,
		topM:      topM,
		log:       log,
	}
}

// Retrieve returns at most topM candidates for the query.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string) ([]domain.ScoredCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	start := time.Now()
	candidates, err := u.retriever.Retrieve(ctx, query, u.topK)
	if err != nil {
		return nil, err
	}
	retrieved := time.Since(start)

	if len(candidates) == 0 {
		return []domain.ScoredCandidate{}, nil
	}

	var ranked []domain.ScoredCandidate
	if u.reranker != nil {
		ranked, err = u.reranker.Rerank(ctx, query, candidates, u.topM)
		if err != nil {
			return nil, err
		}
	} else {
		ranked = candidates[:min(u.topM, len(candidates))]
	}

	u.log.Debug("query answered",
		slog.Int("retrieved", len(candidates)),
		slog.Int("ranked", len(ranked)),
		slog.Duration("retrieve", retrieved),
		slog.Duration("total", time.Since(start)))
	return ranked, nil
}

// CandidateResult is the JSON form of a ranked candidate.
type CandidateResult struct {
	Rank           int      `json:"rank"`
	ChunkID        string   `json:"chunk_id"`
	DocID          string   `json:"doc_id"`
	Seq            int      `json:"seq"`
	RetrievalScore float64  `json:"retrieval_score"`
	RerankScore    *float64 `json:"rerank_score,omitempty"`
	Text           string   `json:"text"`
}

// ToResults converts candidates for CLI output. Ranks start at 1.
func ToResults(candidates []domain.ScoredCandidate) []CandidateResult {
	out := make([]CandidateResult, len(candidates))
	for i, c := range candidates {
		out[i] = CandidateResult{
			Rank:           i + 1,
			ChunkID:        c.Chunk.ID,
			DocID:          c.Chunk.DocID,
			Seq:            c.Chunk.Seq,
			RetrievalScore: c.RetrievalScore,
			Text:           c.Chunk.Text,
		}
		if c.Reranked {
			score := c.RerankScore
			out[i].RerankScore = &score
		}
	}
	return out
}

// QueryResults pairs a query with its ranked passages.
type QueryResults struct {
	Query   string            `json:"query"`
	Results []CandidateResult `json:"results"`
}

// RetrieveAll answers queries in order with the same retriever, so
// repeated queries are served from the retriever's vector cache. The
// first failing query aborts the batch.
func (u *RetrieveUseCase) RetrieveAll(ctx context.Context, queries []string) ([]QueryResults, error) {
	out := make([]QueryResults, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		ranked, err := u.Retrieve(ctx, q)
		if err != nil {
			return out, fmt.Errorf("query %q: %w", q, err)
		}
		out = append(out, QueryResults{Query: q, Results: ToResults(ranked)})
	}
	return out, nil
}

// ReadQueries reads one query per line. Blank lines and lines starting
// with # are skipped.
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	return queries, nil
}
