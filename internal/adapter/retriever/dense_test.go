package retriever

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyrag/internal/adapter/cache"
	"supplyrag/internal/adapter/index"
	"supplyrag/internal/domain"
)

type stubEmbedder struct {
	model string
	calls atomic.Int32
	vec   map[string][]float32
	err   error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vec[t]
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string { return s.model }

func testCorpus(t *testing.T) *index.EmbeddedCorpus {
	t.Helper()
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.6, 0.8, 0}}
	flat, err := index.NewFlat(vecs)
	require.NoError(t, err)

	meta := make([]domain.MetaRecord, len(vecs))
	for i := range meta {
		meta[i] = domain.MetaRecord{Chunk: domain.Chunk{ID: string(rune('a' + i)), DocID: "doc", Seq: i}, Row: i}
	}
	corpus, err := index.NewEmbeddedCorpus(flat, meta, domain.Manifest{SnapshotID: "snap", Model: "m", Count: len(vecs)})
	require.NoError(t, err)
	return corpus
}

func TestDenseRetrieverOrdersByScore(t *testing.T) {
	emb := &stubEmbedder{model: "m", vec: map[string][]float32{"q": {0, 1, 0}}}
	r, err := NewDenseRetriever(emb, testCorpus(t), nil, nil)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Chunk.ID)
	assert.Equal(t, "d", got[1].Chunk.ID)
	assert.Greater(t, got[0].RetrievalScore, got[1].RetrievalScore)
}

func TestDenseRetrieverTopKBeyondCorpus(t *testing.T) {
	emb := &stubEmbedder{model: "m", vec: map[string][]float32{"q": {1, 0, 0}}}
	r, err := NewDenseRetriever(emb, testCorpus(t), nil, nil)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestDenseRetrieverRejectsModelMismatch(t *testing.T) {
	_, err := NewDenseRetriever(&stubEmbedder{model: "other"}, testCorpus(t), nil, nil)
	assert.Error(t, err)
}

func TestDenseRetrieverEmbedError(t *testing.T) {
	boom := errors.New("quota exhausted")
	r, err := NewDenseRetriever(&stubEmbedder{model: "m", err: boom}, testCorpus(t), nil, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "q", 1)
	assert.ErrorIs(t, err, boom)
}

func TestDenseRetrieverUsesCache(t *testing.T) {
	emb := &stubEmbedder{model: "m", vec: map[string][]float32{"q": {0, 0, 1}}}
	r, err := NewDenseRetriever(emb, testCorpus(t), cache.NewVectorCache(10, time.Minute), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := r.Retrieve(context.Background(), "q", 1)
		require.NoError(t, err)
		assert.Equal(t, "c", got[0].Chunk.ID)
	}
	assert.Equal(t, int32(1), emb.calls.Load())
}

func TestDenseRetrieverConcurrent(t *testing.T) {
	emb := &stubEmbedder{model: "m", vec: map[string][]float32{
		"x": {1, 0, 0}, "y": {0, 1, 0}, "z": {0, 0, 1},
	}}
	r, err := NewDenseRetriever(emb, testCorpus(t), cache.NewVectorCache(10, time.Minute), nil)
	require.NoError(t, err)

	want := map[string]string{"x": "a", "y": "b", "z": "c"}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		q := []string{"x", "y", "z"}[i%3]
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Retrieve(context.Background(), q, 1)
			if assert.NoError(t, err) && assert.Len(t, got, 1) {
				assert.Equal(t, want[q], got[0].Chunk.ID)
			}
		}()
	}
	wg.Wait()
}
