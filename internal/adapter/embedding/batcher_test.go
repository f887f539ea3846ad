package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyrag/internal/adapter/ratelimit"
	"supplyrag/internal/adapter/retry"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	failOn  int // 1-based call number that fails, 0 = never
	err     error
	embed   func(text string) []float32
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.failOn != 0 && f.calls >= f.failOn {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.embed != nil {
			out[i] = f.embed(t)
		} else {
			out[i] = []float32{float32(len(t)), 3, 4}
		}
	}
	return out, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }

func fastLimiter() *ratelimit.Limiter {
	return ratelimit.NewInterval(time.Millisecond)
}

func noRetry() retry.Policy {
	return retry.Policy{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedNormalizesVectors(t *testing.T) {
	p := &fakeProvider{}
	e, err := NewBatchEmbedder(p, fastLimiter(), 2, noRetry(), nil)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"a", "bbbb", "cc", "d", "eeeeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for _, v := range vecs {
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	}
	assert.Equal(t, 3, p.calls, "5 texts at batch size 2 take 3 calls")
}

func TestEmbedPreservesOrder(t *testing.T) {
	p := &fakeProvider{embed: func(text string) []float32 {
		v := make([]float32, 8)
		v[len(text)%8] = 1
		return v
	}}
	e, err := NewBatchEmbedder(p, fastLimiter(), 3, noRetry(), nil)
	require.NoError(t, err)

	texts := []string{"", "a", "aa", "aaa", "aaaa", "aaaaa", "aaaaaa"}
	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	for i, v := range vecs {
		assert.Equal(t, float32(1), v[i], "row %d belongs to text %d", i, i)
	}
	assert.Equal(t, [][]string{texts[0:3], texts[3:6], texts[6:7]}, p.batches)
}

func TestEmbedProviderErrorNamesBatch(t *testing.T) {
	p := &fakeProvider{failOn: 2, err: &retry.StatusError{Code: 401, Body: "bad key"}}
	e, err := NewBatchEmbedder(p, fastLimiter(), 2, noRetry(), nil)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c", "d"})
	assert.Nil(t, vecs, "no partial result")

	var perr *EmbeddingProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Batch)

	var se *retry.StatusError
	assert.ErrorAs(t, err, &se)
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	calls := 0
	p := &flakyProvider{fail: 2, calls: &calls}
	policy := retry.Policy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	e, err := NewBatchEmbedder(p, fastLimiter(), 4, policy, nil)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, 3, calls)
}

type flakyProvider struct {
	fail  int
	calls *int
}

func (f *flakyProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	*f.calls++
	if *f.calls <= f.fail {
		return nil, &retry.StatusError{Code: 503, Body: "overloaded"}
	}
	return [][]float32{{1, 1}}, nil
}

func (f *flakyProvider) ModelName() string { return "flaky" }

func TestEmbedRejectsZeroVector(t *testing.T) {
	p := &fakeProvider{embed: func(string) []float32 { return []float32{0, 0} }}
	e, err := NewBatchEmbedder(p, fastLimiter(), 2, noRetry(), nil)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestEmbedRejectsDimensionDrift(t *testing.T) {
	p := &fakeProvider{embed: func(text string) []float32 { return make([]float32, len(text)) }}
	e, err := NewBatchEmbedder(p, fastLimiter(), 1, noRetry(), nil)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"ab", "abc"})
	var perr *EmbeddingProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Batch)
}

func TestEmbedStreamStopsOnCallbackError(t *testing.T) {
	p := &fakeProvider{}
	e, err := NewBatchEmbedder(p, fastLimiter(), 1, noRetry(), nil)
	require.NoError(t, err)

	stop := errors.New("disk full")
	var offsets []int
	err = e.EmbedStream(context.Background(), []string{"a", "b", "c"}, func(offset int, vecs [][]float32) error {
		offsets = append(offsets, offset)
		if offset == 1 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int{0, 1}, offsets)
	assert.Equal(t, 2, p.calls)
}

func TestEmbedEmptyInput(t *testing.T) {
	p := &fakeProvider{}
	e, err := NewBatchEmbedder(p, fastLimiter(), 4, noRetry(), nil)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, p.calls)
}

func TestEmbedPacesBatches(t *testing.T) {
	if testing.Short() {
		t.Skip("takes about 4s")
	}
	p := &fakeProvider{}
	limiter, err := ratelimit.NewPerMinute(30)
	require.NoError(t, err)
	e, err := NewBatchEmbedder(p, limiter, 1, noRetry(), nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 3900*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestNewBatchEmbedderValidates(t *testing.T) {
	_, err := NewBatchEmbedder(&fakeProvider{}, fastLimiter(), 0, noRetry(), nil)
	assert.Error(t, err)
	_, err = NewBatchEmbedder(&fakeProvider{}, nil, 1, noRetry(), nil)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	require.NoError(t, Normalize(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	assert.ErrorIs(t, Normalize([]float32{0, 0, 0}), ErrZeroVector)
}
