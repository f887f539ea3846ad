package embedding

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// HashProvider maps texts to bag-of-words feature-hashed vectors. It needs no
// network or model files and is deterministic, which makes it useful for
// tests and offline smoke runs.
type HashProvider struct {
	dim int
}

func NewHashProvider(dim int) *HashProvider {
	return &HashProvider{dim: dim}
}

func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *HashProvider) vector(text string) []float32 {
	v := make([]float32, p.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		if sum&(1<<63) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	// Empty text, or words that cancel out, still get a non-zero vector.
	for _, x := range v {
		if x != 0 {
			return v
		}
	}
	v[0] = 1
	return v
}

func (p *HashProvider) ModelName() string {
	return "hash-" + strconv.Itoa(p.dim)
}
