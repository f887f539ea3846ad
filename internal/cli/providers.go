package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"supplyrag/config"
	"supplyrag/internal/adapter/embedding"
	"supplyrag/internal/adapter/extractor"
	"supplyrag/internal/adapter/llm"
	"supplyrag/internal/adapter/ratelimit"
	"supplyrag/internal/adapter/reranker"
	"supplyrag/internal/adapter/retry"
	"supplyrag/internal/port"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newEmbeddingProvider returns the configured provider and, for local
// models, a closer for the model session.
func newEmbeddingProvider(ctx context.Context, cfg *config.Config) (port.EmbeddingProvider, io.Closer, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "gemini":
		p, err := embedding.NewGeminiProvider(ctx, embedding.GeminiOptions{
			APIKeyEnv: e.APIKeyEnv,
			Project:   e.Project,
			Location:  e.Location,
			Model:     e.Model,
		})
		return p, nil, err
	case "openai":
		p, err := embedding.NewOpenAIProvider(e.APIKeyEnv, e.Model, e.BaseURL)
		return p, nil, err
	case "ollama":
		return embedding.NewOllamaProvider(e.Model, e.BaseURL), nil, nil
	case "hugot":
		p, err := embedding.NewHugotProvider(e.Model, path(e.ModelDir))
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "hash":
		return embedding.NewHashProvider(e.Dimension), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
}

// newEmbedder wires the provider behind the rate limiter and retry policy.
func newEmbedder(ctx context.Context, cfg *config.Config, log *slog.Logger) (*embedding.BatchEmbedder, io.Closer, error) {
	if err := cfg.ValidateEmbedding(); err != nil {
		return nil, nil, err
	}
	provider, closer, err := newEmbeddingProvider(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	limiter, err := ratelimit.NewPerMinute(cfg.Embedding.RequestsPerMinute)
	if err != nil {
		return nil, nil, err
	}
	policy := retry.DefaultPolicy(cfg.Embedding.MaxRetries, seconds(cfg.Embedding.TimeoutSeconds))
	embedder, err := embedding.NewBatchEmbedder(provider, limiter, cfg.Embedding.BatchSize, policy, log)
	if err != nil {
		return nil, nil, err
	}
	return embedder, closer, nil
}

func newReranker(cfg *config.Config, log *slog.Logger) (*reranker.Reranker, error) {
	if err := cfg.ValidateRerank(); err != nil {
		return nil, err
	}
	r := cfg.Rerank
	var model port.RelevanceModel
	switch r.Provider {
	case "cohere":
		m, err := reranker.NewCohereModel(r.APIKeyEnv, r.Model, r.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create relevance model: %w", err)
		}
		model = m
	case "lexical":
		model = reranker.NewLexicalModel()
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", r.Provider)
	}
	return reranker.New(model, reranker.Options{
		MaxTokens: r.MaxTokens,
		BatchSize: r.BatchSize,
		Policy:    retry.DefaultPolicy(r.MaxRetries, seconds(r.TimeoutSeconds)),
	}, log)
}

func newLLM(ctx context.Context, cfg *config.Config) (port.LLM, error) {
	x := cfg.Extract
	switch x.Provider {
	case "gemini":
		return llm.NewGeminiLLM(ctx, x.APIKeyEnv, x.Project, x.Location, x.Model)
	case "openai":
		return llm.NewOpenAILLM(x.APIKeyEnv, x.Model, x.BaseURL)
	case "ollama":
		return llm.NewOllamaLLM(x.Model, x.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported extraction provider: %s", x.Provider)
	}
}

func newExtractor(ctx context.Context, cfg *config.Config, log *slog.Logger) (*extractor.Extractor, error) {
	if err := cfg.ValidateExtract(); err != nil {
		return nil, err
	}
	model, err := newLLM(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction model: %w", err)
	}
	return extractor.New(model, retry.DefaultPolicy(cfg.Extract.MaxRetries, seconds(cfg.Extract.TimeoutSeconds)), log), nil
}
