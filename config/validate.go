package config

import (
	"errors"
	"fmt"
)

// FieldError reports one invalid or missing configuration value.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func positive(field string, v int) error {
	if v <= 0 {
		return &FieldError{Field: field, Reason: fmt.Sprintf("must be > 0, got %d", v)}
	}
	return nil
}

// ValidateChunking checks the sliding window parameters.
func (c *Config) ValidateChunking() error {
	errs := []error{
		positive("chunking.window_chars", c.Chunking.WindowChars),
		positive("chunking.stride", c.Chunking.Stride),
	}
	if c.Chunking.Stride > c.Chunking.WindowChars && c.Chunking.WindowChars > 0 {
		errs = append(errs, &FieldError{
			Field:  "chunking.stride",
			Reason: fmt.Sprintf("stride %d exceeds window %d and would leave gaps", c.Chunking.Stride, c.Chunking.WindowChars),
		})
	}
	return errors.Join(errs...)
}

// ValidateEmbedding checks the embedding provider and pacing parameters.
func (c *Config) ValidateEmbedding() error {
	errs := []error{
		positive("embedding.batch_size", c.Embedding.BatchSize),
	}
	if c.Embedding.RequestsPerMinute <= 0 {
		errs = append(errs, &FieldError{Field: "embedding.requests_per_minute", Reason: "must be > 0"})
	}
	if c.Embedding.Model == "" && c.Embedding.Provider != "hash" {
		errs = append(errs, &FieldError{Field: "embedding.model", Reason: "required"})
	}
	switch c.Embedding.Provider {
	case "gemini", "openai", "ollama", "hugot":
	case "hash":
		errs = append(errs, positive("embedding.dimension", c.Embedding.Dimension))
	default:
		errs = append(errs, &FieldError{Field: "embedding.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Embedding.Provider)})
	}
	if c.Embedding.MaxRetries < 0 {
		errs = append(errs, &FieldError{Field: "embedding.max_retries", Reason: "must be >= 0"})
	}
	return errors.Join(errs...)
}

// ValidateIndex checks the HNSW graph parameters.
func (c *Config) ValidateIndex() error {
	return errors.Join(
		positive("index.m", c.Index.M),
		positive("index.ef_construction", c.Index.EfConstruction),
		positive("index.ef_search", c.Index.EfSearch),
	)
}

// ValidateRetrieve checks the query-time parameters.
func (c *Config) ValidateRetrieve() error {
	return errors.Join(
		positive("retrieve.top_k", c.Retrieve.TopK),
		positive("index.ef_search", c.Index.EfSearch),
	)
}

// ValidateRerank checks the relevance model parameters.
func (c *Config) ValidateRerank() error {
	errs := []error{
		positive("rerank.max_tokens", c.Rerank.MaxTokens),
		positive("rerank.batch_size", c.Rerank.BatchSize),
		positive("rerank.top_m", c.Rerank.TopM),
	}
	switch c.Rerank.Provider {
	case "cohere", "lexical":
	default:
		errs = append(errs, &FieldError{Field: "rerank.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Rerank.Provider)})
	}
	return errors.Join(errs...)
}

// ValidateExtract checks the generative extraction parameters.
func (c *Config) ValidateExtract() error {
	var errs []error
	switch c.Extract.Provider {
	case "gemini", "openai", "ollama":
	default:
		errs = append(errs, &FieldError{Field: "extract.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Extract.Provider)})
	}
	if c.Extract.DedupJaccard < 0 || c.Extract.DedupJaccard > 1 {
		errs = append(errs, &FieldError{Field: "extract.dedup_jaccard", Reason: "must be in [0, 1]"})
	}
	if c.Extract.DedupJaccard > 0 && (c.Extract.MMRLambda < 0 || c.Extract.MMRLambda > 1) {
		errs = append(errs, &FieldError{Field: "extract.mmr_lambda", Reason: "must be in [0, 1]"})
	}
	if c.Extract.Model == "" {
		errs = append(errs, &FieldError{Field: "extract.model", Reason: "required"})
	}
	return errors.Join(errs...)
}

// ValidateBuild checks the stages a build reads: chunking, embedding and
// the index.
func (c *Config) ValidateBuild() error {
	return errors.Join(
		c.ValidateChunking(),
		c.ValidateEmbedding(),
		c.ValidateIndex(),
	)
}

// Validate checks every pipeline stage.
func (c *Config) Validate() error {
	return errors.Join(
		c.ValidateChunking(),
		c.ValidateEmbedding(),
		c.ValidateIndex(),
		positive("retrieve.top_k", c.Retrieve.TopK),
		c.ValidateRerank(),
		c.ValidateExtract(),
	)
}
