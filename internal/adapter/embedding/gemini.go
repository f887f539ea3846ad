package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"supplyrag/internal/adapter/retry"
)

const geminiTaskType = "RETRIEVAL_DOCUMENT"

// GeminiProvider embeds texts with a Gemini embedding model, either through
// the Gemini API (API key) or Vertex AI (project and location).
type GeminiProvider struct {
	client *genai.Client
	model  string
}

type GeminiOptions struct {
	APIKeyEnv string
	Project   string
	Location  string
	Model     string
}

func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	client, err := NewGenAIClient(ctx, opts.APIKeyEnv, opts.Project, opts.Location)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, model: opts.Model}, nil
}

// NewGenAIClient prefers Vertex AI when a project is set and falls back to
// the Gemini API key.
func NewGenAIClient(ctx context.Context, apiKeyEnv, project, location string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{}
	if project != "" {
		if location == "" {
			location = "us-central1"
		}
		cfg.Backend = genai.BackendVertexAI
		cfg.Project = project
		cfg.Location = location
	} else {
		key := os.Getenv(apiKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("neither a cloud project nor %s is set", apiKeyEnv)
		}
		cfg.Backend = genai.BackendGeminiAPI
		cfg.APIKey = key
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	res, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		TaskType: geminiTaskType,
	})
	if err != nil {
		return nil, GenAIError(err)
	}

	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func (p *GeminiProvider) ModelName() string {
	return p.model
}

// GenAIError maps genai API errors onto retry.StatusError.
func GenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
