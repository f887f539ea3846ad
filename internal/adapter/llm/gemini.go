package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"supplyrag/internal/adapter/embedding"
)

// GeminiLLM generates text with a Gemini model through Vertex AI or the
// Gemini API.
type GeminiLLM struct {
	client *genai.Client
	model  string
}

func NewGeminiLLM(ctx context.Context, apiKeyEnv, project, location, model string) (*GeminiLLM, error) {
	client, err := embedding.NewGenAIClient(ctx, apiKeyEnv, project, location)
	if err != nil {
		return nil, err
	}
	return &GeminiLLM{client: client, model: model}, nil
}

func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", embedding.GenAIError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model %s returned no text", g.model)
	}
	return text, nil
}

func (g *GeminiLLM) ModelName() string {
	return g.model
}
