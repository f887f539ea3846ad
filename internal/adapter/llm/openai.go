package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"supplyrag/internal/adapter/retry"
)

// OpenAILLM generates text through an OpenAI-compatible chat endpoint.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM(apiKeyEnv, model, baseURL string) (*OpenAILLM, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAILLM{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// NewOllamaLLM talks to a local Ollama server through its OpenAI-compatible
// endpoint.
func NewOllamaLLM(model, baseURL string) *OpenAILLM {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL
	return &OpenAILLM{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &retry.StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", o.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAILLM) ModelName() string {
	return o.model
}
