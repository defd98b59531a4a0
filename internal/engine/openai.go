package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEngine talks to any server exposing the OpenAI completions and
// embeddings endpoints (llama.cpp server, vLLM, LocalAI).
type OpenAIEngine struct {
	client     openai.Client
	model      string
	embedModel string
}

// NewOpenAIEngine creates an engine for the OpenAI-compatible API at baseURL.
// An empty apiKey is allowed; most local servers ignore it.
func NewOpenAIEngine(baseURL, apiKey, model, embedModel string) *OpenAIEngine {
	if apiKey == "" {
		apiKey = "unused"
	}
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &OpenAIEngine{client: client, model: model, embedModel: embedModel}
}

func (e *OpenAIEngine) Name() string { return "openai:" + e.model }

// Generate uses the legacy completions endpoint so the prompt is continued
// verbatim without a chat template.
func (e *OpenAIEngine) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	params := openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(e.model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(prompt)},
		Temperature: openai.Float(0),
		Seed:        openai.Int(0),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if len(opts.Stop) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{OfStringArray: opts.Stop}
	}

	resp, err := e.client.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Text) == "" {
		return "", ErrGenerationEmpty
	}
	return resp.Choices[0].Text, nil
}

func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: empty data array")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}
