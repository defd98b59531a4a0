package engine

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiEngine generates and embeds through Google's Gemini API.
type GeminiEngine struct {
	client     *genai.Client
	model      string
	embedModel string
}

// NewGeminiEngine creates a Gemini-backed engine.
func NewGeminiEngine(ctx context.Context, apiKey, model, embedModel string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", ErrBackendUnavailable)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating Gemini client: %v", ErrBackendUnavailable, err)
	}

	return &GeminiEngine{client: client, model: model, embedModel: embedModel}, nil
}

func (e *GeminiEngine) Name() string { return "gemini:" + e.model }

func (e *GeminiEngine) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr[float32](0),
		TopK:           genai.Ptr[float32](1),
		Seed:           genai.Ptr[int32](0),
		CandidateCount: 1,
		StopSequences:  opts.Stop,
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrGenerationEmpty
	}
	return text, nil
}

var _ DocumentEmbedder = (*GeminiEngine)(nil)

// Gemini task types for EmbedContent.
const (
	geminiTaskQuery    = "RETRIEVAL_QUERY"
	geminiTaskDocument = "RETRIEVAL_DOCUMENT"
)

// Embed encodes a question for retrieval.
func (e *GeminiEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, geminiTaskQuery)
}

// EmbedDocument encodes a chunk for storage in the index.
func (e *GeminiEngine) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, geminiTaskDocument)
}

func (e *GeminiEngine) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.embedModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: taskType,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini embed: no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
