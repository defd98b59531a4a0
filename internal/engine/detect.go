package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/sqlrag/internal/config"
)

// Backends holds the generation and embedding variants selected at startup.
type Backends struct {
	Generator Generator
	Embedder  Embedder
}

// Detect builds the configured backends. The generator is wrapped with
// Timed so every call is bounded by generation.timeout and logged.
func Detect(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backends, error) {
	gen, err := NewGenerator(ctx, cfg)
	if err != nil {
		return Backends{}, err
	}
	emb, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return Backends{}, err
	}
	return Backends{
		Generator: NewTimed(gen, cfg.Generation.Timeout, logger),
		Embedder:  emb,
	}, nil
}

// NewGenerator returns the generation variant named by backend.generator.
func NewGenerator(ctx context.Context, cfg config.Config) (Generator, error) {
	switch cfg.Backend.Generator {
	case "ollama":
		return NewOllamaEngine(cfg.Ollama.BaseURL, cfg.Ollama.GenModel, cfg.Ollama.EmbedModel), nil
	case "openai":
		return NewOpenAIEngine(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.EmbedModel), nil
	case "gemini":
		return NewGeminiEngine(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", ErrBackendUnavailable, cfg.Backend.Generator)
	}
}

// NewEmbedder returns the embedding variant named by backend.embedder.
func NewEmbedder(ctx context.Context, cfg config.Config) (Embedder, error) {
	switch cfg.Backend.Embedder {
	case "ollama":
		return NewOllamaEngine(cfg.Ollama.BaseURL, cfg.Ollama.GenModel, cfg.Ollama.EmbedModel), nil
	case "openai":
		return NewOpenAIEngine(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.EmbedModel), nil
	case "gemini":
		return NewGeminiEngine(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	case "hash":
		return NewHashEmbedder(cfg.Hash.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", ErrBackendUnavailable, cfg.Backend.Embedder)
	}
}
