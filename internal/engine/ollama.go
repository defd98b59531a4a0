package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/sqlrag/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Generator, Embedder
// and ModelManager interfaces.
type OllamaEngine struct {
	client     *ollama.Client
	genModel   string
	embedModel string
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL, genModel, embedModel string) *OllamaEngine {
	return &OllamaEngine{
		client:     ollama.New(baseURL),
		genModel:   genModel,
		embedModel: embedModel,
	}
}

func (e *OllamaEngine) Name() string { return "ollama:" + e.genModel }

// Models returns the generation and embedding model names.
func (e *OllamaEngine) Models() (gen, embed string) { return e.genModel, e.embedModel }

func (e *OllamaEngine) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	res, err := e.client.Generate(ctx, e.genModel, prompt, ollama.Options{
		Temperature: 0,
		TopK:        1,
		Seed:        0,
		NumPredict:  opts.MaxTokens,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Response) == "" {
		return "", ErrGenerationEmpty
	}
	return res.Response, nil
}

func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.embedModel, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return vec, nil
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{
				Status:    p.Status,
				Total:     p.Total,
				Completed: p.Completed,
			})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
