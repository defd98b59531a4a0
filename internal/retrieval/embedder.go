package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/sqlrag/internal/engine"
	"golang.org/x/sync/errgroup"
)

// Embedder wraps an engine.Embedder with batch fan-out.
type Embedder struct {
	engine engine.Embedder
	limit  int
}

// NewEmbedder creates an Embedder using the given backend.
func NewEmbedder(e engine.Embedder) *Embedder {
	return &Embedder{engine: e, limit: 4}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Results keep the input order. Returns nil (not error) for empty/nil input.
// Texts are treated as documents: backends implementing
// engine.DocumentEmbedder encode them with EmbedDocument.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embed := e.engine.Embed
	if d, ok := e.engine.(engine.DocumentEmbedder); ok {
		embed = d.EmbedDocument
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit) // Bound concurrency to avoid overwhelming the backend.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
