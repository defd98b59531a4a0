package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that the model host is reachable and the given models
// are available. Missing models are pulled automatically with progress
// output written to w.
func EnsureReady(ctx context.Context, e ModelManager, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("%w: local inference engine is not running; start it with: ollama serve", ErrBackendUnavailable)
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := e.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("%w: pulling model %s: %v", ErrBackendUnavailable, model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	return nil
}

// Prepare readies every backend in b: model hosts get EnsureReady, then the
// embedder is probed once. It returns the embedding dimensionality.
func Prepare(ctx context.Context, b Backends, w io.Writer) (int, error) {
	var genModel, embModel string
	if o, ok := unwrap(b.Generator).(*OllamaEngine); ok {
		genModel, _ = o.Models()
		if err := EnsureReady(ctx, o, w, genModel); err != nil {
			return 0, err
		}
	}
	if o, ok := b.Embedder.(*OllamaEngine); ok {
		_, embModel = o.Models()
		if err := EnsureReady(ctx, o, w, embModel); err != nil {
			return 0, err
		}
	}
	return Probe(ctx, b.Embedder)
}

// Probe embeds a fixed string to verify the embedder works and learn its
// output dimensionality.
func Probe(ctx context.Context, emb Embedder) (int, error) {
	vec, err := emb.Embed(ctx, "probe")
	if err != nil {
		return 0, fmt.Errorf("%w: embedding probe: %v", ErrBackendUnavailable, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: embedding probe returned an empty vector", ErrBackendUnavailable)
	}
	return len(vec), nil
}

func unwrap(g Generator) Generator {
	if t, ok := g.(*Timed); ok {
		return t.next
	}
	return g
}
