package engine

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable is returned when an embedding or generation
	// backend cannot be reached or loaded. It is fatal at startup.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrGenerationEmpty is returned when a generation call produced no text.
	ErrGenerationEmpty = errors.New("generation produced no output")

	// ErrGenerationTimeout is returned when a generation call exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
)

// Options control a single generation call. Every backend decodes greedily;
// there is no temperature knob.
type Options struct {
	// MaxTokens caps the number of generated tokens.
	MaxTokens int
	// Stop lists sequences that end generation early when emitted.
	Stop []string
}

// Generator produces raw continuation text for a prompt. Implementations
// must be deterministic: identical prompt and options yield identical output.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// Embedder maps text to a fixed-length vector. The same text always yields
// the same vector for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentEmbedder is implemented by embedders that encode stored documents
// differently from queries. Embed is then the query side.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// ModelManager is implemented by backends that host models locally and can
// download missing ones (Ollama). EnsureReady uses it when available.
type ModelManager interface {
	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
