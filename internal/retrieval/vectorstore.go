package retrieval

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// dimensionality recorded for its collection.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// VectorStore is the interface for chunk storage and similarity search.
// Query-time callers only use Search, Count and Dimensions; the remaining
// methods serve the offline index build.
type VectorStore interface {
	// CreateCollection ensures the named collection exists. Idempotent.
	CreateCollection(ctx context.Context, name string, dims int, metadata map[string]string) error

	// DeleteCollection removes a collection and all its chunks. Missing
	// collections are not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Insert appends chunks to a collection in the given order.
	Insert(ctx context.Context, collection string, chunks []Chunk) error

	// ReplaceCollection atomically swaps a collection's contents for
	// chunks, recreating it with dims. A failure keeps the old contents.
	ReplaceCollection(ctx context.Context, name string, dims int, metadata map[string]string, chunks []Chunk) error

	// Search returns at most k chunks ordered by descending cosine
	// similarity, ties broken by insertion order. An empty or missing
	// collection yields an empty result.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]ScoredChunk, error)

	// Count returns the number of chunks in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Dimensions returns the recorded dimensionality of a collection, or 0
	// if it does not exist.
	Dimensions(ctx context.Context, collection string) (int, error)

	Close() error
}

// Chunk is a unit of retrievable context text plus its vector.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// ScoredChunk is a Chunk with a similarity score attached.
type ScoredChunk struct {
	Chunk
	Score float32
}
