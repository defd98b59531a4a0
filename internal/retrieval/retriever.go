package retrieval

import (
	"context"
	"fmt"
)

// Retriever combines embedding and vector search to find relevant context.
type Retriever struct {
	embedder   *Embedder
	store      VectorStore
	collection string
}

// NewRetriever creates a Retriever over one collection of the store.
func NewRetriever(embedder *Embedder, store VectorStore, collection string) *Retriever {
	return &Retriever{embedder: embedder, store: store, collection: collection}
}

// Retrieve embeds the query and returns the top-k most similar chunks.
// An empty store yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(ctx, r.collection, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", r.collection, err)
	}
	return scored, nil
}

// Texts returns the chunk texts in rank order.
func Texts(chunks []ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
