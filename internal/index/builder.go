package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/sqlrag/internal/retrieval"
)

// ErrNoChunks is returned when the documents contain no text to index.
var ErrNoChunks = errors.New("no chunks to index")

// BatchEmbedder embeds many texts, keeping input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options control a single build.
type Options struct {
	Split SplitMode
	// Append keeps the existing collection and adds to it. By default the
	// collection is dropped and recreated.
	Append bool
}

// Stats summarizes a finished build.
type Stats struct {
	Collection string
	Chunks     int
	Total      int
	Dimensions int
}

// Builder writes embedded chunks into one collection of a vector store.
type Builder struct {
	store      retrieval.VectorStore
	embedder   BatchEmbedder
	collection string
	logger     *slog.Logger
}

// NewBuilder creates a Builder for the named collection.
func NewBuilder(store retrieval.VectorStore, embedder BatchEmbedder, collection string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, embedder: embedder, collection: collection, logger: logger}
}

type pending struct {
	text   string
	source string
}

// Build chunks, embeds and stores docs. Chunk ids are chunk_<n> with n
// counting from the current size of the collection.
func (b *Builder) Build(ctx context.Context, docs []Document, opts Options) (Stats, error) {
	var items []pending
	for _, doc := range docs {
		for _, text := range Split(doc.Text, opts.Split) {
			items = append(items, pending{text: text, source: doc.Source})
		}
	}
	if len(items) == 0 {
		return Stats{}, ErrNoChunks
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.text
	}
	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Stats{}, fmt.Errorf("embedding chunks: %w", err)
	}
	dims := len(vecs[0])

	meta := map[string]string{"space": "cosine"}
	offset := 0
	if opts.Append {
		if err := b.store.CreateCollection(ctx, b.collection, dims, meta); err != nil {
			return Stats{}, err
		}
		if offset, err = b.store.Count(ctx, b.collection); err != nil {
			return Stats{}, err
		}
	}

	chunks := make([]retrieval.Chunk, len(items))
	for i, it := range items {
		chunks[i] = retrieval.Chunk{
			ID:        fmt.Sprintf("chunk_%d", offset+i),
			Text:      it.text,
			Embedding: vecs[i],
			Metadata:  map[string]string{"source": it.source},
		}
	}

	if opts.Append {
		err = b.store.Insert(ctx, b.collection, chunks)
	} else {
		err = b.store.ReplaceCollection(ctx, b.collection, dims, meta, chunks)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("inserting chunks: %w", err)
	}

	b.logger.Info("index built",
		"collection", b.collection,
		"chunks", len(chunks),
		"dimensions", dims,
		"append", opts.Append,
	)
	return Stats{
		Collection: b.collection,
		Chunks:     len(chunks),
		Total:      offset + len(chunks),
		Dimensions: dims,
	}, nil
}
