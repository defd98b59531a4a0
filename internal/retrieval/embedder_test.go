package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// mockEmbedder implements engine.Embedder for testing.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock)

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("got %d dimensions, want 384", len(vec))
	}
}

func TestEmbed_BackendError(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}
	e := NewEmbedder(mock)

	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		},
	}
	e := NewEmbedder(mock)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vecs[%d] = %v, want [%d]", i, v, len(texts[i]))
		}
	}
}

func TestEmbedBatch_BackendError(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			if text == "b" {
				return nil, errors.New("embedding failed")
			}
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			t.Fatal("should not be called for empty input")
			return nil, nil
		},
	}
	e := NewEmbedder(mock)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}

// taskEmbedder records which side of an asymmetric embedder was used.
type taskEmbedder struct {
	mu        sync.Mutex
	queries   []string
	documents []string
}

func (m *taskEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	return makeVector(8), nil
}

func (m *taskEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, text)
	return makeVector(8), nil
}

func TestEmbedBatch_UsesDocumentSide(t *testing.T) {
	mock := &taskEmbedder{}
	e := NewEmbedder(mock)
	ctx := context.Background()

	if _, err := e.EmbedBatch(ctx, []string{"Table Students", "Table Courses"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if _, err := e.Embed(ctx, "Show all students"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(mock.documents) != 2 {
		t.Errorf("document embeds = %v, want both chunks", mock.documents)
	}
	if len(mock.queries) != 1 || mock.queries[0] != "Show all students" {
		t.Errorf("query embeds = %v, want only the question", mock.queries)
	}
}
