package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/kalambet/sqlrag/internal/engine"
)

func TestRetrieve_ExactTextRanksFirst(t *testing.T) {
	ctx := context.Background()
	hash := engine.NewHashEmbedder(256)
	emb := NewEmbedder(hash)
	s := openTestStore(t, 256)

	docs := []string{
		"Table Students: id, name, email, department, year, gpa",
		"Table Courses: id, name, department, credits",
		"Table Enrollments: id, student_id, course_id, semester, grade",
		"Table Departments: id, name, building",
	}
	vecs, err := emb.EmbedBatch(ctx, docs)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, d := range docs {
		insert(t, s, Chunk{ID: d[:10], Text: d, Embedding: vecs[i]})
	}

	r := NewRetriever(emb, s, "test")
	for _, d := range docs {
		results, err := r.Retrieve(ctx, d, 3)
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if len(results) == 0 || results[0].Text != d {
			t.Errorf("Retrieve(%q) top = %v, want the exact chunk first", d, Texts(results))
		}
		if len(results) > 3 {
			t.Errorf("got %d results, want at most 3", len(results))
		}
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	r := NewRetriever(NewEmbedder(engine.NewHashEmbedder(8)), openTestStore(t, 8), "test")

	results, err := r.Retrieve(context.Background(), "List all students", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	if got := Texts(results); len(got) != 0 {
		t.Errorf("Texts = %v, want empty", got)
	}
}

func TestRetrieve_EmbedFails(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, engine.ErrBackendUnavailable
		},
	}
	r := NewRetriever(NewEmbedder(mock), openTestStore(t, 2), "test")

	_, err := r.Retrieve(context.Background(), "anything", 2)
	if !errors.Is(err, engine.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}
