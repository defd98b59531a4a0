package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	type resp struct {
		Models []entry `json:"models"`
	}
	r := resp{}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestOllamaEngine_Generate(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"response": " SELECT name FROM Students;",
			"done":     true,
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "phi", "all-minilm")
	out, err := e.Generate(context.Background(), "SQL:", Options{MaxTokens: 64, Stop: []string{"Answer:"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != " SELECT name FROM Students;" {
		t.Errorf("got %q, want %q", out, " SELECT name FROM Students;")
	}

	if captured["model"] != "phi" {
		t.Errorf("model = %v, want phi", captured["model"])
	}
	opts, _ := captured["options"].(map[string]any)
	if opts["temperature"] != float64(0) || opts["top_k"] != float64(1) {
		t.Errorf("options = %v, want greedy decoding", opts)
	}
	if opts["num_predict"] != float64(64) {
		t.Errorf("num_predict = %v, want 64", opts["num_predict"])
	}
}

func TestOllamaEngine_GenerateEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "  \n", "done": true})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "phi", "all-minilm")
	_, err := e.Generate(context.Background(), "SQL:", Options{MaxTokens: 8})
	if !errors.Is(err, ErrGenerationEmpty) {
		t.Fatalf("err = %v, want ErrGenerationEmpty", err)
	}
}

func TestOllamaEngine_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "phi", "all-minilm")
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d floats, want 3", len(vec))
	}
}

func TestOllamaEngine_IsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e := NewOllamaEngine(srv.URL, "phi", "all-minilm")
	if e.IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestOllamaEngine_HasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("phi:latest", "all-minilm:latest"))
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "phi", "all-minilm")
	if !e.HasModel(context.Background(), "phi") {
		t.Error("HasModel(phi) = false, want true")
	}
	if e.HasModel(context.Background(), "llama3") {
		t.Error("HasModel(llama3) = true, want false")
	}
}

func TestPrepare_PullsOllamaModels(t *testing.T) {
	var pulled []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write(tagsJSON("phi:latest"))
		case "/api/pull":
			var body struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			pulled = append(pulled, body.Name)
			json.NewEncoder(w).Encode(map[string]any{"status": "success"})
		case "/api/embed":
			json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5, 0.5}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := NewOllamaEngine(srv.URL, "phi", "all-minilm")
	b := Backends{Generator: NewTimed(o, 0, nil), Embedder: o}

	dims, err := Prepare(context.Background(), b, io.Discard)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if dims != 2 {
		t.Errorf("dims = %d, want 2", dims)
	}
	if len(pulled) != 1 || pulled[0] != "all-minilm" {
		t.Errorf("pulled = %v, want [all-minilm]", pulled)
	}
}
