package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every SQLRAG_* variable the loader reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.DSN != "db/university.db" {
		t.Errorf("Database.DSN = %q, want %q", cfg.Database.DSN, "db/university.db")
	}
	if cfg.Database.ReadOnly {
		t.Error("Database.ReadOnly = true, want false")
	}
	if cfg.Index.Collection != "university_data" {
		t.Errorf("Index.Collection = %q, want %q", cfg.Index.Collection, "university_data")
	}
	if cfg.Ollama.GenModel != "phi" {
		t.Errorf("Ollama.GenModel = %q, want %q", cfg.Ollama.GenModel, "phi")
	}
	if cfg.Ollama.EmbedModel != "all-minilm" {
		t.Errorf("Ollama.EmbedModel = %q, want %q", cfg.Ollama.EmbedModel, "all-minilm")
	}
	if cfg.Generation.MaxTokens != 64 {
		t.Errorf("Generation.MaxTokens = %d, want 64", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("Generation.Timeout = %s, want 2m", cfg.Generation.Timeout)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("Retrieval.TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Prompt.MaxContextTokens != 1500 {
		t.Errorf("Prompt.MaxContextTokens = %d, want 1500", cfg.Prompt.MaxContextTokens)
	}
}

// TestJSONParsing verifies that fields are correctly read from the JSON file.
func TestJSONParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "database.dsn": "/tmp/uni.db",
  "database.read_only": true,
  "backend.generator": "openai",
  "backend.embedder": "hash",
  "openai.base_url": "http://gpu:8000/v1",
  "generation.max_tokens": 128,
  "generation.timeout": "30s",
  "retrieval.top_k": 2,
  "log.json": "true"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.DSN != "/tmp/uni.db" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}
	if !cfg.Database.ReadOnly {
		t.Error("Database.ReadOnly = false, want true")
	}
	if cfg.Backend.Generator != "openai" || cfg.Backend.Embedder != "hash" {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.OpenAI.BaseURL != "http://gpu:8000/v1" {
		t.Errorf("OpenAI.BaseURL = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.Generation.MaxTokens != 128 {
		t.Errorf("Generation.MaxTokens = %d", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("Generation.Timeout = %s", cfg.Generation.Timeout)
	}
	if cfg.Retrieval.TopK != 2 {
		t.Errorf("Retrieval.TopK = %d", cfg.Retrieval.TopK)
	}
	if !cfg.Log.JSON {
		t.Error("Log.JSON = false, want true")
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"retrieval.top_k": 2, "generation.timeout": "30s"}`)

	t.Setenv("SQLRAG_RETRIEVAL_TOP_K", "5")
	t.Setenv("SQLRAG_GENERATION_TIMEOUT", "0")
	t.Setenv("SQLRAG_OPENAI_API_KEY", "env-key")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieval.TopK != 5 {
		t.Errorf("Retrieval.TopK = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Generation.Timeout != 0 {
		t.Errorf("Generation.Timeout = %s, want 0", cfg.Generation.Timeout)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Errorf("OpenAI.APIKey = %q, want %q", cfg.OpenAI.APIKey, "env-key")
	}
}

// TestSecretsIgnoredInFile verifies that secrets are never read from the config file.
func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"openai.api_key": "file-key"}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "" {
		t.Errorf("OpenAI.APIKey = %q, want empty", cfg.OpenAI.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"bad generator", func(c *Config) { c.Backend.Generator = "llamafile" }, "backend.generator"},
		{"hash generator", func(c *Config) { c.Backend.Generator = "hash" }, "backend.generator"},
		{"gemini without key", func(c *Config) { c.Backend.Generator = "gemini" }, "SQLRAG_GEMINI_API_KEY"},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"zero max_tokens", func(c *Config) { c.Generation.MaxTokens = 0 }, "generation.max_tokens"},
		{"negative timeout", func(c *Config) { c.Generation.Timeout = -time.Second }, "generation.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}

	if err := defaults().Validate(); err != nil {
		t.Errorf("defaults().Validate() = %v, want nil", err)
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlrag", "config.json")
	b := newFileBackend(path)

	if err := setKeyWith(b, "retrieval.top_k", "4"); err != nil {
		t.Fatalf("setKeyWith top_k: %v", err)
	}
	if err := setKeyWith(b, "database.read_only", "true"); err != nil {
		t.Fatalf("setKeyWith read_only: %v", err)
	}
	if err := setKeyWith(b, "generation.timeout", "45s"); err != nil {
		t.Fatalf("setKeyWith timeout: %v", err)
	}

	// Reload from disk to make sure values were persisted.
	clearEnv(t)
	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("Retrieval.TopK = %d, want 4", cfg.Retrieval.TopK)
	}
	if !cfg.Database.ReadOnly {
		t.Error("Database.ReadOnly = false, want true")
	}
	if cfg.Generation.Timeout != 45*time.Second {
		t.Errorf("Generation.Timeout = %s, want 45s", cfg.Generation.Timeout)
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.json"))

	tests := []struct {
		key, value, want string
	}{
		{"openai.api_key", "sk-123", "cannot set secret"},
		{"no.such.key", "x", "unknown config key"},
		{"retrieval.top_k", "three", "invalid integer"},
		{"database.read_only", "maybe", "invalid bool"},
		{"generation.timeout", "soon", "invalid duration"},
	}
	for _, tt := range tests {
		err := setKeyWith(b, tt.key, tt.value)
		if err == nil {
			t.Errorf("setKeyWith(%q, %q) = nil, want error", tt.key, tt.value)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("setKeyWith(%q) error = %q, want it to contain %q", tt.key, err.Error(), tt.want)
		}
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.OpenAI.APIKey = "sk-secret"
	cfg.Gemini.APIKey = "g-secret"

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Key, "api_key") {
			t.Errorf("ShowAll exposed secret key %q", ki.Key)
		}
		if strings.Contains(ki.Value, "secret") {
			t.Errorf("ShowAll exposed secret value under %q", ki.Key)
		}
	}

	for _, k := range ValidKeys() {
		if strings.HasSuffix(k, "api_key") {
			t.Errorf("ValidKeys includes secret %q", k)
		}
	}
}
