package config

import (
	"fmt"
	"time"
)

type Config struct {
	Database   DatabaseConfig
	Index      IndexConfig
	Backend    BackendConfig
	Ollama     OllamaConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Hash       HashConfig
	Generation GenerationConfig
	Retrieval  RetrievalConfig
	Prompt     PromptConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

type DatabaseConfig struct {
	Driver   string
	DSN      string
	ReadOnly bool
}

type IndexConfig struct {
	Dir        string
	Collection string
}

// BackendConfig selects the generation and embedding variants by name.
type BackendConfig struct {
	Generator string
	Embedder  string
}

type OllamaConfig struct {
	BaseURL    string
	GenModel   string
	EmbedModel string
}

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

type HashConfig struct {
	Dimensions int
}

type GenerationConfig struct {
	MaxTokens int
	// Timeout bounds a single generation call. Zero disables the bound.
	Timeout time.Duration
}

type RetrievalConfig struct {
	TopK int
}

type PromptConfig struct {
	MaxContextTokens int
}

type LogConfig struct {
	Level string
	JSON  bool
}

type MetricsConfig struct {
	Addr string
}

const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

func defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "db/university.db",
		},
		Index: IndexConfig{
			Dir:        "index",
			Collection: "university_data",
		},
		Backend: BackendConfig{
			Generator: "ollama",
			Embedder:  "ollama",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			GenModel:   "phi",
			EmbedModel: "all-minilm",
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "http://localhost:8080/v1",
			Model:      "phi-2",
			EmbedModel: "all-MiniLM-L6-v2",
		},
		Gemini: GeminiConfig{
			Model:      "gemini-2.0-flash",
			EmbedModel: "gemini-embedding-001",
		},
		Hash: HashConfig{
			Dimensions: 384,
		},
		Generation: GenerationConfig{
			MaxTokens: 64,
			Timeout:   2 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Prompt: PromptConfig{
			MaxContextTokens: 1500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/sqlrag/config.json, then applies SQLRAG_* environment
// variable overrides. Secrets are read from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration value that cannot be used.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPgx:
	default:
		return fmt.Errorf("invalid database.driver %q: want %q or %q", c.Database.Driver, DriverSQLite, DriverPgx)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("missing required config: database.dsn")
	}

	switch c.Backend.Generator {
	case "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("invalid backend.generator %q: want ollama, openai or gemini", c.Backend.Generator)
	}
	switch c.Backend.Embedder {
	case "ollama", "openai", "gemini", "hash":
	default:
		return fmt.Errorf("invalid backend.embedder %q: want ollama, openai, gemini or hash", c.Backend.Embedder)
	}
	if (c.Backend.Generator == "gemini" || c.Backend.Embedder == "gemini") && c.Gemini.APIKey == "" {
		return fmt.Errorf("missing required config: Gemini API key. Set it via environment variable SQLRAG_GEMINI_API_KEY")
	}

	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.Timeout < 0 {
		return fmt.Errorf("generation.timeout must not be negative, got %s", c.Generation.Timeout)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Hash.Dimensions <= 0 {
		return fmt.Errorf("hash.dimensions must be positive, got %d", c.Hash.Dimensions)
	}
	return nil
}
