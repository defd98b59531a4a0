package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "database.driver", typ: kString, env: "SQLRAG_DATABASE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Database.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.Driver },
	},
	{
		key: "database.dsn", typ: kString, env: "SQLRAG_DATABASE_DSN",
		apply:   func(cfg *Config, v any) { cfg.Database.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.DSN },
	},
	{
		key: "database.read_only", typ: kBool, env: "SQLRAG_DATABASE_READ_ONLY",
		apply:   func(cfg *Config, v any) { cfg.Database.ReadOnly = v.(bool) },
		extract: func(cfg Config) any { return cfg.Database.ReadOnly },
	},
	{
		key: "index.dir", typ: kString, env: "SQLRAG_INDEX_DIR",
		apply:   func(cfg *Config, v any) { cfg.Index.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Dir },
	},
	{
		key: "index.collection", typ: kString, env: "SQLRAG_INDEX_COLLECTION",
		apply:   func(cfg *Config, v any) { cfg.Index.Collection = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Collection },
	},
	{
		key: "backend.generator", typ: kString, env: "SQLRAG_BACKEND_GENERATOR",
		apply:   func(cfg *Config, v any) { cfg.Backend.Generator = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Generator },
	},
	{
		key: "backend.embedder", typ: kString, env: "SQLRAG_BACKEND_EMBEDDER",
		apply:   func(cfg *Config, v any) { cfg.Backend.Embedder = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Embedder },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SQLRAG_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.gen_model", typ: kString, env: "SQLRAG_OLLAMA_GEN_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.GenModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.GenModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "SQLRAG_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "openai.base_url", typ: kString, env: "SQLRAG_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.api_key", typ: kString, env: "SQLRAG_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.model", typ: kString, env: "SQLRAG_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openai.embed_model", typ: kString, env: "SQLRAG_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "gemini.api_key", typ: kString, env: "SQLRAG_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "SQLRAG_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "gemini.embed_model", typ: kString, env: "SQLRAG_GEMINI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.EmbedModel },
	},
	{
		key: "hash.dimensions", typ: kInt, env: "SQLRAG_HASH_DIMENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Hash.Dimensions = v.(int) },
		extract: func(cfg Config) any { return cfg.Hash.Dimensions },
	},
	{
		key: "generation.max_tokens", typ: kInt, env: "SQLRAG_GENERATION_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxTokens },
	},
	{
		key: "generation.timeout", typ: kDuration, env: "SQLRAG_GENERATION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Generation.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Generation.Timeout },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "SQLRAG_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "prompt.max_context_tokens", typ: kInt, env: "SQLRAG_PROMPT_MAX_CONTEXT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Prompt.MaxContextTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Prompt.MaxContextTokens },
	},
	{
		key: "log.level", typ: kString, env: "SQLRAG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.json", typ: kBool, env: "SQLRAG_LOG_JSON",
		apply:   func(cfg *Config, v any) { cfg.Log.JSON = v.(bool) },
		extract: func(cfg Config) any { return cfg.Log.JSON },
	},
	{
		key: "metrics.addr", typ: kString, env: "SQLRAG_METRICS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Metrics.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Metrics.Addr },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := parseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := parseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// parseDuration accepts Go duration strings plus a bare "0".
func parseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
