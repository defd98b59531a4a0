package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/sqlrag/internal/api"
	"github.com/kalambet/sqlrag/internal/config"
	"github.com/kalambet/sqlrag/internal/engine"
	"github.com/kalambet/sqlrag/internal/index"
	"github.com/kalambet/sqlrag/internal/observability"
	"github.com/kalambet/sqlrag/internal/retrieval"
	"github.com/kalambet/sqlrag/internal/storage"
)

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the retrieval index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Chunk, embed and store documentation files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringSlice("file")
		split, _ := cmd.Flags().GetString("split")
		appendMode, _ := cmd.Flags().GetBool("append")

		if len(files) == 0 {
			return fmt.Errorf("at least one --file is required")
		}
		mode, err := index.ParseSplitMode(split)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := observability.NewLogger(cfg.Log, os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		emb, err := engine.NewEmbedder(ctx, cfg)
		if err != nil {
			return err
		}
		if o, ok := emb.(*engine.OllamaEngine); ok {
			_, model := o.Models()
			if err := engine.EnsureReady(ctx, o, statusOut, model); err != nil {
				return err
			}
		}

		docs := make([]index.Document, 0, len(files))
		for _, path := range files {
			doc, err := index.Load(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}

		store, err := retrieval.OpenSQLiteStore(cfg.Index.Dir)
		if err != nil {
			return fmt.Errorf("opening index: %w", err)
		}
		defer store.Close()

		printStep("Embedding %d document(s) into %s", len(docs), cfg.Index.Collection)
		b := index.NewBuilder(store, retrieval.NewEmbedder(emb), cfg.Index.Collection, logger)
		stats, err := b.Build(ctx, docs, index.Options{Split: mode, Append: appendMode})
		if err != nil {
			return err
		}

		printSuccess("Indexed %d chunk(s) into %s (%d total, %d dimensions)",
			stats.Chunks, stats.Collection, stats.Total, stats.Dimensions)
		return nil
	},
}

func init() {
	indexBuildCmd.Flags().StringSlice("file", nil, "document to index (.txt, .md, .html, .pdf); repeatable")
	indexBuildCmd.Flags().String("split", string(index.SplitParagraph), "chunk boundary: paragraph or table")
	indexBuildCmd.Flags().Bool("append", false, "keep the existing collection and add chunks to it")
	indexCmd.AddCommand(indexBuildCmd)
}

// --- db ---

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the university database",
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the university schema and insert the reference rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Database.Driver != config.DriverSQLite {
			return fmt.Errorf("db seed supports the %s driver only, got %s", config.DriverSQLite, cfg.Database.Driver)
		}

		s, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()

		counts, err := s.TableCounts(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess("Database ready at %s", cfg.Database.DSN)
		for _, c := range counts {
			printStatus(c.Table, "%d rows", c.Rows)
		}
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbSeedCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, backend and data status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	printStatus("Generator", "%s", backendStatus(ctx, cfg, cfg.Backend.Generator))
	printStatus("Embedder", "%s", backendStatus(ctx, cfg, cfg.Backend.Embedder))

	store, err := retrieval.OpenReadOnly(cfg.Index.Dir)
	if err != nil {
		printStatus("Index", "error: %v", err)
	} else {
		defer store.Close()
		n, err := store.Count(ctx, cfg.Index.Collection)
		switch {
		case err != nil:
			printStatus("Index", "error: %v", err)
		case n == 0:
			printStatus("Index", "empty (%s in %s)", cfg.Index.Collection, cfg.Index.Dir)
		default:
			printStatus("Index", "%d chunks (%s in %s)", n, cfg.Index.Collection, cfg.Index.Dir)
		}
	}

	printStatus("Database", "%s", databaseStatus(cfg.Database))
	if cfg.Database.ReadOnly {
		printStatus("Read-only", "enabled")
	}
	return nil
}

func backendStatus(ctx context.Context, cfg config.Config, name string) string {
	switch name {
	case "ollama":
		e := engine.NewOllamaEngine(cfg.Ollama.BaseURL, cfg.Ollama.GenModel, cfg.Ollama.EmbedModel)
		if !e.IsRunning(ctx) {
			return fmt.Sprintf("ollama not running at %s", cfg.Ollama.BaseURL)
		}
		return fmt.Sprintf("ollama running at %s (gen %s, embed %s)", cfg.Ollama.BaseURL, cfg.Ollama.GenModel, cfg.Ollama.EmbedModel)
	case "openai":
		return fmt.Sprintf("openai-compatible at %s (model %s, embed %s)", cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.EmbedModel)
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return "gemini (no API key set)"
		}
		return fmt.Sprintf("gemini (model %s, embed %s)", cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	case "hash":
		return fmt.Sprintf("hash (%d dimensions, offline)", cfg.Hash.Dimensions)
	default:
		return fmt.Sprintf("unknown backend %q", name)
	}
}

func databaseStatus(cfg config.DatabaseConfig) string {
	if cfg.Driver != config.DriverSQLite {
		return fmt.Sprintf("%s (not checked)", cfg.Driver)
	}
	if err := checkDatabase(cfg); err != nil {
		return err.Error()
	}

	s, err := storage.OpenReadOnly(cfg.DSN)
	if err != nil {
		return fmt.Sprintf("%s (error: %v)", cfg.DSN, err)
	}
	defer s.Close()
	versions, err := s.AppliedMigrations()
	if err != nil {
		return fmt.Sprintf("%s (error: %v)", cfg.DSN, err)
	}
	return fmt.Sprintf("%s (%d migrations applied)", cfg.DSN, len(versions))
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the text-to-SQL tools over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// stdout carries the protocol: everything else goes to stderr.
		logger := observability.NewLogger(cfg.Log, os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		stopMetrics, err := startMetrics(ctx, cfg.Metrics.Addr, a.healthChecks(), logger)
		if err != nil {
			return err
		}
		defer stopMetrics()

		schema, err := storage.Schema()
		if err != nil {
			return err
		}
		s := api.NewMCPServer(api.MCPDeps{
			Pipeline:          a.pipeline,
			Schema:            schema,
			GenerationTimeout: cfg.Generation.Timeout,
		}, version)

		logger.Info("MCP server started (stdio transport)")
		if err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sqlrag configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Clean(config.FilePath()))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
